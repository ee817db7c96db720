package usecase

import (
	"time"

	"finetune-orchestrator/internal/domain/model"
)

const defaultSeenWindow = 24 * time.Hour

// EventTracker deduplicates the remote event stream and maintains the
// lineage's high-water mark. The remote API returns a fixed-size recent
// window on every call, so consecutive batches overlap heavily; the tracker
// reports only events not previously seen, oldest-first.
//
// Not safe for concurrent use; the control loop is single-threaded.
type EventTracker struct {
	mark   int64
	seen   map[string]int64 // event key -> timestamp, for window eviction
	window int64            // seconds behind the mark to retain keys
}

// NewEventTracker restores a tracker at the given high-water mark (zero for
// a fresh lineage). seenWindow bounds the dedup set: keys older than the
// window behind the mark are evicted. Zero selects the default.
func NewEventTracker(mark int64, seenWindow time.Duration) *EventTracker {
	if seenWindow <= 0 {
		seenWindow = defaultSeenWindow
	}
	return &EventTracker{
		mark:   mark,
		seen:   make(map[string]int64),
		window: int64(seenWindow / time.Second),
	}
}

// Mark returns the current high-water mark in seconds since epoch.
func (t *EventTracker) Mark() int64 { return t.mark }

// Observe folds one raw batch (most-recent-first, as the remote API returns
// it) into the tracker. It returns the previously unseen events oldest-first
// and the updated high-water mark. An empty batch leaves the mark unchanged.
func (t *EventTracker) Observe(batch []model.EventRecord) ([]model.EventRecord, int64) {
	var fresh []model.EventRecord
	for i := len(batch) - 1; i >= 0; i-- {
		ev := batch[i]
		key := ev.Key()
		if _, ok := t.seen[key]; ok {
			continue
		}
		t.seen[key] = ev.Timestamp
		fresh = append(fresh, ev)
		if ev.Timestamp > t.mark {
			t.mark = ev.Timestamp
		}
	}
	t.evict()
	return fresh, t.mark
}

// evict drops keys that have fallen out of the trailing window. The remote
// window is bounded, so anything this old can never reappear in a batch.
func (t *EventTracker) evict() {
	floor := t.mark - t.window
	for key, ts := range t.seen {
		if ts < floor {
			delete(t.seen, key)
		}
	}
}
