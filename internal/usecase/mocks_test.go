// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finetune-orchestrator/internal/domain"
	"finetune-orchestrator/internal/domain/model"
)

// fakeClock drives the orchestrator's notion of time so stall scenarios run
// in microseconds of wall-clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{t: start} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptedJob describes how one remote job behaves over consecutive polls.
// The last status repeats once the script runs out.
type scriptedJob struct {
	createErr    error
	retrieveErrs []error               // per poll; nil entry means the call succeeds
	statuses     []model.JobStatus
	progress     []*int64              // aligned with statuses; nil = not reported
	events       [][]model.EventRecord // batch returned per poll, most-recent-first
	advance      time.Duration         // clock advance applied on each RetrieveJob

	id        string
	createdAt time.Time
	polls     int
}

func (s *scriptedJob) at(i int) (model.JobStatus, *int64) {
	idx := i
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	var p *int64
	if idx < len(s.progress) {
		p = s.progress[idx]
	}
	return s.statuses[idx], p
}

type createdJob struct {
	modelID string
	fileRef string
	suffix  string
}

// fakeTrainingAdapter hands out scripted jobs in creation order and records
// every call for assertions.
type fakeTrainingAdapter struct {
	mu      sync.Mutex
	clock   *fakeClock
	scripts []*scriptedJob // consumed by CreateJob in order
	byID    map[string]*scriptedJob
	created []createdJob
	cancels []string
	seq     int
}

func newFakeTrainingAdapter(clock *fakeClock, scripts ...*scriptedJob) *fakeTrainingAdapter {
	return &fakeTrainingAdapter{clock: clock, scripts: scripts, byID: make(map[string]*scriptedJob)}
}

// register pre-seeds a job under a fixed id, for resume scenarios.
func (f *fakeTrainingAdapter) register(id string, s *scriptedJob) {
	s.id = id
	s.createdAt = f.clock.Now()
	f.byID[id] = s
}

func (f *fakeTrainingAdapter) CreateJob(_ context.Context, modelID, fileRef, suffix string) (*model.JobAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scripts) == 0 {
		return nil, domain.PermanentRemote("createJob", fmt.Errorf("no script for attempt %d", len(f.created)+1))
	}
	s := f.scripts[0]
	f.scripts = f.scripts[1:]
	f.created = append(f.created, createdJob{modelID: modelID, fileRef: fileRef, suffix: suffix})
	if s.createErr != nil {
		return nil, s.createErr
	}
	f.seq++
	s.id = fmt.Sprintf("ftjob-%d", f.seq)
	s.createdAt = f.clock.Now()
	f.byID[s.id] = s
	return &model.JobAttempt{
		RemoteJobID:     s.id,
		ModelID:         modelID,
		TrainingFileRef: fileRef,
		Suffix:          suffix,
		Status:          model.JobStatusQueued,
		CreatedAt:       s.createdAt,
	}, nil
}

func (f *fakeTrainingAdapter) RetrieveJob(_ context.Context, id string) (*model.JobAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.PermanentRemote("retrieveJob", fmt.Errorf("unknown job %s", id))
	}
	if s.advance > 0 {
		f.clock.Advance(s.advance)
	}
	if s.polls < len(s.retrieveErrs) && s.retrieveErrs[s.polls] != nil {
		err := s.retrieveErrs[s.polls]
		s.polls++
		return nil, err
	}
	status, progress := s.at(s.polls)
	s.polls++
	return &model.JobAttempt{
		RemoteJobID:     id,
		Status:          status,
		CreatedAt:       s.createdAt,
		TrainedProgress: progress,
	}, nil
}

func (f *fakeTrainingAdapter) ListEvents(_ context.Context, id string, _ int) ([]model.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.PermanentRemote("listEvents", fmt.Errorf("unknown job %s", id))
	}
	idx := s.polls - 1 // ListEvents follows RetrieveJob within a poll
	if idx < 0 || idx >= len(s.events) {
		return nil, nil
	}
	return s.events[idx], nil
}

func (f *fakeTrainingAdapter) CancelJob(_ context.Context, id string) (model.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	return model.JobStatusCancelled, nil
}

// memLineageStore is a small in-memory LineageStore used by unit tests.
type memLineageStore struct {
	mu       sync.Mutex
	snaps    map[string]*model.LineageState
	marks    []int64 // LastEventAt of every successful write, in order
	audits   []*model.AuditEntry
	writeErr error // simulate local IO failures
}

func newMemLineageStore() *memLineageStore {
	return &memLineageStore{snaps: make(map[string]*model.LineageState)}
}

func (m *memLineageStore) WriteSnapshot(_ context.Context, st *model.LineageState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	cp := *st
	m.snaps[st.LineageID] = &cp
	m.marks = append(m.marks, st.LastEventAt)
	return nil
}

func (m *memLineageStore) ReadSnapshot(_ context.Context, lineageID string) (*model.LineageState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.snaps[lineageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *memLineageStore) AppendAudit(_ context.Context, e *model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	cp := *e
	m.audits = append(m.audits, &cp)
	return nil
}

func (m *memLineageStore) auditKind(kind model.AuditKind) []*model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AuditEntry
	for _, e := range m.audits {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// recordingMeter captures counter calls for assertions.
type recordingMeter struct {
	mu         sync.Mutex
	polls      int
	remote     map[string]int
	attempts   map[string]int
	cancels    int
	storeFails map[string]int
}

func newRecordingMeter() *recordingMeter {
	return &recordingMeter{
		remote:     make(map[string]int),
		attempts:   make(map[string]int),
		storeFails: make(map[string]int),
	}
}

func (m *recordingMeter) Poll() {
	m.mu.Lock()
	m.polls++
	m.mu.Unlock()
}

func (m *recordingMeter) RemoteError(kind string) {
	m.mu.Lock()
	m.remote[kind]++
	m.mu.Unlock()
}

func (m *recordingMeter) Attempt(outcome string) {
	m.mu.Lock()
	m.attempts[outcome]++
	m.mu.Unlock()
}

func (m *recordingMeter) WatchdogCancel() {
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
}

func (m *recordingMeter) StoreFailure(artifact string) {
	m.mu.Lock()
	m.storeFails[artifact]++
	m.mu.Unlock()
}

func i64(v int64) *int64 { return &v }
