package model

import (
	"hash/fnv"
	"strconv"
)

// EventRecord is one observation from the remote event stream. The remote
// source does not guarantee monotone timestamps; consumers must tolerate
// out-of-order batches.
type EventRecord struct {
	Timestamp int64 // seconds since epoch
	Level     string
	Message   string
}

// Key derives the record's stable identity from (timestamp, message),
// used for deduplication across overlapping remote windows.
func (e EventRecord) Key() string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatInt(e.Timestamp, 10)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(e.Message))
	return strconv.FormatUint(h.Sum64(), 16)
}
