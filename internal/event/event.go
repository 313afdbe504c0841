// Package event defines the unit that flows through the pipeline: one log
// record together with its tag, timestamp and the checkpoint needed to ack it.
package event

import "time"

// Record is the field map of a structured log entry.
type Record = map[string]any

// Checkpoint identifies the position of an event in its source so that a sink
// can acknowledge it once the event is durably handled.
type Checkpoint struct {
	Source    string
	Topic     string
	Partition int32
	Offset    int64
}

type Event struct {
	Tag  string
	Time time.Time
	// Record is normally a Record. Anything else is a malformed record and is
	// carried through untouched.
	Record     any
	Checkpoint *Checkpoint
}

// AsRecord returns the event's record as a map when it is well formed.
func (e *Event) AsRecord() (Record, bool) {
	r, ok := e.Record.(Record)
	return r, ok
}
