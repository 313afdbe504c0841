package sink

import (
	"fmt"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
)

// EmitFn is what a sink calls to notify the pipeline that an event
// (or a batch of events) has been durably processed.
type EmitFn func(*event.Checkpoint)

// Adapter is the common behaviour every sink exposes.
type Adapter interface {
	Configure(any) error     // driver-specific config struct
	Push(*event.Event) error // consume one event
	Close() error            // idempotent
}

// AckAware is *optional*; sinks that need to emit acks simply implement it.
// The compiler wires the callback if present.
type AckAware interface {
	BindAck(EmitFn)
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
