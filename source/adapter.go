package source

import (
	"context"
	"fmt"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
)

// EmitFunc hands one event to the pipeline. A non-nil error stops the source.
type EmitFunc func(*event.Event) error

// Adapter is the common behaviour every source exposes.
type Adapter interface {
	Configure(any) error // driver-specific config struct
	Run(context.Context, EmitFunc) error
	Close() error
}

// AckAware sources want to hear when a sink has durably handled an event.
type AckAware interface {
	OnAck(*event.Checkpoint)
}

/*──────── registry ───────*/

// Factory builds an Adapter.
type Factory func() Adapter

var reg = map[string]Factory{}

// Register is called from each driver's init() or from main.
func Register(name string, f Factory) { reg[name] = f }

// NewAdapter returns a driver by name ("kafka/sarama", "stdin", …).
func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown source %q", name)
}
