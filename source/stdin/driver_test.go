package stdin

import (
	"context"
	"strings"
	"testing"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/source"
)

func newDriver(t *testing.T, cfg Config) source.Adapter {
	t.Helper()
	d, err := source.NewAdapter("stdin")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := d.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return d
}

func TestRun_EmitsEnvelopes(t *testing.T) {
	in := `{"tag":"a.b","record":{"log":"one"}}

{"tag":"c.d","time":"2020-01-01T00:00:00Z","record":{"log":"two"}}
`
	d := newDriver(t, Config{Reader: strings.NewReader(in)})

	var got []*event.Event
	err := d.Run(context.Background(), func(ev *event.Event) error {
		got = append(got, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
	if got[0].Tag != "a.b" || got[1].Tag != "c.d" {
		t.Fatalf("tags: %q %q", got[0].Tag, got[1].Tag)
	}
	if got[1].Checkpoint.Source != "stdin" || got[1].Checkpoint.Offset != 3 {
		t.Fatalf("checkpoint: %+v", got[1].Checkpoint)
	}
}

func TestRun_InvalidLine(t *testing.T) {
	in := "garbage\n{\"tag\":\"t\",\"record\":{}}\n"

	d := newDriver(t, Config{Reader: strings.NewReader(in)})
	if err := d.Run(context.Background(), func(*event.Event) error { return nil }); err == nil {
		t.Fatal("expected error for invalid line")
	}

	n := 0
	d = newDriver(t, Config{Reader: strings.NewReader(in), SkipInvalid: true})
	if err := d.Run(context.Background(), func(*event.Event) error { n++; return nil }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 1 {
		t.Fatalf("want 1 event after skipping, got %d", n)
	}
}

func TestConfigure_WrongType(t *testing.T) {
	d := &driver{}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("expected type error")
	}
}
