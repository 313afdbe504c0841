// Package stdin reads newline-delimited event envelopes, one per line:
//
//	{"tag":"kubernetes.var.log.containers.<pod>_<ns>_<ctr>-<id>.log","time":"...","record":{...}}
package stdin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/internal/logging"
	"github.com/max0ne/fluent-plugin-google-cloud/source"
)

const (
	sourceName     = "stdin"
	maxLineDefault = 4 << 20
)

type Config struct {
	// Reader defaults to os.Stdin.
	Reader io.Reader
	// MaxLineBytes bounds a single envelope line.
	MaxLineBytes int
	// SkipInvalid drops undecodable lines instead of failing the source.
	SkipInvalid bool
}

type driver struct {
	cfg Config
}

func init() {
	source.Register(sourceName, func() source.Adapter { return &driver{} })
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdin-source: expected Config, got %T", raw)
	}
	if c.Reader == nil {
		c.Reader = os.Stdin
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = maxLineDefault
	}
	d.cfg = c
	return nil
}

// Run emits every line until EOF or cancellation. Reaching EOF returns nil.
func (d *driver) Run(ctx context.Context, emit source.EmitFunc) error {
	sc := bufio.NewScanner(d.cfg.Reader)
	sc.Buffer(make([]byte, 0, 64*1024), d.cfg.MaxLineBytes)

	var line int64
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev, err := event.DecodeEnvelope(raw)
		if err != nil {
			if d.cfg.SkipInvalid {
				logging.L().Warn("stdin-source: skipping invalid line", "line", line, "err", err)
				continue
			}
			return fmt.Errorf("stdin-source: line %d: %w", line, err)
		}
		ev.Checkpoint = &event.Checkpoint{Source: sourceName, Offset: line}
		if err := emit(ev); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (d *driver) Close() error {
	if c, ok := d.cfg.Reader.(io.Closer); ok && d.cfg.Reader != os.Stdin {
		return c.Close()
	}
	return nil
}
