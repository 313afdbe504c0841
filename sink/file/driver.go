// Package file appends events as JSON envelope lines to a local file,
// optionally zstd-compressed. Events are acked after the batch that holds
// them has been flushed to the file.
package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
)

const CompressZstd = "zstd"

type Config struct {
	Path      string
	Compress  string // "" or "zstd"
	BatchSize int    // events per flush; <= 1 flushes every event
}

type driver struct {
	cfg Config
	ack sink.EmitFn

	mu      sync.Mutex
	f       *os.File
	zw      *zstd.Encoder // nil when uncompressed
	bw      *bufio.Writer
	pending []*event.Checkpoint
	closed  bool
}

func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("file-sink: expected Config, got %T", raw)
	}
	if c.Path == "" {
		return fmt.Errorf("file-sink: path is required")
	}
	if c.Compress != "" && c.Compress != CompressZstd {
		return fmt.Errorf("file-sink: unsupported compression %q", c.Compress)
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}
	f, err := os.OpenFile(c.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}

	var w io.Writer = f
	if c.Compress == CompressZstd {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("file-sink: %w", err)
		}
		d.zw = zw
		w = zw
	}
	d.cfg, d.f, d.bw = c, f, bufio.NewWriter(w)
	return nil
}

func (d *driver) Push(ev *event.Event) error {
	line, err := event.EncodeEnvelope(ev)
	if err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("file-sink: closed")
	}
	if _, err := d.bw.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}
	if ev.Checkpoint != nil {
		d.pending = append(d.pending, ev.Checkpoint)
	}
	if d.cfg.BatchSize <= 1 || len(d.pending) >= d.cfg.BatchSize {
		return d.flushLocked()
	}
	return nil
}

func (d *driver) BindAck(fn sink.EmitFn) { d.ack = fn }

func (d *driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.f == nil {
		return nil
	}
	d.closed = true

	err := d.flushLocked()
	if d.zw != nil {
		// Close writes the final zstd frame.
		if cerr := d.zw.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := d.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// must be called with d.mu held
func (d *driver) flushLocked() error {
	if err := d.bw.Flush(); err != nil {
		return fmt.Errorf("file-sink: %w", err)
	}
	if d.zw != nil {
		if err := d.zw.Flush(); err != nil {
			return fmt.Errorf("file-sink: %w", err)
		}
	}
	if d.ack != nil {
		for _, cp := range d.pending {
			d.ack(cp)
		}
	}
	d.pending = d.pending[:0]
	return nil
}

func init() { sink.Register("file", func() sink.Adapter { return &driver{} }) }
