package file

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
	"github.com/max0ne/fluent-plugin-google-cloud/sink"
)

func readLines(t *testing.T, raw []byte) []*event.Event {
	t.Helper()
	var out []*event.Event
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		ev, err := event.DecodeEnvelope(sc.Bytes())
		if err != nil {
			t.Fatalf("DecodeEnvelope(%q): %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	return out
}

func push(t *testing.T, s sink.Adapter, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := s.Push(&event.Event{
			Tag:        "k8s_node",
			Record:     map[string]any{"i": i},
			Checkpoint: &event.Checkpoint{Source: "stdin", Offset: int64(i)},
		})
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
}

func TestFileSink_Plain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.ndjson")
	s, err := sink.NewAdapter("file")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if err := s.Configure(Config{Path: path, BatchSize: 2}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	acks := 0
	s.(sink.AckAware).BindAck(func(*event.Checkpoint) { acks++ })

	push(t, s, 3)
	if acks != 2 {
		t.Fatalf("want 2 acks after first batch, got %d", acks)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if acks != 3 {
		t.Fatalf("want 3 acks after close, got %d", acks)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := readLines(t, raw); len(got) != 3 || got[2].Tag != "k8s_node" {
		t.Fatalf("unexpected contents: %s", raw)
	}
	if err := s.Push(&event.Event{}); err == nil {
		t.Fatal("push after close must fail")
	}
}

func TestFileSink_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson.zst")
	d := &driver{}
	if err := d.Configure(Config{Path: path, Compress: CompressZstd}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	push(t, d, 5)
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if got := readLines(t, raw); len(got) != 5 {
		t.Fatalf("want 5 events, got %d", len(got))
	}
}

func TestFileSink_ConfigErrors(t *testing.T) {
	d := &driver{}
	if err := d.Configure(Config{}); err == nil {
		t.Fatal("expected error without path")
	}
	if err := d.Configure(Config{Path: filepath.Join(t.TempDir(), "x"), Compress: "gzip"}); err == nil {
		t.Fatal("expected error for unsupported compression")
	}
	if err := d.Configure(42); err == nil {
		t.Fatal("expected type error")
	}
}
