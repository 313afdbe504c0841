package kafka

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
)

func makeCheckpoint(topic string, part int32, off int64) *event.Checkpoint {
	return &event.Checkpoint{Source: sourceName, Topic: topic, Partition: part, Offset: off}
}

func TestSaramaDriver_OnAck_Enqueue(t *testing.T) {
	d := &SaramaDriver{}
	d.ackCh = make(chan recordID, 1)

	d.OnAck(makeCheckpoint("t", 1, 42))

	rec := <-d.ackCh
	if rec.topic != "t" || rec.partition != 1 || rec.offset != 42 {
		t.Fatalf("unexpected record enqueued: %+v", rec)
	}
}

func TestSaramaDriver_OnAck_IgnoresForeignCheckpoints(t *testing.T) {
	d := &SaramaDriver{}
	d.ackCh = make(chan recordID, 1)

	d.OnAck(nil)
	d.OnAck(&event.Checkpoint{Source: "stdin", Offset: 3})

	select {
	case rec := <-d.ackCh:
		t.Fatalf("unexpected ack enqueued: %+v", rec)
	default:
	}
}

func TestSaramaDriver_AckCallbackProcessed(t *testing.T) {
	d := &SaramaDriver{}
	d.ackCh = make(chan recordID, 1)
	d.pending = make(map[recordID]func())
	d.bp = newTokenBucket(10, 1, time.Hour)
	defer d.bp.close()

	var called int32
	rec := recordID{"t", 2, 99}
	d.pending[rec] = func() { atomic.AddInt32(&called, 1) }

	d.OnAck(makeCheckpoint(rec.topic, rec.partition, rec.offset))

	got := <-d.ackCh
	if got != rec {
		t.Fatalf("unexpected rec from ackCh: %+v", got)
	}
	d.releaseAck(got)
	d.releaseAck(got)
	if atomic.LoadInt32(&called) != 1 {
		t.Fatal("callback was not executed exactly once")
	}
}

func TestToEvent(t *testing.T) {
	ts := time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC)
	ev, err := toEvent(&sarama.ConsumerMessage{
		Topic: "logs", Partition: 3, Offset: 17, Timestamp: ts,
		Key:   []byte("kubernetes.var.log.containers.p_ns_c-1.log"),
		Value: []byte(`{"log":"hi","stream":"stdout","n":1}`),
	})
	if err != nil {
		t.Fatalf("toEvent: %v", err)
	}
	if ev.Tag != "kubernetes.var.log.containers.p_ns_c-1.log" || !ev.Time.Equal(ts) {
		t.Fatalf("unexpected event header: %+v", ev)
	}
	if *ev.Checkpoint != *makeCheckpoint("logs", 3, 17) {
		t.Fatalf("checkpoint = %+v", ev.Checkpoint)
	}
	rec, ok := ev.AsRecord()
	if !ok || rec["log"] != "hi" || rec["n"] != json.Number("1") {
		t.Fatalf("record = %#v", ev.Record)
	}
}

func TestToEvent_NoKeyAndBadJSON(t *testing.T) {
	ev, err := toEvent(&sarama.ConsumerMessage{Topic: "logs", Value: []byte("not json")})
	if err == nil {
		t.Fatal("expected decode error")
	}
	if ev == nil || ev.Tag != "logs" || ev.Checkpoint == nil {
		t.Fatalf("event should still be usable: %+v", ev)
	}
}
