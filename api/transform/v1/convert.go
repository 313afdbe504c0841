package transformv1

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/max0ne/fluent-plugin-google-cloud/internal/event"
)

const (
	fieldTag    = "tag"
	fieldTime   = "time"
	fieldRecord = "record"
)

// NewTransformRequest encodes an event's tag, time and record.
func NewTransformRequest(ev *event.Event) (*structpb.Struct, error) {
	raw, err := event.EncodeRecord(ev.Record)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}
	fields := map[string]*structpb.Value{
		fieldTag:    structpb.NewStringValue(ev.Tag),
		fieldRecord: structpb.NewStringValue(string(raw)),
	}
	if !ev.Time.IsZero() {
		fields[fieldTime] = structpb.NewStringValue(ev.Time.UTC().Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}, nil
}

// ParseTransformRequest is the inverse of NewTransformRequest. The returned
// event has no checkpoint.
func ParseTransformRequest(req *structpb.Struct) (*event.Event, error) {
	ev := &event.Event{Tag: req.GetFields()[fieldTag].GetStringValue()}
	if ts := req.GetFields()[fieldTime].GetStringValue(); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("transform request time %q: %w", ts, err)
		}
		ev.Time = t
	}
	rec, err := decodeRecordField(req)
	if err != nil {
		return nil, fmt.Errorf("transform request: %w", err)
	}
	ev.Record = rec
	return ev, nil
}

func NewTransformResponse(rec any) (*structpb.Struct, error) {
	raw, err := event.EncodeRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("transform response: %w", err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldRecord: structpb.NewStringValue(string(raw)),
	}}, nil
}

func ParseTransformResponse(resp *structpb.Struct) (any, error) {
	rec, err := decodeRecordField(resp)
	if err != nil {
		return nil, fmt.Errorf("transform response: %w", err)
	}
	return rec, nil
}

func decodeRecordField(s *structpb.Struct) (any, error) {
	v, ok := s.GetFields()[fieldRecord]
	if !ok {
		return nil, fmt.Errorf("missing %q", fieldRecord)
	}
	return event.DecodeRecord([]byte(v.GetStringValue()))
}
