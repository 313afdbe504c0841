package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

var parsers fastjson.ParserPool

// DecodeRecord parses a JSON document into maps, slices, strings,
// json.Number, bools and nil. Numbers are kept verbatim so that large
// integers survive a decode/encode round trip.
func DecodeRecord(b []byte) (any, error) {
	p := parsers.Get()
	defer parsers.Put(p)

	v, err := p.ParseBytes(b)
	if err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return fromValue(v), nil
}

// EncodeRecord is the inverse of DecodeRecord.
func EncodeRecord(rec any) ([]byte, error) {
	return json.Marshal(rec)
}

func fromValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		o, _ := v.Object()
		m := make(Record, o.Len())
		o.Visit(func(k []byte, fv *fastjson.Value) {
			m[string(k)] = fromValue(fv)
		})
		return m
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, av := range arr {
			out[i] = fromValue(av)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return json.Number(v.String())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

// envelope is the line format used by the stdin source and the file sink:
//
//	{"tag":"kubernetes.var.log...","time":"2020-01-02T15:04:05Z","record":{...}}
type envelope struct {
	Tag    string          `json:"tag"`
	Time   string          `json:"time,omitempty"`
	Record json.RawMessage `json:"record"`
}

// DecodeEnvelope parses one envelope line. A missing time is left zero.
func DecodeEnvelope(line []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	ev := &Event{Tag: env.Tag}
	if env.Time != "" {
		ts, err := time.Parse(time.RFC3339Nano, env.Time)
		if err != nil {
			return nil, fmt.Errorf("decode envelope time %q: %w", env.Time, err)
		}
		ev.Time = ts
	}
	if len(env.Record) == 0 {
		return nil, fmt.Errorf("decode envelope: missing record")
	}
	rec, err := DecodeRecord(env.Record)
	if err != nil {
		return nil, err
	}
	ev.Record = rec
	return ev, nil
}

// EncodeEnvelope renders an event in the envelope line format, without the
// trailing newline.
func EncodeEnvelope(ev *Event) ([]byte, error) {
	raw, err := EncodeRecord(ev.Record)
	if err != nil {
		return nil, err
	}
	env := envelope{Tag: ev.Tag, Record: raw}
	if !ev.Time.IsZero() {
		env.Time = ev.Time.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(env)
}
