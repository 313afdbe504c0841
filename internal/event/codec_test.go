package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeRecord_NestedAndNumbers(t *testing.T) {
	raw := []byte(`{"log":"hi","n":12345678901234567890,"ok":true,"nil":null,"kubernetes":{"labels":{"app":"x"}},"arr":[1,"a"]}`)
	v, err := DecodeRecord(raw)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	rec, ok := v.(Record)
	if !ok {
		t.Fatalf("want Record, got %T", v)
	}
	if rec["log"] != "hi" {
		t.Fatalf("log = %v", rec["log"])
	}
	if rec["n"] != json.Number("12345678901234567890") {
		t.Fatalf("number not preserved: %#v", rec["n"])
	}
	if rec["ok"] != true || rec["nil"] != nil {
		t.Fatalf("scalars: ok=%v nil=%v", rec["ok"], rec["nil"])
	}
	k8s, ok := rec["kubernetes"].(Record)
	if !ok {
		t.Fatalf("kubernetes not a map: %T", rec["kubernetes"])
	}
	if k8s["labels"].(Record)["app"] != "x" {
		t.Fatalf("labels: %v", k8s["labels"])
	}
	if arr := rec["arr"].([]any); len(arr) != 2 || arr[1] != "a" {
		t.Fatalf("arr: %v", arr)
	}

	out, err := EncodeRecord(rec)
	if err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	back, err := DecodeRecord(out)
	if err != nil {
		t.Fatalf("DecodeRecord(round trip): %v", err)
	}
	if back.(Record)["n"] != json.Number("12345678901234567890") {
		t.Fatalf("number lost in round trip: %s", out)
	}
}

func TestDecodeRecord_NonObject(t *testing.T) {
	v, err := DecodeRecord([]byte(`"just a string"`))
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if v != "just a string" {
		t.Fatalf("got %#v", v)
	}
	if _, err := DecodeRecord([]byte(`{broken`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	line := []byte(`{"tag":"a.b.c","time":"2020-01-02T03:04:05.5Z","record":{"log":"x"}}`)
	ev, err := DecodeEnvelope(line)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if ev.Tag != "a.b.c" {
		t.Fatalf("tag = %q", ev.Tag)
	}
	want := time.Date(2020, 1, 2, 3, 4, 5, 500_000_000, time.UTC)
	if !ev.Time.Equal(want) {
		t.Fatalf("time = %v, want %v", ev.Time, want)
	}
	out, err := EncodeEnvelope(ev)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	again, err := DecodeEnvelope(out)
	if err != nil {
		t.Fatalf("DecodeEnvelope(again): %v", err)
	}
	if r, _ := again.AsRecord(); r["log"] != "x" {
		t.Fatalf("record lost: %s", out)
	}
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	cases := map[string]string{
		"not json":     `nope`,
		"bad time":     `{"tag":"t","time":"yesterday","record":{}}`,
		"no record":    `{"tag":"t"}`,
		"broken inner": `{"tag":"t","record":{"a":}}`,
	}
	for name, in := range cases {
		if _, err := DecodeEnvelope([]byte(in)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
