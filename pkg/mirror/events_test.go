package mirror

import (
	"testing"
)

func TestParseEnvelopeCreate(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"SRC"},"object":{"key":"a/b.txt","size":10,"eTag":"abc"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != EventCreate {
		t.Errorf("Kind = %q, want CREATE", ev.Kind)
	}
	if ev.Key != "a/b.txt" {
		t.Errorf("Key = %q, want a/b.txt", ev.Key)
	}
	if ev.SizeHint != 10 {
		t.Errorf("SizeHint = %d, want 10", ev.SizeHint)
	}
	if ev.ETagHint != "abc" {
		t.Errorf("ETagHint = %q, want abc", ev.ETagHint)
	}
}

func TestParseEnvelopeDelete(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"SRC"},"object":{"key":"x"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventDelete {
		t.Fatalf("events = %+v, want one DELETE", events)
	}
}

func TestParseEnvelopeDeleteMarkerTreatedAsDelete(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectRemoved:DeleteMarkerCreated","s3":{"bucket":{"name":"SRC"},"object":{"key":"x"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventDelete {
		t.Fatalf("events = %+v, want one DELETE", events)
	}
}

func TestParseEnvelopeSkipsUnknownEventName(t *testing.T) {
	body := `{"Records":[{"eventName":"LifecycleTransition","s3":{"bucket":{"name":"SRC"},"object":{"key":"x"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
}

func TestParseEnvelopeBucketMismatch(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"OTHER"},"object":{"key":"x"}}}]}`

	_, err := ParseEnvelope(body, "SRC", "")
	kind, ok := KindOf(err)
	if !ok || kind != ErrConfigMismatch {
		t.Fatalf("err = %v, want CONFIG_MISMATCH", err)
	}
}

func TestParseEnvelopeMalformedBody(t *testing.T) {
	_, err := ParseEnvelope("not json", "SRC", "")
	kind, ok := KindOf(err)
	if !ok || kind != ErrMalformedEvent {
		t.Fatalf("err = %v, want MALFORMED_EVENT", err)
	}
}

func TestParseEnvelopePrefixFilterSkips(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"SRC"},"object":{"key":"other/file.txt"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "keep/")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none (filtered by prefix)", events)
	}
}

func TestParseEnvelopePrefixFilterKeeps(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"SRC"},"object":{"key":"keep/file.txt"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "keep/")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %+v, want one matching record", events)
	}
}

func TestParseEnvelopeKeyURLDecoding(t *testing.T) {
	body := `{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"SRC"},"object":{"key":"my+folder/file%20name.txt"}}}]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	want := "my folder/file name.txt"
	if events[0].Key != want {
		t.Errorf("Key = %q, want %q", events[0].Key, want)
	}
}

func TestParseEnvelopeMultipleRecords(t *testing.T) {
	body := `{"Records":[
		{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"SRC"},"object":{"key":"a"}}},
		{"eventName":"ObjectRemoved:Delete","s3":{"bucket":{"name":"SRC"},"object":{"key":"b"}}}
	]}`

	events, err := ParseEnvelope(body, "SRC", "")
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Kind != EventCreate || events[1].Kind != EventDelete {
		t.Errorf("events = %+v, want CREATE then DELETE", events)
	}
}
