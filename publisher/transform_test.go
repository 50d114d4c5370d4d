package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/labframe/api/notify"
)

func sampleEvent() notify.ChangeEvent {
	return notify.ChangeEvent{
		Seq:        7,
		OccurredAt: time.UnixMilli(1700000000000).UTC(),
		Kind:       notify.KindCreated,
		Scope:      "alpha",
		Parameters: []string{"density", "ph"},
	}
}

func TestJSONTransformer(t *testing.T) {
	tr := &jsonTransformer{}

	data, err := tr.Transform(sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded wireEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Seq != 7 || decoded.Scope != "alpha" || decoded.Kind != "created" {
		t.Errorf("unexpected payload: %+v", decoded)
	}
	if decoded.OccurredAt != 1700000000000 {
		t.Errorf("expected unix ms timestamp, got %d", decoded.OccurredAt)
	}
	if tr.ContentType() != "application/json" {
		t.Errorf("unexpected content type %q", tr.ContentType())
	}
}

func TestMsgpackTransformer(t *testing.T) {
	tr := &msgpackTransformer{}

	data, err := tr.Transform(sampleEvent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded wireEvent
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid msgpack: %v", err)
	}
	if decoded.Seq != 7 || len(decoded.Parameters) != 2 {
		t.Errorf("unexpected payload: %+v", decoded)
	}
}

func TestTransformerFactories(t *testing.T) {
	for _, format := range []string{"json", "msgpack"} {
		if _, err := createTransformer(format); err != nil {
			t.Errorf("factory for %q missing: %v", format, err)
		}
	}
	if _, err := createTransformer("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
