package publisher

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/labframe/api/notify"
)

func init() {
	RegisterTransformer("json", func() Transformer { return &jsonTransformer{} })
	RegisterTransformer("msgpack", func() Transformer { return &msgpackTransformer{} })
}

// wireEvent is the compact representation published to sinks
type wireEvent struct {
	Seq        uint64   `msgpack:"seq" json:"seq"`
	OccurredAt int64    `msgpack:"ts" json:"occurred_at_ms"`
	Kind       string   `msgpack:"kind" json:"kind"`
	Scope      string   `msgpack:"scope" json:"scope"`
	Parameters []string `msgpack:"params" json:"parameters,omitempty"`
}

func toWire(event notify.ChangeEvent) wireEvent {
	return wireEvent{
		Seq:        event.Seq,
		OccurredAt: event.OccurredAt.UnixMilli(),
		Kind:       string(event.Kind),
		Scope:      event.Scope,
		Parameters: event.Parameters,
	}
}

type jsonTransformer struct{}

func (t *jsonTransformer) Transform(event notify.ChangeEvent) ([]byte, error) {
	return json.Marshal(toWire(event))
}

func (t *jsonTransformer) ContentType() string {
	return "application/json"
}

type msgpackTransformer struct{}

func (t *msgpackTransformer) Transform(event notify.ChangeEvent) ([]byte, error) {
	return msgpack.Marshal(toWire(event))
}

func (t *msgpackTransformer) ContentType() string {
	return "application/msgpack"
}
