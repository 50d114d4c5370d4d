package publisher

import "github.com/labframe/api/notify"

// Sink represents a destination for change events (e.g., Kafka, NATS)
type Sink interface {
	// Publish sends an encoded event to the sink
	Publish(topic string, key string, value []byte) error
	// Close releases any resources held by the sink
	Close() error
}

// Transformer encodes change events into a sink wire format
type Transformer interface {
	// Transform converts a change event to bytes for publishing
	Transform(event notify.ChangeEvent) ([]byte, error)
	// ContentType names the produced format, e.g. "application/json"
	ContentType() string
}

// Filter determines whether a change event should be published
type Filter interface {
	// Match returns true if the event should be published
	Match(scope string, kind notify.Kind) bool
}
