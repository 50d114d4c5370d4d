package publisher

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labframe/api/notify"
	"github.com/labframe/api/telemetry"
)

const (
	// Default initial retry delay for failed publish operations
	DefaultRetryInitial = 100 * time.Millisecond
	// Default maximum retry delay (exponential backoff cap)
	DefaultRetryMax = 30 * time.Second
	// Default exponential backoff multiplier
	DefaultRetryMultiplier = 2.0
	// Maximum number of retry attempts before dropping an event
	DefaultMaxRetries = 10
)

// WorkerConfig configures one publisher worker
type WorkerConfig struct {
	Name            string        // Sink name (for logging and metrics)
	Hub             *notify.Hub   // Event source
	Sink            Sink          // Destination sink
	Transformer     Transformer   // Event encoder
	Filter          Filter        // Event filter
	TopicPrefix     string        // Topic prefix (e.g., "labframe.changes")
	RetryInitial    time.Duration // Initial retry delay
	RetryMax        time.Duration // Max retry delay
	RetryMultiplier float64       // Backoff multiplier
	MaxRetries      int           // Maximum retry attempts per event
}

// Worker drains a hub subscription and publishes events to a sink.
// A worker that stalls on a slow sink loses its oldest events to the
// hub's bounded queue rather than backpressuring the detectors.
type Worker struct {
	config       WorkerConfig
	subscription *notify.Subscription
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      atomic.Bool
	lifecycleMu  sync.Mutex
}

// NewWorker creates a new publisher worker
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("worker name is required")
	}
	if config.Hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if config.Transformer == nil {
		return nil, fmt.Errorf("transformer is required")
	}
	if config.Filter == nil {
		return nil, fmt.Errorf("filter is required")
	}

	if config.RetryInitial <= 0 {
		config.RetryInitial = DefaultRetryInitial
	}
	if config.RetryMax <= 0 {
		config.RetryMax = DefaultRetryMax
	}
	if config.RetryMultiplier <= 0 {
		config.RetryMultiplier = DefaultRetryMultiplier
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	return &Worker{config: config}, nil
}

// Start subscribes to the hub and launches the drain loop
func (w *Worker) Start() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if w.running.Load() {
		return
	}

	w.running.Store(true)
	w.subscription = w.config.Hub.Subscribe("")
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	log.Info().Str("worker", w.config.Name).Msg("Starting publisher worker")

	go w.drainLoop()
}

// Stop cancels the subscription and waits for the drain loop to finish
func (w *Worker) Stop() {
	w.lifecycleMu.Lock()
	defer w.lifecycleMu.Unlock()

	if !w.running.Load() {
		return
	}

	log.Info().Str("worker", w.config.Name).Msg("Stopping publisher worker")

	close(w.stopCh)
	w.subscription.Cancel()
	<-w.doneCh
	w.running.Store(false)

	log.Info().Str("worker", w.config.Name).Msg("Publisher worker stopped")
}

func (w *Worker) drainLoop() {
	defer close(w.doneCh)

	for event := range w.subscription.Events() {
		w.processEvent(event)
	}
}

// processEvent publishes one event. Publish failures retry with
// backoff; an event that exhausts its retries is dropped so the worker
// never wedges the feed on a dead sink.
func (w *Worker) processEvent(event notify.ChangeEvent) {
	if !w.config.Filter.Match(event.Scope, event.Kind) {
		telemetry.SinkPublishTotal.With(w.config.Name, "filtered").Inc()
		return
	}

	data, err := w.config.Transformer.Transform(event)
	if err != nil {
		telemetry.SinkPublishTotal.With(w.config.Name, "failed").Inc()
		log.Error().
			Err(err).
			Str("worker", w.config.Name).
			Uint64("seq", event.Seq).
			Msg("Failed to transform event")
		return
	}

	topic := w.buildTopic(event.Scope)

	start := time.Now()
	if err := w.publishWithRetry(topic, event.Scope, data); err != nil {
		telemetry.SinkPublishTotal.With(w.config.Name, "failed").Inc()
		log.Error().
			Err(err).
			Str("worker", w.config.Name).
			Uint64("seq", event.Seq).
			Str("topic", topic).
			Msg("Dropping event after failed publish")
		return
	}

	telemetry.SinkPublishTotal.With(w.config.Name, "success").Inc()
	telemetry.SinkPublishSeconds.With(w.config.Name).Observe(time.Since(start).Seconds())
}

// buildTopic builds the topic name for an event scope
func (w *Worker) buildTopic(scope string) string {
	if w.config.TopicPrefix == "" {
		return scope
	}
	return fmt.Sprintf("%s.%s", w.config.TopicPrefix, scope)
}

// publishWithRetry publishes data with exponential backoff.
// Returns an error if retries are exhausted or the worker stops.
func (w *Worker) publishWithRetry(topic, key string, data []byte) error {
	delay := w.config.RetryInitial
	attempts := 0

	for {
		err := w.config.Sink.Publish(topic, key, data)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= w.config.MaxRetries {
			return fmt.Errorf("exhausted max retries (%d) for topic %s: %w", w.config.MaxRetries, topic, err)
		}

		telemetry.SinkRetriesTotal.With(w.config.Name).Inc()
		log.Warn().
			Err(err).
			Str("worker", w.config.Name).
			Str("topic", topic).
			Int("attempt", attempts).
			Dur("retry_delay", delay).
			Msg("Failed to publish event, retrying")

		if !w.sleep(delay) {
			return fmt.Errorf("worker stopped during retry")
		}

		delay = time.Duration(float64(delay) * w.config.RetryMultiplier)
		if delay > w.config.RetryMax {
			delay = w.config.RetryMax
		}
	}
}

// sleep sleeps for the given duration, checking stopCh.
// Returns true if sleep completed, false if stopped.
func (w *Worker) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.stopCh:
		return false
	case <-timer.C:
		return true
	}
}
