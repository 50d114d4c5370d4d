package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/labframe/api/store"
	"github.com/labframe/api/telemetry"
)

// probeTimeout bounds a single version probe
const probeTimeout = 5 * time.Second

// Source provides the cheap version signal for one project datastore
type Source interface {
	Version(ctx context.Context) (store.VersionSignal, error)
	AffectedParameters(ctx context.Context, sinceRowID int64) ([]string, error)
}

// Detector polls a source at a fixed interval and broadcasts one event
// per distinct version transition. The first successful probe only
// establishes the baseline. Probes run synchronously on the tick loop;
// a probe that outlasts the interval causes the next tick to be
// skipped, never queued, because the ticker coalesces missed ticks.
type Detector struct {
	scope    string
	source   Source
	hub      *Hub
	interval time.Duration
	seq      *atomic.Uint64

	primed bool
	last   store.VersionSignal

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDetector creates a detector for one project. seq is shared across
// detectors so event sequence numbers are unique process-wide.
func NewDetector(scope string, source Source, hub *Hub, interval time.Duration, seq *atomic.Uint64) *Detector {
	return &Detector{
		scope:    scope,
		source:   source,
		hub:      hub,
		interval: interval,
		seq:      seq,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the poll loop
func (d *Detector) Start() {
	go d.run()
}

// Stop terminates the poll loop and waits for it to exit. A probe in
// flight completes first.
func (d *Detector) Stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *Detector) run() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.Info().
		Str("project", d.scope).
		Dur("interval", d.interval).
		Msg("Change detector started")

	for {
		select {
		case <-ticker.C:
			d.tick()
		case <-d.stopCh:
			log.Info().Str("project", d.scope).Msg("Change detector stopped")
			return
		}
	}
}

// tick runs one probe cycle: read the signal, compare against the last
// observed one, and broadcast when it moved.
func (d *Detector) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	start := time.Now()
	sig, err := d.source.Version(ctx)
	if err != nil {
		telemetry.ProbeCyclesTotal.With(d.scope, "failed").Inc()
		log.Warn().Err(err).Str("project", d.scope).Msg("Version probe failed, skipping cycle")
		return
	}
	telemetry.ProbeDurationSeconds.Observe(time.Since(start).Seconds())

	if !d.primed {
		d.primed = true
		d.last = sig
		telemetry.ProbeCyclesTotal.With(d.scope, "baseline").Inc()
		return
	}

	if sig == d.last {
		telemetry.ProbeCyclesTotal.With(d.scope, "unchanged").Inc()
		return
	}

	kind := classify(d.last, sig)

	// Best effort; an event without parameter names is still an event
	parameters, err := d.source.AffectedParameters(ctx, d.last.MaxRowID)
	if err != nil {
		log.Warn().Err(err).Str("project", d.scope).Msg("Failed to resolve affected parameters")
		parameters = nil
	}

	ev := ChangeEvent{
		Seq:        d.seq.Add(1),
		OccurredAt: time.Now().UTC(),
		Kind:       kind,
		Scope:      d.scope,
		Parameters: parameters,
	}
	d.last = sig

	telemetry.ProbeCyclesTotal.With(d.scope, "changed").Inc()
	telemetry.ChangeEventsTotal.With(d.scope, string(kind)).Inc()

	log.Debug().
		Uint64("seq", ev.Seq).
		Str("project", d.scope).
		Str("kind", string(kind)).
		Strs("parameters", parameters).
		Msg("Change detected")

	d.hub.Broadcast(ev)
}

// classify maps a signal delta to an event kind
func classify(prev, cur store.VersionSignal) Kind {
	switch {
	case cur.MaxRowID < prev.MaxRowID:
		return KindUnknown
	case cur.Rows > prev.Rows:
		return KindCreated
	case cur.Rows < prev.Rows:
		return KindDeleted
	case cur.MaxRowID > prev.MaxRowID:
		return KindUpdated
	default:
		return KindUnknown
	}
}

// DetectorSet manages one detector per watched project, all sharing a
// single sequence counter.
type DetectorSet struct {
	hub      *Hub
	interval time.Duration
	seq      atomic.Uint64

	mu        sync.Mutex
	detectors map[string]*Detector
}

// NewDetectorSet creates an empty detector set
func NewDetectorSet(hub *Hub, interval time.Duration) *DetectorSet {
	return &DetectorSet{
		hub:       hub,
		interval:  interval,
		detectors: make(map[string]*Detector),
	}
}

// Watch starts a detector for a project. A project already being
// watched is left alone.
func (ds *DetectorSet) Watch(scope string, source Source) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if _, ok := ds.detectors[scope]; ok {
		return
	}

	d := NewDetector(scope, source, ds.hub, ds.interval, &ds.seq)
	ds.detectors[scope] = d
	d.Start()
}

// Unwatch stops and removes the detector for a project, if any
func (ds *DetectorSet) Unwatch(scope string) {
	ds.mu.Lock()
	d, ok := ds.detectors[scope]
	if ok {
		delete(ds.detectors, scope)
	}
	ds.mu.Unlock()

	if ok {
		d.Stop()
	}
}

// Close stops all detectors
func (ds *DetectorSet) Close() {
	ds.mu.Lock()
	detectors := make([]*Detector, 0, len(ds.detectors))
	for scope, d := range ds.detectors {
		detectors = append(detectors, d)
		delete(ds.detectors, scope)
	}
	ds.mu.Unlock()

	for _, d := range detectors {
		d.Stop()
	}
}
