package telemetry

import (
	"sync"
	"time"
)

// StatsProvider supplies per-project counters for the open projects
type StatsProvider interface {
	OpenProjects() []string
	ProjectCounts(project string) (samples, dataPoints int64, err error)
}

// MetricsCollector periodically collects project stats and updates telemetry gauges
type MetricsCollector struct {
	provider StatsProvider
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(provider StatsProvider, interval time.Duration) *MetricsCollector {
	return &MetricsCollector{
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection
func (mc *MetricsCollector) Start() {
	mc.wg.Add(1)
	go mc.collectLoop()
}

// Stop stops the collector
func (mc *MetricsCollector) Stop() {
	close(mc.stopCh)
	mc.wg.Wait()
}

func (mc *MetricsCollector) collectLoop() {
	defer mc.wg.Done()

	ticker := time.NewTicker(mc.interval)
	defer ticker.Stop()

	mc.collect()

	for {
		select {
		case <-ticker.C:
			mc.collect()
		case <-mc.stopCh:
			return
		}
	}
}

func (mc *MetricsCollector) collect() {
	if mc.provider == nil {
		return
	}

	projects := mc.provider.OpenProjects()
	OpenProjects.Set(float64(len(projects)))

	for _, project := range projects {
		samples, dataPoints, err := mc.provider.ProjectCounts(project)
		if err != nil {
			continue
		}
		ProjectSamples.With(project).Set(float64(samples))
		ProjectDataPoints.With(project).Set(float64(dataPoints))
	}
}
