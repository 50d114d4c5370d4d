package store

import (
	"context"
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ProjectStatistics summarizes one project database
type ProjectStatistics struct {
	Project                 string  `json:"project"`
	SampleCount             int64   `json:"sample_count"`
	DeletedSampleCount      int64   `json:"deleted_sample_count"`
	ParameterDefinitions    int64   `json:"parameter_definitions"`
	ParametersWithValues    int64   `json:"parameters_with_values"`
	ParametersWithoutValues int64   `json:"parameters_without_values"`
	DataPoints              int64   `json:"data_points"`
	LastRecordedAt          *string `json:"last_recorded_at,omitempty"`
}

const statsCacheSize = 64

// statsCache memoizes statistics per (project, version) pair. A new
// version signal invalidates the previous entry for that project by
// never matching its key again; stale keys age out of the LRU.
type statsCache struct {
	entries *lru.Cache[string, ProjectStatistics]
}

func newStatsCache() *statsCache {
	entries, err := lru.New[string, ProjectStatistics](statsCacheSize)
	if err != nil {
		panic(err) // only fails on non-positive size
	}
	return &statsCache{entries: entries}
}

func statsCacheKey(project string, sig VersionSignal) string {
	return fmt.Sprintf("%s@%d:%d", project, sig.MaxRowID, sig.Rows)
}

// Statistics computes statistics for a project, serving from cache
// while the project's version signal is unchanged.
func (m *Manager) Statistics(ctx context.Context, name string) (ProjectStatistics, error) {
	s, err := m.Get(ctx, name)
	if err != nil {
		return ProjectStatistics{}, err
	}

	sig, err := s.Version(ctx)
	if err != nil {
		return ProjectStatistics{}, err
	}

	key := statsCacheKey(s.Project(), sig)
	if cached, ok := m.statsCache.entries.Get(key); ok {
		return cached, nil
	}

	stats, err := s.statistics(ctx)
	if err != nil {
		return ProjectStatistics{}, err
	}
	m.statsCache.entries.Add(key, stats)
	return stats, nil
}

// OpenProjects lists the projects whose stores are currently open
func (m *Manager) OpenProjects() []string {
	var names []string
	m.stores.Range(func(name string, _ *Store) bool {
		names = append(names, name)
		return true
	})
	return names
}

// ProjectCounts reports live sample and data point counts for an open
// project. Used by the telemetry collector.
func (m *Manager) ProjectCounts(project string) (int64, int64, error) {
	stats, err := m.Statistics(context.Background(), project)
	if err != nil {
		return 0, 0, err
	}
	return stats.SampleCount, stats.DataPoints, nil
}

func (s *Store) statistics(ctx context.Context) (ProjectStatistics, error) {
	stats := ProjectStatistics{Project: s.project}

	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sample WHERE deleted_at IS NULL),
			(SELECT COUNT(*) FROM sample WHERE deleted_at IS NOT NULL),
			(SELECT COUNT(*) FROM param_def),
			(SELECT COUNT(DISTINCT param_id) FROM sample_param_value),
			(SELECT COUNT(*) FROM sample_param_value),
			(SELECT MAX(recorded_at) FROM sample_param_value)
	`)

	var lastRecorded sql.NullString
	err := row.Scan(
		&stats.SampleCount,
		&stats.DeletedSampleCount,
		&stats.ParameterDefinitions,
		&stats.ParametersWithValues,
		&stats.DataPoints,
		&lastRecorded,
	)
	if err != nil {
		return ProjectStatistics{}, fmt.Errorf("failed to compute statistics: %w", err)
	}

	stats.ParametersWithoutValues = stats.ParameterDefinitions - stats.ParametersWithValues
	if lastRecorded.Valid {
		stats.LastRecordedAt = &lastRecorded.String
	}
	return stats, nil
}
