package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManager_DefaultProjectOnDemand(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Get(ctx, "")
	require.NoError(t, err)
	require.Equal(t, DefaultProjectName, s.Project())

	projects, err := m.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, DefaultProjectName, projects[0].Name)
}

func TestManager_GetReturnsSameStore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "alpha", "alice")
	require.NoError(t, err)

	first, err := m.Get(ctx, "alpha")
	require.NoError(t, err)
	second, err := m.Get(ctx, "alpha")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestManager_GetUnknownProject(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestManager_CreateProject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	project, err := m.CreateProject(ctx, "alpha", "alice")
	require.NoError(t, err)
	require.Equal(t, "alpha", project.Name)
	require.Equal(t, "alice", project.CreatedBy)
	require.FileExists(t, project.DBPath)

	_, err = m.CreateProject(ctx, "alpha", "bob")
	require.ErrorIs(t, err, ErrProjectExists)

	_, err = m.CreateProject(ctx, "bad/name", "")
	require.Error(t, err)
}

func TestManager_OnOpenHook(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var opened []string
	m.OnOpen(func(name string, s *Store) {
		opened = append(opened, name)
	})

	_, err := m.CreateProject(ctx, "alpha", "")
	require.NoError(t, err)

	_, err = m.Get(ctx, "alpha")
	require.NoError(t, err)
	_, err = m.Get(ctx, "alpha")
	require.NoError(t, err)

	// The hook fires once per open, not per access
	require.Equal(t, []string{"alpha"}, opened)
}

func TestManager_ActiveProject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	active, err := m.ActiveProjectName(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	_, err = m.CreateProject(ctx, "alpha", "")
	require.NoError(t, err)
	require.NoError(t, m.SetActiveProject(ctx, "alpha"))

	s, err := m.Get(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "alpha", s.Project())

	require.Error(t, m.SetActiveProject(ctx, "nope"))

	require.NoError(t, m.SetActiveProject(ctx, ""))
	active, err = m.ActiveProjectName(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestManager_RenameProject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "alpha", "")
	require.NoError(t, err)
	require.NoError(t, m.SetActiveProject(ctx, "alpha"))

	s, err := m.Get(ctx, "alpha")
	require.NoError(t, err)
	_, err = s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)

	renamed, err := m.RenameProject(ctx, "alpha", "beta")
	require.NoError(t, err)
	require.Equal(t, "beta", renamed.Name)

	_, err = m.GetProject(ctx, "alpha")
	require.ErrorIs(t, err, ErrProjectNotFound)

	// Data and the active pointer follow the rename
	s, err = m.Get(ctx, "beta")
	require.NoError(t, err)
	samples, err := s.ListSamples(ctx, false)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	active, err := m.ActiveProjectName(ctx)
	require.NoError(t, err)
	require.Equal(t, "beta", active)
}

func TestManager_DeleteProject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var evicted []string
	m.OnEvict(func(name string) { evicted = append(evicted, name) })

	project, err := m.CreateProject(ctx, "alpha", "")
	require.NoError(t, err)
	_, err = m.Get(ctx, "alpha")
	require.NoError(t, err)

	require.NoError(t, m.DeleteProject(ctx, "alpha"))
	require.Equal(t, []string{"alpha"}, evicted)

	_, err = m.GetProject(ctx, "alpha")
	require.ErrorIs(t, err, ErrProjectNotFound)
	_, err = os.Stat(project.DBPath)
	require.True(t, os.IsNotExist(err))

	require.ErrorIs(t, m.DeleteProject(ctx, "alpha"), ErrProjectNotFound)
}

func TestManager_CloneProject(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateProject(ctx, "src", "")
	require.NoError(t, err)

	src, err := m.Get(ctx, "src")
	require.NoError(t, err)
	sample, err := src.CreateSample(ctx, "2026-08-01", "alice")
	require.NoError(t, err)
	_, err = src.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
		{ParameterName: "density", Value: "1.01", UnitSymbol: "g/cm3"},
	})
	require.NoError(t, err)

	require.Error(t, m.CloneProject(ctx, "src", "dst", false, true))

	require.NoError(t, m.CloneProject(ctx, "src", "dst", true, true))

	// Target project is created on demand.
	_, err = m.GetProject(ctx, "dst")
	require.NoError(t, err)

	dst, err := m.Get(ctx, "dst")
	require.NoError(t, err)
	defs, err := dst.ListParameterDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	samples, err := dst.ListSamples(ctx, false)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	values, err := dst.SampleParameterValues(ctx, samples[0].ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
}

func TestManager_StatisticsCached(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s, err := m.Get(ctx, "")
	require.NoError(t, err)
	sample, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)
	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
	})
	require.NoError(t, err)

	stats, err := m.Statistics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.SampleCount)
	require.Equal(t, int64(1), stats.ParameterDefinitions)
	require.Equal(t, int64(1), stats.DataPoints)

	sig, err := s.Version(ctx)
	require.NoError(t, err)
	_, ok := m.statsCache.entries.Get(statsCacheKey(s.Project(), sig))
	require.True(t, ok)

	// New data invalidates by key change
	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.4"},
	})
	require.NoError(t, err)

	stats, err = m.Statistics(ctx, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.DataPoints)
}
