package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSampleLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSample(ctx, "2026-08-01", "alice")
	require.NoError(t, err)
	require.Equal(t, "2026-08-01", created.PreparedOn)
	require.Equal(t, "alice", created.AuthorName)

	fetched, err := s.GetSample(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Nil(t, fetched.DeletedAt)

	deleted, err := s.DeleteSample(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)

	_, err = s.DeleteSample(ctx, created.ID)
	require.ErrorIs(t, err, ErrSampleDeleted)

	// Deleted samples stay readable but drop out of default listings
	_, err = s.GetSample(ctx, created.ID)
	require.NoError(t, err)

	visible, err := s.ListSamples(ctx, false)
	require.NoError(t, err)
	require.Empty(t, visible)

	all, err := s.ListSamples(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestGetSample_Unknown(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetSample(context.Background(), 42)
	require.ErrorIs(t, err, ErrUnknownSample)
}

func TestRecordParameters_LatestValueWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sample, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)

	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.1"},
		{ParameterName: "density", Value: "1.05", UnitSymbol: "g/cm3"},
	})
	require.NoError(t, err)

	// Re-recording appends; reads must surface the newest value only
	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.4"},
	})
	require.NoError(t, err)

	values, err := s.SampleParameterValues(ctx, sample.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)

	byName := map[string]string{}
	for _, v := range values {
		byName[v.ParameterName] = v.Value
	}
	require.Equal(t, "7.4", byName["ph"])
	require.Equal(t, "1.05", byName["density"])
}

func TestParameterHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sample, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)

	for _, value := range []string{"1", "2", "3"} {
		_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
			{ParameterName: "ph", Value: value},
		})
		require.NoError(t, err)
	}

	history, err := s.ParameterHistory(ctx, "ph", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "3", history[0].Value)
	require.Equal(t, "2", history[1].Value)

	_, err = s.ParameterHistory(ctx, "nope", 10)
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestCopyParameters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	source, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)
	target, err := s.CreateSample(ctx, "2026-08-02", "")
	require.NoError(t, err)

	_, err = s.RecordParameters(ctx, source.ID, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
		{ParameterName: "density", Value: "1.01", UnitSymbol: "g/cm3"},
	})
	require.NoError(t, err)

	result, err := s.CopyParameters(ctx, source.ID, target.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Applied)
	require.Empty(t, result.Warnings)

	values, err := s.SampleParameterValues(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, values, 2)
}

func TestVersionSignal_Transitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	initial, err := s.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, VersionSignal{}, initial)

	sample, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)

	// Sample creation alone does not move the value-level signal
	afterSample, err := s.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, initial, afterSample)

	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
	})
	require.NoError(t, err)

	afterValue, err := s.Version(ctx)
	require.NoError(t, err)
	require.Greater(t, afterValue.MaxRowID, afterSample.MaxRowID)
	require.Equal(t, int64(1), afterValue.Rows)

	// Unchanged data yields an identical signal
	again, err := s.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, afterValue, again)
}

func TestVersionSignal_UnavailableAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), "test")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Version(context.Background())
	require.ErrorIs(t, err, ErrProbeUnavailable)
}

func TestAffectedParameters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sample, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)

	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
	})
	require.NoError(t, err)

	sig, err := s.Version(ctx)
	require.NoError(t, err)

	_, err = s.RecordParameters(ctx, sample.ID, []Assignment{
		{ParameterName: "density", Value: "1.01"},
		{ParameterName: "ph", Value: "7.2"},
	})
	require.NoError(t, err)

	names, err := s.AffectedParameters(ctx, sig.MaxRowID)
	require.NoError(t, err)
	require.Equal(t, []string{"density", "ph"}, names)
}

func TestUniqueParameterValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, err := s.CreateSample(ctx, "2026-08-01", "")
	require.NoError(t, err)
	b, err := s.CreateSample(ctx, "2026-08-02", "")
	require.NoError(t, err)

	for _, id := range []int64{a.ID, b.ID} {
		_, err = s.RecordParameters(ctx, id, []Assignment{
			{ParameterName: "ph", Value: "7.0"},
		})
		require.NoError(t, err)
	}

	values, err := s.UniqueParameterValues(ctx, "ph")
	require.NoError(t, err)
	require.Len(t, values, 1)
}

func TestRecordParameters_UnknownSample(t *testing.T) {
	s := openTestStore(t)

	_, err := s.RecordParameters(context.Background(), 99, []Assignment{
		{ParameterName: "ph", Value: "7.0"},
	})
	require.True(t, errors.Is(err, ErrUnknownSample))
}
