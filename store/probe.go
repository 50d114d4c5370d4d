package store

import (
	"context"
	"fmt"
)

// VersionSignal is a cheap, comparable snapshot of the datastore's
// write state. MaxRowID is non-decreasing while the database lives;
// a decrease means the file was restored or replaced and is reported
// as a change of unknown kind, never as an error. Rows lets the
// detector make a best-effort guess at what kind of change happened.
type VersionSignal struct {
	MaxRowID int64
	Rows     int64
}

// Version reads the current version signal from the append-only value
// table. Both aggregates are O(1) on the implicit rowid index. Any read
// failure is wrapped as ErrProbeUnavailable so the caller can skip the
// cycle without losing its baseline.
func (s *Store) Version(ctx context.Context) (VersionSignal, error) {
	var sig VersionSignal
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(rowid), 0), COUNT(*)
		FROM sample_param_value
	`)
	if err := row.Scan(&sig.MaxRowID, &sig.Rows); err != nil {
		return VersionSignal{}, fmt.Errorf("%w: %v", ErrProbeUnavailable, err)
	}
	return sig, nil
}

// AffectedParameters returns the distinct parameter names recorded after
// the given rowid, in name order. Used by the detector to enrich change
// events; callers treat failure as "names unknown", not as a lost event.
func (s *Store) AffectedParameters(ctx context.Context, sinceRowID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT d.name
		FROM sample_param_value AS spv
		JOIN param_def AS d ON d.param_id = spv.param_id
		WHERE spv.rowid > ?
		ORDER BY d.name
	`, sinceRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query affected parameters: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
