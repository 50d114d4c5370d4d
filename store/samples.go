package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// Sample is one physical sample tracked by a project
type Sample struct {
	ID         int64      `json:"sample_id"`
	PreparedOn string     `json:"prepared_on"` // ISO date (2006-01-02)
	AuthorName string     `json:"author_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// ParameterValue is one recorded reading for a sample
type ParameterValue struct {
	ParameterName string    `json:"parameter_name"`
	Value         string    `json:"value"`
	UnitSymbol    string    `json:"unit_symbol,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// CopyResult reports the outcome of copying parameters between samples
type CopyResult struct {
	Applied  int      `json:"applied"`
	Warnings []string `json:"warnings"`
}

const timeLayout = time.RFC3339

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// ListSamples returns samples ordered by id. Soft-deleted samples are
// excluded unless includeDeleted is set.
func (s *Store) ListSamples(ctx context.Context, includeDeleted bool) ([]Sample, error) {
	q := dialect.From("sample").
		Select("sample_id", "prepared_on", "author_name", "created_at", "deleted_at").
		Order(goqu.C("sample_id").Asc())
	if !includeDeleted {
		q = q.Where(goqu.C("deleted_at").IsNull())
	}

	query, args, err := q.ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// GetSample returns a sample by id, including soft-deleted ones
func (s *Store) GetSample(ctx context.Context, id int64) (*Sample, error) {
	query, args, err := dialect.From("sample").
		Select("sample_id", "prepared_on", "author_name", "created_at", "deleted_at").
		Where(goqu.C("sample_id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrUnknownSample
	}
	sample, err := scanSample(rows)
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// CreateSample inserts a new sample
func (s *Store) CreateSample(ctx context.Context, preparedOn, authorName string) (*Sample, error) {
	query, args, err := dialect.Insert("sample").
		Rows(goqu.Record{
			"prepared_on": preparedOn,
			"author_name": authorName,
			"created_at":  nowString(),
		}).
		ToSQL()
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sample: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetSample(ctx, id)
}

// DeleteSample soft-deletes a sample. Deleting twice is an error.
func (s *Store) DeleteSample(ctx context.Context, id int64) (*Sample, error) {
	sample, err := s.GetSample(ctx, id)
	if err != nil {
		return nil, err
	}
	if sample.DeletedAt != nil {
		return nil, ErrSampleDeleted
	}

	query, args, err := dialect.Update("sample").
		Set(goqu.Record{"deleted_at": nowString()}).
		Where(goqu.C("sample_id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete sample: %w", err)
	}
	return s.GetSample(ctx, id)
}

// Assignment is a requested parameter value for a sample. Parameter
// definitions are created on first use.
type Assignment struct {
	ParameterName string `json:"parameter_name"`
	Value         string `json:"value"`
	UnitSymbol    string `json:"unit_symbol,omitempty"`
}

// RecordParameters appends value rows for a sample. Values are never
// updated in place; history is the sequence of inserts.
func (s *Store) RecordParameters(ctx context.Context, sampleID int64, assignments []Assignment) (*Sample, error) {
	sample, err := s.GetSample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if sample.DeletedAt != nil {
		return nil, ErrSampleDeleted
	}

	for _, a := range assignments {
		paramID, err := s.ensureParameterDef(ctx, a.ParameterName, a.UnitSymbol)
		if err != nil {
			return nil, err
		}

		query, args, err := dialect.Insert("sample_param_value").
			Rows(goqu.Record{
				"sample_id":   sampleID,
				"param_id":    paramID,
				"value":       a.Value,
				"unit_symbol": a.UnitSymbol,
				"recorded_at": nowString(),
			}).
			ToSQL()
		if err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("failed to record parameter %q: %w", a.ParameterName, err)
		}
	}

	return sample, nil
}

// SampleParameterValues returns the latest recorded value per parameter
// for a sample, in parameter-name order.
func (s *Store) SampleParameterValues(ctx context.Context, sampleID int64) ([]ParameterValue, error) {
	if _, err := s.GetSample(ctx, sampleID); err != nil {
		return nil, err
	}

	// Bare columns with MAX(rowid) select the latest row per group.
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.name, spv.value, spv.unit_symbol, spv.recorded_at, MAX(spv.rowid)
		FROM sample_param_value AS spv
		JOIN param_def AS d ON d.param_id = spv.param_id
		WHERE spv.sample_id = ?
		GROUP BY spv.param_id
		ORDER BY d.name
	`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []ParameterValue
	for rows.Next() {
		var v ParameterValue
		var unit sql.NullString
		var recordedAt string
		var maxRowID int64
		if err := rows.Scan(&v.ParameterName, &v.Value, &unit, &recordedAt, &maxRowID); err != nil {
			return nil, err
		}
		v.UnitSymbol = unit.String
		v.RecordedAt = parseTime(recordedAt)
		values = append(values, v)
	}
	return values, rows.Err()
}

// CopyParameters copies the latest parameter values from one sample to
// another. Parameters that cannot be applied produce warnings rather
// than aborting the whole copy.
func (s *Store) CopyParameters(ctx context.Context, sourceID, targetID int64) (*CopyResult, error) {
	values, err := s.SampleParameterValues(ctx, sourceID)
	if err != nil {
		if errors.Is(err, ErrUnknownSample) {
			return nil, fmt.Errorf("template sample %d: %w", sourceID, err)
		}
		return nil, err
	}

	result := &CopyResult{}
	for _, v := range values {
		_, err := s.RecordParameters(ctx, targetID, []Assignment{{
			ParameterName: v.ParameterName,
			Value:         v.Value,
			UnitSymbol:    v.UnitSymbol,
		}})
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("parameter %q not copied: %v", v.ParameterName, err))
			continue
		}
		result.Applied++
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(rows rowScanner) (Sample, error) {
	var sample Sample
	var author, deletedAt sql.NullString
	var createdAt string
	if err := rows.Scan(&sample.ID, &sample.PreparedOn, &author, &createdAt, &deletedAt); err != nil {
		return Sample{}, err
	}
	sample.AuthorName = author.String
	sample.CreatedAt = parseTime(createdAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		sample.DeletedAt = &t
	}
	return sample, nil
}
