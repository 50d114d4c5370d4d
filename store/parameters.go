package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// ParameterDefinition describes one named parameter
type ParameterDefinition struct {
	ID         int64  `json:"param_id"`
	Name       string `json:"name"`
	UnitSymbol string `json:"unit_symbol,omitempty"`
	GroupName  string `json:"group_name,omitempty"`
}

// HistoryEntry is one recorded value of a parameter across samples
type HistoryEntry struct {
	SampleID   int64  `json:"sample_id"`
	Value      string `json:"value"`
	UnitSymbol string `json:"unit_symbol,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// ListParameterDefinitions returns all definitions in name order
func (s *Store) ListParameterDefinitions(ctx context.Context) ([]ParameterDefinition, error) {
	query, args, err := dialect.From("param_def").
		Select("param_id", "name", "unit_symbol", "group_name").
		Order(goqu.C("name").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list parameter definitions: %w", err)
	}
	defer rows.Close()

	var defs []ParameterDefinition
	for rows.Next() {
		var def ParameterDefinition
		var unit, group sql.NullString
		if err := rows.Scan(&def.ID, &def.Name, &unit, &group); err != nil {
			return nil, err
		}
		def.UnitSymbol = unit.String
		def.GroupName = group.String
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// ParameterHistory returns the most recent value rows for a parameter,
// newest first, up to limit entries.
func (s *Store) ParameterHistory(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	paramID, err := s.parameterID(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sample_id, value, unit_symbol, recorded_at
		FROM sample_param_value
		WHERE param_id = ?
		ORDER BY rowid DESC
		LIMIT ?
	`, paramID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var unit sql.NullString
		if err := rows.Scan(&e.SampleID, &e.Value, &unit, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.UnitSymbol = unit.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UniqueParameterValues returns the distinct display values ("value" or
// "value unit") currently recorded for a parameter.
func (s *Store) UniqueParameterValues(ctx context.Context, name string) ([]string, error) {
	paramID, err := s.parameterID(ctx, name)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT value, unit_symbol
		FROM sample_param_value
		WHERE param_id = ?
		ORDER BY value
	`, paramID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		var unit sql.NullString
		if err := rows.Scan(&value, &unit); err != nil {
			return nil, err
		}
		display := value
		if unit.String != "" {
			display = value + " " + unit.String
		}
		values = append(values, display)
	}
	return values, rows.Err()
}

// parameterID resolves a parameter name to its id
func (s *Store) parameterID(ctx context.Context, name string) (int64, error) {
	query, args, err := dialect.From("param_def").
		Select("param_id").
		Where(goqu.C("name").Eq(name)).
		ToSQL()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
		return 0, err
	}
	return id, nil
}

// ensureParameterDef returns the id of a definition, creating it on
// first use with the given unit symbol.
func (s *Store) ensureParameterDef(ctx context.Context, name, unitSymbol string) (int64, error) {
	id, err := s.parameterID(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrUnknownParameter) {
		return 0, err
	}

	query, args, err := dialect.Insert("param_def").
		Rows(goqu.Record{"name": name, "unit_symbol": unitSymbol}).
		ToSQL()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to create parameter definition %q: %w", name, err)
	}
	return res.LastInsertId()
}
