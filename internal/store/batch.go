package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"drivers/internal/model"
)

// BatchResult outcome of InsertBatch; a failing row does not abort the batch
type BatchResult struct {
	Success  int            `json:"success"`
	Errors   int            `json:"errors"`
	Failures []BatchFailure `json:"failures,omitempty"`
}

// BatchFailure a rejected record, Index into the input slice
type BatchFailure struct {
	Index int    `json:"index"`
	Err   string `json:"error"`
}

func tableColumns(table string) ([]string, error) {
	if cols, ok := importTables[table]; ok {
		return append(append([]string{}, cols...), sourceColumns...), nil
	}
	if spec, ok := entities[table]; ok {
		return spec.columns, nil
	}
	return nil, fmt.Errorf("%w: table %q", ErrUnknownEntity, table)
}

// InsertBatch inserts records into table inside one transaction. Record fields are
// camelCase and mapped to the table's whitelisted columns; unknown fields are ignored.
func (s *Store) InsertBatch(ctx context.Context, table string, records []model.Record) (BatchResult, error) {
	var res BatchResult
	cols, err := tableColumns(table)
	if err != nil {
		return res, err
	}
	if len(records) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range records {
		values := writable(rec, cols)
		if len(values) == 0 {
			res.Errors++
			res.Failures = append(res.Failures, BatchFailure{Index: i, Err: ErrNoFields.Error()})
			continue
		}
		if _, err := tx.NamedExecContext(ctx, insertSQL(table, sortedKeys(values)), values); err != nil {
			if ctx.Err() != nil {
				return BatchResult{}, ctx.Err()
			}
			res.Errors++
			res.Failures = append(res.Failures, BatchFailure{Index: i, Err: err.Error()})
			continue
		}
		res.Success++
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return res, nil
}

// LookupID resolves a natural key (driver or round name, vehicle plate) to an id; nil when absent.
// Names compare case-insensitively, plates also ignore spaces.
func (s *Store) LookupID(ctx context.Context, table, naturalKey string) (*int64, error) {
	spec, err := lookupEntity(table)
	if err != nil {
		return nil, err
	}
	if spec.key == "" {
		return nil, fmt.Errorf("%w: %s has no natural key", ErrUnknownEntity, table)
	}
	key := strings.TrimSpace(naturalKey)
	if key == "" {
		return nil, nil
	}

	col := spec.key
	if col == "plate_number" {
		col = "REPLACE(plate_number, ' ', '')"
		key = strings.ReplaceAll(key, " ", "")
	}
	var id int64
	err = s.db.GetContext(ctx, &id, "SELECT id FROM "+spec.table+" WHERE "+col+" = ? COLLATE NOCASE ORDER BY id LIMIT 1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s %q: %w", table, naturalKey, err)
	}
	return &id, nil
}

// EnsureID looks up a natural key and creates a minimal entity when it is missing
func (s *Store) EnsureID(ctx context.Context, table, naturalKey string) (int64, bool, error) {
	id, err := s.LookupID(ctx, table, naturalKey)
	if err != nil {
		return 0, false, err
	}
	if id != nil {
		return *id, false, nil
	}
	spec, _ := lookupEntity(table)
	newID, err := s.Create(ctx, table, model.Record{FieldName(spec.key): strings.TrimSpace(naturalKey)})
	if err != nil {
		return 0, false, err
	}
	return newID, true, nil
}
