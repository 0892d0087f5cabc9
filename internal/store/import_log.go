package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"drivers/internal/model"
)

// CreateImportLog records the start of a run and returns the import_log id
func (s *Store) CreateImportLog(ctx context.Context, log model.ImportLog) (int64, error) {
	if log.Status == "" {
		log.Status = model.ImportStatusProcessing
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO import_logs (run_id, filename, file_path, file_size, file_hash, import_kind, status)
		VALUES (:run_id, :filename, :file_path, :file_size, :file_hash, :import_kind, :status)
	`, log)
	if err != nil {
		return 0, fmt.Errorf("failed to create import log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get import log id: %w", err)
	}
	return id, nil
}

// FinishImportLog stores the totals of a finished run
func (s *Store) FinishImportLog(ctx context.Context, log model.ImportLog) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE import_logs SET
			import_kind = :import_kind,
			total_sheets = :total_sheets,
			imported_sheets = :imported_sheets,
			skipped_sheets = :skipped_sheets,
			total_rows = :total_rows,
			imported_rows = :imported_rows,
			error_rows = :error_rows,
			status = :status,
			error_message = :error_message,
			completed_at = CURRENT_TIMESTAMP
		WHERE id = :id
	`, log)
	if err != nil {
		return fmt.Errorf("failed to update import log: %w", err)
	}
	return nil
}

const importLogColumns = `id, run_id, filename, file_path, file_size, file_hash, import_kind, status,
	total_sheets, imported_sheets, skipped_sheets, total_rows, imported_rows, error_rows, error_message,
	CAST(created_at AS TEXT) AS created_at, CAST(completed_at AS TEXT) AS completed_at`

// GetImportLog loads one run
func (s *Store) GetImportLog(ctx context.Context, id int64) (*model.ImportLog, error) {
	var log model.ImportLog
	err := s.db.GetContext(ctx, &log, "SELECT "+importLogColumns+" FROM import_logs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("import log %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import log: %w", err)
	}
	return &log, nil
}

// ListImportLogs latest runs first
func (s *Store) ListImportLogs(ctx context.Context, limit int) ([]model.ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	logs := []model.ImportLog{}
	err := s.db.SelectContext(ctx, &logs, "SELECT "+importLogColumns+" FROM import_logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	return logs, nil
}

// InsertSheetMeta stores the per-sheet trace of a run
func (s *Store) InsertSheetMeta(ctx context.Context, meta model.SheetMeta) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO sheets_meta (
			import_log_id, sheet_name, import_kind, confidence,
			imported_rows, error_rows, column_mapping_json, degraded,
			status, error_message, source_file
		) VALUES (
			:import_log_id, :sheet_name, :import_kind, :confidence,
			:imported_rows, :error_rows, :column_mapping_json, :degraded,
			:status, :error_message, :source_file
		)
	`, meta)
	if err != nil {
		return fmt.Errorf("failed to insert sheets_meta: %w", err)
	}
	return nil
}

// ListSheetMeta sheets of one run in insertion order
func (s *Store) ListSheetMeta(ctx context.Context, importLogID int64) ([]model.SheetMeta, error) {
	metas := []model.SheetMeta{}
	err := s.db.SelectContext(ctx, &metas, `
		SELECT import_log_id, sheet_name, import_kind, confidence, imported_rows, error_rows,
			column_mapping_json, degraded, status, error_message, source_file
		FROM sheets_meta WHERE import_log_id = ? ORDER BY id
	`, importLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets_meta: %w", err)
	}
	return metas, nil
}

// BuildColumnMappingJSON serializes a field -> column mapping
func BuildColumnMappingJSON(columns map[string]int) string {
	if len(columns) == 0 {
		return "{}"
	}
	b, err := json.Marshal(columns)
	if err != nil {
		return "{}"
	}
	return string(b)
}
