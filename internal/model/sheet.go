package model

// SheetRecognition recognition result for one sheet
type SheetRecognition struct {
	SheetName     string     `json:"sheetName"`
	Kind          ImportKind `json:"kind"`
	Score         float64    `json:"score"`
	HeaderRow     int        `json:"headerRow"` // 0-based, -1 when no candidate row
	MissingFields []string   `json:"missingFields"`
}

// SheetMeta per-sheet import trace, persisted for auditing
type SheetMeta struct {
	ImportLogID       int64   `db:"import_log_id" json:"importLogId"`
	SheetName         string  `db:"sheet_name" json:"sheetName"`
	ImportKind        string  `db:"import_kind" json:"importKind"`
	Confidence        float64 `db:"confidence" json:"confidence"`
	ImportedRows      int     `db:"imported_rows" json:"importedRows"`
	ErrorRows         int     `db:"error_rows" json:"errorRows"`
	ColumnMappingJSON string  `db:"column_mapping_json" json:"columnMappingJson"`
	Degraded          bool    `db:"degraded" json:"degraded"`
	Status            string  `db:"status" json:"status"`
	ErrorMessage      string  `db:"error_message" json:"errorMessage"`
	SourceFile        string  `db:"source_file" json:"sourceFile"`
}

// ImportLog one import run
type ImportLog struct {
	ID             int64   `db:"id" json:"id"`
	RunID          string  `db:"run_id" json:"runId"`
	Filename       string  `db:"filename" json:"filename"`
	FilePath       string  `db:"file_path" json:"filePath"`
	FileSize       int64   `db:"file_size" json:"fileSize"`
	FileHash       string  `db:"file_hash" json:"fileHash"`
	ImportKind     string  `db:"import_kind" json:"importKind"`
	Status         string  `db:"status" json:"status"`
	TotalSheets    int     `db:"total_sheets" json:"totalSheets"`
	ImportedSheets int     `db:"imported_sheets" json:"importedSheets"`
	SkippedSheets  int     `db:"skipped_sheets" json:"skippedSheets"`
	TotalRows      int     `db:"total_rows" json:"totalRows"`
	ImportedRows   int     `db:"imported_rows" json:"importedRows"`
	ErrorRows      int     `db:"error_rows" json:"errorRows"`
	ErrorMessage   string  `db:"error_message" json:"errorMessage"`
	CreatedAt      string  `db:"created_at" json:"createdAt"`
	CompletedAt    *string `db:"completed_at" json:"completedAt,omitempty"`
}

// Import log statuses
const (
	ImportStatusProcessing = "processing"
	ImportStatusCompleted  = "completed"
	ImportStatusPartial    = "partial"
	ImportStatusFailed     = "failed"
)
