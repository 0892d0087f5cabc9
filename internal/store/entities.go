package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"drivers/internal/model"
)

// entitySpec writable columns of a table; everything else is read-only
type entitySpec struct {
	table   string
	columns []string
	search  string // column matched by ListOptions.Query
	key     string // natural key used by LookupID
}

var entities = map[string]entitySpec{
	"drivers": {
		table:   "drivers",
		columns: []string{"name", "phone", "license_number", "job_title", "cost_center", "notes"},
		search:  "name",
		key:     "name",
	},
	"vehicles": {
		table:   "vehicles",
		columns: []string{"plate_number", "make", "model", "capacity_kg", "notes"},
		search:  "plate_number",
		key:     "plate_number",
	},
	"rounds": {
		table:   "rounds",
		columns: []string{"name", "driver_id", "vehicle_id", "weekday", "start_time", "notes"},
		search:  "name",
		key:     "name",
	},
	"assignments": {
		table:   "assignments",
		columns: []string{"driver_id", "vehicle_id", "round_id", "date", "notes"},
		search:  "date",
	},
	"alerts": {
		table: "alerts",
		columns: []string{"vehicle_id", "plate_number", "arrival_time", "standing_duration", "position",
			"important_point", "status"},
		search: "plate_number",
	},
}

// importTables tables InsertBatch may write; entity tables are accepted for generic imports
var importTables = map[string][]string{
	"time_records": {"driver_id", "person_name", "job_title", "cost_center", "date", "planned_shift", "actual_shift",
		"check_in", "check_out", "worked_minutes", "worked_duration"},
	"alerts": {"vehicle_id", "plate_number", "arrival_time", "standing_duration", "position", "important_point", "status"},
	"vehicle_movements": {"vehicle_id", "plate_number", "timestamp", "time_spent_minutes", "time_spent", "distance_km",
		"location", "driver_name", "event"},
	"generic_rows": {"data_json"},
}

// sourceColumns provenance columns of the import tables
var sourceColumns = []string{"import_log_id", "source_file", "source_sheet", "source_row"}

// Entities names accepted by the CRUD operations
func Entities() []string {
	out := make([]string, 0, len(entities))
	for name := range entities {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ImportTable reports whether InsertBatch accepts the table
func ImportTable(table string) bool {
	if _, ok := importTables[table]; ok {
		return true
	}
	_, ok := entities[table]
	return ok
}

func lookupEntity(entity string) (entitySpec, error) {
	spec, ok := entities[entity]
	if !ok {
		return entitySpec{}, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return spec, nil
}

// ColumnName snake_case column of a record field ("plateNumber" -> "plate_number")
func ColumnName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FieldName camelCase field of a column ("plate_number" -> "plateNumber")
func FieldName(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// writable picks whitelisted columns from a record, keyed by column name
func writable(rec model.Record, columns []string) map[string]any {
	allowed := make(map[string]bool, len(columns))
	for _, c := range columns {
		allowed[c] = true
	}
	out := make(map[string]any)
	for field, v := range rec {
		col := ColumnName(field)
		if allowed[col] {
			out[col] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func insertSQL(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", table, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

// Create inserts an entity and returns its id
func (s *Store) Create(ctx context.Context, entity string, rec model.Record) (int64, error) {
	spec, err := lookupEntity(entity)
	if err != nil {
		return 0, err
	}
	values := writable(rec, spec.columns)
	if len(values) == 0 {
		return 0, ErrNoFields
	}
	res, err := s.db.NamedExecContext(ctx, insertSQL(spec.table, sortedKeys(values)), values)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", entity, err)
	}
	return res.LastInsertId()
}

// Get loads one entity by id
func (s *Store) Get(ctx context.Context, entity string, id int64) (model.Record, error) {
	spec, err := lookupEntity(entity)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM "+spec.table+" WHERE id = ?", id)
	raw := make(map[string]any)
	if err := row.MapScan(raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %w", entity, err)
	}
	return toRecord(raw), nil
}

// ListOptions paging and filtering of List
type ListOptions struct {
	Query  string // substring of the entity's search column
	Limit  int
	Offset int
}

// List returns a page of entities and the total match count
func (s *Store) List(ctx context.Context, entity string, opts ListOptions) ([]model.Record, int, error) {
	spec, err := lookupEntity(entity)
	if err != nil {
		return nil, 0, err
	}
	where, args := "", []any{}
	if q := strings.TrimSpace(opts.Query); q != "" {
		where = " WHERE " + spec.search + " LIKE ?"
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+spec.table+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", entity, err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := "SELECT * FROM " + spec.table + where + " ORDER BY id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryxContext(ctx, query, append(args, limit, max(opts.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", entity, err)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, 0, fmt.Errorf("failed to scan %s: %w", entity, err)
		}
		out = append(out, toRecord(raw))
	}
	return out, total, rows.Err()
}

// Update changes the given fields of an entity
func (s *Store) Update(ctx context.Context, entity string, id int64, rec model.Record) error {
	spec, err := lookupEntity(entity)
	if err != nil {
		return err
	}
	values := writable(rec, spec.columns)
	if len(values) == 0 {
		return ErrNoFields
	}
	cols := sortedKeys(values)
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = :"+c)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	values["id"] = id

	res, err := s.db.NamedExecContext(ctx, "UPDATE "+spec.table+" SET "+strings.Join(sets, ", ")+" WHERE id = :id", values)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", entity, err)
	}
	return expectRow(res, entity, id)
}

// Delete removes an entity
func (s *Store) Delete(ctx context.Context, entity string, id int64) error {
	spec, err := lookupEntity(entity)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+spec.table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", entity, err)
	}
	return expectRow(res, entity, id)
}

func expectRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}

// toRecord converts a scanned row to camelCase fields; TEXT columns arrive as []byte
func toRecord(raw map[string]any) model.Record {
	rec := make(model.Record, len(raw))
	for col, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[FieldName(col)] = v
	}
	return rec
}

// EntityFields exported fields of an entity: id, the writable fields, then timestamps
func EntityFields(entity string) ([]string, error) {
	spec, err := lookupEntity(entity)
	if err != nil {
		return nil, err
	}
	out := []string{"id"}
	for _, c := range spec.columns {
		out = append(out, FieldName(c))
	}
	return append(out, "createdAt", "updatedAt"), nil
}
