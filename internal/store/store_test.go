package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"drivers/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "drivers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEntityCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	id, err := st.Create(ctx, "drivers", model.Record{"name": "Kiss Anna", "phone": "+36 30 123 4567", "unknown": "x"})
	require.NoError(t, err)
	require.Positive(t, id)

	rec, err := st.Get(ctx, "drivers", id)
	require.NoError(t, err)
	require.Equal(t, "Kiss Anna", rec["name"])
	require.Equal(t, "+36 30 123 4567", rec["phone"])
	require.Equal(t, "", rec["licenseNumber"])
	require.NotContains(t, rec, "unknown")

	require.NoError(t, st.Update(ctx, "drivers", id, model.Record{"jobTitle": "gépkocsivezető"}))
	rec, err = st.Get(ctx, "drivers", id)
	require.NoError(t, err)
	require.Equal(t, "gépkocsivezető", rec["jobTitle"])
	require.Equal(t, "Kiss Anna", rec["name"])

	_, err = st.Create(ctx, "drivers", model.Record{"name": "Nagy Béla"})
	require.NoError(t, err)
	list, total, err := st.List(ctx, "drivers", ListOptions{Query: "anna"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)

	list, total, err = st.List(ctx, "drivers", ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, list, 1)
	require.Equal(t, "Nagy Béla", list[0]["name"])

	require.NoError(t, st.Delete(ctx, "drivers", id))
	_, err = st.Get(ctx, "drivers", id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, st.Delete(ctx, "drivers", id), ErrNotFound)
}

func TestEntityErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Create(ctx, "companies", model.Record{"name": "x"})
	require.ErrorIs(t, err, ErrUnknownEntity)

	_, err = st.Create(ctx, "vehicles", model.Record{"colour": "red"})
	require.ErrorIs(t, err, ErrNoFields)

	require.ErrorIs(t, st.Update(ctx, "vehicles", 42, model.Record{"make": "Iveco"}), ErrNotFound)

	_, err = st.Create(ctx, "vehicles", model.Record{"plateNumber": "AB-123"})
	require.NoError(t, err)
	_, err = st.Create(ctx, "vehicles", model.Record{"plateNumber": "ab-123"})
	require.Error(t, err, "plates are unique regardless of case")
}

func TestInsertBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	records := []model.Record{
		{"plateNumber": "AB-123", "arrivalTime": "2024-03-01 08:15:00", "standingDuration": "0:45", "sourceRow": 2},
		{"arrivalTime": "2024-03-01 09:00:00", "sourceRow": 3},
		{"ignored": true},
		{"plateNumber": "CD-456", "arrivalTime": "2024-03-01 10:30:00", "sourceRow": 5},
	}
	res, err := st.InsertBatch(ctx, "alerts", records)
	require.NoError(t, err)
	require.Equal(t, 2, res.Success)
	require.Equal(t, 2, res.Errors)
	require.Len(t, res.Failures, 2)
	require.Equal(t, 1, res.Failures[0].Index)
	require.Equal(t, 2, res.Failures[1].Index)

	var rows []struct {
		Plate     string `db:"plate_number"`
		SourceRow int    `db:"source_row"`
	}
	require.NoError(t, st.DB().SelectContext(ctx, &rows, "SELECT plate_number, source_row FROM alerts ORDER BY id"))
	require.Len(t, rows, 2)
	require.Equal(t, "AB-123", rows[0].Plate)
	require.Equal(t, 5, rows[1].SourceRow)

	_, err = st.InsertBatch(ctx, "wholesale", records)
	require.ErrorIs(t, err, ErrUnknownEntity)

	res, err = st.InsertBatch(ctx, "time_records", nil)
	require.NoError(t, err)
	require.Zero(t, res.Success)
}

func TestLookupAndEnsureID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	vid, err := st.Create(ctx, "vehicles", model.Record{"plateNumber": "AB-123"})
	require.NoError(t, err)

	got, err := st.LookupID(ctx, "vehicles", "ab - 123")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, vid, *got)

	got, err = st.LookupID(ctx, "drivers", "Kiss Anna")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = st.LookupID(ctx, "assignments", "2024-03-01")
	require.ErrorIs(t, err, ErrUnknownEntity)

	id, created, err := st.EnsureID(ctx, "drivers", " Kiss Anna ")
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := st.EnsureID(ctx, "drivers", "KISS ANNA")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, id, again)
}

func TestImportLogAndSheetMeta(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	id, err := st.CreateImportLog(ctx, model.ImportLog{RunID: "run-1", Filename: "marcius.xlsx", ImportKind: "auto"})
	require.NoError(t, err)

	log, err := st.GetImportLog(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.ImportStatusProcessing, log.Status)
	require.Nil(t, log.CompletedAt)

	require.NoError(t, st.InsertSheetMeta(ctx, model.SheetMeta{
		ImportLogID:       id,
		SheetName:         "Riasztások",
		ImportKind:        string(model.KindStopEvents),
		Confidence:        0.8,
		ImportedRows:      12,
		ErrorRows:         1,
		ColumnMappingJSON: BuildColumnMappingJSON(map[string]int{"plateNumber": 0}),
		Degraded:          true,
		Status:            "imported",
	}))

	log.ID = id
	log.ImportKind = string(model.KindStopEvents)
	log.Status = model.ImportStatusPartial
	log.TotalSheets, log.ImportedSheets = 1, 1
	log.TotalRows, log.ImportedRows, log.ErrorRows = 13, 12, 1
	require.NoError(t, st.FinishImportLog(ctx, *log))

	logs, err := st.ListImportLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, model.ImportStatusPartial, logs[0].Status)
	require.Equal(t, 12, logs[0].ImportedRows)
	require.NotNil(t, logs[0].CompletedAt)

	metas, err := st.ListSheetMeta(ctx, id)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.True(t, metas[0].Degraded)
	require.Equal(t, `{"plateNumber":0}`, metas[0].ColumnMappingJSON)

	_, err = st.GetImportLog(ctx, id+1)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestSettingsAndCounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.GetSetting(ctx, "reference_year")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.SetSetting(ctx, "reference_year", "2023"))
	require.NoError(t, st.SetSetting(ctx, "reference_year", "2024"))
	year, err := st.GetSettingInt(ctx, "reference_year")
	require.NoError(t, err)
	require.Equal(t, 2024, year)

	all, err := st.AllSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"reference_year": "2024"}, all)

	_, err = st.Create(ctx, "drivers", model.Record{"name": "Kiss Anna"})
	require.NoError(t, err)
	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts["drivers"])
	require.Equal(t, 0, counts["alerts"])
}

func TestFieldColumnNames(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"plateNumber":      "plate_number",
		"timeSpentMinutes": "time_spent_minutes",
		"date":             "date",
	}
	for field, col := range cases {
		if got := ColumnName(field); got != col {
			t.Fatalf("ColumnName(%q) = %q, want %q", field, got, col)
		}
		if got := FieldName(col); got != field {
			t.Fatalf("FieldName(%q) = %q, want %q", col, got, field)
		}
	}
}
