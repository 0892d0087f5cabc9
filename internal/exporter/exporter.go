package exporter

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"drivers/internal/store"
)

const pageSize = 500

// Exporter writes stored entities to a workbook, one sheet per entity
type Exporter struct {
	store *store.Store
}

// NewExporter creates an exporter
func NewExporter(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// Export writes every row of entity to a new workbook. The sheet is named after
// the entity, row 1 holds the field names.
func (e *Exporter) Export(ctx context.Context, entity string, progress func(ProgressEvent)) (*excelize.File, error) {
	fields, err := store.EntityFields(entity)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", entity); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := e.fill(ctx, f, entity, fields, progress); err != nil {
		_ = f.Close()
		return nil, err
	}
	reportProgress(progress, 100, "done")
	return f, nil
}

func (e *Exporter) fill(ctx context.Context, f *excelize.File, entity string, fields []string, progress func(ProgressEvent)) error {
	header := make([]interface{}, len(fields))
	for i, field := range fields {
		header[i] = field
	}
	if err := f.SetSheetRow(entity, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(fields))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(entity, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetPanes(entity, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	row := 2
	for offset := 0; ; offset += pageSize {
		items, total, err := e.store.List(ctx, entity, store.ListOptions{Limit: pageSize, Offset: offset})
		if err != nil {
			return fmt.Errorf("export %s: %w", entity, err)
		}
		for _, item := range items {
			values := make([]interface{}, len(fields))
			for i, field := range fields {
				values[i] = item[field]
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(entity, cell, &values); err != nil {
				return err
			}
			row++
		}
		if total > 0 {
			reportProgress(progress, (row-2)*100/total, "rows")
		}
		if len(items) < pageSize {
			return nil
		}
	}
}
