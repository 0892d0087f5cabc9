package exporter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"drivers/internal/model"
	"drivers/internal/store"
)

func TestExport_WritesEntityRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st, err := store.New(filepath.Join(t.TempDir(), "drivers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	for _, plate := range []string{"AB-123", "CD-456"} {
		_, err := st.Create(ctx, "vehicles", model.Record{"plateNumber": plate, "make": "Iveco"})
		require.NoError(t, err)
	}

	var events []ProgressEvent
	f, err := NewExporter(st).Export(ctx, "vehicles", func(e ProgressEvent) { events = append(events, e) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows("vehicles")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"id", "plateNumber", "make", "model", "capacityKg", "notes", "createdAt", "updatedAt"}, rows[0])
	require.Equal(t, "AB-123", rows[1][1])
	require.Equal(t, "Iveco", rows[2][2])
	require.Equal(t, 100, events[len(events)-1].Percent)

	_, err = NewExporter(st).Export(ctx, "payroll", nil)
	require.ErrorIs(t, err, store.ErrUnknownEntity)
}
