package consultation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportHistory(t *testing.T) {
	history := []*Prescription{
		{ID: 2, PrescriptionDate: day(2024, 5, 20), Dose: 50, Frequency: 8, PrescriptionDays: 14, DayDrug: 3, Note: "식후 복용"},
		{ID: 1, PrescriptionDate: day(2024, 5, 1), Dose: 25.5, Frequency: 12, PrescriptionDays: 7, DayDrug: 2},
	}

	data, err := ExportHistory(history)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{HistorySheet}, f.GetSheetList())

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, HistoryHeaders, rows[0])
	assert.Equal(t, []string{"2024-05-20", "50", "8", "14", "3", "식후 복용"}, rows[1])
	assert.Equal(t, "2024-05-01", rows[2][0])
	assert.Equal(t, "25.5", rows[2][1])
}

func TestExportHistory_Empty(t *testing.T) {
	data, err := ExportHistory(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, HistoryHeaders, rows[0])
}
