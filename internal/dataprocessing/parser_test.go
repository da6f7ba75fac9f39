package dataprocessing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "qcmpulse/internal/errors"
)

func TestParseRaw_Delimited(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"comma separated", "\ufeffTime_1,F_1:1\n0,-1.5\n\n1,\n", ".csv"},
		{"tab separated", "Time_1\tF_1:1\n0\t-1.5\n1\t\n", ".txt"},
		{"semicolon separated", "Time_1;F_1:1\n0;-1.5\n1;\n", ".csv"},
		{"upper case extension", "Time_1,F_1:1\n0,-1.5\n1,\n", ".CSV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseRaw([]byte(tt.data), tt.ext)
			require.NoError(t, err)

			assert.Equal(t, []string{"Time_1", "F_1:1"}, raw.Headers)
			require.Equal(t, 2, raw.Len())

			f, ok := raw.Floats("F_1:1")
			require.True(t, ok)
			assert.Equal(t, -1.5, f[0])
			assert.True(t, math.IsNaN(f[1]), "empty cell is a missing sample")
		})
	}
}

func TestParseRaw_Rejected(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
	}{
		{"legacy workbook", []byte{0xd0, 0xcf, 0x11, 0xe0}, ".xls"},
		{"binary container", []byte("XtalDriveTimeFloat"), ".qsd"},
		{"unknown extension", []byte("a,b\n"), ".json"},
		{"empty csv", nil, ".csv"},
		{"not a workbook", []byte("plain text"), ".xlsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRaw(tt.data, tt.ext)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeFormat))
		})
	}
}

func TestReadRawFile_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"Relative_time", "Frequency_0", "Dissipation_0"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{0, 4972000.5, 0.000012}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{1, 4972000.25, 0.000013}))

	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	raw, err := ReadRawFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Relative_time", "Frequency_0", "Dissipation_0"}, raw.Headers)
	assert.Equal(t, 2, raw.Len())
	freq, _ := raw.Floats("Frequency_0")
	assert.Equal(t, []float64{4972000.5, 4972000.25}, freq)
}

func TestReadRawFile_Missing(t *testing.T) {
	_, err := ReadRawFile(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRawTable_DuplicateHeaders(t *testing.T) {
	raw := NewRawTable([]string{"Time", "Time", "x"}, [][]string{{"1", "2", "3"}})
	i, ok := raw.Column("Time")
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, "", raw.Cell(0, "absent"))
	assert.Equal(t, "", raw.Cell(5, "x"))
}
