package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"rollcall/internal/ledger"
)

func TestWriteSheet(t *testing.T) {
	dir := t.TempDir()
	marked := time.Date(2026, 1, 7, 13, 42, 5, 0, time.Local)
	entries := []ledger.Entry{
		{TokenID: "e3b4a936", Roll: "1", Name: "Alice", Email: "alice@example.edu",
			Status: ledger.StatusPresent, MarkedAt: &marked},
		{TokenID: "05D4E6F7", Roll: "2", Name: "Bob", Email: "bob@example.edu",
			Status: ledger.StatusAbsent},
	}

	path, err := WriteSheet(dir, "embedded", "2026-01-07", entries)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "embedded_2026-01-07.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)

	get := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Student_ID", get("A1"))
	assert.Equal(t, "Roll_Number", get("B1"))
	assert.Equal(t, "Name", get("C1"))
	assert.Equal(t, "Email", get("D1"))
	assert.Equal(t, "Status", get("E1"))
	assert.Equal(t, "Time", get("F1"))

	assert.Equal(t, "e3b4a936", get("A2"))
	assert.Equal(t, "Present", get("E2"))
	assert.Equal(t, "13:42:05", get("F2"))

	assert.Equal(t, "Bob", get("C3"))
	assert.Equal(t, "Absent", get("E3"))
	assert.Equal(t, "N/A", get("F3"))
}

func TestWriteSheetOverwrites(t *testing.T) {
	dir := t.TempDir()
	entries := []ledger.Entry{{TokenID: "tok", Name: "Alice", Status: ledger.StatusAbsent}}

	_, err := WriteSheet(dir, "embedded", "2026-01-07", entries)
	require.NoError(t, err)

	marked := time.Date(2026, 1, 7, 13, 42, 0, 0, time.Local)
	entries[0].Status = ledger.StatusPresent
	entries[0].MarkedAt = &marked
	path, err := WriteSheet(dir, "embedded", "2026-01-07", entries)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(f.GetSheetName(0), "E2")
	require.NoError(t, err)
	assert.Equal(t, "Present", v)
}

func TestWriteSheetEmptyDay(t *testing.T) {
	path, err := WriteSheet(t.TempDir(), "embedded", "2026-01-07", nil)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(f.GetSheetName(0), "A1")
	require.NoError(t, err)
	assert.Equal(t, "Student_ID", v)
}
