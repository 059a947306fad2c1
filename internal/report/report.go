package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"rollcall/internal/ledger"
)

var headers = []string{"Student_ID", "Roll_Number", "Name", "Email", "Status", "Time"}

// WriteSheet renders a day sheet to "<subject>_<day>.xlsx" under dir and
// returns the file path. An existing file for the same day is replaced, so
// a retried dispatch attaches a fresh render.
func WriteSheet(dir, subject, day string, entries []ledger.Entry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", err
		}
	}
	for row, e := range entries {
		status := "Absent"
		marked := "N/A"
		if e.Status == ledger.StatusPresent {
			status = "Present"
			if e.MarkedAt != nil {
				marked = e.MarkedAt.Format("15:04:05")
			}
		}
		values := []any{e.TokenID, e.Roll, e.Name, e.Email, status, marked}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return "", err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", err
			}
		}
	}

	path := filepath.Join(dir, subject+"_"+day+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("report: save: %w", err)
	}
	return path, nil
}
