package output

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/edusurvey/microagg/pkg/errors"
)

// WriteCSV persists a standardized table as delimited text.
func WriteCSV(t *Table, path string, delimiter rune) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delimiter

	if err := w.Write(t.Columns); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write header").
			WithDetail("path", path)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = formatCell(cell)
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write row").
				WithDetail("path", path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush output").
			WithDetail("path", path)
	}
	return nil
}

// WriteXLSX persists a standardized table as a single-sheet workbook, the
// spreadsheet twin every published CSV table ships with.
func WriteXLSX(t *Table, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	for i, col := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "invalid sheet coordinates")
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write header cell")
		}
	}

	for r, row := range t.Rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "invalid sheet coordinates")
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write cell")
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to save workbook").
			WithDetail("path", path)
	}
	return nil
}

func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
