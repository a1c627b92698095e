// Package xlsxio reads .xlsx workbooks into the parser-neutral RawSheet
// form the sheet store consumes. Sheet-level read failures degrade to
// empty sheets; only an unreadable file is an error.
package xlsxio

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"sheetagent/internal/workbook"
)

// ReadFile loads every sheet of the workbook at path.
func ReadFile(path string, logger *slog.Logger) ([]workbook.RawSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %q: %w", path, err)
	}
	defer f.Close()
	return readSheets(f, logger), nil
}

// Read loads every sheet of a workbook from an open reader, e.g. an
// uploaded multipart file.
func Read(r io.Reader, logger *slog.Logger) ([]workbook.RawSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return readSheets(f, logger), nil
}

func readSheets(f *excelize.File, logger *slog.Logger) []workbook.RawSheet {
	sheetList := f.GetSheetList()
	sheets := make([]workbook.RawSheet, 0, len(sheetList))
	for _, name := range sheetList {
		rows, err := f.GetRows(name)
		if err != nil {
			// A broken sheet loads as empty so the rest of the workbook
			// stays usable.
			if logger != nil {
				logger.Warn("xlsxio.sheet_unreadable", "sheet", name, "error", err.Error())
			}
			rows = nil
		}
		sheets = append(sheets, workbook.RawSheet{Name: name, Rows: rows})
	}
	return sheets
}
