package workbook

import (
	"errors"
	"fmt"
)

// ErrSheetNotFound is returned when a referenced sheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

// ColumnSchema describes one column for schema display.
type ColumnSchema struct {
	Name string `json:"name"`
	Raw  string `json:"raw_header"`
	Type string `json:"type"`
}

// Schema describes a sheet. Empty distinguishes "sheet exists but has no
// data" from a missing sheet, which is an error.
type Schema struct {
	Sheet      string         `json:"sheet"`
	Empty      bool           `json:"empty"`
	RowCount   int            `json:"row_count"`
	Columns    []ColumnSchema `json:"columns,omitempty"`
	Collisions []Collision    `json:"-"`
}

// ListSheets returns sheet names in workbook order. Never fails; an empty
// workbook yields an empty slice.
func (wb *Workbook) ListSheets() []string {
	names := make([]string, 0, len(wb.tables))
	for _, t := range wb.tables {
		names = append(names, t.Name)
	}
	return names
}

// Table looks a sheet up by name.
func (wb *Workbook) Table(name string) (*Table, error) {
	t, ok := wb.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return t, nil
}

// Schema returns the column layout of a sheet. A missing sheet is an
// error; an empty sheet is a valid schema with Empty set.
func (wb *Workbook) Schema(name string) (Schema, error) {
	t, err := wb.Table(name)
	if err != nil {
		return Schema{}, err
	}
	schema := Schema{
		Sheet:      t.Name,
		RowCount:   t.RowCount(),
		Collisions: t.Collisions,
	}
	if t.Empty() {
		schema.Empty = true
		return schema, nil
	}
	schema.Columns = make([]ColumnSchema, 0, len(t.Columns))
	for _, col := range t.Columns {
		schema.Columns = append(schema.Columns, ColumnSchema{
			Name: col.Name,
			Raw:  col.Raw,
			Type: col.Type.String(),
		})
	}
	return schema, nil
}
