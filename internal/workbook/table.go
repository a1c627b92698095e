// Package workbook holds the in-memory sheet store: typed tables with
// normalized headers, fuzzy column resolution, and the tabular operations
// exposed to the analysis agent.
package workbook

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred scalar type of a cell or column.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
	KindBool
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindTime:
		return "date"
	default:
		return "empty"
	}
}

// Value is one typed cell.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01-02-2006",
	"01/02/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseValue infers the type of a raw cell string. Numbers win over dates
// so plain integers never parse as years.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Value{Kind: KindEmpty}
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Value{Kind: KindNumber, Num: f}
	}
	switch strings.ToLower(trimmed) {
	case "true":
		return Value{Kind: KindBool, Bool: true}
	case "false":
		return Value{Kind: KindBool, Bool: false}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return Value{Kind: KindTime, Time: ts}
		}
	}
	return Value{Kind: KindString, Str: trimmed}
}

// Render returns the display form of a value.
func (v Value) Render() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindTime:
		return v.Time.Format("2006-01-02")
	default:
		return ""
	}
}

// Equals compares two values, coercing numbers rendered as strings so a
// model-supplied "42" matches a numeric cell.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		a, okA := v.asNumber()
		b, okB := other.asNumber()
		if okA && okB {
			return a == b
		}
		return v.Render() == other.Render()
	}
	switch v.Kind {
	case KindString:
		return v.Str == other.Str
	case KindNumber:
		return v.Num == other.Num
	case KindBool:
		return v.Bool == other.Bool
	case KindTime:
		return v.Time.Equal(other.Time)
	default:
		return true
	}
}

func (v Value) asNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Compare orders two values of a comparable kind. ok is false when the pair
// has no meaningful ordering (e.g. boolean vs number), which callers treat
// as a failed operation, not a zero result.
func (v Value) Compare(other Value) (int, bool) {
	if a, okA := v.asNumber(); okA {
		if b, okB := other.asNumber(); okB {
			switch {
			case a < b:
				return -1, true
			case a > b:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if v.Kind == KindTime && other.Kind == KindTime {
		switch {
		case v.Time.Before(other.Time):
			return -1, true
		case v.Time.After(other.Time):
			return 1, true
		default:
			return 0, true
		}
	}
	if v.Kind == KindString && other.Kind == KindString {
		return strings.Compare(v.Str, other.Str), true
	}
	return 0, false
}

// Column describes one table column: the canonical name every operation
// uses, the raw header it came from, and the inferred type.
type Column struct {
	Name string
	Raw  string
	Type Kind
}

// Collision records two raw headers that normalized to the same canonical
// name during load. The later header's data wins; the earlier is dropped.
type Collision struct {
	Canonical string
	Dropped   string
	Kept      string
}

// Table is an ordered, immutable-after-load grid of typed values.
type Table struct {
	Name       string
	Columns    []Column
	Rows       [][]Value
	Collisions []Collision

	colIndex map[string]int
}

// NewTable builds a table and its column lookup index.
func NewTable(name string, columns []Column, rows [][]Value) *Table {
	t := &Table{Name: name, Columns: columns, Rows: rows}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.colIndex = make(map[string]int, len(t.Columns))
	for i, col := range t.Columns {
		t.colIndex[col.Name] = i
	}
}

// ColumnIndex returns the position of a canonical column name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	idx, ok := t.colIndex[name]
	return idx, ok
}

func (t *Table) RowCount() int {
	return len(t.Rows)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Empty reports whether the table has no columns and no rows.
func (t *Table) Empty() bool {
	return len(t.Columns) == 0 && len(t.Rows) == 0
}
