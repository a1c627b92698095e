package workbook

import (
	"log/slog"

	"sheetagent/internal/normalize"
)

// RawSheet is the parser-neutral form of one sheet: a name and rows of raw
// cell strings, the first row being the header row. Binary spreadsheet
// parsing happens upstream (internal/xlsxio); the store only ever sees this.
type RawSheet struct {
	Name string
	Rows [][]string
}

// Workbook is the per-session sheet store. Built once from an upload,
// read-only afterwards; sessions never share one.
type Workbook struct {
	tables []*Table
	byName map[string]*Table
}

// Load builds every sheet into a typed table, normalizing headers and
// recording header collisions. It never fails: unreadable sheets arrive
// here as empty RawSheets and load as empty tables.
func Load(sheets []RawSheet, n *normalize.Normalizer, logger *slog.Logger) *Workbook {
	if n == nil {
		n = normalize.NewNormalizer()
	}
	wb := &Workbook{byName: make(map[string]*Table, len(sheets))}
	for _, sheet := range sheets {
		table := buildTable(sheet, n, logger)
		wb.tables = append(wb.tables, table)
		wb.byName[sheet.Name] = table
	}
	return wb
}

func buildTable(sheet RawSheet, n *normalize.Normalizer, logger *slog.Logger) *Table {
	if len(sheet.Rows) == 0 {
		return NewTable(sheet.Name, nil, nil)
	}

	header := sheet.Rows[0]
	columns := make([]Column, 0, len(header))
	position := make(map[string]int, len(header))
	var collisions []Collision
	for _, raw := range header {
		canonical := n.Normalize(raw)
		if canonical == "" {
			canonical = "unnamed"
		}
		if prev, exists := position[canonical]; exists {
			// Last write wins, matching the source data's habit of the
			// same field appearing under two spellings. Record and log it
			// so the column is not silently lost.
			collisions = append(collisions, Collision{
				Canonical: canonical,
				Dropped:   columns[prev].Raw,
				Kept:      raw,
			})
			if logger != nil {
				logger.Warn("workbook.header_collision",
					"sheet", sheet.Name,
					"canonical", canonical,
					"dropped", columns[prev].Raw,
					"kept", raw,
				)
			}
			columns[prev] = Column{Name: canonical, Raw: raw}
			continue
		}
		position[canonical] = len(columns)
		columns = append(columns, Column{Name: canonical, Raw: raw})
	}

	// Collapse duplicate header cells: the winning raw header's cell index
	// is the one whose values fill the column.
	source := make([]int, len(columns))
	for cellIdx, raw := range header {
		canonical := n.Normalize(raw)
		if canonical == "" {
			canonical = "unnamed"
		}
		if colIdx, ok := position[canonical]; ok && columns[colIdx].Raw == raw {
			source[colIdx] = cellIdx
		}
	}

	rows := make([][]Value, 0, len(sheet.Rows)-1)
	kindCounts := make([]map[Kind]int, len(columns))
	for i := range kindCounts {
		kindCounts[i] = make(map[Kind]int)
	}
	for _, rawRow := range sheet.Rows[1:] {
		row := make([]Value, len(columns))
		for colIdx := range columns {
			cellIdx := source[colIdx]
			if cellIdx < len(rawRow) {
				row[colIdx] = ParseValue(rawRow[cellIdx])
			} else {
				row[colIdx] = Value{Kind: KindEmpty}
			}
			if row[colIdx].Kind != KindEmpty {
				kindCounts[colIdx][row[colIdx].Kind]++
			}
		}
		rows = append(rows, row)
	}

	for i := range columns {
		columns[i].Type = dominantKind(kindCounts[i])
	}

	table := NewTable(sheet.Name, columns, rows)
	table.Collisions = collisions
	return table
}

// dominantKind picks the most frequent non-empty kind; mixed columns with
// no clear majority read as string.
func dominantKind(counts map[Kind]int) Kind {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return KindEmpty
	}
	best, bestCount := KindString, 0
	for _, kind := range []Kind{KindNumber, KindTime, KindBool, KindString} {
		if counts[kind] > bestCount {
			best, bestCount = kind, counts[kind]
		}
	}
	if bestCount*2 < total {
		return KindString
	}
	return best
}
