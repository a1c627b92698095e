package workbook

import (
	"fmt"
	"strings"
)

// RenderMarkdown writes the table as a GitHub-style markdown grid, capped
// at maxRows data rows (0 means all). Truncation is noted so the agent
// knows it saw a slice, not the whole table.
func (t *Table) RenderMarkdown(maxRows int) string {
	if t.Empty() {
		return "_(empty sheet)_"
	}

	var b strings.Builder
	b.WriteString("|")
	for _, col := range t.Columns {
		b.WriteString(" ")
		b.WriteString(col.Name)
		b.WriteString(" |")
	}
	b.WriteString("\n|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	shown := len(t.Rows)
	if maxRows > 0 && shown > maxRows {
		shown = maxRows
	}
	for _, row := range t.Rows[:shown] {
		b.WriteString("|")
		for _, v := range row {
			b.WriteString(" ")
			b.WriteString(v.Render())
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}
	if shown < len(t.Rows) {
		fmt.Fprintf(&b, "\n_(showing %d of %d rows)_\n", shown, len(t.Rows))
	}
	return b.String()
}

// PreviewMarkdown renders the head of every sheet, the overview handed to
// the model as grounding before the conversation starts.
func (wb *Workbook) PreviewMarkdown(rowsPerSheet int) string {
	var b strings.Builder
	for i, t := range wb.tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### Sheet: %s\n\n", t.Name)
		b.WriteString(t.RenderMarkdown(rowsPerSheet))
	}
	return b.String()
}
