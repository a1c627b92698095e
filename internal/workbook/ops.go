package workbook

import (
	"fmt"
	"strings"
)

// Filter operators. "in" and "not_in" take a list operand; the rest take
// a single value.
const (
	OpEq    = "eq"
	OpNe    = "ne"
	OpGt    = "gt"
	OpLt    = "lt"
	OpGe    = "ge"
	OpLe    = "le"
	OpIn    = "in"
	OpNotIn = "not_in"
)

// Aggregation functions.
const (
	FnSum   = "sum"
	FnMean  = "mean"
	FnCount = "count"
	FnMin   = "min"
	FnMax   = "max"
)

// OpResult is the outcome of a tabular operation. Operations fail closed:
// a bad column, operator, or type mismatch yields OK=false with a message
// the agent can act on, never a partial table.
type OpResult struct {
	Table   *Table
	OK      bool
	Message string
}

func opFailure(format string, args ...any) OpResult {
	return OpResult{Message: fmt.Sprintf(format, args...)}
}

// Filter returns the rows of t whose column satisfies op against the
// operand values. Row order is preserved; the input table is untouched.
func Filter(t *Table, column, op string, operand []Value) OpResult {
	colIdx, ok := t.ColumnIndex(column)
	if !ok {
		return opFailure("column %q not found in sheet %q (columns: %s)",
			column, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGe, OpLe:
		if len(operand) != 1 {
			return opFailure("operator %q takes exactly one value, got %d", op, len(operand))
		}
	case OpIn, OpNotIn:
		if len(operand) == 0 {
			return opFailure("operator %q takes a non-empty list of values", op)
		}
	default:
		return opFailure("unknown operator %q (use eq, ne, gt, lt, ge, le, in, not_in)", op)
	}

	var kept [][]Value
	for rowIdx, row := range t.Rows {
		match, err := matches(row[colIdx], op, operand)
		if err != nil {
			return opFailure("row %d, column %q: %v", rowIdx+1, column, err)
		}
		if match {
			kept = append(kept, row)
		}
	}
	return OpResult{
		Table: NewTable(t.Name, t.Columns, kept),
		OK:    true,
	}
}

func matches(cell Value, op string, operand []Value) (bool, error) {
	switch op {
	case OpEq:
		return cell.Equals(operand[0]), nil
	case OpNe:
		return !cell.Equals(operand[0]), nil
	case OpIn, OpNotIn:
		found := false
		for _, v := range operand {
			if cell.Equals(v) {
				found = true
				break
			}
		}
		if op == OpIn {
			return found, nil
		}
		return !found, nil
	default:
		cmp, ok := cell.Compare(operand[0])
		if !ok {
			return false, fmt.Errorf("cannot order %s value against %s value",
				cell.Kind, operand[0].Kind)
		}
		switch op {
		case OpGt:
			return cmp > 0, nil
		case OpLt:
			return cmp < 0, nil
		case OpGe:
			return cmp >= 0, nil
		case OpLe:
			return cmp <= 0, nil
		}
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

// accumulator folds one group's values for a single aggregation function.
type accumulator struct {
	fn    string
	count int
	sum   float64
	min   Value
	max   Value
}

func (a *accumulator) add(v Value) error {
	if v.Kind == KindEmpty {
		return nil
	}
	a.count++
	switch a.fn {
	case FnCount:
		return nil
	case FnSum, FnMean:
		n, ok := v.asNumber()
		if !ok {
			return fmt.Errorf("%s needs numeric values, got %s %q", a.fn, v.Kind, v.Render())
		}
		a.sum += n
		return nil
	case FnMin, FnMax:
		if a.count == 1 {
			a.min, a.max = v, v
			return nil
		}
		if cmp, ok := v.Compare(a.min); ok && cmp < 0 {
			a.min = v
		} else if !ok {
			return fmt.Errorf("%s over mixed kinds %s and %s", a.fn, v.Kind, a.min.Kind)
		}
		if cmp, ok := v.Compare(a.max); ok && cmp > 0 {
			a.max = v
		}
		return nil
	default:
		return fmt.Errorf("unknown aggregation %q (use sum, mean, count, min, max)", a.fn)
	}
}

func (a *accumulator) result() Value {
	switch a.fn {
	case FnCount:
		return Value{Kind: KindNumber, Num: float64(a.count)}
	case FnSum:
		return Value{Kind: KindNumber, Num: a.sum}
	case FnMean:
		if a.count == 0 {
			return Value{Kind: KindEmpty}
		}
		return Value{Kind: KindNumber, Num: a.sum / float64(a.count)}
	case FnMin:
		if a.count == 0 {
			return Value{Kind: KindEmpty}
		}
		return a.min
	case FnMax:
		if a.count == 0 {
			return Value{Kind: KindEmpty}
		}
		return a.max
	default:
		return Value{Kind: KindEmpty}
	}
}

// Aggregate groups t by the groupBy columns and folds valueColumn with fn.
// Groups appear in first-encountered row order. Count counts non-empty
// cells, matching how spreadsheet users read "how many".
func Aggregate(t *Table, groupBy []string, valueColumn, fn string) OpResult {
	valIdx, ok := t.ColumnIndex(valueColumn)
	if !ok {
		return opFailure("column %q not found in sheet %q (columns: %s)",
			valueColumn, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	groupIdx := make([]int, len(groupBy))
	for i, name := range groupBy {
		idx, ok := t.ColumnIndex(name)
		if !ok {
			return opFailure("group column %q not found in sheet %q (columns: %s)",
				name, t.Name, strings.Join(t.ColumnNames(), ", "))
		}
		groupIdx[i] = idx
	}
	switch fn {
	case FnSum, FnMean, FnCount, FnMin, FnMax:
	default:
		return opFailure("unknown aggregation %q (use sum, mean, count, min, max)", fn)
	}

	type group struct {
		key  []Value
		accu *accumulator
	}
	var order []*group
	seen := make(map[string]*group)
	for rowIdx, row := range t.Rows {
		keyParts := make([]string, len(groupIdx))
		key := make([]Value, len(groupIdx))
		for i, idx := range groupIdx {
			key[i] = row[idx]
			keyParts[i] = row[idx].Render()
		}
		mapKey := strings.Join(keyParts, "\x00")
		g, exists := seen[mapKey]
		if !exists {
			g = &group{key: key, accu: &accumulator{fn: fn}}
			seen[mapKey] = g
			order = append(order, g)
		}
		if err := g.accu.add(row[valIdx]); err != nil {
			return opFailure("row %d, column %q: %v", rowIdx+1, valueColumn, err)
		}
	}

	columns := make([]Column, 0, len(groupBy)+1)
	for i, name := range groupBy {
		columns = append(columns, Column{Name: name, Raw: name, Type: t.Columns[groupIdx[i]].Type})
	}
	resultName := fmt.Sprintf("%s_%s", fn, valueColumn)
	columns = append(columns, Column{Name: resultName, Raw: resultName, Type: KindNumber})

	rows := make([][]Value, 0, len(order))
	for _, g := range order {
		row := make([]Value, 0, len(g.key)+1)
		row = append(row, g.key...)
		row = append(row, g.accu.result())
		rows = append(rows, row)
	}
	return OpResult{Table: NewTable(t.Name, columns, rows), OK: true}
}

// Pivot builds a cross-tabulation: one row per distinct index value, one
// column per distinct value of pivotColumn, each cell the fn-fold of
// valueColumn over the matching rows. Missing cells take fill. Pivoted
// column names are the verbatim rendered cell values, so a later Flatten
// reconstructs the original pairs.
func Pivot(t *Table, index, valueColumn, fn, pivotColumn string, fill float64) OpResult {
	idxCol, ok := t.ColumnIndex(index)
	if !ok {
		return opFailure("index column %q not found in sheet %q (columns: %s)",
			index, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	valIdx, ok := t.ColumnIndex(valueColumn)
	if !ok {
		return opFailure("value column %q not found in sheet %q (columns: %s)",
			valueColumn, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	if pivotColumn == "" {
		return Aggregate(t, []string{index}, valueColumn, fn)
	}
	pivIdx, ok := t.ColumnIndex(pivotColumn)
	if !ok {
		return opFailure("pivot column %q not found in sheet %q (columns: %s)",
			pivotColumn, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	switch fn {
	case FnSum, FnMean, FnCount, FnMin, FnMax:
	default:
		return opFailure("unknown aggregation %q (use sum, mean, count, min, max)", fn)
	}

	var rowOrder []string
	rowKey := make(map[string]Value)
	var colOrder []string
	colSeen := make(map[string]bool)
	cells := make(map[string]*accumulator)

	for rowIdx, row := range t.Rows {
		rk := row[idxCol].Render()
		if _, exists := rowKey[rk]; !exists {
			rowKey[rk] = row[idxCol]
			rowOrder = append(rowOrder, rk)
		}
		ck := row[pivIdx].Render()
		if !colSeen[ck] {
			colSeen[ck] = true
			colOrder = append(colOrder, ck)
		}
		cellKey := rk + "\x00" + ck
		accu, exists := cells[cellKey]
		if !exists {
			accu = &accumulator{fn: fn}
			cells[cellKey] = accu
		}
		if err := accu.add(row[valIdx]); err != nil {
			return opFailure("row %d, column %q: %v", rowIdx+1, valueColumn, err)
		}
	}

	columns := make([]Column, 0, len(colOrder)+1)
	columns = append(columns, Column{Name: index, Raw: index, Type: t.Columns[idxCol].Type})
	for _, name := range colOrder {
		columns = append(columns, Column{Name: name, Raw: name, Type: KindNumber})
	}

	rows := make([][]Value, 0, len(rowOrder))
	for _, rk := range rowOrder {
		row := make([]Value, 0, len(columns))
		row = append(row, rowKey[rk])
		for _, ck := range colOrder {
			if accu, exists := cells[rk+"\x00"+ck]; exists {
				row = append(row, accu.result())
			} else {
				row = append(row, Value{Kind: KindNumber, Num: fill})
			}
		}
		rows = append(rows, row)
	}
	return OpResult{Table: NewTable(t.Name, columns, rows), OK: true}
}

// Flatten un-pivots a wide table back to long form: every non-index column
// becomes a (index, variable, value) row.
func Flatten(t *Table, index, variableName, valueName string) OpResult {
	idxCol, ok := t.ColumnIndex(index)
	if !ok {
		return opFailure("index column %q not found in sheet %q (columns: %s)",
			index, t.Name, strings.Join(t.ColumnNames(), ", "))
	}
	if variableName == "" {
		variableName = "variable"
	}
	if valueName == "" {
		valueName = "value"
	}

	columns := []Column{
		{Name: index, Raw: index, Type: t.Columns[idxCol].Type},
		{Name: variableName, Raw: variableName, Type: KindString},
		{Name: valueName, Raw: valueName, Type: KindString},
	}
	var rows [][]Value
	for _, row := range t.Rows {
		for colIdx, col := range t.Columns {
			if colIdx == idxCol {
				continue
			}
			rows = append(rows, []Value{
				row[idxCol],
				{Kind: KindString, Str: col.Name},
				row[colIdx],
			})
		}
	}
	return OpResult{Table: NewTable(t.Name, columns, rows), OK: true}
}
