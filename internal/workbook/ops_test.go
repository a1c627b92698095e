package workbook

import (
	"fmt"
	"strings"
	"testing"

	"sheetagent/internal/logging"
	"sheetagent/internal/normalize"
)

func num(f float64) Value { return Value{Kind: KindNumber, Num: f} }
func str(s string) Value  { return Value{Kind: KindString, Str: s} }

func salesTable(t *testing.T) *Table {
	t.Helper()
	table, err := testWorkbook(t).Table("Sales")
	if err != nil {
		t.Fatalf("Table(Sales): %v", err)
	}
	return table
}

func TestFilterEquals(t *testing.T) {
	res := Filter(salesTable(t), "region", OpEq, []Value{str("North")})
	if !res.OK {
		t.Fatalf("filter failed: %s", res.Message)
	}
	if res.Table.RowCount() != 2 {
		t.Fatalf("got %d rows, want 2", res.Table.RowCount())
	}
}

func TestFilterComparison(t *testing.T) {
	res := Filter(salesTable(t), "revenue", OpGt, []Value{num(150)})
	if !res.OK {
		t.Fatalf("filter failed: %s", res.Message)
	}
	if res.Table.RowCount() != 3 {
		t.Fatalf("revenue > 150: got %d rows, want 3", res.Table.RowCount())
	}
	res = Filter(salesTable(t), "revenue", OpLe, []Value{num(200)})
	if !res.OK || res.Table.RowCount() != 2 {
		t.Fatalf("revenue <= 200: got %d rows, want 2", res.Table.RowCount())
	}
}

func TestFilterInAndNotIn(t *testing.T) {
	operand := []Value{str("North"), str("East")}
	res := Filter(salesTable(t), "region", OpIn, operand)
	if !res.OK || res.Table.RowCount() != 3 {
		t.Fatalf("in: got %d rows, want 3", res.Table.RowCount())
	}
	res = Filter(salesTable(t), "region", OpNotIn, operand)
	if !res.OK || res.Table.RowCount() != 1 {
		t.Fatalf("not_in: got %d rows, want 1", res.Table.RowCount())
	}
}

func TestFilterPreservesRowOrder(t *testing.T) {
	rows := [][]string{{"id", "parity"}}
	for i := 0; i < 5000; i++ {
		parity := "odd"
		if i%10 == 0 {
			parity = "keep"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", i), parity})
	}
	wb := Load([]RawSheet{{Name: "Big", Rows: rows}}, normalize.NewNormalizer(), logging.Nop())
	table, _ := wb.Table("Big")

	res := Filter(table, "parity", OpEq, []Value{str("keep")})
	if !res.OK {
		t.Fatalf("filter failed: %s", res.Message)
	}
	if res.Table.RowCount() != 500 {
		t.Fatalf("got %d rows, want 500", res.Table.RowCount())
	}
	idIdx, _ := res.Table.ColumnIndex("id")
	prev := -1.0
	for _, row := range res.Table.Rows {
		if row[idIdx].Num <= prev {
			t.Fatalf("row order not preserved: %v after %v", row[idIdx].Num, prev)
		}
		prev = row[idIdx].Num
	}
}

func TestFilterUnknownColumnFailsClosed(t *testing.T) {
	res := Filter(salesTable(t), "profit", OpEq, []Value{num(1)})
	if res.OK {
		t.Fatalf("unknown column should fail")
	}
	if res.Table != nil {
		t.Fatalf("failed filter should not return a table")
	}
	if !strings.Contains(res.Message, "profit") || !strings.Contains(res.Message, "revenue") {
		t.Fatalf("message should name the bad column and list real ones: %q", res.Message)
	}
}

func TestFilterUnknownOperatorFailsClosed(t *testing.T) {
	res := Filter(salesTable(t), "revenue", "between", []Value{num(1)})
	if res.OK {
		t.Fatalf("unknown operator should fail")
	}
	if !strings.Contains(res.Message, "between") {
		t.Fatalf("message should name the bad operator: %q", res.Message)
	}
}

func TestFilterUnorderableComparisonFailsClosed(t *testing.T) {
	res := Filter(salesTable(t), "region", OpGt, []Value{num(5)})
	if res.OK {
		t.Fatalf("string > number should fail, not silently drop rows")
	}
}

func TestAggregateSum(t *testing.T) {
	res := Aggregate(salesTable(t), []string{"region"}, "revenue", FnSum)
	if !res.OK {
		t.Fatalf("aggregate failed: %s", res.Message)
	}
	want := map[string]float64{"North": 400, "South": 200, "East": 400}
	if res.Table.RowCount() != len(want) {
		t.Fatalf("got %d groups, want %d", res.Table.RowCount(), len(want))
	}
	// First-encountered order.
	wantOrder := []string{"North", "South", "East"}
	valIdx, ok := res.Table.ColumnIndex("sum_revenue")
	if !ok {
		t.Fatalf("result column sum_revenue missing, have %v", res.Table.ColumnNames())
	}
	for i, row := range res.Table.Rows {
		region := row[0].Render()
		if region != wantOrder[i] {
			t.Fatalf("group %d = %q, want %q", i, region, wantOrder[i])
		}
		if row[valIdx].Num != want[region] {
			t.Fatalf("sum for %s = %v, want %v", region, row[valIdx].Num, want[region])
		}
	}
}

func TestAggregateSingletonGroupsIsIdentity(t *testing.T) {
	rows := [][]string{{"Order ID", "Revenue"}}
	revenues := []float64{100, 250, 37.5, 400}
	for i, rev := range revenues {
		rows = append(rows, []string{fmt.Sprintf("ord-%d", i+1), fmt.Sprintf("%g", rev)})
	}
	wb := Load([]RawSheet{{Name: "Orders", Rows: rows}}, normalize.NewNormalizer(), logging.Nop())
	table, _ := wb.Table("Orders")

	res := Aggregate(table, []string{"order_id"}, "revenue", FnSum)
	if !res.OK {
		t.Fatalf("aggregate failed: %s", res.Message)
	}
	// Every group has exactly one row, so summing changes nothing: same
	// row count, same per-row values, same order.
	if res.Table.RowCount() != len(revenues) {
		t.Fatalf("got %d rows, want %d", res.Table.RowCount(), len(revenues))
	}
	valIdx, ok := res.Table.ColumnIndex("sum_revenue")
	if !ok {
		t.Fatalf("result column sum_revenue missing, have %v", res.Table.ColumnNames())
	}
	for i, row := range res.Table.Rows {
		wantID := fmt.Sprintf("ord-%d", i+1)
		if got := row[0].Render(); got != wantID {
			t.Fatalf("row %d group = %q, want %q", i, got, wantID)
		}
		if row[valIdx].Num != revenues[i] {
			t.Fatalf("row %d sum = %v, want %v", i, row[valIdx].Num, revenues[i])
		}
	}
}

func TestAggregateMeanAndCount(t *testing.T) {
	res := Aggregate(salesTable(t), []string{"product"}, "quantity", FnMean)
	if !res.OK {
		t.Fatalf("aggregate failed: %s", res.Message)
	}
	valIdx, _ := res.Table.ColumnIndex("mean_quantity")
	means := map[string]float64{}
	for _, row := range res.Table.Rows {
		means[row[0].Render()] = row[valIdx].Num
	}
	if means["Widget"] != 5 || means["Gadget"] != 3.5 {
		t.Fatalf("means = %v", means)
	}

	res = Aggregate(salesTable(t), []string{"region"}, "product", FnCount)
	if !res.OK {
		t.Fatalf("count failed: %s", res.Message)
	}
	valIdx, _ = res.Table.ColumnIndex("count_product")
	for _, row := range res.Table.Rows {
		if row[0].Render() == "North" && row[valIdx].Num != 2 {
			t.Fatalf("North count = %v, want 2", row[valIdx].Num)
		}
	}
}

func TestAggregateCountSkipsEmptyCells(t *testing.T) {
	rows := [][]string{
		{"Region", "Note"},
		{"North", "a"},
		{"North", ""},
		{"North", "b"},
	}
	wb := Load([]RawSheet{{Name: "S", Rows: rows}}, normalize.NewNormalizer(), logging.Nop())
	table, _ := wb.Table("S")
	res := Aggregate(table, []string{"region"}, "note", FnCount)
	if !res.OK {
		t.Fatalf("count failed: %s", res.Message)
	}
	valIdx, _ := res.Table.ColumnIndex("count_note")
	if got := res.Table.Rows[0][valIdx].Num; got != 2 {
		t.Fatalf("count = %v, want 2 (empty cells excluded)", got)
	}
}

func TestAggregateMinMax(t *testing.T) {
	res := Aggregate(salesTable(t), nil, "revenue", FnMax)
	if !res.OK {
		t.Fatalf("max failed: %s", res.Message)
	}
	if res.Table.RowCount() != 1 {
		t.Fatalf("ungrouped aggregate should yield one row, got %d", res.Table.RowCount())
	}
	if got := res.Table.Rows[0][0].Num; got != 400 {
		t.Fatalf("max revenue = %v, want 400", got)
	}
	res = Aggregate(salesTable(t), nil, "revenue", FnMin)
	if got := res.Table.Rows[0][0].Num; got != 100 {
		t.Fatalf("min revenue = %v, want 100", got)
	}
}

func TestAggregateNonNumericSumFailsClosed(t *testing.T) {
	res := Aggregate(salesTable(t), []string{"region"}, "product", FnSum)
	if res.OK {
		t.Fatalf("summing a string column should fail")
	}
	if !strings.Contains(res.Message, "numeric") {
		t.Fatalf("message should explain the type problem: %q", res.Message)
	}
}

func TestPivotSum(t *testing.T) {
	res := Pivot(salesTable(t), "region", "revenue", FnSum, "product", 0)
	if !res.OK {
		t.Fatalf("pivot failed: %s", res.Message)
	}
	table := res.Table
	wantCols := []string{"region", "Widget", "Gadget"}
	got := table.ColumnNames()
	if len(got) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", got, wantCols)
	}
	for i := range wantCols {
		if got[i] != wantCols[i] {
			t.Fatalf("column %d = %q, want %q", i, got[i], wantCols[i])
		}
	}
	cell := func(region, product string) float64 {
		colIdx, ok := table.ColumnIndex(product)
		if !ok {
			t.Fatalf("missing pivot column %q", product)
		}
		for _, row := range table.Rows {
			if row[0].Render() == region {
				return row[colIdx].Num
			}
		}
		t.Fatalf("missing pivot row %q", region)
		return 0
	}
	if cell("North", "Widget") != 100 || cell("North", "Gadget") != 300 {
		t.Fatalf("North cells wrong")
	}
	if cell("South", "Widget") != 0 {
		t.Fatalf("missing combination should take the fill value")
	}
	if cell("East", "Widget") != 400 || cell("East", "Gadget") != 0 {
		t.Fatalf("East cells wrong")
	}
}

func TestPivotWithoutColumnsDegeneratesToAggregate(t *testing.T) {
	res := Pivot(salesTable(t), "region", "revenue", FnSum, "", 0)
	if !res.OK {
		t.Fatalf("pivot failed: %s", res.Message)
	}
	if res.Table.RowCount() != 3 {
		t.Fatalf("got %d rows, want 3", res.Table.RowCount())
	}
}

func TestPivotFlattenRoundTrip(t *testing.T) {
	pivoted := Pivot(salesTable(t), "region", "revenue", FnSum, "product", 0)
	if !pivoted.OK {
		t.Fatalf("pivot failed: %s", pivoted.Message)
	}
	flat := Flatten(pivoted.Table, "region", "product", "revenue")
	if !flat.OK {
		t.Fatalf("flatten failed: %s", flat.Message)
	}
	if flat.Table.RowCount() != 6 {
		t.Fatalf("3 regions x 2 products should flatten to 6 rows, got %d", flat.Table.RowCount())
	}
	// Every original (region, product) total must survive the round trip.
	want := map[string]float64{
		"North|Widget": 100, "North|Gadget": 300,
		"South|Widget": 0, "South|Gadget": 200,
		"East|Widget": 400, "East|Gadget": 0,
	}
	for _, row := range flat.Table.Rows {
		key := row[0].Render() + "|" + row[1].Render()
		if row[2].Num != want[key] {
			t.Fatalf("%s = %v, want %v", key, row[2].Num, want[key])
		}
		delete(want, key)
	}
	if len(want) != 0 {
		t.Fatalf("missing combinations after flatten: %v", want)
	}
}

func TestPivotUnknownColumnFailsClosed(t *testing.T) {
	res := Pivot(salesTable(t), "territory", "revenue", FnSum, "product", 0)
	if res.OK {
		t.Fatalf("unknown index column should fail")
	}
	if !strings.Contains(res.Message, "territory") {
		t.Fatalf("message should name the bad column: %q", res.Message)
	}
}
