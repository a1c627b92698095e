package workbook

import (
	"errors"
	"testing"

	"sheetagent/internal/logging"
	"sheetagent/internal/normalize"
)

func testWorkbook(t *testing.T) *Workbook {
	t.Helper()
	sheets := []RawSheet{
		{
			Name: "Sales",
			Rows: [][]string{
				{"Order Date", "Region", "Product", "Revenue", "Qty", "Unit Price"},
				{"2024-01-05", "North", "Widget", "100", "2", "50"},
				{"2024-01-06", "South", "Gadget", "200", "4", "50"},
				{"2024-01-07", "North", "Gadget", "300", "3", "100"},
				{"2024-01-08", "East", "Widget", "400", "8", "50"},
			},
		},
		{
			Name: "Customers",
			Rows: [][]string{
				{"cust_id", "Name", "Region"},
				{"C-1", "Acme Corp", "North"},
				{"C-2", "Globex", "South"},
			},
		},
		{Name: "Empty Sheet", Rows: nil},
	}
	return Load(sheets, normalize.NewNormalizer(), logging.Nop())
}

func TestListSheetsPreservesOrder(t *testing.T) {
	wb := testWorkbook(t)
	got := wb.ListSheets()
	want := []string{"Sales", "Customers", "Empty Sheet"}
	if len(got) != len(want) {
		t.Fatalf("ListSheets() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ListSheets()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSchemaNormalizesHeaders(t *testing.T) {
	wb := testWorkbook(t)
	schema, err := wb.Schema("Sales")
	if err != nil {
		t.Fatalf("Schema(Sales): %v", err)
	}
	if schema.Empty {
		t.Fatalf("Sales should not be marked empty")
	}
	if schema.RowCount != 4 {
		t.Fatalf("RowCount = %d, want 4", schema.RowCount)
	}
	wantNames := []string{"order_date", "region", "product", "revenue", "quantity", "unit_price"}
	if len(schema.Columns) != len(wantNames) {
		t.Fatalf("got %d columns, want %d", len(schema.Columns), len(wantNames))
	}
	for i, want := range wantNames {
		if schema.Columns[i].Name != want {
			t.Fatalf("column %d = %q, want %q", i, schema.Columns[i].Name, want)
		}
	}
	if schema.Columns[4].Raw != "Qty" {
		t.Fatalf("raw header lost: got %q", schema.Columns[4].Raw)
	}
	if schema.Columns[3].Type != "number" {
		t.Fatalf("revenue inferred as %q, want number", schema.Columns[3].Type)
	}
	if schema.Columns[0].Type != "date" {
		t.Fatalf("order_date inferred as %q, want date", schema.Columns[0].Type)
	}
}

func TestSchemaEmptySheetIsMarkedNotMissing(t *testing.T) {
	wb := testWorkbook(t)
	schema, err := wb.Schema("Empty Sheet")
	if err != nil {
		t.Fatalf("empty sheet should not be an error: %v", err)
	}
	if !schema.Empty {
		t.Fatalf("empty sheet should carry the empty marker")
	}
	if len(schema.Columns) != 0 {
		t.Fatalf("empty sheet should have no columns, got %d", len(schema.Columns))
	}
}

func TestSchemaMissingSheet(t *testing.T) {
	wb := testWorkbook(t)
	_, err := wb.Schema("Inventory")
	if !errors.Is(err, ErrSheetNotFound) {
		t.Fatalf("expected ErrSheetNotFound, got %v", err)
	}
}

func TestLoadRecordsHeaderCollisions(t *testing.T) {
	sheets := []RawSheet{
		{
			Name: "Sales",
			Rows: [][]string{
				{"Revenue", "sale_amount", "Region"},
				{"100", "110", "North"},
				{"200", "220", "South"},
			},
		},
	}
	wb := Load(sheets, normalize.NewNormalizer(), logging.Nop())
	table, err := wb.Table("Sales")
	if err != nil {
		t.Fatalf("Table(Sales): %v", err)
	}
	if len(table.Columns) != 2 {
		t.Fatalf("colliding headers should collapse: got %d columns", len(table.Columns))
	}
	if len(table.Collisions) != 1 {
		t.Fatalf("expected one recorded collision, got %d", len(table.Collisions))
	}
	c := table.Collisions[0]
	if c.Canonical != "revenue" || c.Dropped != "Revenue" || c.Kept != "sale_amount" {
		t.Fatalf("collision = %+v", c)
	}
	// Later header's data wins.
	idx, ok := table.ColumnIndex("revenue")
	if !ok {
		t.Fatalf("revenue column missing after collapse")
	}
	if table.Rows[0][idx].Num != 110 {
		t.Fatalf("kept wrong column data: got %v", table.Rows[0][idx].Num)
	}
}

func TestLoadNeverFailsOnRaggedRows(t *testing.T) {
	sheets := []RawSheet{
		{
			Name: "Ragged",
			Rows: [][]string{
				{"A", "B", "C"},
				{"1"},
				{"2", "3", "4", "5"},
			},
		},
	}
	wb := Load(sheets, normalize.NewNormalizer(), logging.Nop())
	table, err := wb.Table("Ragged")
	if err != nil {
		t.Fatalf("Table(Ragged): %v", err)
	}
	if table.RowCount() != 2 {
		t.Fatalf("RowCount = %d, want 2", table.RowCount())
	}
	if table.Rows[0][2].Kind != KindEmpty {
		t.Fatalf("short row should pad with empty cells")
	}
}
