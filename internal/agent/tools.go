package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"sheetagent/internal/errinfo"
	"sheetagent/internal/llm"
	"sheetagent/internal/workbook"
)

// AnalystTools defines the tools available to the model during an analysis
// session.
var AnalystTools = []llm.Tool{
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "list_sheets",
			Description: "List all sheet names in the uploaded workbook, in workbook order. Use this first to see what data is available.",
			Parameters:  json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "get_sheet_schema",
			Description: "Get the columns of a sheet: canonical name, original header, and inferred type (string, number, boolean, date). Always use the canonical names in other tool calls.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name as returned by list_sheets"}
				},
				"required": ["sheet"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "resolve_column",
			Description: "Resolve a free-text column description (e.g. from the user's question) to a canonical column name in a sheet. Returns the match, or the closest guess when nothing is confident enough.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name"},
					"phrase": {"type": "string", "description": "The column as the user described it, e.g. 'unit price'"}
				},
				"required": ["sheet", "phrase"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "preview_sheet",
			Description: "Show the first rows of a sheet as a markdown table. Useful to inspect actual values before filtering.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name"},
					"rows": {"type": "integer", "description": "Number of rows to show (default 5)"}
				},
				"required": ["sheet"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "filter_rows",
			Description: "Filter a sheet's rows by one condition on a column. Operators: eq, ne, gt, lt, ge, le take a single value; in and not_in take a list. Returns the matching rows.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name"},
					"column": {"type": "string", "description": "Canonical column name"},
					"op": {"type": "string", "enum": ["eq", "ne", "gt", "lt", "ge", "le", "in", "not_in"]},
					"value": {"description": "Comparison value, or a list of values for in/not_in"}
				},
				"required": ["sheet", "column", "op", "value"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "aggregate_rows",
			Description: "Group a sheet by zero or more columns and aggregate one column. Functions: sum, mean, count, min, max. count counts non-empty cells.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name"},
					"group_by": {"type": "array", "items": {"type": "string"}, "description": "Canonical column names to group by; omit for a single overall result"},
					"column": {"type": "string", "description": "Canonical column to aggregate"},
					"fn": {"type": "string", "enum": ["sum", "mean", "count", "min", "max"]}
				},
				"required": ["sheet", "column", "fn"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "pivot_table",
			Description: "Build a pivot table: one row per distinct index value, one column per distinct value of the columns field, cells aggregated from the values column. Missing combinations take the fill value (default 0).",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"sheet": {"type": "string", "description": "Sheet name"},
					"index": {"type": "string", "description": "Canonical column for pivot rows"},
					"values": {"type": "string", "description": "Canonical column to aggregate into cells"},
					"fn": {"type": "string", "enum": ["sum", "mean", "count", "min", "max"]},
					"columns": {"type": "string", "description": "Canonical column whose distinct values become pivot columns; omit for a plain grouped aggregate"},
					"fill": {"type": "number", "description": "Value for missing combinations (default 0)"}
				},
				"required": ["sheet", "index", "values", "fn"]
			}`),
		},
	},
	{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        "flatten_table",
			Description: "Un-pivot the most recent pivot_table result back to long form: one (index, variable, value) row per cell. Use when the user wants the pivot as a flat list.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"index": {"type": "string", "description": "The index column of the pivot result"},
					"variable_name": {"type": "string", "description": "Name for the column holding former column names (default 'variable')"},
					"value_name": {"type": "string", "description": "Name for the column holding cell values (default 'value')"}
				},
				"required": ["index"]
			}`),
		},
	},
}

const maxToolResultRows = 50

// ToolHandler executes tool calls against one session's workbook.
type ToolHandler struct {
	wb               *workbook.Workbook
	resolveThreshold int
	previewRows      int

	// lastResult holds the most recent filter/aggregate/pivot output so
	// flatten_table can chain on it.
	lastResult *workbook.Table
}

// NewToolHandler creates a tool handler bound to a workbook.
func NewToolHandler(wb *workbook.Workbook, resolveThreshold, previewRows int) *ToolHandler {
	if previewRows <= 0 {
		previewRows = 5
	}
	return &ToolHandler{
		wb:               wb,
		resolveThreshold: resolveThreshold,
		previewRows:      previewRows,
	}
}

// Execute runs a tool call and returns the result as a string. Tool-level
// failures come back as descriptive strings, not errors, so the model can
// read them and correct itself; only malformed calls are errors.
func (h *ToolHandler) Execute(call llm.ToolCall) (string, error) {
	switch call.Function.Name {
	case "list_sheets":
		return h.listSheets()
	case "get_sheet_schema":
		return h.getSheetSchema(call.Function.Arguments)
	case "resolve_column":
		return h.resolveColumn(call.Function.Arguments)
	case "preview_sheet":
		return h.previewSheet(call.Function.Arguments)
	case "filter_rows":
		return h.filterRows(call.Function.Arguments)
	case "aggregate_rows":
		return h.aggregateRows(call.Function.Arguments)
	case "pivot_table":
		return h.pivotTable(call.Function.Arguments)
	case "flatten_table":
		return h.flattenTable(call.Function.Arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", call.Function.Name)
	}
}

func (h *ToolHandler) listSheets() (string, error) {
	names := h.wb.ListSheets()
	if len(names) == 0 {
		return "The workbook has no sheets.", nil
	}
	out, err := json.Marshal(map[string]any{"sheets": names})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *ToolHandler) getSheetSchema(argsJSON string) (string, error) {
	var args struct {
		Sheet string `json:"sheet"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	schema, err := h.wb.Schema(args.Sheet)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	out, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *ToolHandler) resolveColumn(argsJSON string) (string, error) {
	var args struct {
		Sheet  string `json:"sheet"`
		Phrase string `json:"phrase"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Phrase) == "" {
		return "phrase is required", nil
	}
	res, err := h.wb.ResolveColumn(args.Sheet, args.Phrase, h.resolveThreshold)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	if !res.Matched {
		// Errors-as-data: the model reads the code and best guess and
		// decides whether to retry with a different phrase.
		out, err := json.Marshal(errinfo.AmbiguousMatch(errinfo.PhaseQuery, args.Sheet, args.Phrase, res.BestGuess))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
	out, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (h *ToolHandler) previewSheet(argsJSON string) (string, error) {
	var args struct {
		Sheet string `json:"sheet"`
		Rows  int    `json:"rows"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	table, err := h.wb.Table(args.Sheet)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	rows := args.Rows
	if rows <= 0 {
		rows = h.previewRows
	}
	if rows > maxToolResultRows {
		rows = maxToolResultRows
	}
	return table.RenderMarkdown(rows), nil
}

func (h *ToolHandler) filterRows(argsJSON string) (string, error) {
	var args struct {
		Sheet  string          `json:"sheet"`
		Column string          `json:"column"`
		Op     string          `json:"op"`
		Value  json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	table, err := h.wb.Table(args.Sheet)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	operand, parseErr := parseOperand(args.Value)
	if parseErr != nil {
		return fmt.Sprintf("invalid value: %s", parseErr), nil
	}
	return h.finishOp(workbook.Filter(table, args.Column, args.Op, operand)), nil
}

func (h *ToolHandler) aggregateRows(argsJSON string) (string, error) {
	var args struct {
		Sheet   string   `json:"sheet"`
		GroupBy []string `json:"group_by"`
		Column  string   `json:"column"`
		Fn      string   `json:"fn"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	table, err := h.wb.Table(args.Sheet)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	return h.finishOp(workbook.Aggregate(table, args.GroupBy, args.Column, args.Fn)), nil
}

func (h *ToolHandler) pivotTable(argsJSON string) (string, error) {
	var args struct {
		Sheet   string   `json:"sheet"`
		Index   string   `json:"index"`
		Values  string   `json:"values"`
		Fn      string   `json:"fn"`
		Columns string   `json:"columns"`
		Fill    *float64 `json:"fill"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	table, err := h.wb.Table(args.Sheet)
	if err != nil {
		return h.sheetNotFoundResult(args.Sheet), nil
	}
	fill := 0.0
	if args.Fill != nil {
		fill = *args.Fill
	}
	return h.finishOp(workbook.Pivot(table, args.Index, args.Values, args.Fn, args.Columns, fill)), nil
}

func (h *ToolHandler) flattenTable(argsJSON string) (string, error) {
	var args struct {
		Index        string `json:"index"`
		VariableName string `json:"variable_name"`
		ValueName    string `json:"value_name"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if h.lastResult == nil {
		return "No previous result to flatten. Run pivot_table first.", nil
	}
	return h.finishOp(workbook.Flatten(h.lastResult, args.Index, args.VariableName, args.ValueName)), nil
}

// finishOp renders an operation outcome for the model and remembers
// successful tables for chaining.
func (h *ToolHandler) finishOp(res workbook.OpResult) string {
	if !res.OK {
		return fmt.Sprintf("operation failed: %s", res.Message)
	}
	h.lastResult = res.Table
	if res.Table.RowCount() == 0 {
		return "No rows matched."
	}
	return res.Table.RenderMarkdown(maxToolResultRows)
}

func (h *ToolHandler) sheetNotFoundResult(sheet string) string {
	return fmt.Sprintf("sheet %q not found; available sheets: %s",
		sheet, strings.Join(h.wb.ListSheets(), ", "))
}

// parseOperand converts a tool-call value, which may be a scalar or a
// list, into typed cell values. String scalars go through the same type
// inference as cell data so "2024-01-05" compares against date columns.
func parseOperand(raw json.RawMessage) ([]workbook.Value, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("value is required")
	}
	var any1 any
	if err := json.Unmarshal(raw, &any1); err != nil {
		return nil, err
	}
	switch v := any1.(type) {
	case []any:
		values := make([]workbook.Value, 0, len(v))
		for _, item := range v {
			val, err := scalarValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, val)
		}
		return values, nil
	default:
		val, err := scalarValue(any1)
		if err != nil {
			return nil, err
		}
		return []workbook.Value{val}, nil
	}
}

func scalarValue(v any) (workbook.Value, error) {
	switch x := v.(type) {
	case string:
		return workbook.ParseValue(x), nil
	case float64:
		return workbook.Value{Kind: workbook.KindNumber, Num: x}, nil
	case bool:
		return workbook.Value{Kind: workbook.KindBool, Bool: x}, nil
	case nil:
		return workbook.Value{Kind: workbook.KindEmpty}, nil
	default:
		return workbook.Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}
