// Package normalize shapes canonical records into output tables.
package normalize

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/model"
)

// Fixed leading columns of the detailed shape.
const (
	ColSymbol         = "symbol"
	ColDisclosureDate = "disclosure_date"
	ColAmended        = "amended"
	ColEdgeNo         = "edge_no"
)

// SummaryColumn maps a summary column to the record field it reads.
type SummaryColumn struct {
	Name  string
	Field string
}

// summaryShapes holds the summary column list of each report type that has
// one. The symbol and date columns precede these.
var summaryShapes = map[model.ReportType][]SummaryColumn{
	model.ShareBuyback: {
		{Name: "transaction_total", Field: "total_shares_purchased"},
		{Name: "cumulative_total", Field: "cumulative_shares_purchased"},
		{Name: "program_budget", Field: "total_program_budget"},
		{Name: "amount_spent", Field: "total_amount_spent"},
	},
}

// Table is a rectangular result: every row has a value (possibly nil) for
// every column.
type Table struct {
	ReportType model.ReportType
	Mode       model.Mode
	Columns    []string
	Rows       []map[string]any
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Values returns row i in column order.
func (t *Table) Values(i int) []any {
	out := make([]any, len(t.Columns))
	for c, name := range t.Columns {
		out[c] = t.Rows[i][name]
	}
	return out
}

// HasSummary reports whether rt defines a summary shape.
func HasSummary(rt model.ReportType) bool {
	_, ok := summaryShapes[rt]
	return ok
}

// Normalize shapes records for mode. Summary mode yields one row per record
// in the narrow shape; the other modes yield the detailed shape. Asking for
// a summary of a type without one logs an error and returns an empty table.
func Normalize(rt model.ReportType, records []model.CanonicalRecord, mode model.Mode) *Table {
	if mode == model.Summary {
		shape, ok := summaryShapes[rt]
		if !ok {
			zap.L().Error("no summary shape for report type",
				zap.String("component", "normalize"),
				zap.String("report_type", string(rt)),
			)
			return &Table{ReportType: rt, Mode: mode}
		}
		return summary(rt, records, shape)
	}
	return detailed(rt, records, mode)
}

func detailed(rt model.ReportType, records []model.CanonicalRecord, mode model.Mode) *Table {
	t := &Table{ReportType: rt, Mode: mode}
	if len(records) == 0 {
		return t
	}

	seen := map[string]bool{ColSymbol: true, ColDisclosureDate: true, ColAmended: true, ColEdgeNo: true}
	var fieldCols []string
	for _, r := range records {
		for k := range r.Fields {
			if !seen[k] {
				seen[k] = true
				fieldCols = append(fieldCols, k)
			}
		}
	}
	sort.Strings(fieldCols)
	t.Columns = append([]string{ColSymbol, ColDisclosureDate, ColAmended, ColEdgeNo}, fieldCols...)

	for i := range records {
		r := &records[i]
		row := make(map[string]any, len(t.Columns))
		for _, c := range fieldCols {
			row[c] = r.Fields[c]
		}
		row[ColSymbol] = r.Key()
		row[ColDisclosureDate] = r.DisclosureDate()
		row[ColAmended] = r.Amended
		row[ColEdgeNo] = r.EdgeNo
		t.Rows = append(t.Rows, row)
	}
	return t
}

func summary(rt model.ReportType, records []model.CanonicalRecord, shape []SummaryColumn) *Table {
	t := &Table{ReportType: rt, Mode: model.Summary}
	if len(records) == 0 {
		return t
	}
	t.Columns = []string{ColSymbol, "date"}
	for _, c := range shape {
		t.Columns = append(t.Columns, c.Name)
	}

	for i := range records {
		r := &records[i]
		row := map[string]any{
			ColSymbol: r.Key(),
			"date":    r.DisclosureDate(),
		}
		for _, c := range shape {
			row[c.Name] = r.Fields[c.Field]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
