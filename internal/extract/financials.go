package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/edge-cli/internal/model"
)

var balanceSheetRules = []rowRule{
	{key: "current_assets", all: []string{"current assets"}, none: []string{"non-current", "noncurrent"}},
	{key: "total_assets", all: []string{"total assets"}},
	{key: "current_liabilities", all: []string{"current liabilities"}, none: []string{"non-current", "noncurrent"}},
	{key: "total_liabilities", all: []string{"total liabilities"}, none: []string{"equity"}},
	{key: "retained_earnings", all: []string{"retained earnings"}},
	{key: "retained_earnings", all: []string{"deficit"}},
	{key: "stockholders_equity_parent", all: []string{"equity", "parent"}},
	{key: "stockholders_equity", all: []string{"equity"}, none: []string{"liabilities"}},
	{key: "book_value_per_share", all: []string{"book value"}},
}

var incomeStatementRules = []rowRule{
	{key: "non_operating_income", all: []string{"non-operating income"}},
	{key: "non_operating_income", all: []string{"non operating income"}},
	{key: "non_operating_expense", all: []string{"non-operating expense"}},
	{key: "non_operating_expense", all: []string{"non operating expense"}},
	{key: "income_before_tax", all: []string{"before tax"}},
	{key: "income_tax", all: []string{"income tax"}},
	{key: "net_income_parent", all: []string{"net income", "parent"}},
	{key: "net_income_parent", all: []string{"attributable"}},
	{key: "net_income", all: []string{"net income"}},
	{key: "eps_basic", all: []string{"basic"}},
	{key: "eps_diluted", all: []string{"diluted"}},
	{key: "gross_revenue", all: []string{"revenue"}},
	{key: "gross_expense", all: []string{"expense"}},
}

var epsRules = []rowRule{
	{key: "eps_basic", all: []string{"basic"}},
	{key: "eps_diluted", all: []string{"diluted"}},
}

// statement extracts label-anchored rows of a financial table into fields
// named prefix+key+"_"+column.
func statement(fields model.FieldMap, table *goquery.Selection, rules []rowRule, prefix string, defaultCols []string) {
	if table.Length() == 0 {
		return
	}
	grid := Grid(table)
	if len(grid) == 0 {
		return
	}
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	cols := columnNames(headerRow(grid, rules), width, defaultCols)

	for key, row := range labelledRows(grid, rules) {
		for i := 1; i < len(row) && i < width; i++ {
			if v, ok := Number(row[i]); ok {
				fields[prefix+key+"_"+cols[i]] = v
			}
		}
	}
}

// headerRow returns the first row that is not itself a labelled data row and
// has text in a data column.
func headerRow(grid [][]string, rules []rowRule) []string {
	for _, row := range grid {
		if _, ok := matchLabel(row[0], rules); ok {
			return nil
		}
		for _, c := range row[1:] {
			if c != "" {
				return row
			}
		}
	}
	return nil
}

// AnnualStrategy reads the balance sheet and income statement summaries of
// an Annual Report.
type AnnualStrategy struct{}

// ReportType implements Strategy.
func (AnnualStrategy) ReportType() model.ReportType { return model.Annual }

// Extract implements Strategy.
func (AnnualStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	fields := model.FieldMap{}
	statement(fields, TableByCaption(doc.Selection, "balance sheet"), balanceSheetRules, "",
		[]string{"year_ending", "previous_year_ending"})
	statement(fields, TableByCaption(doc.Selection, "income statement"), incomeStatementRules, "",
		[]string{"current_year", "previous_year"})
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// QuarterlyStrategy reads the balance sheet, income statement and trailing
// EPS of a Quarterly Report.
type QuarterlyStrategy struct{}

// ReportType implements Strategy.
func (QuarterlyStrategy) ReportType() model.ReportType { return model.Quarterly }

// Extract implements Strategy.
func (QuarterlyStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	fields := model.FieldMap{}

	statement(fields, TableByCaption(doc.Selection, "balance sheet"), balanceSheetRules, "bs_",
		[]string{"period_ended", "fiscal_year_ended"})
	statement(fields, TableByCaption(doc.Selection, "income statement"), incomeStatementRules, "is_",
		[]string{"current_quarter", "previous_quarter", "current_ytd", "previous_ytd"})

	eps := doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(t.Text()), "trailing 12 months") &&
			!strings.Contains(Caption(t), "income statement")
	}).First()
	statement(fields, eps, epsRules, "", []string{"trailing_12m"})

	if len(fields) == 0 {
		return nil, nil
	}

	doc.Find("th").EachWithBreak(func(_ int, th *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(th.Text()), "for the period ended") {
			return true
		}
		if td := th.NextAllFiltered("td").First(); td.Length() > 0 {
			fields["period_ended"] = dateOrText(cellText(td))
		}
		return false
	})
	return fields, nil
}
