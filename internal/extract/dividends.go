package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/edge-cli/internal/model"
)

var dividendRules = []rowRule{
	{key: "security_type", all: []string{"type of securit"}},
	{key: "dividend_per_share", all: []string{"per share"}},
	{key: "dividend_rate", all: []string{"rate"}},
	{key: "approval_date", all: []string{"approval"}},
	{key: "ex_date", all: []string{"ex-date"}},
	{key: "ex_date", all: []string{"ex date"}},
	{key: "record_date", all: []string{"record date"}},
	{key: "payment_date", all: []string{"payment date"}},
	{key: "dividend_period", all: []string{"period"}},
}

// CashDividendsStrategy reads the cash dividend table of a common-share
// dividend declaration. Declarations for preferred shares yield no data.
type CashDividendsStrategy struct{}

// ReportType implements Strategy.
func (CashDividendsStrategy) ReportType() model.ReportType { return model.CashDividends }

// Extract implements Strategy.
func (CashDividendsStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	if doc.Find(`ul.reportType input[value="COMMON"][checked]`).Length() == 0 {
		return nil, nil
	}

	table := TableByCaption(doc.Selection, "cash dividend")
	if table.Length() == 0 {
		return nil, nil
	}

	fields := model.FieldMap{}
	for _, p := range Pairs(table) {
		key, ok := matchLabel(p.Label, dividendRules)
		if !ok {
			key = Slug(p.Label)
		}
		if key == "" || p.Value == "" {
			continue
		}
		if _, seen := fields[key]; seen {
			continue
		}
		switch {
		case strings.HasSuffix(key, "_date"):
			fields[key] = dateOrText(p.Value)
		case key == "security_type" || key == "dividend_period":
			fields[key] = p.Value
		default:
			fields[key] = Coerce(p.Value)
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}
