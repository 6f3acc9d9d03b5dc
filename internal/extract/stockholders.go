package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/edge-cli/internal/model"
)

var stockholderRules = []rowRule{
	{key: "issued_common_shares", all: []string{"issued", "common"}},
	{key: "outstanding_common_shares", all: []string{"outstanding", "common"}},
	{key: "listed_common_shares", all: []string{"listed", "common"}},
	{key: "treasury_common_shares", all: []string{"treasury", "common"}},
	{key: "pcd_nominee_non_filipino", all: []string{"pcd nominee", "non-filipino"}},
	{key: "pcd_nominee_filipino", all: []string{"pcd nominee", "filipino"}},
}

var stockholderPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"issued_common_shares", regexp.MustCompile(`(?is)Number\s+of\s+Issued\s+Common\s+Shares.{0,200}?([\d,]{3,})`)},
	{"outstanding_common_shares", regexp.MustCompile(`(?is)Number\s+of\s+Outstanding\s+Common\s+Shares.{0,200}?([\d,]{3,})`)},
	{"listed_common_shares", regexp.MustCompile(`(?is)Number\s+of\s+Listed\s+Common\s+Shares.{0,200}?([\d,]{3,})`)},
	{"treasury_common_shares", regexp.MustCompile(`(?is)Number\s+of\s+Treasury\s+Common\s+Shares.{0,200}?([\d,]{3,})`)},
	{"pcd_nominee_non_filipino", regexp.MustCompile(`(?is)PCD\s+Nominee[^<]{0,10}Non-Filipino.{0,200}?([\d,]{3,})`)},
	{"pcd_nominee_filipino", regexp.MustCompile(`(?is)PCD\s+Nominee[^<]{0,10}[^-]Filipino.{0,200}?([\d,]{3,})`)},
}

// StockholdersStrategy reads the share structure of a Top 100 Stockholders
// report. Only form 17-12-A filings are accepted.
type StockholdersStrategy struct{}

// ReportType implements Strategy.
func (StockholdersStrategy) ReportType() model.ReportType { return model.TopStockholders }

// Accept implements HandleFilter.
func (StockholdersStrategy) Accept(h model.DocumentHandle) bool {
	want := model.TopStockholders.Info().FormNumber
	return strings.EqualFold(strings.TrimSpace(h.FormNumber), want)
}

// Extract implements Strategy.
func (StockholdersStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	if table := shareStructureTable(doc); table.Length() > 0 {
		fields := model.FieldMap{}
		for _, p := range HeaderPairs(table) {
			key, ok := matchLabel(p.Label, stockholderRules)
			if !ok {
				key = Slug(p.Label)
			}
			if key == "" {
				continue
			}
			if _, seen := fields[key]; seen {
				continue
			}
			if p.Value == "-" {
				fields[key] = int64(0)
				continue
			}
			fields[key] = Coerce(p.Value)
		}
		if len(fields) > 0 {
			return fields, nil
		}
	}

	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	fields := model.FieldMap{}
	for _, p := range stockholderPatterns {
		if m := p.re.FindStringSubmatch(html); m != nil {
			if n, ok := Number(m[1]); ok {
				fields[p.key] = n
			}
		}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// shareStructureTable picks the first type1 table (then any table) whose
// header cells mention share counts, falling back to the third table.
func shareStructureTable(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"table.type1", "table"} {
		tables := doc.Find(sel)
		found := tables.FilterFunction(func(_ int, t *goquery.Selection) bool {
			for _, p := range HeaderPairs(t) {
				if _, ok := matchLabel(p.Label, stockholderRules); ok {
					return true
				}
			}
			return false
		}).First()
		if found.Length() > 0 {
			return found
		}
		if tables.Length() >= 3 {
			return tables.Eq(2)
		}
	}
	return &goquery.Selection{}
}
