package extract

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/edge-cli/internal/model"
)

var publicOwnershipRules = []rowRule{
	{key: "issued_shares", all: []string{"number of issued"}},
	{key: "treasury_shares", all: []string{"treasury"}},
	{key: "outstanding_shares", all: []string{"number of outstanding"}},
	{key: "listed_shares", all: []string{"number of listed"}},
	{key: "non_public_shares", all: []string{"non-public"}},
	{key: "non_public_shares", all: []string{"non public"}},
	{key: "public_shares", all: []string{"owned by the public"}},
	{key: "public_ownership_pct", all: []string{"public ownership percentage"}},
	{key: "public_ownership_pct", all: []string{"percentage of public"}},
	{key: "report_date", all: []string{"report date"}},
}

var publicOwnershipKeys = []string{
	"issued_shares", "treasury_shares", "outstanding_shares", "listed_shares",
	"non_public_shares", "public_shares", "public_ownership_pct",
}

// PublicOwnershipStrategy reads the share-ownership summary of a Public
// Ownership Report.
type PublicOwnershipStrategy struct{}

// ReportType implements Strategy.
func (PublicOwnershipStrategy) ReportType() model.ReportType { return model.PublicOwnership }

// Extract implements Strategy.
func (PublicOwnershipStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	tables := doc.Find("table.type1")
	if tables.Length() == 0 {
		tables = doc.Find("table")
	}

	fields := model.FieldMap{}
	tables.Each(func(_ int, t *goquery.Selection) {
		for _, p := range Pairs(t) {
			key, ok := matchLabel(p.Label, publicOwnershipRules)
			if !ok {
				continue
			}
			if _, seen := fields[key]; seen {
				continue
			}
			switch key {
			case "report_date":
				fields[key] = dateOrText(p.Value)
			case "public_ownership_pct":
				if f, ok := Number(p.Value); ok {
					pct, _ := AsFloat(f)
					fields[key] = pct
				}
			default:
				if n, ok := Number(p.Value); ok {
					fields[key] = n
				}
			}
		}
	})

	if !hasAny(fields, publicOwnershipKeys) {
		return nil, nil
	}

	if _, ok := fields["non_public_shares"]; !ok {
		if v, ok := difference(fields["outstanding_shares"], fields["public_shares"]); ok {
			fields["non_public_shares"] = v
		}
	}
	return fields, nil
}

func hasAny(fields model.FieldMap, keys []string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

// difference subtracts two coerced numbers, staying integral when both are.
func difference(a, b any) (any, bool) {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai - bi, true
	}
	af, aok := AsFloat(a)
	bf, bok := AsFloat(b)
	if aok && bok {
		return af - bf, true
	}
	return nil, false
}
