package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/sells-group/edge-cli/internal/model"
)

// Keys of the buyback field map that the summary shape reads.
const (
	KeyTransactionShares  = "total_shares_purchased"
	KeyCumulativeShares   = "cumulative_shares_purchased"
	KeyProgramBudget      = "total_program_budget"
	KeyProgramAmountSpent = "total_amount_spent"
)

// maxListedTransactions bounds the per-transaction columns in a record.
const maxListedTransactions = 5

var programmeRules = []rowRule{
	{key: KeyCumulativeShares, all: []string{"cumulative number of shares purchased"}},
	{key: KeyProgramBudget, all: []string{"total amount appropriated"}},
	{key: KeyProgramAmountSpent, all: []string{"total amount of shares repurchased"}},
}

var contactRules = []rowRule{
	{key: "contact_designation", all: []string{"designation"}},
	{key: "contact_name", all: []string{"name"}},
}

type buybackTxn struct {
	date   string
	shares int64
	price  decimal.Decimal
}

// BuybackStrategy reads a Share Buy-Back Transactions disclosure. The
// per-disclosure transaction totals and the programme-to-date figures are
// kept under separate keys.
type BuybackStrategy struct{}

// ReportType implements Strategy.
func (BuybackStrategy) ReportType() model.ReportType { return model.ShareBuyback }

// CompanionKeys implements Companion.
func (BuybackStrategy) CompanionKeys() []string {
	return []string{KeyCumulativeShares, KeyProgramBudget, KeyProgramAmountSpent}
}

// Extract implements Strategy.
func (BuybackStrategy) Extract(doc *goquery.Document, _ Meta) (model.FieldMap, error) {
	fields := model.FieldMap{}

	if t := TableByCaption(doc.Selection, "share buy-back transaction", "share buyback transaction"); t.Length() > 0 {
		addTransactions(fields, transactions(t))
	}
	if t := TableByCaption(doc.Selection, "effects on number of shares"); t.Length() > 0 {
		addEffects(fields, Grid(t))
	}

	doc.Find("table.type1").Each(func(_ int, t *goquery.Selection) {
		for _, p := range Pairs(t) {
			key, ok := matchLabel(p.Label, programmeRules)
			if !ok {
				continue
			}
			if _, seen := fields[key]; seen {
				continue
			}
			if n, ok := Number(p.Value); ok {
				if key != KeyCumulativeShares {
					n, _ = AsFloat(n)
				}
				fields[key] = n
			}
		}
	})

	doc.Find("table.type2").Each(func(_ int, t *goquery.Selection) {
		for _, p := range Pairs(t) {
			key, ok := matchLabel(p.Label, contactRules)
			if !ok || p.Value == "" {
				continue
			}
			if _, seen := fields[key]; !seen {
				fields[key] = p.Value
			}
		}
	})

	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// transactions reads the rows after the "Date" header whose first cell looks
// like a date. Rows without a positive share count and price are skipped.
func transactions(table *goquery.Selection) []buybackTxn {
	var out []buybackTxn
	header := false
	for _, row := range Grid(table) {
		if len(row) < 3 {
			continue
		}
		if !header {
			header = strings.Contains(strings.ToLower(row[0]), "date")
			continue
		}
		if !strings.Contains(row[0], ",") {
			continue
		}
		n, ok := Number(row[1])
		shares, isInt := n.(int64)
		if !ok || !isInt || shares <= 0 {
			continue
		}
		price, err := decimal.NewFromString(numberNoise.Replace(row[2]))
		if err != nil || !price.IsPositive() {
			continue
		}
		out = append(out, buybackTxn{date: row[0], shares: shares, price: price})
	}
	return out
}

func addTransactions(fields model.FieldMap, txns []buybackTxn) {
	if len(txns) == 0 {
		return
	}
	var shares int64
	value := decimal.Zero
	for i, t := range txns {
		v := t.price.Mul(decimal.NewFromInt(t.shares))
		shares += t.shares
		value = value.Add(v)
		if i < maxListedTransactions {
			prefix := fmt.Sprintf("transaction_%d_", i+1)
			fields[prefix+"date"] = dateOrText(t.date)
			fields[prefix+"shares"] = t.shares
			fields[prefix+"price"] = t.price.InexactFloat64()
			fields[prefix+"value"] = v.Round(2).InexactFloat64()
		}
	}
	fields["total_transactions"] = int64(len(txns))
	fields[KeyTransactionShares] = shares
	fields["total_transaction_value"] = value.Round(2).InexactFloat64()
	fields["weighted_average_price"] = value.Div(decimal.NewFromInt(shares)).Round(2).InexactFloat64()
}

// addEffects reads before/after counts from the effects table.
func addEffects(fields model.FieldMap, grid [][]string) {
	for _, row := range grid {
		if len(row) < 3 {
			continue
		}
		label := strings.ToLower(row[0])
		var name string
		switch {
		case strings.Contains(label, "outstanding shares"):
			name = "outstanding_shares"
		case strings.Contains(label, "treasury shares"):
			name = "treasury_shares"
		default:
			continue
		}
		before, okB := Number(row[1])
		after, okA := Number(row[2])
		b, bInt := before.(int64)
		a, aInt := after.(int64)
		if !okB || !okA || !bInt || !aInt {
			continue
		}
		fields[name+"_before"] = b
		fields[name+"_after"] = a
		if name == "outstanding_shares" {
			fields[name+"_change"] = b - a
		} else {
			fields[name+"_change"] = a - b
		}
	}
}
