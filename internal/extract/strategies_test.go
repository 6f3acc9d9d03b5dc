package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/edge-cli/internal/model"
)

func isoOf(t *testing.T, v any) string {
	t.Helper()
	d, ok := v.(model.Date)
	require.True(t, ok, "expected model.Date, got %T", v)
	return d.ISO()
}

func TestPublicOwnershipStrategy(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<table class="type1">
			<tr><th>Report Date</th><td>Jun 30, 2025</td></tr>
			<tr><th>Number of Issued Common Shares</th><td>1,000,000</td></tr>
			<tr><th>Less: Number of Treasury Common Shares</th><td>100,000</td></tr>
			<tr><th>Number of Outstanding Common Shares</th><td>900,000</td></tr>
			<tr><th>Number of Listed Common Shares</th><td>1,000,000</td></tr>
			<tr><th>Number of Shares Owned by the Public</th><td>225,000</td></tr>
			<tr><th>Public Ownership Percentage</th><td>25.00</td></tr>
		</table>
	</body></html>`)

	fields, err := PublicOwnershipStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000000), fields["issued_shares"])
	assert.Equal(t, int64(100000), fields["treasury_shares"])
	assert.Equal(t, int64(900000), fields["outstanding_shares"])
	assert.Equal(t, int64(1000000), fields["listed_shares"])
	assert.Equal(t, int64(225000), fields["public_shares"])
	assert.Equal(t, 25.0, fields["public_ownership_pct"])
	assert.Equal(t, int64(675000), fields["non_public_shares"])
	assert.Equal(t, "2025-06-30", isoOf(t, fields["report_date"]))
}

func TestPublicOwnershipStrategy_NoData(t *testing.T) {
	doc := mustDoc(t, `<table><tr><th>Report Date</th><td>Jun 30, 2025</td></tr></table>`)
	fields, err := PublicOwnershipStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestAnnualStrategy(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<table>
			<caption>Balance Sheet</caption>
			<tr><th></th><th>Year Ending</th><th>Previous Year Ending</th></tr>
			<tr><td>Current Assets</td><td>1,000</td><td>900</td></tr>
			<tr><td>Total Assets</td><td>5,000</td><td>4,500</td></tr>
			<tr><td>Current Liabilities</td><td>800</td><td>700</td></tr>
			<tr><td>Total Liabilities</td><td>2,000</td><td>1,700</td></tr>
			<tr><td>Stockholders' Equity</td><td>3,000</td><td>2,800</td></tr>
			<tr><td>Book Value Per Share</td><td>12.50</td><td>11.75</td></tr>
		</table>
		<table>
			<caption>Income Statement</caption>
			<tr><td>Gross Revenue</td><td>10,000</td><td>8,000</td></tr>
			<tr><td>Income/(Loss) Before Tax</td><td>(300)</td><td>900</td></tr>
			<tr><td>Net Income/(Loss) Attributable to Parent</td><td>(500)</td><td>700</td></tr>
			<tr><td>Earnings/(Loss) Per Share (Basic)</td><td>1.25</td><td>1.10</td></tr>
		</table>
	</body></html>`)

	fields, err := AnnualStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), fields["current_assets_year_ending"])
	assert.Equal(t, int64(900), fields["current_assets_previous_year_ending"])
	assert.Equal(t, int64(5000), fields["total_assets_year_ending"])
	assert.Equal(t, int64(800), fields["current_liabilities_year_ending"])
	assert.Equal(t, int64(2000), fields["total_liabilities_year_ending"])
	assert.Equal(t, int64(3000), fields["stockholders_equity_year_ending"])
	assert.Equal(t, 12.5, fields["book_value_per_share_year_ending"])

	assert.Equal(t, int64(10000), fields["gross_revenue_current_year"])
	assert.Equal(t, int64(-300), fields["income_before_tax_current_year"])
	assert.Equal(t, int64(-500), fields["net_income_parent_current_year"])
	assert.Equal(t, int64(700), fields["net_income_parent_previous_year"])
	assert.Equal(t, 1.25, fields["eps_basic_current_year"])
}

func TestQuarterlyStrategy(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<table><tr><th>For the period ended</th><td>Jun 30, 2025</td></tr></table>
		<table>
			<caption>Balance Sheet</caption>
			<tr><th></th><th></th><th></th></tr>
			<tr><td>Total Assets</td><td>7,000</td><td>6,500</td></tr>
		</table>
		<table>
			<caption>Income Statement</caption>
			<tr><td>Gross Revenue</td><td>1,000</td><td>900</td><td>2,000</td><td>1,800</td></tr>
			<tr><td>Net Income/(Loss)</td><td>100</td><td>90</td><td>200</td><td>180</td></tr>
		</table>
		<table>
			<tr><th></th><th>Trailing 12 Months</th></tr>
			<tr><td>Basic</td><td>2.10</td></tr>
			<tr><td>Diluted</td><td>2.05</td></tr>
		</table>
	</body></html>`)

	fields, err := QuarterlyStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), fields["bs_total_assets_period_ended"])
	assert.Equal(t, int64(6500), fields["bs_total_assets_fiscal_year_ended"])
	assert.Equal(t, int64(1000), fields["is_gross_revenue_current_quarter"])
	assert.Equal(t, int64(1800), fields["is_gross_revenue_previous_ytd"])
	assert.Equal(t, int64(200), fields["is_net_income_current_ytd"])
	assert.Equal(t, 2.1, fields["eps_basic_trailing_12_months"])
	assert.Equal(t, 2.05, fields["eps_diluted_trailing_12_months"])
	assert.Equal(t, "2025-06-30", isoOf(t, fields["period_ended"]))
}

func TestQuarterlyStrategy_NoTables(t *testing.T) {
	doc := mustDoc(t, `<p>Report withdrawn.</p>`)
	fields, err := QuarterlyStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestStockholdersStrategy(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<table class="type1">
			<tr><th>Number of Issued Common Shares</th><td>5,000,000</td></tr>
			<tr><th>Number of Outstanding Common Shares</th><td>4,800,000</td></tr>
			<tr><th>Number of Treasury Common Shares, if any</th><td>-</td></tr>
			<tr><th>PCD Nominee Corporation (Non-Filipino)</th><td>1,200,000</td></tr>
			<tr><th>PCD Nominee Corporation (Filipino)</th><td>2,000,000</td></tr>
		</table>
	</body></html>`)

	fields, err := StockholdersStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(5000000), fields["issued_common_shares"])
	assert.Equal(t, int64(4800000), fields["outstanding_common_shares"])
	assert.Equal(t, int64(0), fields["treasury_common_shares"])
	assert.Equal(t, int64(1200000), fields["pcd_nominee_non_filipino"])
	assert.Equal(t, int64(2000000), fields["pcd_nominee_filipino"])
}

func TestStockholdersStrategy_TextFallback(t *testing.T) {
	doc := mustDoc(t, `<div><p>Number of Issued Common Shares: 1,234,567</p></div>`)

	fields, err := StockholdersStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(1234567), fields["issued_common_shares"])
}

func TestCashDividendsStrategy(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<ul class="reportType">
			<li><input type="checkbox" value="COMMON" checked="checked"> Common</li>
			<li><input type="checkbox" value="PREFERRED"> Preferred</li>
		</ul>
		<table>
			<caption>Cash Dividend</caption>
			<tr><th>Type of Securities</th><td>Common</td></tr>
			<tr><th>Cash Dividend Per Share</th><td>Php 0.50</td></tr>
			<tr><th>Date of Approval by Board of Directors</th><td>Jun 20, 2025</td></tr>
			<tr><th>Ex-Date</th><td>Jul 15, 2025</td></tr>
			<tr><th>Record Date</th><td>Jul 16, 2025</td></tr>
			<tr><th>Payment Date</th><td>Aug 01, 2025</td></tr>
			<tr><th>Source of Dividend Payment</th><td>Unrestricted retained earnings</td></tr>
		</table>
	</body></html>`)

	fields, err := CashDividendsStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, "Common", fields["security_type"])
	assert.Equal(t, 0.5, fields["dividend_per_share"])
	assert.Equal(t, "2025-06-20", isoOf(t, fields["approval_date"]))
	assert.Equal(t, "2025-07-15", isoOf(t, fields["ex_date"]))
	assert.Equal(t, "2025-07-16", isoOf(t, fields["record_date"]))
	assert.Equal(t, "2025-08-01", isoOf(t, fields["payment_date"]))
	assert.Equal(t, "Unrestricted retained earnings", fields["source_of_dividend_payment"])
}

func TestCashDividendsStrategy_PreferredIgnored(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<ul class="reportType">
			<li><input type="checkbox" value="COMMON"> Common</li>
			<li><input type="checkbox" value="PREFERRED" checked="checked"> Preferred</li>
		</ul>
		<table><caption>Cash Dividend</caption><tr><th>Cash Dividend Per Share</th><td>1.00</td></tr></table>
	</body></html>`)

	fields, err := CashDividendsStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Nil(t, fields)
}

const buybackHTML = `<html><body>
	<table>
		<caption>Share Buy-Back Transactions</caption>
		<tr><th>Date of Transaction</th><th>Number of Shares Purchased</th><th>Price Per Share</th></tr>
		<tr><td>Jul 07, 2025</td><td>1,000,000</td><td>30.50</td></tr>
		<tr><td>Jul 07, 2025</td><td>400,000</td><td>31.00</td></tr>
		<tr><td>Jul 07, 2025</td><td>0</td><td>31.00</td></tr>
		<tr><td>Total</td><td>1,400,000</td><td></td></tr>
	</table>
	<table>
		<caption>Effects on Number of Shares</caption>
		<tr><th></th><th>Before</th><th>After</th></tr>
		<tr><td>Outstanding Shares</td><td>10,000,000</td><td>8,600,000</td></tr>
		<tr><td>Treasury Shares</td><td>500,000</td><td>1,900,000</td></tr>
	</table>
	<table class="type1">
		<tr><th>Cumulative Number of Shares Purchased to Date</th><td>5,000,000</td></tr>
		<tr><th>Total Amount Appropriated for the Buy-Back Program</th><td>2,000,000,000.00</td></tr>
		<tr><th>Total Amount of Shares Repurchased</th><td>150,000,000</td></tr>
	</table>
	<table class="type2">
		<tr><th>Name</th><td>Juan Dela Cruz</td></tr>
		<tr><th>Designation</th><td>Corporate Secretary</td></tr>
	</table>
</body></html>`

func TestBuybackStrategy(t *testing.T) {
	fields, err := BuybackStrategy{}.Extract(mustDoc(t, buybackHTML), Meta{DisclosedAt: time.Date(2025, 7, 7, 12, 19, 0, 0, time.UTC)})
	require.NoError(t, err)

	assert.Equal(t, int64(2), fields["total_transactions"])
	assert.Equal(t, int64(1400000), fields[KeyTransactionShares])
	assert.Equal(t, 42900000.0, fields["total_transaction_value"])
	assert.Equal(t, 30.64, fields["weighted_average_price"])

	assert.Equal(t, "2025-07-07", isoOf(t, fields["transaction_1_date"]))
	assert.Equal(t, int64(1000000), fields["transaction_1_shares"])
	assert.Equal(t, 30.5, fields["transaction_1_price"])
	assert.Equal(t, 30500000.0, fields["transaction_1_value"])
	assert.Equal(t, int64(400000), fields["transaction_2_shares"])
	assert.NotContains(t, fields, "transaction_3_shares")

	assert.Equal(t, int64(10000000), fields["outstanding_shares_before"])
	assert.Equal(t, int64(8600000), fields["outstanding_shares_after"])
	assert.Equal(t, int64(1400000), fields["outstanding_shares_change"])
	assert.Equal(t, int64(1400000), fields["treasury_shares_change"])

	assert.Equal(t, int64(5000000), fields[KeyCumulativeShares])
	assert.Equal(t, 2000000000.0, fields[KeyProgramBudget])
	assert.Equal(t, 150000000.0, fields[KeyProgramAmountSpent])

	assert.Equal(t, "Juan Dela Cruz", fields["contact_name"])
	assert.Equal(t, "Corporate Secretary", fields["contact_designation"])
}

func TestBuybackStrategy_TransactionsCapped(t *testing.T) {
	rows := ""
	for i := 0; i < 7; i++ {
		rows += `<tr><td>Jul 07, 2025</td><td>100</td><td>10.00</td></tr>`
	}
	doc := mustDoc(t, `<table><caption>Share Buyback Transactions</caption>
		<tr><th>Date</th><th>Shares</th><th>Price</th></tr>`+rows+`</table>`)

	fields, err := BuybackStrategy{}.Extract(doc, Meta{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), fields["total_transactions"])
	assert.Equal(t, int64(700), fields[KeyTransactionShares])
	assert.Contains(t, fields, "transaction_5_shares")
	assert.NotContains(t, fields, "transaction_6_shares")
}

func TestBuybackStrategy_Empty(t *testing.T) {
	fields, err := BuybackStrategy{}.Extract(mustDoc(t, `<p>nothing here</p>`), Meta{})
	require.NoError(t, err)
	assert.Nil(t, fields)
}
