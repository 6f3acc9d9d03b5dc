package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/edge-cli/internal/edge"
	"github.com/sells-group/edge-cli/internal/edge/edgetest"
	"github.com/sells-group/edge-cli/internal/extract"
	"github.com/sells-group/edge-cli/internal/fetcher"
	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/resilience"
)

const (
	buybackTemplate      = "Share Buy-Back Transactions"
	dividendTemplate     = "Declaration of Cash Dividends"
	stockholdersTemplate = "List of Top 100 Stockholders"
	buybackTitle         = "Share Buy-Back Transactions"
	amendedTitle         = "[Amend-1]Share Buy-Back Transactions"
)

func buybackBody(shares string) string {
	return `<table><caption>Share Buy-Back Transactions</caption>
		<tr><th>Date of Transaction</th><th>Number of Shares</th><th>Price</th></tr>
		<tr><td>Jul 07, 2025</td><td>` + shares + `</td><td>30.00</td></tr>
	</table>`
}

func dividendBody(class string) string {
	return `<ul class="reportType"><li><input type="checkbox" value="` + class + `" checked="checked"></li></ul>
		<table><caption>Cash Dividend</caption><tr><th>Cash Dividend Per Share</th><td>0.50</td></tr></table>`
}

func stockholdersBody() string {
	return `<table class="type1"><tr><th>Number of Issued Common Shares</th><td>1,000</td></tr></table>`
}

func newEngine(t *testing.T, p *edgetest.Portal, opts ...Option) *Engine {
	t.Helper()
	tr := fetcher.NewHTTPTransport(fetcher.HTTPOptions{
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		Backoff:    resilience.Backoff{Base: time.Millisecond, Cap: time.Millisecond},
	})
	client, err := edge.NewClient(tr, p.URL)
	require.NoError(t, err)
	return New(client, nil, opts...)
}

func aliBuyback(company string) []edgetest.Disclosure {
	return []edgetest.Disclosure{
		{EdgeNo: "amend", Company: company, Symbol: "ALI", Template: buybackTemplate, Title: amendedTitle,
			Date: "Jul 07, 2025 12:19 PM", Body: buybackBody("1,400,000")},
		{EdgeNo: "orig", Company: company, Symbol: "ALI", Template: buybackTemplate, Title: buybackTitle,
			Date: "Jul 07, 2025 08:14 AM", Body: buybackBody("1,000,000")},
	}
}

func TestRun_AmendedBuybackSummary(t *testing.T) {
	for _, company := range []string{"ALI", "180"} {
		t.Run(company, func(t *testing.T) {
			p := edgetest.NewPortal(aliBuyback(company)...)
			defer p.Close()

			res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
				CompanyRefs: []model.CompanyRef{model.ParseCompanyRef(company)},
				ReportType:  model.ShareBuyback,
			})
			require.NoError(t, err)

			require.Len(t, res.Records, 1)
			assert.True(t, res.Records[0].Amended)
			assert.Equal(t, "ALI", res.Records[0].Symbol)

			require.Equal(t, 1, res.Table.Len())
			row := res.Table.Rows[0]
			assert.Equal(t, "ALI", row["symbol"])
			assert.Equal(t, int64(1400000), row["transaction_total"])
			assert.Equal(t, model.Summary, res.Summary.Mode)
			assert.Equal(t, 2, res.Summary.TotalFound)
			assert.Equal(t, 2, res.Summary.TotalExtracted)
			assert.Equal(t, 2, res.Summary.PerCompanyCounts[company])
			assert.NotEmpty(t, res.Summary.RunID)
			assert.False(t, res.Summary.Cancelled)
		})
	}
}

func TestRun_NotFoundDoesNotAbortBatch(t *testing.T) {
	p := edgetest.NewPortal(aliBuyback("ALI")...)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ZZZ", "ALI"}),
		ReportType:  model.ShareBuyback,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ZZZ"}, res.Summary.NotFound)
	assert.Empty(t, res.Summary.Failures)
	assert.Equal(t, 0, res.Summary.PerCompanyCounts["ZZZ"])
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "ALI", res.Table.Rows[0]["symbol"])
}

func TestRun_NoDisclosuresYieldsNoRows(t *testing.T) {
	p := edgetest.NewPortal()
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
		Mode:        model.Summary,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Table.Len())
	assert.Empty(t, res.Records)
	assert.Equal(t, []string{"ALI"}, res.Summary.NotFound)
}

func TestRun_SummaryForTypeWithoutShapeFailsBeforeNetwork(t *testing.T) {
	p := edgetest.NewPortal(aliBuyback("ALI")...)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.Annual,
		Mode:        model.Summary,
	})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, model.IsConfigError(err))
	assert.Equal(t, int64(0), p.Searches.Load())
}

func TestRun_NilExtractionCompletesUnit(t *testing.T) {
	p := edgetest.NewPortal(edgetest.Disclosure{
		EdgeNo: "e1", Company: "ALI", Symbol: "ALI", Template: buybackTemplate, Title: buybackTitle,
		Date: "Jul 07, 2025 08:14 AM", Body: "<p>Nothing to report</p>",
	})
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalFound)
	assert.Equal(t, 0, res.Summary.UnitsFailed)
	assert.Equal(t, 2, res.Summary.UnitsCompleted)
	assert.Equal(t, 0, res.Table.Len())
}

func TestRun_DetailedFollowsPages(t *testing.T) {
	var ds []edgetest.Disclosure
	for i := 1; i <= 5; i++ {
		ds = append(ds, edgetest.Disclosure{
			EdgeNo: fmt.Sprintf("e%d", i), Company: "ALI", Symbol: "ALI", Template: buybackTemplate, Title: buybackTitle,
			Date: fmt.Sprintf("Jul %02d, 2025 09:00 AM", 10-i), Body: buybackBody(fmt.Sprintf("%d00", i)),
		})
	}
	p := edgetest.NewPortal(ds...)
	p.SetPageSize(2)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
		Mode:        model.Detailed,
		Workers:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Searches.Load())
	assert.Equal(t, 5, res.Summary.TotalFound)
	assert.Equal(t, 8, res.Summary.UnitsCompleted)
	require.Equal(t, 5, res.Table.Len())

	for i, rec := range res.Records {
		assert.Equal(t, fmt.Sprintf("e%d", i+1), rec.EdgeNo)
	}
	assert.Equal(t, []string{"symbol", "disclosure_date", "amended", "edge_no"}, res.Table.Columns[:4])
}

func TestRun_FailedDocumentIsRecorded(t *testing.T) {
	ds := aliBuyback("ALI")
	p := edgetest.NewPortal(ds...)
	p.FailWith("orig", http.StatusForbidden)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
		Mode:        model.Detailed,
	})
	require.NoError(t, err)
	require.Len(t, res.Summary.Failures, 1)
	f := res.Summary.Failures[0]
	assert.Equal(t, "ALI", f.Company)
	assert.Equal(t, model.UnitDocument, f.Kind)
	assert.Equal(t, "orig", f.Key)
	assert.Equal(t, resilience.ClassPermanent, f.Class)
	assert.Equal(t, 1, res.Summary.UnitsFailed)
	assert.Equal(t, 1, res.Table.Len())
}

func TestRun_FirstMatchWalksBackByDay(t *testing.T) {
	p := edgetest.NewPortal(
		edgetest.Disclosure{EdgeNo: "pref", Company: "BDO", Symbol: "BDO", Template: dividendTemplate, Title: "Declaration of Cash Dividends",
			Date: "Aug 01, 2025 09:00 AM", Body: dividendBody("PREFERRED")},
		edgetest.Disclosure{EdgeNo: "common", Company: "BDO", Symbol: "BDO", Template: dividendTemplate, Title: "Declaration of Cash Dividends",
			Date: "Jun 01, 2025 09:00 AM", Body: dividendBody("COMMON")},
		edgetest.Disclosure{EdgeNo: "older", Company: "BDO", Symbol: "BDO", Template: dividendTemplate, Title: "Declaration of Cash Dividends",
			Date: "Jan 01, 2025 09:00 AM", Body: dividendBody("COMMON")},
	)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"BDO"}),
		ReportType:  model.CashDividends,
	})
	require.NoError(t, err)
	assert.Equal(t, model.FirstMatchOnly, res.Summary.Mode)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "common", res.Records[0].EdgeNo)
	assert.Equal(t, int64(2), p.Frames.Load())
	assert.Equal(t, 0.5, res.Table.Rows[0]["dividend_per_share"])
}

func TestRun_FailedNewestDayStopsWalk(t *testing.T) {
	p := edgetest.NewPortal(
		edgetest.Disclosure{EdgeNo: "new", Company: "ALI", Symbol: "ALI", Template: buybackTemplate, Title: buybackTitle,
			Date: "Jul 08, 2025 09:00 AM", Body: buybackBody("2,000,000")},
		edgetest.Disclosure{EdgeNo: "old", Company: "ALI", Symbol: "ALI", Template: buybackTemplate, Title: buybackTitle,
			Date: "Jul 01, 2025 09:00 AM", Body: buybackBody("500,000")},
	)
	p.FailWith("new", http.StatusServiceUnavailable)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
		Mode:        model.Summary,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 0, res.Table.Len())
	require.Len(t, res.Summary.Failures, 1)
	assert.Equal(t, "new", res.Summary.Failures[0].Key)
	assert.Equal(t, int64(1), p.Viewers.Load())
	assert.Zero(t, p.Frames.Load())

	require.Len(t, res.Summary.Warnings, 1)
	assert.Contains(t, res.Summary.Warnings[0], "ALI")
	assert.Contains(t, res.Summary.Warnings[0], "2025-07-08")
	assert.Contains(t, res.Summary.Warnings[0], "no record reported")
}

func TestRun_StockholdersFormFilterAndWarning(t *testing.T) {
	p := edgetest.NewPortal(
		edgetest.Disclosure{EdgeNo: "a", Company: "ALI", Symbol: "ALI", Template: stockholdersTemplate, Title: "Top 100",
			Date: "Jul 10, 2025 09:00 AM", Form: "17-12-A", Body: stockholdersBody()},
		edgetest.Disclosure{EdgeNo: "b", Company: "ALI", Symbol: "ALI", Template: stockholdersTemplate, Title: "Top 100 (other form)",
			Date: "Jul 11, 2025 09:00 AM", Form: "17-1", Body: stockholdersBody()},
	)
	defer p.Close()

	res, err := newEngine(t, p).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.TopStockholders,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalFound)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "a", res.Records[0].EdgeNo)
	require.Len(t, res.Summary.Warnings, 1)
	assert.Contains(t, res.Summary.Warnings[0], "numeric company id")
}

func TestRun_Idempotent(t *testing.T) {
	p := edgetest.NewPortal(aliBuyback("ALI")...)
	defer p.Close()
	e := newEngine(t, p)
	req := model.RunRequest{CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}), ReportType: model.ShareBuyback, Mode: model.Detailed}

	first, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Table, second.Table)
}

func TestRun_ProgressEventsReachTerminalStates(t *testing.T) {
	p := edgetest.NewPortal(aliBuyback("ALI")...)
	defer p.Close()

	last := map[string]model.UnitState{}
	seenInFlight := false
	e := newEngine(t, p, WithProgress(func(ev model.ProgressEvent) {
		last[string(ev.Kind)+":"+ev.Key] = ev.State
		if ev.State == model.UnitInFlight {
			seenInFlight = true
		}
	}))

	_, err := e.Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.ShareBuyback,
	})
	require.NoError(t, err)
	assert.True(t, seenInFlight)
	require.Len(t, last, 3)
	for key, state := range last {
		assert.True(t, state.Terminal(), key)
	}
}

// fakePortal serves a single listing page and delegates fetches.
type fakePortal struct {
	handles []model.DocumentHandle
	fetch   func(ctx context.Context, h model.DocumentHandle) (*model.ExtractedRecord, error)
}

func (f *fakePortal) Search(_ context.Context, _ model.CompanyRef, _ model.ReportType, page int) (*edge.SearchPage, error) {
	return &edge.SearchPage{Page: page, TotalPages: 1, Handles: f.handles, Rows: len(f.handles)}, nil
}

func (f *fakePortal) Fetch(ctx context.Context, h model.DocumentHandle, _ extract.Strategy) (*model.ExtractedRecord, error) {
	return f.fetch(ctx, h)
}

// countingPortal lists n handles on every page it is asked for and tracks
// the peak number of concurrent calls.
type countingPortal struct {
	n          int
	firstTotal int
	laterTotal int

	mu       sync.Mutex
	searched []int
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (c *countingPortal) enter() {
	cur := c.inFlight.Add(1)
	for {
		old := c.peak.Load()
		if cur <= old || c.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
}

func (c *countingPortal) Search(_ context.Context, _ model.CompanyRef, _ model.ReportType, page int) (*edge.SearchPage, error) {
	c.enter()
	defer c.inFlight.Add(-1)

	c.mu.Lock()
	c.searched = append(c.searched, page)
	c.mu.Unlock()

	total := c.firstTotal
	if page > 1 {
		total = c.laterTotal
	}
	day := time.Date(2025, 7, 7, 9, 0, 0, 0, time.UTC)
	sp := &edge.SearchPage{Page: page, TotalPages: total}
	for i := 0; i < c.n; i++ {
		sp.Handles = append(sp.Handles, model.DocumentHandle{
			EdgeNo:      fmt.Sprintf("p%d-%d", page, i),
			DisclosedAt: day.Add(-time.Duration(i) * time.Hour),
			Page:        page,
			Index:       i,
		})
	}
	sp.Rows = len(sp.Handles)
	return sp, nil
}

func (c *countingPortal) Fetch(_ context.Context, h model.DocumentHandle, _ extract.Strategy) (*model.ExtractedRecord, error) {
	c.enter()
	defer c.inFlight.Add(-1)
	return &model.ExtractedRecord{Symbol: "ALI", EdgeNo: h.EdgeNo, DisclosedAt: h.DisclosedAt, Fields: model.FieldMap{"v": int64(1)}}, nil
}

func TestRun_ConcurrencyNeverExceedsWorkers(t *testing.T) {
	portal := &countingPortal{n: 12, firstTotal: 1, laterTotal: 1}

	res, err := New(portal, nil).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI", "BDO", "JFC", "SM"}),
		ReportType:  model.Quarterly,
		Mode:        model.Detailed,
		Workers:     2,
	})
	require.NoError(t, err)
	assert.Len(t, res.Records, 48)
	assert.LessOrEqual(t, portal.peak.Load(), int64(2))
	assert.Positive(t, portal.peak.Load())
	assert.Zero(t, portal.inFlight.Load())
}

func TestRun_PageCountFromFirstPage(t *testing.T) {
	portal := &countingPortal{n: 1, firstTotal: 3, laterTotal: 7}

	res, err := New(portal, nil).Run(context.Background(), model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.Quarterly,
		Mode:        model.Detailed,
		Workers:     4,
	})
	require.NoError(t, err)

	portal.mu.Lock()
	searched := append([]int(nil), portal.searched...)
	portal.mu.Unlock()
	sort.Ints(searched)
	assert.Equal(t, []int{1, 2, 3}, searched)
	assert.Equal(t, 3, res.Summary.TotalFound)
	assert.Len(t, res.Records, 3)
}

func TestRun_CancellationKeepsCompletedRecords(t *testing.T) {
	day := time.Date(2025, 7, 7, 9, 0, 0, 0, time.UTC)
	var handles []model.DocumentHandle
	for i := 0; i < 4; i++ {
		handles = append(handles, model.DocumentHandle{EdgeNo: fmt.Sprintf("e%d", i), DisclosedAt: day.Add(-time.Duration(i) * 24 * time.Hour)})
	}

	portal := &fakePortal{
		handles: handles,
		fetch: func(ctx context.Context, h model.DocumentHandle) (*model.ExtractedRecord, error) {
			if h.EdgeNo == "e0" {
				return &model.ExtractedRecord{Symbol: "ALI", EdgeNo: h.EdgeNo, DisclosedAt: h.DisclosedAt, Fields: model.FieldMap{"v": int64(1)}}, nil
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	e := New(portal, nil, WithProgress(func(ev model.ProgressEvent) {
		if ev.Kind == model.UnitDocument && ev.Key == "e0" && ev.State == model.UnitCompleted {
			once.Do(cancel)
		}
	}))

	res, err := e.Run(ctx, model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI"}),
		ReportType:  model.Quarterly,
		Mode:        model.Detailed,
		Workers:     4,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.True(t, res.Summary.Cancelled)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "e0", res.Records[0].EdgeNo)

	assert.Equal(t, 3, res.Summary.UnitsFailed)
	for _, f := range res.Summary.Failures {
		assert.Equal(t, CancelledReason, f.Reason)
		assert.Equal(t, resilience.ClassCancelled, f.Class)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	portal := &fakePortal{fetch: func(context.Context, model.DocumentHandle) (*model.ExtractedRecord, error) {
		t.Fatal("fetch must not be called")
		return nil, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(portal, nil).Run(ctx, model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"ALI", "BDO"}),
		ReportType:  model.Annual,
	})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Summary.UnitsFailed)
	assert.Equal(t, 0, res.Table.Len())
}

func TestValidate(t *testing.T) {
	e := New(&fakePortal{}, nil)
	refs := model.ParseCompanyRefs([]string{"ALI"})

	req, warnings, err := e.Validate(model.RunRequest{CompanyRefs: refs, ReportType: model.Quarterly})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultWorkers, req.Workers)
	assert.Equal(t, model.Detailed, req.Mode)

	req, _, err = e.Validate(model.RunRequest{CompanyRefs: append(refs, refs[0], model.CompanyRef{}), ReportType: model.Annual})
	require.NoError(t, err)
	assert.Len(t, req.CompanyRefs, 1)

	for name, bad := range map[string]model.RunRequest{
		"unknown type":     {CompanyRefs: refs, ReportType: "bogus"},
		"too many":         {CompanyRefs: refs, ReportType: model.Annual, Workers: MaxWorkers + 1},
		"negative":         {CompanyRefs: refs, ReportType: model.Annual, Workers: -1},
		"no companies":     {ReportType: model.Annual},
		"summary shape":    {CompanyRefs: refs, ReportType: model.PublicOwnership, Mode: model.Summary},
		"unknown mode":     {CompanyRefs: refs, ReportType: model.Annual, Mode: "sideways"},
		"missing strategy": {CompanyRefs: refs, ReportType: model.Annual},
	} {
		t.Run(name, func(t *testing.T) {
			target := e
			if name == "missing strategy" {
				target = New(&fakePortal{}, extract.NewRegistry(extract.BuybackStrategy{}))
			}
			_, _, err := target.Validate(bad)
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err))
		})
	}
}

func TestValidate_NumericStockholdersHasNoWarning(t *testing.T) {
	_, warnings, err := New(&fakePortal{}, nil).Validate(model.RunRequest{
		CompanyRefs: model.ParseCompanyRefs([]string{"180"}),
		ReportType:  model.TopStockholders,
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestByDay(t *testing.T) {
	h := func(id string, d, hr int) model.DocumentHandle {
		return model.DocumentHandle{EdgeNo: id, DisclosedAt: time.Date(2025, 7, d, hr, 0, 0, 0, time.UTC)}
	}
	groups := byDay([]model.DocumentHandle{h("a", 6, 9), h("b", 7, 8), h("c", 7, 12), h("d", 5, 1)})
	require.Len(t, groups, 3)
	assert.Equal(t, []string{"c", "b"}, []string{groups[0][0].EdgeNo, groups[0][1].EdgeNo})
	assert.Equal(t, "a", groups[1][0].EdgeNo)
	assert.Equal(t, "d", groups[2][0].EdgeNo)
}
