// Package engine coordinates a scraping run: it discovers disclosures for
// every requested company, fetches and extracts them on a bounded worker
// pool, then reconciles and normalizes the results.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/edge"
	"github.com/sells-group/edge-cli/internal/extract"
	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/normalize"
	"github.com/sells-group/edge-cli/internal/reconcile"
)

// Portal is the part of the portal client the engine drives.
type Portal interface {
	Search(ctx context.Context, ref model.CompanyRef, rt model.ReportType, page int) (*edge.SearchPage, error)
	Fetch(ctx context.Context, h model.DocumentHandle, s extract.Strategy) (*model.ExtractedRecord, error)
}

// Engine runs scraping requests. It is safe for sequential reuse.
type Engine struct {
	portal   Portal
	registry *extract.Registry
	progress func(model.ProgressEvent)
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress registers fn to receive every unit state change. fn is called
// from a single goroutine.
func WithProgress(fn func(model.ProgressEvent)) Option {
	return func(e *Engine) { e.progress = fn }
}

// New creates an Engine. A nil registry means extract.DefaultRegistry.
func New(portal Portal, registry *extract.Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = extract.DefaultRegistry()
	}
	e := &Engine{portal: portal, registry: registry, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of a run. It is returned, possibly partial, even
// when the run is cancelled.
type Result struct {
	Records []model.CanonicalRecord
	Table   *normalize.Table
	Summary *model.RunSummary
}

// run holds the collector-owned state of one Run call.
type run struct {
	req      model.RunRequest
	strategy extract.Strategy
	progress func(model.ProgressEvent)
	log      *zap.Logger

	summary   *model.RunSummary
	completed int
	failed    int

	firstPages map[model.CompanyRef]*unit
	pages      map[model.CompanyRef][]*unit
	records    []model.ExtractedRecord
}

// Run executes req. Configuration problems are returned before any request
// is made. Unit failures never abort the run; they are listed in the
// summary. On cancellation the partial result is returned together with the
// wrapped context error.
func (e *Engine) Run(ctx context.Context, req model.RunRequest) (*Result, error) {
	req, warnings, err := e.Validate(req)
	if err != nil {
		return nil, err
	}
	strategy, err := e.registry.Get(req.ReportType)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	r := &run{
		req:      req,
		strategy: strategy,
		progress: e.progress,
		log: zap.L().With(
			zap.String("component", "engine"),
			zap.String("run_id", runID),
			zap.String("report_type", string(req.ReportType)),
		),
		summary: &model.RunSummary{
			RunID:            runID,
			ReportType:       req.ReportType,
			Mode:             req.Mode,
			StartedAt:        e.now(),
			PerCompanyCounts: make(map[string]int, len(req.CompanyRefs)),
			Warnings:         warnings,
		},
		firstPages: make(map[model.CompanyRef]*unit, len(req.CompanyRefs)),
		pages:      make(map[model.CompanyRef][]*unit, len(req.CompanyRefs)),
	}
	for _, w := range warnings {
		r.log.Warn(w)
	}
	r.log.Info("starting run",
		zap.Int("companies", len(req.CompanyRefs)),
		zap.Int("workers", req.Workers),
		zap.String("mode", string(req.Mode)),
	)

	r.discover(ctx, e.portal)
	handles := r.collectHandles()
	r.fetchDocuments(ctx, e.portal, handles)

	for _, ref := range req.CompanyRefs {
		r.summary.PerCompanyCounts[ref.Value] = 0
	}
	for _, rec := range r.records {
		r.summary.PerCompanyCounts[rec.Company.Value]++
	}
	for _, ref := range req.CompanyRefs {
		if len(handles[ref]) > 0 && r.summary.PerCompanyCounts[ref.Value] == 0 {
			r.log.Info("no data extracted from disclosures", zap.String("company", ref.Value), zap.Int("disclosures", len(handles[ref])))
		}
	}

	records := reconcile.Reconcile(r.records, req.Mode, extract.CompanionKeys(strategy))
	table := normalize.Normalize(req.ReportType, records, req.Mode)
	if table.Len() == 0 {
		r.log.Info("no data found")
	}

	r.summary.TotalExtracted = len(r.records)
	r.summary.UnitsCompleted = r.completed
	r.summary.UnitsFailed = r.failed
	r.summary.FinishedAt = e.now()
	sort.Strings(r.summary.NotFound)

	result := &Result{Records: records, Table: table, Summary: r.summary}
	if err := ctx.Err(); err != nil {
		r.summary.Cancelled = true
		r.log.Warn("run cancelled; returning partial results", zap.Int("records", len(records)))
		return result, eris.Wrap(err, "engine: run cancelled")
	}

	r.log.Info("run complete",
		zap.Int("found", r.summary.TotalFound),
		zap.Int("extracted", r.summary.TotalExtracted),
		zap.Int("rows", table.Len()),
		zap.Int("failed_units", r.failed),
		zap.Duration("elapsed", r.summary.Duration()),
	)
	return result, nil
}

// discover searches page 1 for every company, then the remaining pages of
// companies that have more.
func (r *run) discover(ctx context.Context, portal Portal) {
	first := make([]*unit, 0, len(r.req.CompanyRefs))
	for _, ref := range r.req.CompanyRefs {
		u := &unit{company: ref, kind: model.UnitPage, page: 1}
		r.firstPages[ref] = u
		first = append(first, u)
	}
	r.runPhase(ctx, first, r.searchWork(portal))

	var rest []*unit
	for _, ref := range r.req.CompanyRefs {
		u := r.firstPages[ref]
		switch {
		case u.state == model.UnitFailed:
			continue
		case eris.Is(u.err, edge.ErrNoDisclosures) || u.search == nil:
			r.summary.NotFound = append(r.summary.NotFound, ref.Value)
			r.log.Info("no disclosures found", zap.String("company", ref.Value))
			continue
		}
		r.pages[ref] = []*unit{u}
		for p := 2; p <= u.search.TotalPages; p++ {
			pu := &unit{company: ref, kind: model.UnitPage, page: p}
			r.pages[ref] = append(r.pages[ref], pu)
			rest = append(rest, pu)
		}
	}
	r.runPhase(ctx, rest, r.searchWork(portal))
}

func (r *run) searchWork(portal Portal) work {
	return func(ctx context.Context, u *unit) outcome {
		page, err := portal.Search(ctx, u.company, r.req.ReportType, u.page)
		if err != nil {
			if u.page == 1 && eris.Is(err, edge.ErrNoDisclosures) {
				return outcome{u: u, state: model.UnitCompleted, err: err}
			}
			return outcome{u: u, state: model.UnitFailed, err: err}
		}
		return outcome{u: u, state: model.UnitCompleted, search: page}
	}
}

// collectHandles gathers accepted handles per company in discovery order,
// dropping duplicates that shifted between pages.
func (r *run) collectHandles() map[model.CompanyRef][]model.DocumentHandle {
	out := make(map[model.CompanyRef][]model.DocumentHandle, len(r.pages))
	for _, ref := range r.req.CompanyRefs {
		pages := r.pages[ref]
		if len(pages) == 0 {
			continue
		}
		want := pages[0].search.TotalPages
		seen := make(map[string]bool)
		for _, pu := range pages {
			if pu.search == nil {
				continue
			}
			if pu.page > 1 && pu.search.TotalPages != want {
				r.log.Warn("page count changed during pagination; keeping first page count",
					zap.String("company", ref.Value),
					zap.Int("page", pu.page),
					zap.Int("first_page_count", want),
					zap.Int("this_page_count", pu.search.TotalPages),
				)
			}
			for _, h := range pu.search.Handles {
				if seen[h.EdgeNo] {
					continue
				}
				seen[h.EdgeNo] = true
				if !extract.Accepts(r.strategy, h) {
					r.log.Debug("skipping disclosure rejected by form filter",
						zap.String("company", ref.Value),
						zap.String("edge_no", h.EdgeNo),
						zap.String("form", h.FormNumber),
					)
					continue
				}
				out[ref] = append(out[ref], h)
			}
		}
		r.summary.TotalFound += len(out[ref])
	}
	return out
}

// fetchDocuments extracts the collected handles. Detailed runs fetch every
// handle at once. Single-record runs go one listing day at a time, newest
// first, and stop for a company once a day yields a record or has a failed
// fetch. Only days without data let the walk reach older disclosures.
func (r *run) fetchDocuments(ctx context.Context, portal Portal, handles map[model.CompanyRef][]model.DocumentHandle) {
	fetch := func(ctx context.Context, u *unit) outcome {
		rec, err := portal.Fetch(ctx, u.handle, r.strategy)
		if err != nil {
			return outcome{u: u, state: model.UnitFailed, err: err}
		}
		return outcome{u: u, state: model.UnitCompleted, record: rec}
	}

	if !r.req.Mode.SingleRecord() {
		var units []*unit
		for _, ref := range r.req.CompanyRefs {
			for _, h := range handles[ref] {
				units = append(units, &unit{company: ref, kind: model.UnitDocument, page: h.Page, handle: h})
			}
		}
		r.runPhase(ctx, units, fetch)
		r.keep(units)
		return
	}

	days := make(map[model.CompanyRef][][]model.DocumentHandle, len(handles))
	for ref, hs := range handles {
		days[ref] = byDay(hs)
	}
	for round := 0; ctx.Err() == nil; round++ {
		var units []*unit
		for _, ref := range r.req.CompanyRefs {
			if round >= len(days[ref]) {
				continue
			}
			for _, h := range days[ref][round] {
				units = append(units, &unit{company: ref, kind: model.UnitDocument, page: h.Page, handle: h})
			}
		}
		if len(units) == 0 {
			return
		}
		r.runPhase(ctx, units, fetch)
		found, failed := r.keep(units)
		for ref := range found {
			delete(days, ref)
		}
		for _, ref := range r.req.CompanyRefs {
			n := failed[ref]
			if n == 0 {
				continue
			}
			delete(days, ref)
			if ctx.Err() != nil {
				continue
			}
			day := dayOf(handles[ref], round)
			msg := fmt.Sprintf("%s: %d disclosure(s) from %s could not be fetched; older disclosures were not used", ref.Value, n, day)
			if !found[ref] {
				msg = fmt.Sprintf("%s: %d disclosure(s) from %s could not be fetched; no record reported and older disclosures were not used", ref.Value, n, day)
			}
			r.summary.Warnings = append(r.summary.Warnings, msg)
			r.log.Warn("newest disclosure day incomplete", zap.String("company", ref.Value), zap.String("day", day), zap.Int("failed", n))
		}
	}
}

// dayOf returns the listing date of the given day group of hs.
func dayOf(hs []model.DocumentHandle, round int) string {
	groups := byDay(hs)
	if round >= len(groups) || len(groups[round]) == 0 {
		return ""
	}
	return groups[round][0].DisclosedAt.Format(time.DateOnly)
}

// keep moves the records of completed units into the run. It reports which
// companies produced at least one record and how many units failed per
// company.
func (r *run) keep(units []*unit) (map[model.CompanyRef]bool, map[model.CompanyRef]int) {
	found := make(map[model.CompanyRef]bool)
	failed := make(map[model.CompanyRef]int)
	for _, u := range units {
		if u.state == model.UnitFailed {
			failed[u.company]++
			continue
		}
		if u.record == nil {
			continue
		}
		rec := *u.record
		rec.Company = u.company
		r.records = append(r.records, rec)
		found[u.company] = true
	}
	return found, failed
}

// byDay splits handles into groups sharing a listing date, newest day first.
// Handles keep their discovery order within a day.
func byDay(hs []model.DocumentHandle) [][]model.DocumentHandle {
	sorted := append([]model.DocumentHandle(nil), hs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisclosedAt.After(sorted[j].DisclosedAt)
	})

	var out [][]model.DocumentHandle
	last := ""
	for _, h := range sorted {
		day := h.DisclosedAt.Format(time.DateOnly)
		if len(out) == 0 || day != last {
			out = append(out, nil)
			last = day
		}
		out[len(out)-1] = append(out[len(out)-1], h)
	}
	return out
}
