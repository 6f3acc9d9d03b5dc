package engine

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/edge-cli/internal/edge"
	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/resilience"
)

// CancelledReason is the failure reason of units cut short by cancellation.
const CancelledReason = "cancelled"

// unit is one scheduled page search or document fetch. The identifying
// fields are fixed before scheduling; state and results are written only by
// the collector.
type unit struct {
	company model.CompanyRef
	kind    model.UnitKind
	page    int
	handle  model.DocumentHandle

	state  model.UnitState
	reason string
	err    error
	search *edge.SearchPage
	record *model.ExtractedRecord
}

func (u *unit) key() string {
	if u.kind == model.UnitPage {
		return strconv.Itoa(u.page)
	}
	return u.handle.EdgeNo
}

// outcome is what a worker reports back to the collector.
type outcome struct {
	u      *unit
	state  model.UnitState
	err    error
	search *edge.SearchPage
	record *model.ExtractedRecord
}

type work func(ctx context.Context, u *unit) outcome

// runPhase executes units on a bounded pool. Workers send transitions on a
// channel drained by the calling goroutine, which is the only writer of unit
// state. Units not finished when the phase ends (because ctx was cancelled)
// are marked failed.
func (r *run) runPhase(ctx context.Context, units []*unit, fn work) {
	if len(units) == 0 {
		return
	}
	for _, u := range units {
		u.state = model.UnitPending
		r.emit(u)
	}

	transitions := make(chan outcome)
	go func() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.req.Workers)
	schedule:
		for _, u := range units {
			select {
			case <-gctx.Done():
				break schedule
			default:
			}
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				transitions <- outcome{u: u, state: model.UnitInFlight}
				transitions <- fn(gctx, u)
				return nil
			})
		}
		_ = g.Wait()
		close(transitions)
	}()

	for o := range transitions {
		r.apply(o)
	}

	for _, u := range units {
		if !u.state.Terminal() {
			r.apply(outcome{u: u, state: model.UnitFailed, err: context.Canceled})
		}
	}
}

// apply records a transition. It runs on the collector goroutine only.
func (r *run) apply(o outcome) {
	u := o.u
	u.state = o.state
	u.err = o.err
	switch o.state {
	case model.UnitInFlight:
	case model.UnitCompleted:
		u.search, u.record = o.search, o.record
		r.completed++
	case model.UnitFailed:
		if errors.Is(o.err, context.Canceled) {
			u.reason = CancelledReason
		} else {
			u.reason = o.err.Error()
		}
		r.failed++
		r.fail(u)
	}
	r.emit(u)
}

// fail records a unit failure in the run summary.
func (r *run) fail(u *unit) {
	r.summary.Failures = append(r.summary.Failures, model.Failure{
		Company: u.company.Value,
		Kind:    u.kind,
		Key:     u.key(),
		Class:   resilience.ClassifyError(u.err),
		Reason:  u.reason,
	})
}

func (r *run) emit(u *unit) {
	if r.progress == nil {
		return
	}
	r.progress(model.ProgressEvent{
		Company:   u.company.Value,
		Kind:      u.kind,
		Key:       u.key(),
		Page:      u.page,
		State:     u.state,
		Reason:    u.reason,
		Found:     r.summary.TotalFound,
		Completed: r.completed,
		Failed:    r.failed,
	})
}
