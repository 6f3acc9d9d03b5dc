package model

import (
	"time"
)

// RunRequest is the input to a scraping run.
type RunRequest struct {
	CompanyRefs []CompanyRef `json:"company_refs"`
	ReportType  ReportType   `json:"report_type"`
	Workers     int          `json:"workers"`
	UseProxies  bool         `json:"use_proxies"`
	Mode        Mode         `json:"mode"`
}

// UnitKind distinguishes the two kinds of scheduled work.
type UnitKind string

const (
	UnitPage     UnitKind = "page"
	UnitDocument UnitKind = "document"
)

// UnitState is the lifecycle of a unit of work:
// Pending -> InFlight -> Completed | Failed.
type UnitState int

const (
	UnitPending UnitState = iota
	UnitInFlight
	UnitCompleted
	UnitFailed
)

func (s UnitState) String() string {
	switch s {
	case UnitPending:
		return "pending"
	case UnitInFlight:
		return "in_flight"
	case UnitCompleted:
		return "completed"
	case UnitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s UnitState) Terminal() bool {
	return s == UnitCompleted || s == UnitFailed
}

// ProgressEvent reports a unit state change. Events are transient and only
// meant for display or logging.
type ProgressEvent struct {
	Company   string    `json:"company"`
	Kind      UnitKind  `json:"kind"`
	Key       string    `json:"key"`
	Page      int       `json:"page"`
	State     UnitState `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	Found     int       `json:"found"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
}

// Failure records why a unit or company did not produce data.
type Failure struct {
	Company string   `json:"company"`
	Kind    UnitKind `json:"kind,omitempty"`
	Key     string   `json:"key,omitempty"`
	Class   string   `json:"class"`
	Reason  string   `json:"reason"`
}

// RunSummary describes the outcome of a run.
type RunSummary struct {
	RunID            string         `json:"run_id"`
	ReportType       ReportType     `json:"report_type"`
	Mode             Mode           `json:"mode"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	TotalFound       int            `json:"total_found"`
	TotalExtracted   int            `json:"total_extracted"`
	PerCompanyCounts map[string]int `json:"per_company_counts"`
	NotFound         []string       `json:"not_found,omitempty"`
	Failures         []Failure      `json:"failures,omitempty"`
	Warnings         []string       `json:"warnings,omitempty"`
	UnitsCompleted   int            `json:"units_completed"`
	UnitsFailed      int            `json:"units_failed"`
	Cancelled        bool           `json:"cancelled"`
}

// Duration returns the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
