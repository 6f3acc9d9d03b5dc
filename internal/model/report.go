// Package model holds the domain types shared by the scraping core: report
// types, company references, document handles, records and run bookkeeping.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ReportType selects the search template, extraction strategy and output
// shape for a run. It is fixed for the duration of a run.
type ReportType string

const (
	PublicOwnership ReportType = "public_ownership"
	Annual          ReportType = "annual"
	Quarterly       ReportType = "quarterly"
	TopStockholders ReportType = "top_stockholders"
	CashDividends   ReportType = "cash_dividends"
	ShareBuyback    ReportType = "share_buyback"
)

// ReportTypeInfo is the static metadata attached to a ReportType.
type ReportTypeInfo struct {
	// Template is the portal's tmplNm search value.
	Template string
	// Label is a human-readable name.
	Label string
	// DefaultMode applies when a run does not choose one.
	DefaultMode Mode
	// HasSummary reports whether a Summary output shape exists.
	HasSummary bool
	// FormNumber, when set, restricts search hits to that form.
	FormNumber string
	// NumericIDPreferred marks types whose search is only reliable with a
	// numeric company id.
	NumericIDPreferred bool
}

var reportTypes = map[ReportType]ReportTypeInfo{
	PublicOwnership: {Template: "Public Ownership Report", Label: "Public Ownership", DefaultMode: FirstMatchOnly},
	Annual:          {Template: "Annual Report", Label: "Annual Report", DefaultMode: FirstMatchOnly},
	Quarterly:       {Template: "Quarterly Report", Label: "Quarterly Report", DefaultMode: Detailed},
	TopStockholders: {Template: "List of Top 100 Stockholders", Label: "Top 100 Stockholders", DefaultMode: FirstMatchOnly, FormNumber: "17-12-A", NumericIDPreferred: true},
	CashDividends:   {Template: "Declaration of Cash Dividends", Label: "Cash Dividends", DefaultMode: FirstMatchOnly},
	ShareBuyback:    {Template: "Share Buy-Back Transactions", Label: "Share Buy-Back", DefaultMode: Summary, HasSummary: true},
}

// AllReportTypes lists every report type in a stable order.
func AllReportTypes() []ReportType {
	return []ReportType{PublicOwnership, Annual, Quarterly, TopStockholders, CashDividends, ShareBuyback}
}

// Info returns the metadata for r. Unknown types yield the zero value.
func (r ReportType) Info() ReportTypeInfo {
	return reportTypes[r]
}

// Valid reports whether r is a known report type.
func (r ReportType) Valid() bool {
	_, ok := reportTypes[r]
	return ok
}

func (r ReportType) String() string {
	return string(r)
}

// ParseReportType accepts the snake or kebab case key of a report type.
func ParseReportType(s string) (ReportType, error) {
	r := ReportType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !r.Valid() {
		keys := make([]string, 0, len(reportTypes))
		for _, t := range AllReportTypes() {
			keys = append(keys, string(t))
		}
		return "", &ConfigError{Field: "report_type", Reason: fmt.Sprintf("unknown report type %q (valid: %s)", s, strings.Join(keys, ", "))}
	}
	return r, nil
}

// Mode controls how many records per company survive reconciliation and
// which output shape they take.
type Mode string

const (
	// Detailed keeps every record, newest first, with all fields.
	Detailed Mode = "detailed"
	// FirstMatchOnly keeps the newest record per company with all fields.
	FirstMatchOnly Mode = "first_match"
	// Summary keeps the newest record per company in the narrow summary shape.
	Summary Mode = "summary"
)

// ParseMode parses a mode name. The empty string yields "" so callers can
// fall back to the report type default.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "":
		return "", nil
	case "detailed", "all":
		return Detailed, nil
	case "first_match", "first", "latest":
		return FirstMatchOnly, nil
	case "summary":
		return Summary, nil
	default:
		return "", &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q (valid: detailed, first_match, summary)", s)}
	}
}

// Resolve returns m, or the report type's default when m is empty.
func (m Mode) Resolve(r ReportType) Mode {
	if m == "" {
		return r.Info().DefaultMode
	}
	return m
}

// SingleRecord reports whether the mode keeps one record per company.
func (m Mode) SingleRecord() bool {
	return m == FirstMatchOnly || m == Summary
}

// ConfigError is a run-level misconfiguration detected before any request.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Reason
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
