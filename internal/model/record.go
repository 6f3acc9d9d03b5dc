package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date parsed from a disclosure, kept alongside the text
// it was parsed from.
type Date struct {
	Raw   string     `json:"raw"`
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// NewDate builds a Date from a time value and its source text.
func NewDate(t time.Time, raw string) Date {
	return Date{Raw: raw, Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Valid reports whether the triple was parsed.
func (d Date) Valid() bool {
	return d.Year > 0 && d.Month >= time.January && d.Month <= time.December && d.Day > 0
}

// ISO returns YYYY-MM-DD, or the raw text when the date did not parse.
func (d Date) ISO() string {
	if !d.Valid() {
		return d.Raw
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Human returns the "January 2, 2006" rendering.
func (d Date) Human() string {
	if !d.Valid() {
		return d.Raw
	}
	return fmt.Sprintf("%s %d, %d", d.Month, d.Day, d.Year)
}

func (d Date) String() string {
	return d.ISO()
}

// MarshalJSON renders the sortable form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ISO())
}

// FieldMap holds extracted values keyed by semantic name. Values are int64,
// float64, string, bool or Date.
type FieldMap map[string]any

// Clone returns a shallow copy.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DocumentHandle references one disclosure found in a search listing.
type DocumentHandle struct {
	EdgeNo       string     `json:"edge_no"`
	Company      CompanyRef `json:"company"`
	Title        string     `json:"title"`
	FormNumber   string     `json:"form_number"`
	Template     string     `json:"template"`
	DisclosedAt  time.Time  `json:"disclosed_at"`
	DisclosedRaw string     `json:"disclosed_raw"`
	// Page and Index give the discovery position used as the final
	// tie-break during reconciliation.
	Page  int `json:"page"`
	Index int `json:"index"`
}

// ExtractedRecord is the output of an extraction strategy for one document.
type ExtractedRecord struct {
	Symbol      string     `json:"symbol"`
	Company     CompanyRef `json:"company"`
	ReportType  ReportType `json:"report_type"`
	EdgeNo      string     `json:"edge_no"`
	Title       string     `json:"title"`
	DisclosedAt time.Time  `json:"disclosed_at"`
	Amended     bool       `json:"amended"`
	Page        int        `json:"page"`
	Index       int        `json:"index"`
	Fields      FieldMap   `json:"fields"`
}

// DisclosureDate returns the calendar date of the disclosure.
func (r *ExtractedRecord) DisclosureDate() Date {
	if r.DisclosedAt.IsZero() {
		return Date{}
	}
	return NewDate(r.DisclosedAt, r.DisclosedAt.Format("Jan 02, 2006 03:04 PM"))
}

// Key groups records belonging to the same company.
func (r *ExtractedRecord) Key() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return r.Company.Value
}

// CanonicalRecord is a reconciled record. Sources lists every edge number
// whose fields contributed to it, selected record first.
type CanonicalRecord struct {
	ExtractedRecord
	Sources []string `json:"sources"`
}
