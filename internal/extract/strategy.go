// Package extract turns disclosure frame HTML into field maps. One Strategy
// exists per report type; strategies locate data by caption and label text
// rather than by position because the same template renders with shifting
// markup across filings.
package extract

import (
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/edge-cli/internal/model"
)

// Meta is the context passed to a strategy alongside the frame document.
type Meta struct {
	Symbol      string
	EdgeNo      string
	Title       string
	DisclosedAt time.Time
	Amended     bool
}

// Strategy extracts the fields of one report type. Extract returns a nil map
// when the document holds nothing recognisable. Implementations hold no
// mutable state.
type Strategy interface {
	ReportType() model.ReportType
	Extract(doc *goquery.Document, meta Meta) (model.FieldMap, error)
}

// HandleFilter is implemented by strategies that only accept some search hits.
type HandleFilter interface {
	Accept(h model.DocumentHandle) bool
}

// Companion is implemented by strategies whose records carry fields that the
// reconciler may copy between same-day disclosures.
type Companion interface {
	CompanionKeys() []string
}

// ParseError reports a strategy failure on a single document.
type ParseError struct {
	ReportType model.ReportType
	EdgeNo     string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extract: %s document %s: %v", e.ReportType, e.EdgeNo, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Apply runs s against doc. Panics and errors become a *ParseError; an empty
// map becomes nil.
func Apply(s Strategy, doc *goquery.Document, meta Meta) (fields model.FieldMap, err error) {
	defer func() {
		if p := recover(); p != nil {
			fields = nil
			err = &ParseError{ReportType: s.ReportType(), EdgeNo: meta.EdgeNo, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	fields, err = s.Extract(doc, meta)
	if err != nil {
		return nil, &ParseError{ReportType: s.ReportType(), EdgeNo: meta.EdgeNo, Err: err}
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}

// Accepts reports whether s wants the given search hit.
func Accepts(s Strategy, h model.DocumentHandle) bool {
	if f, ok := s.(HandleFilter); ok {
		return f.Accept(h)
	}
	return true
}

// CompanionKeys returns the companion field keys of s, if any.
func CompanionKeys(s Strategy) []string {
	if c, ok := s.(Companion); ok {
		return c.CompanionKeys()
	}
	return nil
}
