package output

import (
	"io"
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/normalize"
)

// NoDataMessage is printed when a run produced no rows.
const NoDataMessage = "No data found"

// PrintSummary writes a human-readable run report to w.
func PrintSummary(w io.Writer, s *model.RunSummary, t *normalize.Table, paths []string) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "\n=== %s (%s) ===\n", s.ReportType.Info().Label, s.Mode)
	p.Fprintf(w, "Run:         %s\n", s.RunID)
	p.Fprintf(w, "Disclosures: %d found, %d extracted\n", s.TotalFound, s.TotalExtracted)
	p.Fprintf(w, "Units:       %d completed, %d failed\n", s.UnitsCompleted, s.UnitsFailed)
	p.Fprintf(w, "Elapsed:     %s\n", s.Duration().Round(time.Millisecond))
	if s.Cancelled {
		p.Fprintf(w, "Status:      cancelled (partial results)\n")
	}

	if len(s.PerCompanyCounts) > 0 {
		companies := make([]string, 0, len(s.PerCompanyCounts))
		for c := range s.PerCompanyCounts {
			companies = append(companies, c)
		}
		sort.Strings(companies)
		p.Fprintf(w, "\nPer company:\n")
		for _, c := range companies {
			p.Fprintf(w, "  %-12s %d\n", c, s.PerCompanyCounts[c])
		}
	}

	if len(s.NotFound) > 0 {
		p.Fprintf(w, "\nNo disclosures: %d companies\n", len(s.NotFound))
		for _, c := range s.NotFound {
			p.Fprintf(w, "  %s\n", c)
		}
	}

	if len(s.Failures) > 0 {
		p.Fprintf(w, "\nFailures: %d\n", len(s.Failures))
		for _, f := range s.Failures {
			p.Fprintf(w, "  %s %s %s [%s] %s\n", f.Company, f.Kind, f.Key, f.Class, f.Reason)
		}
	}

	for _, warning := range s.Warnings {
		p.Fprintf(w, "\nWarning: %s\n", warning)
	}

	if t == nil || t.Len() == 0 {
		p.Fprintf(w, "\n%s\n", NoDataMessage)
		return
	}
	p.Fprintf(w, "\nRows: %d\n", t.Len())
	if len(t.Columns) > 0 && t.Columns[0] == normalize.ColSymbol && len(t.Columns) > 1 {
		for i := 0; i < t.Len(); i++ {
			vals := t.Values(i)
			p.Fprintf(w, "  %-8s %s", cellString(vals[0]), dateString(vals[1]))
			for c := 2; c < len(vals) && c < 6; c++ {
				p.Fprintf(w, "  %s=%s", t.Columns[c], numberString(p, vals[c]))
			}
			p.Fprintf(w, "\n")
		}
	}
	for _, path := range paths {
		p.Fprintf(w, "Wrote %s\n", path)
	}
}

// dateString spells dates out for the console; files keep the ISO form.
func dateString(v any) string {
	if d, ok := v.(model.Date); ok {
		return d.Human()
	}
	return cellString(v)
}

// numberString renders numbers with thousands separators.
func numberString(p *message.Printer, v any) string {
	switch x := v.(type) {
	case int64:
		return p.Sprintf("%d", x)
	case float64:
		if math.Abs(x) < 1e15 && x == math.Trunc(x) {
			return p.Sprintf("%d", int64(x))
		}
		return p.Sprintf("%.2f", x)
	default:
		return cellString(v)
	}
}
