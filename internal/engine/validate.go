package engine

import (
	"fmt"

	"github.com/sells-group/edge-cli/internal/model"
	"github.com/sells-group/edge-cli/internal/normalize"
)

// Worker pool bounds.
const (
	DefaultWorkers = 5
	MaxWorkers     = 10
)

// Validate checks req without touching the network and returns it with
// defaults applied (worker count, mode) plus any advisory warnings. All
// failures are *model.ConfigError.
func (e *Engine) Validate(req model.RunRequest) (model.RunRequest, []string, error) {
	if !req.ReportType.Valid() {
		return req, nil, &model.ConfigError{Field: "report_type", Reason: fmt.Sprintf("unknown report type %q", req.ReportType)}
	}
	if _, err := e.registry.Get(req.ReportType); err != nil {
		return req, nil, err
	}

	req.Mode = req.Mode.Resolve(req.ReportType)
	switch req.Mode {
	case model.Detailed, model.FirstMatchOnly:
	case model.Summary:
		if !normalize.HasSummary(req.ReportType) {
			return req, nil, &model.ConfigError{
				Field:  "mode",
				Reason: fmt.Sprintf("summary output is not defined for %s", req.ReportType),
			}
		}
	default:
		return req, nil, &model.ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", req.Mode)}
	}

	if req.Workers == 0 {
		req.Workers = DefaultWorkers
	}
	if req.Workers < 1 || req.Workers > MaxWorkers {
		return req, nil, &model.ConfigError{Field: "workers", Reason: fmt.Sprintf("must be between 1 and %d, got %d", MaxWorkers, req.Workers)}
	}

	var refs []model.CompanyRef
	seen := make(map[model.CompanyRef]bool, len(req.CompanyRefs))
	for _, ref := range req.CompanyRefs {
		if ref.IsZero() || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return req, nil, &model.ConfigError{Field: "companies", Reason: "at least one company is required"}
	}
	req.CompanyRefs = refs

	var warnings []string
	if req.ReportType.Info().NumericIDPreferred {
		for _, ref := range refs {
			if !ref.Numeric {
				warnings = append(warnings, fmt.Sprintf(
					"%s: %s search is only reliable with a numeric company id; results for symbol %q may be incomplete",
					ref.Value, req.ReportType.Info().Label, ref.Value))
			}
		}
	}
	return req, warnings, nil
}
