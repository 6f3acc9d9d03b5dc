package extract

import (
	"fmt"

	"github.com/sells-group/edge-cli/internal/model"
)

// Registry maps report types to their strategies.
type Registry struct {
	strategies map[model.ReportType]Strategy
	order      []model.ReportType // insertion order for deterministic iteration
}

// NewRegistry creates a registry holding the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[model.ReportType]Strategy)}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns the registry with one strategy per report type.
func DefaultRegistry() *Registry {
	return NewRegistry(
		PublicOwnershipStrategy{},
		AnnualStrategy{},
		QuarterlyStrategy{},
		StockholdersStrategy{},
		CashDividendsStrategy{},
		BuybackStrategy{},
	)
}

// Register adds or replaces the strategy for its report type.
func (r *Registry) Register(s Strategy) {
	t := s.ReportType()
	if _, exists := r.strategies[t]; !exists {
		r.order = append(r.order, t)
	}
	r.strategies[t] = s
}

// Get returns the strategy for t. An unknown type is a configuration error.
func (r *Registry) Get(t model.ReportType) (Strategy, error) {
	s, ok := r.strategies[t]
	if !ok {
		return nil, &model.ConfigError{Field: "report_type", Reason: fmt.Sprintf("no extraction strategy for %q", t)}
	}
	return s, nil
}

// Types returns the registered report types in registration order.
func (r *Registry) Types() []model.ReportType {
	out := make([]model.ReportType, len(r.order))
	copy(out, r.order)
	return out
}
