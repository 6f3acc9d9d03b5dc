package model

import (
	"strings"
)

// CompanyRef identifies a company for search: either a ticker symbol or the
// portal's numeric company id. The two forms are never mapped onto each other.
type CompanyRef struct {
	Value   string `json:"value" yaml:"value"`
	Numeric bool   `json:"numeric" yaml:"numeric"`
}

// ParseCompanyRef trims s and upper-cases symbols. All-digit input becomes a
// numeric reference.
func ParseCompanyRef(s string) CompanyRef {
	s = strings.TrimSpace(s)
	if s != "" && strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		return CompanyRef{Value: s, Numeric: true}
	}
	return CompanyRef{Value: strings.ToUpper(s)}
}

// ParseCompanyRefs parses each entry, dropping blanks and duplicates while
// keeping first-seen order.
func ParseCompanyRefs(values []string) []CompanyRef {
	seen := make(map[CompanyRef]bool, len(values))
	out := make([]CompanyRef, 0, len(values))
	for _, v := range values {
		ref := ParseCompanyRef(v)
		if ref.Value == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

func (c CompanyRef) String() string {
	return c.Value
}

// IsZero reports whether the reference is empty.
func (c CompanyRef) IsZero() bool {
	return c.Value == ""
}
