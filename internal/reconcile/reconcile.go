// Package reconcile folds the extracted records of one report type into
// canonical per-company results.
package reconcile

import (
	"sort"

	"github.com/sells-group/edge-cli/internal/model"
)

// Newer reports whether a should come before b: later disclosure first,
// then amended before original, then earlier discovery position.
func Newer(a, b *model.ExtractedRecord) bool {
	if !a.DisclosedAt.Equal(b.DisclosedAt) {
		return a.DisclosedAt.After(b.DisclosedAt)
	}
	if a.Amended != b.Amended {
		return a.Amended
	}
	if a.Page != b.Page {
		return a.Page < b.Page
	}
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.EdgeNo < b.EdgeNo
}

// Reconcile groups records by company. Detailed mode keeps every record,
// newest first. Single-record modes keep the newest record per company and
// fill its missing companion fields from records disclosed the same day.
// Companies are returned in key order.
func Reconcile(records []model.ExtractedRecord, mode model.Mode, companionKeys []string) []model.CanonicalRecord {
	groups := make(map[string][]model.ExtractedRecord)
	for _, r := range records {
		groups[r.Key()] = append(groups[r.Key()], r)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []model.CanonicalRecord
	for _, k := range keys {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool { return Newer(&group[i], &group[j]) })

		if !mode.SingleRecord() {
			for _, r := range group {
				out = append(out, canonical(r))
			}
			continue
		}
		out = append(out, selectLatest(group, companionKeys))
	}
	return out
}

func canonical(r model.ExtractedRecord) model.CanonicalRecord {
	r.Fields = r.Fields.Clone()
	return model.CanonicalRecord{ExtractedRecord: r, Sources: []string{r.EdgeNo}}
}

// selectLatest takes the head of a sorted group and merges companions.
func selectLatest(group []model.ExtractedRecord, companionKeys []string) model.CanonicalRecord {
	c := canonical(group[0])
	if len(companionKeys) == 0 {
		return c
	}
	day := c.DisclosureDate().ISO()

	for _, other := range group[1:] {
		if other.DisclosureDate().ISO() != day {
			continue
		}
		contributed := false
		for _, key := range companionKeys {
			if _, ok := c.Fields[key]; ok {
				continue
			}
			if v, ok := other.Fields[key]; ok {
				c.Fields[key] = v
				contributed = true
			}
		}
		if contributed {
			c.Sources = append(c.Sources, other.EdgeNo)
		}
	}
	return c
}
