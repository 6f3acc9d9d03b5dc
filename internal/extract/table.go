package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cellText prefers the portal's value span over the cell's full text.
func cellText(cell *goquery.Selection) string {
	if v := cell.Find("span.valInput"); v.Length() > 0 {
		return CleanText(v.First().Text())
	}
	return CleanText(cell.Text())
}

// ownRows returns the rows of table, excluding rows of nested tables.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

// Grid flattens a table into rows of cell text. Spanned cells are expanded so
// that columns line up; the copies are empty strings.
func Grid(table *goquery.Selection) [][]string {
	rows := ownRows(table)
	var grid [][]string
	// pending[col] counts how many more rows a rowspan occupies col.
	pending := map[int]int{}

	rows.Each(func(_ int, tr *goquery.Selection) {
		var row []string
		col := 0
		skipSpanned := func() {
			for pending[col] > 0 {
				pending[col]--
				row = append(row, "")
				col++
			}
		}
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			skipSpanned()
			colspan := spanAttr(cell, "colspan")
			rowspan := spanAttr(cell, "rowspan")
			row = append(row, cellText(cell))
			for c := 0; c < colspan; c++ {
				if c > 0 {
					row = append(row, "")
				}
				if rowspan > 1 {
					pending[col] = rowspan - 1
				}
				col++
			}
		})
		skipSpanned()
		if len(row) > 0 {
			grid = append(grid, row)
		}
	})
	return grid
}

func spanAttr(cell *goquery.Selection, name string) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr(name, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Pair is a label/value row.
type Pair struct {
	Label string
	Value string
}

// Pairs returns the rows of table that have exactly two cells.
func Pairs(table *goquery.Selection) []Pair {
	var out []Pair
	ownRows(table).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("th, td")
		if cells.Length() != 2 {
			return
		}
		out = append(out, Pair{Label: cellText(cells.Eq(0)), Value: cellText(cells.Eq(1))})
	})
	return out
}

// HeaderPairs returns th/td pairs: the first th of each row and the first td
// after it. Rows may carry extra cells.
func HeaderPairs(table *goquery.Selection) []Pair {
	var out []Pair
	ownRows(table).Each(func(_ int, tr *goquery.Selection) {
		th := tr.ChildrenFiltered("th").First()
		td := tr.ChildrenFiltered("td").First()
		if th.Length() == 0 || td.Length() == 0 {
			return
		}
		out = append(out, Pair{Label: cellText(th), Value: cellText(td)})
	})
	return out
}

// Caption returns the lower-cased caption text of table.
func Caption(table *goquery.Selection) string {
	return strings.ToLower(CleanText(table.ChildrenFiltered("caption").First().Text()))
}

// TableByCaption returns the first table whose caption contains any needle
// (case-insensitive). The result is empty when none matches.
func TableByCaption(doc *goquery.Selection, needles ...string) *goquery.Selection {
	return doc.Find("table").FilterFunction(func(_ int, t *goquery.Selection) bool {
		c := Caption(t)
		if c == "" {
			return false
		}
		for _, n := range needles {
			if strings.Contains(c, strings.ToLower(n)) {
				return true
			}
		}
		return false
	}).First()
}

// rowRule maps a row label to a semantic key. Every string in all must occur
// in the lower-cased label and none of none may.
type rowRule struct {
	key  string
	all  []string
	none []string
}

func (r rowRule) matches(label string) bool {
	for _, s := range r.all {
		if !strings.Contains(label, s) {
			return false
		}
	}
	for _, s := range r.none {
		if strings.Contains(label, s) {
			return false
		}
	}
	return true
}

// matchLabel returns the key of the first rule matching label. Rules are
// ordered most specific first.
func matchLabel(label string, rules []rowRule) (string, bool) {
	l := strings.ToLower(CleanText(label))
	if l == "" {
		return "", false
	}
	for _, r := range rules {
		if r.matches(l) {
			return r.key, true
		}
	}
	return "", false
}

// Slug turns a label into a snake_case key.
func Slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// labelledRows scans grid rows, matches each row label (column 0) against
// rules and returns the first row seen for every key.
func labelledRows(grid [][]string, rules []rowRule) map[string][]string {
	out := map[string][]string{}
	for _, row := range grid {
		if len(row) < 2 {
			continue
		}
		key, ok := matchLabel(row[0], rules)
		if !ok {
			continue
		}
		if _, seen := out[key]; !seen {
			out[key] = row
		}
	}
	return out
}

// columnNames derives a slug per data column (1..n) from a header row,
// falling back to the given defaults or colN.
func columnNames(header []string, width int, defaults []string) []string {
	names := make([]string, width)
	for i := 1; i < width; i++ {
		name := ""
		if i < len(header) {
			name = Slug(header[i])
		}
		if name == "" && i-1 < len(defaults) {
			name = defaults[i-1]
		}
		if name == "" {
			name = "col" + strconv.Itoa(i)
		}
		names[i] = name
	}
	return names
}
