package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/edge-cli/internal/model"
)

var numberNoise = strings.NewReplacer(
	",", "",
	"₱", "",
	"PHP", "",
	"Php", "",
	"P ", "",
	"$", "",
	"%", "",
	" ", "",
)

// CleanText collapses runs of whitespace (including non-breaking spaces)
// and trims the result.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Coerce converts a rendered value to int64 or float64. Thousands
// separators, currency markers and percent signs are dropped, a value in
// parentheses is negative, and a decimal point selects float64. Anything
// that does not parse is returned as the trimmed original string.
func Coerce(s string) any {
	raw := CleanText(s)
	if v, ok := parseNumber(raw); ok {
		return v
	}
	return raw
}

// Number is Coerce restricted to numeric results.
func Number(s string) (any, bool) {
	return parseNumber(CleanText(s))
}

func parseNumber(raw string) (any, bool) {
	t := numberNoise.Replace(raw)
	neg := false
	if len(t) > 2 && t[0] == '(' && t[len(t)-1] == ')' {
		neg = true
		t = t[1 : len(t)-1]
	}
	if t == "" || t == "-" || t == "+" {
		return nil, false
	}
	for _, r := range t {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return nil, false
		}
	}

	if strings.Contains(t, ".") {
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, false
		}
		if neg {
			f = -f
		}
		return f, true
	}
	n, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return nil, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// AsFloat reads an int64 or float64 produced by Coerce.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	"Jan 02, 2006 03:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 02, 2006",
	"Jan 2, 2006",
	"January 02, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

// ParseDate parses the date formats that appear in portal listings and
// disclosure bodies.
func ParseDate(s string) (model.Date, bool) {
	raw := CleanText(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.NewDate(t, raw), true
		}
	}
	return model.Date{Raw: raw}, false
}

// ParseTimestamp parses a listing timestamp such as "Jul 07, 2025 12:19 PM".
func ParseTimestamp(s string) (time.Time, bool) {
	raw := CleanText(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dateOrText returns a model.Date when s parses and the cleaned text otherwise.
func dateOrText(s string) any {
	if d, ok := ParseDate(s); ok {
		return d
	}
	return CleanText(s)
}
