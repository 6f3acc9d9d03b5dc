package edge

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/edge-cli/internal/extract"
	"github.com/sells-group/edge-cli/internal/model"
)

var (
	popupRe    = regexp.MustCompile(`openPopup\('(.+?)'\)`)
	pageOfRe   = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
	resultsRe  = regexp.MustCompile(`(?i)of\s+([\d,]+)\s+results?`)
	commaStrip = strings.NewReplacer(",", "")
)

// SearchPage is one page of search results.
type SearchPage struct {
	Page       int
	TotalPages int
	Handles    []model.DocumentHandle
	// Rows counts listing rows before unparseable entries were dropped.
	Rows int
}

// SearchForm builds the POST form for a search. Numeric references search
// by company id, symbols by keyword.
func SearchForm(ref model.CompanyRef, rt model.ReportType, page int) url.Values {
	form := url.Values{
		"tmplNm":       {rt.Info().Template},
		"sortType":     {"date"},
		"dateSortType": {"DESC"},
		"pageNo":       {strconv.Itoa(page)},
	}
	if ref.Numeric {
		form.Set("companyId", ref.Value)
	} else {
		form.Set("keyword", ref.Value)
	}
	return form
}

// Search fetches one page of disclosures for ref. A first page without any
// listing rows yields ErrNoDisclosures. Pages are numbered from 1.
func (c *Client) Search(ctx context.Context, ref model.CompanyRef, rt model.ReportType, page int) (*SearchPage, error) {
	if page < 1 {
		return nil, eris.Errorf("edge: search %s: invalid page %d", ref, page)
	}
	resp, err := c.transport.PostForm(ctx, c.endpoint(searchPath), SearchForm(ref, rt, page))
	if err != nil {
		return nil, eris.Wrapf(err, "edge: search %s page %d", ref, page)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, eris.Wrapf(err, "edge: parse search %s page %d", ref, page)
	}

	result := ParseSearchPage(doc, ref, rt, page)
	if page == 1 && result.Rows == 0 {
		return result, eris.Wrapf(ErrNoDisclosures, "%s %s", ref, rt)
	}
	return result, nil
}

// ParseSearchPage reads the listing rows and page count from a search page.
func ParseSearchPage(doc *goquery.Document, ref model.CompanyRef, rt model.ReportType, page int) *SearchPage {
	log := zap.L().With(zap.String("component", "edge.search"), zap.String("company", ref.Value), zap.Int("page", page))
	out := &SearchPage{Page: page, TotalPages: PageCount(doc)}

	doc.Find("a[onclick]").Each(func(_ int, a *goquery.Selection) {
		m := popupRe.FindStringSubmatch(a.AttrOr("onclick", ""))
		if m == nil {
			return
		}
		out.Rows++

		dateCell := a.Closest("td").Next()
		raw := extract.CleanText(dateCell.Text())
		disclosed, ok := extract.ParseTimestamp(raw)
		if !ok {
			log.Debug("skipping listing row with unparseable date", zap.String("edge_no", m[1]), zap.String("date", raw))
			return
		}

		out.Handles = append(out.Handles, model.DocumentHandle{
			EdgeNo:       m[1],
			Company:      ref,
			Title:        extract.CleanText(a.Text()),
			FormNumber:   extract.CleanText(dateCell.Next().Text()),
			Template:     rt.Info().Template,
			DisclosedAt:  disclosed,
			DisclosedRaw: raw,
			Page:         page,
			Index:        len(out.Handles),
		})
	})
	return out
}

// PageCount reads the total page count from span.count. Both "n / N" and
// "of X results" renderings are understood; anything else means one page.
func PageCount(doc *goquery.Document) int {
	text := extract.CleanText(doc.Find("span.count").First().Text())
	if text == "" {
		return 1
	}
	if m := pageOfRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			return n
		}
	}
	if m := resultsRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(commaStrip.Replace(m[1])); err == nil && n > 0 {
			return (n + ResultsPerPage - 1) / ResultsPerPage
		}
	}
	return 1
}
