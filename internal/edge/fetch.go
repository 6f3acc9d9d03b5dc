package edge

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/sells-group/edge-cli/internal/extract"
	"github.com/sells-group/edge-cli/internal/model"
)

// IsAmendment reports whether any of the texts marks an amended filing.
// "amend" covers "Amendment" and the "[Amend-1]" title prefix.
func IsAmendment(texts ...string) bool {
	for _, t := range texts {
		if strings.Contains(strings.ToLower(t), "amend") {
			return true
		}
	}
	return false
}

// Fetch follows h from the viewer page to its report frame and runs s over
// the frame. A missing frame or symbol, or a strategy that finds nothing or
// fails, yields (nil, nil). Transport failures are returned.
func (c *Client) Fetch(ctx context.Context, h model.DocumentHandle, s extract.Strategy) (*model.ExtractedRecord, error) {
	log := zap.L().With(
		zap.String("component", "edge.fetch"),
		zap.String("company", h.Company.Value),
		zap.String("edge_no", h.EdgeNo),
	)

	viewer, err := c.get(ctx, c.endpoint(viewerPath), url.Values{"edge_no": {h.EdgeNo}})
	if err != nil {
		return nil, eris.Wrapf(err, "edge: open viewer %s", h.EdgeNo)
	}

	src := strings.TrimSpace(viewer.Find("iframe[src]").First().AttrOr("src", ""))
	if src == "" {
		log.Debug("viewer page has no report frame")
		return nil, nil
	}
	frameURL, err := c.resolve(src)
	if err != nil {
		log.Debug("unusable frame link", zap.String("src", src), zap.Error(err))
		return nil, nil
	}

	frame, err := c.get(ctx, frameURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "edge: open frame %s", h.EdgeNo)
	}

	symbol := extract.CleanText(frame.Find("span#companyStockSymbol").First().Text())
	if symbol == "" && !h.Company.Numeric {
		symbol = h.Company.Value
	}
	if symbol == "" {
		log.Debug("frame has no company symbol")
		return nil, nil
	}

	amended := IsAmendment(
		h.Title,
		frame.Find("title").First().Text(),
		frame.Find("h1, h2, h3").Text(),
	)

	meta := extract.Meta{
		Symbol:      symbol,
		EdgeNo:      h.EdgeNo,
		Title:       h.Title,
		DisclosedAt: h.DisclosedAt,
		Amended:     amended,
	}
	fields, err := extract.Apply(s, frame, meta)
	if err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return nil, nil
	}
	if fields == nil {
		log.Debug("no recognisable data in frame")
		return nil, nil
	}

	return &model.ExtractedRecord{
		Symbol:      symbol,
		Company:     h.Company,
		ReportType:  s.ReportType(),
		EdgeNo:      h.EdgeNo,
		Title:       h.Title,
		DisclosedAt: h.DisclosedAt,
		Amended:     amended,
		Page:        h.Page,
		Index:       h.Index,
		Fields:      fields,
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values) (*goquery.Document, error) {
	resp, err := c.transport.Get(ctx, rawURL, query)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, eris.Wrapf(err, "edge: parse %s", rawURL)
	}
	return goquery.NewDocumentFromNode(root), nil
}
