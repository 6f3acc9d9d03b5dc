// Package edge talks to the PSE EDGE disclosure portal: it pages through
// company search results and follows a disclosure from its viewer page to
// the framed report body.
package edge

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/edge-cli/internal/fetcher"
)

// DefaultBaseURL is the public portal.
const DefaultBaseURL = "https://edge.pse.com.ph"

const (
	searchPath = "/companyDisclosures/search.ax"
	viewerPath = "/openDiscViewer.do"
)

// ResultsPerPage is the portal's fixed search page size.
const ResultsPerPage = 20

// ErrNoDisclosures is returned when the first search page lists nothing for
// a company and report type.
var ErrNoDisclosures = eris.New("edge: no disclosures found")

// Client issues portal requests through a fetcher.Transport.
type Client struct {
	transport fetcher.Transport
	base      *url.URL
}

// NewClient creates a client for the portal at baseURL.
func NewClient(transport fetcher.Transport, baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, eris.Wrapf(err, "edge: parse base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("edge: base url %q must be absolute", baseURL)
	}
	return &Client{transport: transport, base: u}, nil
}

// BaseURL returns the portal root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// resolve joins a possibly relative link against the portal root.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", eris.Wrapf(err, "edge: parse link %q", ref)
	}
	return c.base.ResolveReference(u).String(), nil
}
