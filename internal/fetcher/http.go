package fetcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/edge-cli/internal/resilience"
)

// DefaultUserAgent is a desktop browser string; the portal rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBody bounds a single response body.
const maxBody = 16 << 20

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	Burst      int
	Proxies    *ProxyPool
	Backoff    resilience.Backoff
	Breakers   *resilience.HostBreakers
}

// HTTPTransport implements Transport using net/http.
type HTTPTransport struct {
	opts     HTTPOptions
	direct   *http.Client
	viaProxy map[string]*http.Client
	limiters *hostLimiters
}

// NewHTTPTransport creates an HTTPTransport. One client is built per proxy
// up front so the request path never mutates shared state.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewHostBreakers(0, 0)
	}
	opts.Backoff.Attempts = opts.MaxRetries + 1

	t := &HTTPTransport{
		opts:     opts,
		direct:   newClient(opts.Timeout, nil),
		viaProxy: make(map[string]*http.Client),
		limiters: &hostLimiters{rate: rate.Limit(opts.RatePerSec), burst: opts.Burst},
	}
	if opts.Proxies != nil {
		for _, p := range opts.Proxies.proxies {
			t.viaProxy[p.String()] = newClient(opts.Timeout, p)
		}
	}
	return t
}

func newClient(timeout time.Duration, proxy *url.URL) *http.Client {
	tr := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != nil {
		tr.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Get implements Transport.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string, query url.Values) (*Response, error) {
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query.Encode()
	}
	return t.do(ctx, http.MethodGet, rawURL, nil)
}

// PostForm implements Transport.
func (t *HTTPTransport) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	return t.do(ctx, http.MethodPost, rawURL, []byte(form.Encode()))
}

func (t *HTTPTransport) do(ctx context.Context, method, rawURL string, body []byte) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}

	breaker := t.opts.Breakers.Get(u.Host)
	if err := breaker.Allow(); err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s %s", method, rawURL)
	}

	b := t.opts.Backoff
	b.OnRetry = resilience.LogRetry(method, rawURL)
	resp, err := resilience.Retry(ctx, b, func(ctx context.Context) (*Response, error) {
		return t.attempt(ctx, method, u, body)
	})
	breaker.Record(err)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: %s %s", method, rawURL)
	}
	return resp, nil
}

func (t *HTTPTransport) attempt(ctx context.Context, method string, u *url.URL, body []byte) (*Response, error) {
	limiter := t.limiters.get(u.Host)
	if err := limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", t.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	client := t.direct
	if p := t.opts.Proxies.Next(); p != nil {
		client = t.viaProxy[p.String()]
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		limiter.OnRateLimit(u.Host)
		return nil, resilience.NewTransientError(eris.Errorf("http 429 from %s", u), resp.StatusCode)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("http %d from %s", resp.StatusCode, u), resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "http 404 from %s", u)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: u.String()}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
	}
	limiter.OnSuccess()

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       decodeUTF8(raw, resp.Header.Get("Content-Type")),
		URL:        resp.Request.URL.String(),
	}, nil
}

// decodeUTF8 converts body to UTF-8 using the declared charset, falling back
// to <meta> sniffing for bodies that are not already valid UTF-8.
// Undecodable input is returned unchanged.
func decodeUTF8(body []byte, contentType string) []byte {
	name := ""
	if i := strings.Index(strings.ToLower(contentType), "charset="); i >= 0 {
		name = contentType[i+len("charset="):]
		if j := strings.IndexByte(name, ';'); j >= 0 {
			name = name[:j]
		}
		name = strings.Trim(name, `"' `)
	}
	if name == "" {
		if utf8.Valid(body) {
			return body
		}
		_, name, _ = charset.DetermineEncoding(body, contentType)
	}
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Debug("fetcher: unknown charset, using raw body", zap.String("charset", name))
		return body
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return out
}
