// Package fetcher issues HTTP requests against the disclosure portal with
// retry, rate limiting, charset decoding and optional proxy rotation.
package fetcher

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
)

// Response is a fully read HTTP response with its body decoded to UTF-8.
type Response struct {
	StatusCode int
	Body       []byte
	URL        string
}

// Transport requests raw HTML. Implementations are safe for concurrent use.
type Transport interface {
	// Get issues a GET request, appending query to rawURL when non-nil.
	Get(ctx context.Context, rawURL string, query url.Values) (*Response, error)

	// PostForm issues an urlencoded POST request.
	PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error)
}

// ErrNotFound is returned for a 404. It is never retried.
var ErrNotFound = eris.New("fetcher: not found")

// StatusError is a non-retryable HTTP failure.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}
