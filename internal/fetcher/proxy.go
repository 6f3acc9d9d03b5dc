package fetcher

import (
	"bufio"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ProxyPool hands out proxies round-robin. Concurrent callers share one
// atomic counter and nothing else.
type ProxyPool struct {
	proxies []*url.URL
	next    atomic.Uint64
}

// NewProxyPool parses "host:port" (or full URL) entries. Health is not checked.
func NewProxyPool(addrs []string) (*ProxyPool, error) {
	p := &ProxyPool{}
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if !strings.Contains(a, "://") {
			a = "http://" + a
		}
		u, err := url.Parse(a)
		if err != nil || u.Host == "" {
			return nil, eris.Errorf("fetcher: invalid proxy %q", a)
		}
		p.proxies = append(p.proxies, u)
	}
	return p, nil
}

// Len returns the number of proxies in the pool.
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the proxy for the next request, or nil for an empty pool.
func (p *ProxyPool) Next() *url.URL {
	if p.Len() == 0 {
		return nil
	}
	i := p.next.Add(1) - 1
	return p.proxies[i%uint64(len(p.proxies))]
}

// LoadProxies reads one "host:port" per line. Blank lines and # comments are
// skipped. A missing file yields an empty list and a warning.
func LoadProxies(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("fetcher: proxy file not found, continuing without proxies", zap.String("path", path))
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open proxy file")
	}
	defer f.Close() //nolint:errcheck

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "fetcher: read proxy file")
	}
	return out, nil
}
