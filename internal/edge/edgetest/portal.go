// Package edgetest serves a fake disclosure portal for tests.
package edgetest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Disclosure is one filing served by the fake portal.
type Disclosure struct {
	EdgeNo string
	// Company is the search key the filing is listed under: a symbol
	// (keyword search) or a numeric company id.
	Company  string
	Symbol   string
	Template string
	Title    string
	// Date uses the listing format, e.g. "Jul 07, 2025 12:19 PM".
	Date string
	Form string
	// Body is the frame HTML placed after the symbol span.
	Body string
	// NoFrame serves a viewer page without an iframe.
	NoFrame bool
}

// Portal is an httptest server mimicking the search, viewer and frame
// endpoints.
type Portal struct {
	*httptest.Server

	mu          sync.Mutex
	pageSize    int
	hook        func(r *http.Request)
	disclosures []Disclosure
	status      map[string]int

	Searches atomic.Int64
	Viewers  atomic.Int64
	Frames   atomic.Int64
}

// NewPortal starts a portal serving ds in the given (newest first) order.
func NewPortal(ds ...Disclosure) *Portal {
	p := &Portal{pageSize: 20, disclosures: ds, status: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/companyDisclosures/search.ax", p.search)
	mux.HandleFunc("/openDiscViewer.do", p.viewer)
	mux.HandleFunc("/frames/", p.frame)
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		hook := p.hook
		p.mu.Unlock()
		if hook != nil {
			hook(r)
		}
		mux.ServeHTTP(w, r)
	}))
	return p
}

// SetPageSize sets the number of listing rows per search page.
func (p *Portal) SetPageSize(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageSize = n
}

// SetHook installs fn to run before every request is answered.
func (p *Portal) SetHook(fn func(r *http.Request)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = fn
}

// FailWith makes the viewer for edgeNo answer with status.
func (p *Portal) FailWith(edgeNo string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[edgeNo] = status
}

func (p *Portal) find(edgeNo string) (Disclosure, int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.disclosures {
		if d.EdgeNo == edgeNo {
			return d, p.status[edgeNo], true
		}
	}
	return Disclosure{}, 0, false
}

func (p *Portal) search(w http.ResponseWriter, r *http.Request) {
	p.Searches.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	key := r.PostForm.Get("companyId")
	if key == "" {
		key = r.PostForm.Get("keyword")
	}
	tmpl := r.PostForm.Get("tmplNm")
	page, _ := strconv.Atoi(r.PostForm.Get("pageNo"))
	if page < 1 {
		page = 1
	}

	p.mu.Lock()
	var hits []Disclosure
	for _, d := range p.disclosures {
		if d.Company == key && (d.Template == "" || d.Template == tmpl) {
			hits = append(hits, d)
		}
	}
	size := p.pageSize
	p.mu.Unlock()

	pages := (len(hits) + size - 1) / size
	start := min((page-1)*size, len(hits))
	end := min(start+size, len(hits))

	var b strings.Builder
	b.WriteString(`<html><body><table class="list"><tbody>`)
	for _, d := range hits[start:end] {
		fmt.Fprintf(&b,
			`<tr><td><a href="#viewer" onclick="openPopup('%s');return false;">%s</a></td><td>%s</td><td>%s</td></tr>`,
			d.EdgeNo, html.EscapeString(d.Title), d.Date, d.Form)
	}
	b.WriteString(`</tbody></table>`)
	if pages > 0 {
		fmt.Fprintf(&b, `<div class="paging"><span class="count">%d / %d</span></div>`, page, pages)
	}
	b.WriteString(`</body></html>`)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, b.String())
}

func (p *Portal) viewer(w http.ResponseWriter, r *http.Request) {
	p.Viewers.Add(1)
	edgeNo := r.URL.Query().Get("edge_no")
	d, status, ok := p.find(edgeNo)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if d.NoFrame {
		fmt.Fprint(w, `<html><body><p>Document unavailable</p></body></html>`)
		return
	}
	fmt.Fprintf(w, `<html><body><iframe id="viewContents" src="/frames/%s"></iframe></body></html>`, edgeNo)
}

func (p *Portal) frame(w http.ResponseWriter, r *http.Request) {
	p.Frames.Add(1)
	d, _, ok := p.find(strings.TrimPrefix(r.URL.Path, "/frames/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<html><head><title>%s</title></head><body>`, html.EscapeString(d.Title))
	if d.Symbol != "" {
		fmt.Fprintf(w, `<span id="companyStockSymbol">%s</span>`, d.Symbol)
	}
	fmt.Fprintf(w, `%s</body></html>`, d.Body)
}
