package dom

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// StaticPage implements plugin.Page over a parsed HTML snapshot. It backs
// the offline snapshot mode and the engine's tests: interactions are
// recorded instead of performed, and mutations are emitted manually.
type StaticPage struct {
	mu  sync.Mutex
	doc *goquery.Document

	mutationFns []func()
	scrollTop   float64

	// Hovers and Clicks record simulated interactions, newest last. The
	// label is the element's aria-label, data-icon, title or leading text.
	Hovers []string
	Clicks []string
}

var _ plugin.Page = (*StaticPage)(nil)

// NewStaticPage parses an HTML snapshot.
func NewStaticPage(html string) (*StaticPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &StaticPage{doc: doc}, nil
}

// SetHTML replaces the snapshot and notifies mutation observers, mimicking
// the host page rerendering under the scanner.
func (p *StaticPage) SetHTML(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	p.mu.Lock()
	p.doc = doc
	fns := append([]func(){}, p.mutationFns...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// EmitMutation fires all registered mutation callbacks.
func (p *StaticPage) EmitMutation() {
	p.mu.Lock()
	fns := append([]func(){}, p.mutationFns...)
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SetScroll seeds the shared scroll offset (static snapshots have one
// scrollable container).
func (p *StaticPage) SetScroll(v float64) {
	p.mu.Lock()
	p.scrollTop = v
	p.mu.Unlock()
}

func (p *StaticPage) Query(selector string) (plugin.Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return &StaticElement{page: p, sel: sel}, true
}

func (p *StaticPage) QueryAll(selector string) []plugin.Element {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []plugin.Element
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &StaticElement{page: p, sel: s})
	})
	return out
}

func (p *StaticPage) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

func (p *StaticPage) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find("body").Text()
}

func (p *StaticPage) OnMutation(fn func()) (func(), error) {
	p.mu.Lock()
	idx := len(p.mutationFns)
	p.mutationFns = append(p.mutationFns, fn)
	p.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			p.mu.Lock()
			p.mutationFns[idx] = func() {}
			p.mu.Unlock()
		})
	}
	return stop, nil
}

// ---------- StaticElement ----------

// StaticElement is a snapshot-backed element. SetDetached simulates a
// handle going stale after the host page rerenders.
type StaticElement struct {
	page     *StaticPage
	sel      *goquery.Selection
	detached bool
}

var _ plugin.Element = (*StaticElement)(nil)

func (e *StaticElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e *StaticElement) Text() string {
	return e.sel.Text()
}

func (e *StaticElement) Query(selector string) (plugin.Element, bool) {
	sel := e.sel.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return &StaticElement{page: e.page, sel: sel}, true
}

func (e *StaticElement) QueryAll(selector string) []plugin.Element {
	var out []plugin.Element
	e.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &StaticElement{page: e.page, sel: s})
	})
	return out
}

func (e *StaticElement) Closest(selector string) (plugin.Element, bool) {
	sel := e.sel.Closest(selector)
	if sel.Length() == 0 {
		return nil, false
	}
	return &StaticElement{page: e.page, sel: sel}, true
}

func (e *StaticElement) Parent() (plugin.Element, bool) {
	sel := e.sel.Parent()
	if sel.Length() == 0 {
		return nil, false
	}
	return &StaticElement{page: e.page, sel: sel}, true
}

func (e *StaticElement) Size() (int, int) {
	w := attrInt(e.sel, "width")
	h := attrInt(e.sel, "height")
	return w, h
}

func (e *StaticElement) Hover() error {
	if e.detached {
		return fmt.Errorf("hover: element detached")
	}

	e.page.mu.Lock()
	e.page.Hovers = append(e.page.Hovers, elementLabel(e.sel))
	e.page.mu.Unlock()
	return nil
}

func (e *StaticElement) Click() error {
	if e.detached {
		return fmt.Errorf("click: element detached")
	}

	e.page.mu.Lock()
	e.page.Clicks = append(e.page.Clicks, elementLabel(e.sel))
	e.page.mu.Unlock()
	return nil
}

func (e *StaticElement) Detached() bool { return e.detached }

// SetDetached marks the handle stale.
func (e *StaticElement) SetDetached(v bool) { e.detached = v }

func (e *StaticElement) ScrollTop() (float64, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.scrollTop, nil
}

func (e *StaticElement) SetScrollTop(v float64) error {
	if v < 0 {
		v = 0
	}

	e.page.mu.Lock()
	e.page.scrollTop = v
	e.page.mu.Unlock()
	return nil
}

// ---------- helpers ----------

func attrInt(sel *goquery.Selection, name string) int {
	v, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0
	}
	return n
}

func elementLabel(sel *goquery.Selection) string {
	for _, attr := range []string{"aria-label", "data-icon", "title", "id"} {
		if v, ok := sel.Attr(attr); ok && v != "" {
			return v
		}
	}

	txt := strings.Join(strings.Fields(sel.Text()), " ")
	if len(txt) > 40 {
		txt = txt[:40]
	}
	return txt
}
