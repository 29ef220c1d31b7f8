package dom

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Browser wraps a rod browser connection, either launched headless or
// attached to an already running Chrome with the chat page logged in.
type Browser struct {
	browser *rod.Browser
	timeout time.Duration
}

// BrowserConfig holds connection options for the browser.
type BrowserConfig struct {
	// ControlURL attaches to an existing browser (remote debugging port).
	// When empty a headless instance is launched.
	ControlURL string
	Timeout    time.Duration
	Headless   bool
}

// Connect establishes the browser connection.
func Connect(cfg BrowserConfig) (*Browser, error) {
	controlURL := cfg.ControlURL

	if controlURL == "" {
		u, err := launcher.New().
			Headless(cfg.Headless).
			Set("no-sandbox").
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Browser{browser: browser, timeout: timeout}, nil
}

// OpenPage navigates a fresh tab to targetURL and returns it wrapped in the
// query-primitive surface. mutationRoot is the selector of the subtree the
// mutation observer watches (falls back to document.body when absent).
func (b *Browser) OpenPage(targetURL, mutationRoot string) (*LivePage, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: targetURL})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	page = page.Timeout(b.timeout)

	// The chat app renders client-side; wait for it to settle but treat a
	// timeout as a degraded start, not a failure. The scanner copes with
	// a partial DOM.
	_ = page.WaitStable(3 * time.Second)

	return &LivePage{page: page, mutationRoot: mutationRoot}, nil
}

// AttachPage wraps the first already-open tab whose URL contains urlPart.
func (b *Browser) AttachPage(urlPart, mutationRoot string) (*LivePage, error) {
	pages, err := b.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, urlPart) {
			return &LivePage{page: p.Timeout(b.timeout), mutationRoot: mutationRoot}, nil
		}
	}

	return nil, fmt.Errorf("no open tab matching %q", urlPart)
}

// Close shuts the browser connection down.
func (b *Browser) Close() error {
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

// ---------- LivePage ----------

var observerSeq atomic.Int64

// LivePage implements plugin.Page over a live rod page.
type LivePage struct {
	page         *rod.Page
	mutationRoot string

	mu        sync.Mutex
	observers []func() error
}

var _ plugin.Page = (*LivePage)(nil)

// Rod exposes the underlying rod page for components that need direct
// browser control, such as the in-page download sink.
func (p *LivePage) Rod() *rod.Page {
	return p.page
}

func (p *LivePage) Query(selector string) (plugin.Element, bool) {
	has, el, err := p.page.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &liveElement{el: el}, true
}

func (p *LivePage) QueryAll(selector string) []plugin.Element {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil
	}

	out := make([]plugin.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &liveElement{el: el})
	}
	return out
}

func (p *LivePage) Title() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.Title
}

func (p *LivePage) Text() string {
	res, err := p.page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// OnMutation installs a MutationObserver over the mutation root and bridges
// its callback into fn. One observer instance per call; the returned stop
// detaches both the JS observer and the exposed bridge function.
func (p *LivePage) OnMutation(fn func()) (func(), error) {
	seq := observerSeq.Add(1)
	cbName := fmt.Sprintf("__chatgrab_mut_%d", seq)
	obsName := fmt.Sprintf("__chatgrab_obs_%d", seq)

	stopExpose, err := p.page.Expose(cbName, func(_ gson.JSON) (interface{}, error) {
		fn()
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("expose mutation bridge: %w", err)
	}

	js := fmt.Sprintf(`(sel) => {
		const root = (sel && document.querySelector(sel)) || document.body;
		const obs = new MutationObserver(() => { window.%s(); });
		obs.observe(root, { childList: true, subtree: true });
		window.%s = obs;
	}`, cbName, obsName)

	if _, err := p.page.Eval(js, p.mutationRoot); err != nil {
		_ = stopExpose()
		return nil, fmt.Errorf("install mutation observer: %w", err)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			_, _ = p.page.Eval(fmt.Sprintf(`() => {
				if (window.%s) { window.%s.disconnect(); delete window.%s; }
			}`, obsName, obsName, obsName))
			_ = stopExpose()
		})
	}

	return stop, nil
}

// ---------- liveElement ----------

type liveElement struct {
	el *rod.Element
}

var _ plugin.Element = (*liveElement)(nil)

func (e *liveElement) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *liveElement) Text() string {
	txt, err := e.el.Text()
	if err != nil {
		return ""
	}
	return txt
}

func (e *liveElement) Query(selector string) (plugin.Element, bool) {
	has, el, err := e.el.Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return &liveElement{el: el}, true
}

func (e *liveElement) QueryAll(selector string) []plugin.Element {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil
	}

	out := make([]plugin.Element, 0, len(els))
	for _, el := range els {
		out = append(out, &liveElement{el: el})
	}
	return out
}

func (e *liveElement) Closest(selector string) (plugin.Element, bool) {
	el, err := e.el.ElementByJS(rod.Eval(`(s) => this.closest(s)`, selector))
	if err != nil || el == nil {
		return nil, false
	}
	return &liveElement{el: el}, true
}

func (e *liveElement) Parent() (plugin.Element, bool) {
	el, err := e.el.Parent()
	if err != nil || el == nil {
		return nil, false
	}
	return &liveElement{el: el}, true
}

func (e *liveElement) Size() (int, int) {
	res, err := e.el.Eval(`() => [
		this.width || this.offsetWidth || this.naturalWidth || 0,
		this.height || this.offsetHeight || this.naturalHeight || 0
	]`)
	if err != nil {
		return 0, 0
	}

	arr := res.Value.Arr()
	if len(arr) != 2 {
		return 0, 0
	}
	return arr[0].Int(), arr[1].Int()
}

func (e *liveElement) Hover() error {
	return e.el.Hover()
}

func (e *liveElement) Click() error {
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}

func (e *liveElement) Detached() bool {
	res, err := e.el.Eval(`() => !this.isConnected`)
	if err != nil {
		return true
	}
	return res.Value.Bool()
}

func (e *liveElement) ScrollTop() (float64, error) {
	res, err := e.el.Eval(`() => this.scrollTop`)
	if err != nil {
		return 0, fmt.Errorf("read scrollTop: %w", err)
	}
	return res.Value.Num(), nil
}

func (e *liveElement) SetScrollTop(v float64) error {
	if _, err := e.el.Eval(`(v) => { this.scrollTop = v; }`, v); err != nil {
		return fmt.Errorf("set scrollTop: %w", err)
	}
	return nil
}
