// Package scanner walks the visible chat subtree, classifies nodes as
// image or document candidates, applies time-window and type filters and
// merges results into a running media set.
package scanner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/internal/timestamp"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

// MutationRoot is the subtree live pages observe for structural changes.
// Wider than the chat container so panel swaps are seen too.
const MutationRoot = "#main"

var containerSelectors = []string{
	`[data-testid="conversation-panel-body"]`,
	"#main",
}

const documentButtonSelector = `div[role="button"], [data-testid="media-document"], [data-testid*="document"]`

// Sink receives confirmed candidates. A session satisfies it: AddDocument
// registers the live element in the handle table under a fresh id before
// inserting, AddImage feeds the media set directly.
type Sink interface {
	AddImage(sourceURL string) bool
	AddDocument(title string, el plugin.Element) bool
}

// Scanner classifies media under the active chat container. Scan is
// idempotent and re-entrant: repeated invocations on an unchanged page
// leave the sink's set unchanged, and overlapped invocations (mutation
// bursts) are safe because dedup is key-based.
type Scanner struct {
	Classifier plugin.Classifier
	Resolver   *timestamp.Resolver
	Filter     *TypeFilter
	Logger     *zap.Logger
	Now        func() time.Time
}

func New(logger *zap.Logger) *Scanner {
	return &Scanner{
		Classifier: NewClassifier(),
		Resolver:   timestamp.New(),
		Logger:     logger,
		Now:        time.Now,
	}
}

// Scan runs one classification pass. window bounds accepted message age;
// zero means unbounded. A candidate whose timestamp cannot be resolved is
// excluded from windowed results, never included. Failures on a single
// candidate are swallowed so the rest of the pass continues.
func (s *Scanner) Scan(ctx context.Context, page plugin.Page, sink Sink, window time.Duration) {
	container, ok := Container(page)
	if !ok {
		return
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = s.now().Add(-window)
	}

	for _, img := range container.QueryAll("img") {
		if ctx.Err() != nil {
			return
		}
		s.classifyOne(func() {
			src, ok := s.Classifier.ClassifyImage(img)
			if !ok {
				return
			}
			if window > 0 && !s.inWindow(img, cutoff) {
				return
			}
			if !s.Filter.AllowImage(ctx, src) {
				return
			}
			sink.AddImage(src)
		})
	}

	for _, btn := range container.QueryAll(documentButtonSelector) {
		if ctx.Err() != nil {
			return
		}
		s.classifyOne(func() {
			title, ok := s.Classifier.ClassifyDocument(btn)
			if !ok {
				return
			}
			if window > 0 && !s.inWindow(btn, cutoff) {
				return
			}
			if !s.Filter.AllowDocument(title) {
				return
			}
			sink.AddDocument(title, btn)
		})
	}
}

// Container finds the active chat container on the page.
func Container(page plugin.Page) (plugin.Element, bool) {
	for _, sel := range containerSelectors {
		if el, ok := page.Query(sel); ok {
			return el, true
		}
	}
	return nil, false
}

func (s *Scanner) inWindow(el plugin.Element, cutoff time.Time) bool {
	ts, ok := s.Resolver.Resolve(el)
	return ok && !ts.Before(cutoff)
}

// classifyOne isolates a single candidate: a panic inside classification
// must not abort the pass.
func (s *Scanner) classifyOne(fn func()) {
	defer func() {
		if r := recover(); r != nil && s.Logger != nil {
			s.Logger.Debug("candidate classification failed", zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
