package scanner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmarca/chatgrab/internal/dom"
	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/internal/timestamp"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

// recordingSink feeds a MediaSet directly, standing in for a session.
type recordingSink struct {
	set *scanner.MediaSet
	n   int
}

func (r *recordingSink) AddImage(sourceURL string) bool {
	return r.set.AddImage(sourceURL)
}

func (r *recordingSink) AddDocument(title string, _ plugin.Element) bool {
	r.n++
	return r.set.AddDocument(plugin.MediaItem{Type: plugin.MediaDocument, ID: "h", Title: title})
}

func newSink() *recordingSink {
	return &recordingSink{set: scanner.NewMediaSet()}
}

func staticPage(t *testing.T, html string) *dom.StaticPage {
	t.Helper()
	p, err := dom.NewStaticPage(html)
	require.NoError(t, err)
	return p
}

const mixedChatHTML = `<html><body>
<div data-testid="conversation-panel-body">
	<div role="row"><div data-testid="msg-container">
		<img src="blob:https://web.host/msg-photo-1" width="320" height="240">
	</div></div>
	<img src="https://pps.whatsapp.net/v/t61/contact.jpg" width="300" height="300">
	<img src="https://mmg.whatsapp.net/inline-thumb.jpg" width="40" height="44">
	<div data-testid="author-avatar">
		<img src="blob:https://web.host/group-member" width="120" height="120">
	</div>
	<img src="blob:https://web.host/emoji-sheet" width="128" height="128">
	<img src="https://cdn.elsewhere.com/pic.jpg" width="400" height="400">
	<div role="button">report.pdf 3 páginas 1.2 MB</div>
	<div role="button"><span title="budget.xlsx">2.3 MB</span></div>
	<div role="button">Reply</div>
</div>
</body></html>`

func TestScanClassifiesMixedChat(t *testing.T) {
	page := staticPage(t, mixedChatHTML)
	sink := newSink()

	scanner.New(nil).Scan(context.Background(), page, sink, 0)

	images := sink.set.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "blob:https://web.host/msg-photo-1", images[0].SourceURL)

	documents := sink.set.Documents()
	require.Len(t, documents, 2)
	assert.Equal(t, "report.pdf", documents[0].Title)
	assert.Equal(t, "budget.xlsx", documents[1].Title)
}

func TestScanIsIdempotent(t *testing.T) {
	page := staticPage(t, mixedChatHTML)
	sink := newSink()
	s := scanner.New(nil)

	s.Scan(context.Background(), page, sink, 0)
	first := sink.set.Len()
	s.Scan(context.Background(), page, sink, 0)

	assert.Equal(t, first, sink.set.Len())
}

func TestScanNoChatContainer(t *testing.T) {
	page := staticPage(t, `<html><body><p>loading</p></body></html>`)
	sink := newSink()

	scanner.New(nil).Scan(context.Background(), page, sink, 0)

	assert.Zero(t, sink.set.Len())
}

func TestScanTimeWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.Local)

	page := staticPage(t, `<html><body>
<div data-testid="conversation-panel-body">
	<div role="row"><div data-pre-plain-text="[10:00, 15/6/24] A: ">
		<img src="blob:https://web.host/recent" width="320" height="240">
	</div></div>
	<div role="row"><div data-pre-plain-text="[8:30, 15/6/24] A: ">
		<img src="blob:https://web.host/stale" width="320" height="240">
	</div></div>
</div>
</body></html>`)

	s := scanner.New(nil)
	s.Now = func() time.Time { return now }
	s.Resolver = &timestamp.Resolver{Now: func() time.Time { return now }}

	sink := newSink()
	s.Scan(context.Background(), page, sink, time.Hour)

	images := sink.set.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "blob:https://web.host/recent", images[0].SourceURL)
}

func TestScanTimeWindowExcludesUnresolved(t *testing.T) {
	page := staticPage(t, `<html><body>
<div data-testid="conversation-panel-body">
	<div><div>
		<img src="blob:https://web.host/undated" width="320" height="240">
	</div></div>
</div>
</body></html>`)

	sink := newSink()
	scanner.New(nil).Scan(context.Background(), page, sink, time.Hour)

	assert.Zero(t, sink.set.Len())
}

// panicClassifier blows up on one source to prove per-candidate isolation.
type panicClassifier struct {
	inner plugin.Classifier
}

func (p *panicClassifier) ClassifyImage(el plugin.Element) (string, bool) {
	if src, _ := el.Attr("src"); src == "blob:https://web.host/poison" {
		panic("bad candidate")
	}
	return p.inner.ClassifyImage(el)
}

func (p *panicClassifier) ClassifyDocument(el plugin.Element) (string, bool) {
	return p.inner.ClassifyDocument(el)
}

func TestScanSurvivesCandidateFailure(t *testing.T) {
	page := staticPage(t, `<html><body>
<div data-testid="conversation-panel-body">
	<img src="blob:https://web.host/poison" width="320" height="240">
	<img src="blob:https://web.host/fine" width="320" height="240">
</div>
</body></html>`)

	s := scanner.New(nil)
	s.Classifier = &panicClassifier{inner: scanner.NewClassifier()}

	sink := newSink()
	s.Scan(context.Background(), page, sink, 0)

	images := sink.set.Images()
	require.Len(t, images, 1)
	assert.Equal(t, "blob:https://web.host/fine", images[0].SourceURL)
}

func TestClassifyImageExcludesHeaderSubtree(t *testing.T) {
	page := staticPage(t, `<html><body>
<div data-testid="conversation-panel-body">
	<header><img id="hdr" src="blob:https://web.host/contact" width="200" height="200"></header>
	<div data-testid="conversation-info-header">
		<img id="info" src="blob:https://web.host/info" width="200" height="200">
	</div>
</div>
</body></html>`)

	c := scanner.NewClassifier()
	for _, id := range []string{"#hdr", "#info"} {
		el, ok := page.Query(id)
		require.True(t, ok)
		_, accepted := c.ClassifyImage(el)
		assert.False(t, accepted, id)
	}
}

func TestClassifyImageAcceptsZeroSize(t *testing.T) {
	// Natural dimensions unknown (not yet rendered) must not count as
	// below the avatar threshold.
	page := staticPage(t, `<html><body>
<div data-testid="conversation-panel-body">
	<img id="x" src="blob:https://web.host/pending">
</div>
</body></html>`)

	el, ok := page.Query("#x")
	require.True(t, ok)
	_, accepted := scanner.NewClassifier().ClassifyImage(el)
	assert.True(t, accepted)
}

func TestClassifyDocumentQualifiers(t *testing.T) {
	cases := []struct {
		name  string
		html  string
		title string
		ok    bool
	}{
		{"extension", `<div id="b" role="button">minutes.docx</div>`, "minutes.docx", true},
		{"page count", `<div id="b" role="button" title="scan">4 pages</div>`, "scan", true},
		{"size phrase", `<div id="b" role="button">14 KB</div>`, "document", true},
		{"plain text", `<div id="b" role="button">forward</div>`, "", false},
	}

	c := scanner.NewClassifier()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := staticPage(t, "<html><body>"+tc.html+"</body></html>")
			el, ok := page.Query("#b")
			require.True(t, ok)

			title, accepted := c.ClassifyDocument(el)
			assert.Equal(t, tc.ok, accepted)
			if tc.ok {
				assert.Equal(t, tc.title, title)
			}
		})
	}
}
