// Package plugin defines the public interfaces for chatgrab.
// External tools can import this package to write custom classifiers,
// analytics sinks, or download sinks without forking the project.
package plugin

import (
	"context"
	"time"
)

// ---------- DOM Primitives ----------

// Page is the narrow query surface over the host chat page. The page's
// markup is an external, uncontrolled data source; everything the engine
// knows about it flows through these primitives.
type Page interface {
	// Query returns the first element matching the CSS selector.
	Query(selector string) (Element, bool)

	// QueryAll returns all elements matching the CSS selector,
	// in document order.
	QueryAll(selector string) []Element

	// Title returns the page title.
	Title() string

	// Text returns the full visible text of the page body.
	Text() string

	// OnMutation registers a callback fired on structural mutations
	// (node additions/removals) under the chat subtree. The returned
	// stop function detaches the observer and must be safe to call twice.
	OnMutation(fn func()) (stop func(), err error)
}

// Element is a handle to a single live DOM node. Handles may go stale when
// the host page rerenders; Detached reports that condition and interaction
// methods fail on detached nodes.
type Element interface {
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)

	// Text returns the element's visible text content.
	Text() string

	// Query returns the first descendant matching the selector.
	Query(selector string) (Element, bool)

	// QueryAll returns all descendants matching the selector.
	QueryAll(selector string) []Element

	// Closest returns the nearest ancestor (or self) matching the selector.
	Closest(selector string) (Element, bool)

	// Parent returns the parent element.
	Parent() (Element, bool)

	// Size returns the rendered (or natural) width and height in pixels.
	Size() (w, h int)

	// Hover simulates a pointer-over on the node.
	Hover() error

	// Click simulates a click on the node.
	Click() error

	// Detached reports whether the node is no longer connected to the
	// document.
	Detached() bool

	// ScrollTop returns the element's vertical scroll offset.
	ScrollTop() (float64, error)

	// SetScrollTop sets the element's vertical scroll offset.
	SetScrollTop(v float64) error
}

// ---------- Core Data Types ----------

// MediaType identifies the variant of a discovered media item.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
)

// MediaItem is a discovered media candidate. Images are keyed by source
// URL; documents by extracted title, with ID pointing into the session's
// live element handle table (the payload is only retrievable by simulating
// interaction with that node).
type MediaItem struct {
	Type      MediaType `json:"type"`
	SourceURL string    `json:"source_url,omitempty"`
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
}

// Key returns the item's identity key for deduplication.
func (m MediaItem) Key() string {
	if m.Type == MediaImage {
		return m.SourceURL
	}
	return m.Title
}

// ScanStats holds the running counts for one scan session.
type ScanStats struct {
	Images    int           `json:"images"`
	Documents int           `json:"documents"`
	Scrolls   int           `json:"scrolls,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// DownloadProgress is reported after every attempted queue item.
type DownloadProgress struct {
	Downloaded int     `json:"downloaded"`
	Errors     int     `json:"errors"`
	Total      int     `json:"total"`
	Fraction   float64 `json:"fraction"`
}

// ---------- Analytics ----------

// AnalyticsEvent is the anonymous usage record sent to the aggregation
// backend. TotalItems is the number of media items involved, Timestamp is
// unix seconds.
type AnalyticsEvent struct {
	Name       string `json:"event"`
	TotalItems int    `json:"total_items"`
	Timestamp  int64  `json:"timestamp"`
	FileType   string `json:"file_type,omitempty"`
}

// Analytics event names understood by the backend.
const (
	EventMagicScan     = "magic_scan"
	EventFullScan      = "full_scan"
	EventFileDownload  = "file_download"
	EventDownloadError = "download_error"
)

// ---------- Capability Interfaces ----------

// Classifier decides whether a candidate node is in-scope media. The two
// shipped product variants differ only in classification configuration,
// not code.
type Classifier interface {
	// ClassifyImage returns the retrievable source URL of an in-scope
	// image, or ok=false when the node is out of scope.
	ClassifyImage(el Element) (sourceURL string, ok bool)

	// ClassifyDocument returns the display title of an in-scope document
	// reference, or ok=false.
	ClassifyDocument(el Element) (title string, ok bool)
}

// AnalyticsSink receives usage events. Implementations must be
// fire-and-forget: failures are swallowed and never surface to the user.
type AnalyticsSink interface {
	Send(ctx context.Context, ev AnalyticsEvent) error
	Close() error
}

// DownloadSink is the host download API boundary: it accepts a resource
// URL plus a relative target path and reports completion or failure.
// Interrupted and timed-out downloads are both plain errors.
type DownloadSink interface {
	Download(ctx context.Context, resourceURL, relativePath string) error
}

// StatusReporter is the presentation boundary the engine writes counters,
// status text and progress updates to.
type StatusReporter interface {
	Status(text string)
	Counts(images, documents int)
	Progress(p DownloadProgress)
}
