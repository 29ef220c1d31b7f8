// Package download turns an accumulated media set into files on disk,
// driving host-page interaction for items only reachable through a live
// DOM handle.
package download

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/internal/config"
	"github.com/anmarca/chatgrab/internal/identity"
	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Hidden download controls revealed on hover, across the host page's
// language variants.
var downloadControlSelectors = []string{
	`[data-icon="download"]`,
	`[aria-label*="download"]`,
	`[aria-label*="Download"]`,
	`[aria-label*="descargar"]`,
	`[aria-label*="Descargar"]`,
}

var messageAncestorSelectors = []string{
	`[data-testid="msg-container"]`,
	`[data-id]`,
}

var titleExtRe = regexp.MustCompile(`\.(\w+)$`)

// Report is the aggregate outcome of one download run.
type Report struct {
	Downloaded int
	Errors     int
}

// Request is one download invocation: a queue projected from the media set
// plus the session's handle table.
type Request struct {
	Conversation string
	Items        []plugin.MediaItem
	Handles      map[string]plugin.Element
	Progress     func(plugin.DownloadProgress)
}

// TypeSniffer resolves a resource's content type. *BinaryFetcher
// satisfies it.
type TypeSniffer interface {
	SniffType(ctx context.Context, url string) (string, error)
}

// NativeDownloads observes downloads the browser performs itself after a
// document control is clicked. *dom.Downloads satisfies it.
type NativeDownloads interface {
	// Flush drops completions from earlier downloads that were never
	// awaited.
	Flush()
	// Await blocks until the next native download finishes and moves the
	// file to relativePath under the download root. An expired ctx
	// abandons the download and returns its error.
	Await(ctx context.Context, relativePath string) error
}

// Orchestrator processes a download queue strictly sequentially: items may
// trigger host-side hover and click interaction that assumes exclusive
// focus, and the download sink is rate-sensitive. There is no mid-run
// cancellation beyond ctx; once started a run drains its queue.
type Orchestrator struct {
	Cfg        config.Engine
	Sink       plugin.DownloadSink
	Fetcher    TypeSniffer
	Intercepts *Intercepts
	Analytics  plugin.AnalyticsSink
	Logger     *zap.Logger
	Now        func() time.Time

	// Downloads confirms handle-triggered native downloads and lands
	// them on their registered paths. Nil leaves document clicks
	// fire-and-forget.
	Downloads NativeDownloads
}

// BuildQueue projects the media set into download order: images first,
// then documents, honoring the per-type toggles.
func BuildQueue(set *scanner.MediaSet, images, documents bool) []plugin.MediaItem {
	var items []plugin.MediaItem
	if images {
		items = append(items, set.Images()...)
	}
	if documents {
		items = append(items, set.Documents()...)
	}
	return items
}

// FolderName derives the per-run session folder: the sanitized conversation
// identity suffixed with a compact local timestamp, unique across repeated
// downloads of the same conversation.
func FolderName(conversation string, now time.Time) string {
	return identity.SanitizeFolderBase(conversation) + "_" + now.Format("20060102_15h04m05s")
}

// Run processes the queue and returns the aggregate report. Each item gets
// up to MaxAttempts tries with a fixed backoff; only final failure counts.
// Progress fires after every attempted item.
func (o *Orchestrator) Run(ctx context.Context, req Request) Report {
	folder := FolderName(req.Conversation, o.now())
	total := len(req.Items)

	var rep Report
	for i, item := range req.Items {
		if err := o.withRetries(ctx, folder, item, req.Handles); err != nil {
			rep.Errors++
			o.emit(ctx, plugin.EventDownloadError, fileTypeOf(item))
			if o.Logger != nil {
				o.Logger.Warn("item failed",
					zap.String("key", item.Key()),
					zap.Error(err))
			}
		} else {
			rep.Downloaded++
		}

		if req.Progress != nil {
			req.Progress(plugin.DownloadProgress{
				Downloaded: rep.Downloaded,
				Errors:     rep.Errors,
				Total:      total,
				Fraction:   float64(i+1) / float64(total),
			})
		}
		if i < total-1 {
			sleep(ctx, o.Cfg.ItemPause)
		}
	}
	return rep
}

func (o *Orchestrator) withRetries(ctx context.Context, folder string, item plugin.MediaItem, handles map[string]plugin.Element) error {
	var last error
	for attempt := 1; attempt <= o.Cfg.MaxAttempts; attempt++ {
		var err error
		if item.Type == plugin.MediaDocument && item.ID != "" {
			err = o.clickDocument(ctx, folder, item, handles)
		} else {
			err = o.fetchToSink(ctx, folder, item)
		}
		if err == nil {
			return nil
		}
		last = err
		if attempt < o.Cfg.MaxAttempts {
			sleep(ctx, o.Cfg.RetryBackoff)
		}
	}
	return last
}

// clickDocument retriggers the host page's own download interaction for a
// document item via its retained element handle, then waits for the
// browser-side download to land when a watcher is wired.
func (o *Orchestrator) clickDocument(ctx context.Context, folder string, item plugin.MediaItem, handles map[string]plugin.Element) error {
	el, ok := handles[item.ID]
	if !ok {
		return fmt.Errorf("document %q: handle not registered", item.Title)
	}
	if el.Detached() {
		return fmt.Errorf("document %q: handle detached", item.Title)
	}

	if o.Downloads != nil {
		o.Downloads.Flush()
	}
	if o.Intercepts != nil {
		o.Intercepts.Prepare(path.Join(folder, item.Title))
	}

	if err := el.Hover(); err != nil {
		return fmt.Errorf("document %q: %w", item.Title, err)
	}
	sleep(ctx, o.Cfg.HoverSettle)

	control, found := findControl(el)
	if !found {
		if anc, ok := messageAncestor(el); ok {
			if err := anc.Hover(); err == nil {
				sleep(ctx, o.Cfg.HoverSettle)
				control, found = findControl(anc)
			}
		}
	}

	if found {
		if err := control.Click(); err != nil {
			return fmt.Errorf("document %q: %w", item.Title, err)
		}
	} else if err := el.Click(); err != nil {
		return fmt.Errorf("document %q: %w", item.Title, err)
	}

	if o.Downloads != nil {
		target := path.Join(folder, item.Title)
		if o.Intercepts != nil {
			claimed, ok := o.Intercepts.Claim()
			if !ok {
				return fmt.Errorf("document %q: download registration expired", item.Title)
			}
			target = claimed
		}
		waitCtx, cancel := context.WithTimeout(ctx, o.Cfg.DownloadTimeout)
		err := o.Downloads.Await(waitCtx, target)
		cancel()
		if err != nil {
			return fmt.Errorf("document %q: native download: %w", item.Title, err)
		}
	}

	o.emit(ctx, plugin.EventFileDownload, fileTypeOf(item))
	sleep(ctx, o.Cfg.ClickSettle)
	return nil
}

// fetchToSink resolves a URL-addressable item: sniff the content type for
// the extension, build the target path and hand both to the sink.
func (o *Orchestrator) fetchToSink(ctx context.Context, folder string, item plugin.MediaItem) error {
	ctx, cancel := context.WithTimeout(ctx, o.Cfg.DownloadTimeout)
	defer cancel()

	ext := "pdf"
	if item.Type == plugin.MediaImage {
		ct, err := o.Fetcher.SniffType(ctx, item.SourceURL)
		if err != nil {
			return err
		}
		ext = imageExtension(ct)
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").
		Replace(o.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	rel := path.Join(folder, fmt.Sprintf("%s_%s.%s", item.Type, stamp, ext))

	if err := o.Sink.Download(ctx, item.SourceURL, rel); err != nil {
		return err
	}

	o.emit(ctx, plugin.EventFileDownload, ext)
	// Grace for the sink to finish reading before any in-process handle to
	// the bytes is released.
	sleep(ctx, o.Cfg.ReleaseGrace)
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, name, fileType string) {
	if o.Analytics == nil {
		return
	}
	_ = o.Analytics.Send(ctx, plugin.AnalyticsEvent{
		Name:       name,
		TotalItems: 1,
		Timestamp:  o.now().Unix(),
		FileType:   fileType,
	})
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func findControl(el plugin.Element) (plugin.Element, bool) {
	for _, sel := range downloadControlSelectors {
		if c, ok := el.Query(sel); ok {
			return c, true
		}
	}
	return nil, false
}

func messageAncestor(el plugin.Element) (plugin.Element, bool) {
	for _, sel := range messageAncestorSelectors {
		if a, ok := el.Closest(sel); ok {
			return a, true
		}
	}
	return el.Parent()
}

func imageExtension(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return "jpg"
	}
}

func fileTypeOf(item plugin.MediaItem) string {
	if item.Type == plugin.MediaDocument {
		if m := titleExtRe.FindStringSubmatch(item.Title); m != nil {
			return strings.ToLower(m[1])
		}
		return "unknown"
	}
	return string(plugin.MediaImage)
}

func sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
