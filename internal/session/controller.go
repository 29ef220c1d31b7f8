package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/internal/config"
	"github.com/anmarca/chatgrab/internal/download"
	"github.com/anmarca/chatgrab/internal/identity"
	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/internal/scrollback"
	"github.com/anmarca/chatgrab/internal/watcher"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Controller wires the engine components around one session. A
// conversation change detected by the identity tracker resets the session;
// mutation-triggered rescans run only while a scan is active.
type Controller struct {
	Page      plugin.Page
	Cfg       config.Engine
	Scanner   *scanner.Scanner
	Driver    *scrollback.Driver
	Watcher   *watcher.Watcher
	Tracker   *identity.Tracker
	Orch      *download.Orchestrator
	Analytics plugin.AnalyticsSink
	Reporter  plugin.StatusReporter
	Logger    *zap.Logger

	sess   *Session
	warned bool
}

// Session exposes the controller's session, mainly for tests.
func (c *Controller) Session() *Session {
	return c.sess
}

// Open prepares the panel: wait for the chat container (proceeding in a
// degraded state when the budget runs out, since a missing container is
// indistinguishable from a slow load), start conversation tracking and
// attach the mutation observer.
func (c *Controller) Open(ctx context.Context) error {
	c.sess = New()

	ready := false
	for i := 0; i < c.Cfg.LoadPollAttempts; i++ {
		if _, ok := scanner.Container(c.Page); ok {
			ready = true
			break
		}
		if !sleep(ctx, c.Cfg.LoadPollInterval) {
			return ctx.Err()
		}
	}
	if !ready && c.Logger != nil {
		c.Logger.Warn("chat container not found, proceeding degraded")
	}

	if c.Tracker != nil {
		c.Tracker.OnSwitch = c.onConversationSwitch
		c.Tracker.Start(ctx)
	}

	if c.Watcher != nil {
		err := c.Watcher.Attach(c.Page,
			func() bool { return c.sess.State() == Scanning },
			func() { c.rescan(ctx) },
		)
		if err != nil {
			return fmt.Errorf("attach mutation observer: %w", err)
		}
	}

	c.status(`Click "Magic Scan" to start`)
	return nil
}

// Close tears the panel down: observer detached, tracker stopped, session
// reset.
func (c *Controller) Close() {
	if c.Watcher != nil {
		c.Watcher.Detach()
	}
	if c.Tracker != nil {
		c.Tracker.Stop()
	}
	if c.sess != nil {
		c.sess.Reset()
	}
}

// MagicScan runs the time-windowed, non-scrolling scan. window of 0 scans
// without a time bound.
func (c *Controller) MagicScan(ctx context.Context, window time.Duration) (plugin.ScanStats, error) {
	if err := c.sess.BeginScan(); err != nil {
		return plugin.ScanStats{}, err
	}
	defer c.sess.EndScan()

	c.sess.SetWindow(window)
	if window > 0 {
		c.status(fmt.Sprintf("Scanning messages from last %s...", window))
	} else {
		c.status("Scanning messages...")
	}

	start := time.Now()

	// The page keeps rendering after the first pass settles; two shorter
	// follow-up passes catch late nodes.
	sleep(ctx, c.Cfg.ScanSettle)
	c.scanOnce(ctx)
	for _, settle := range c.Cfg.RescanSettles {
		if !sleep(ctx, settle) {
			break
		}
		c.scanOnce(ctx)
	}

	stats := c.stats(start, 0)
	c.emit(ctx, plugin.EventMagicScan, stats.Images+stats.Documents)
	return stats, nil
}

// FullScan drives the exhaustive scroll-back scan. Cancellable through
// Stop with one-iteration latency.
func (c *Controller) FullScan(ctx context.Context) (plugin.ScanStats, error) {
	if err := c.sess.BeginScan(); err != nil {
		return plugin.ScanStats{}, err
	}
	defer c.sess.EndScan()

	container, ok := scanner.Container(c.Page)
	if !ok {
		c.status("Chat not found")
		return plugin.ScanStats{}, fmt.Errorf("chat container not found")
	}

	c.status("Scanning full history...")
	start := time.Now()

	scrolls := c.Driver.Run(ctx, container,
		func() { c.scanOnce(ctx) },
		c.sess.Stopped,
		func(int) { c.counts() },
	)

	stats := c.stats(start, scrolls)
	c.emit(ctx, plugin.EventFullScan, stats.Images+stats.Documents)
	return stats, nil
}

// Stop requests cooperative cancellation of a running full scan. Safe to
// call before Open.
func (c *Controller) Stop() {
	if c.sess != nil {
		c.sess.RequestStop()
	}
}

// Download drains the accumulated set. One-shot: on completion the session
// resets to its pre-scan state.
func (c *Controller) Download(ctx context.Context) (download.Report, error) {
	if err := c.sess.BeginDownload(); err != nil {
		return download.Report{}, err
	}
	defer c.sess.EndDownload()

	if !c.warned {
		c.warned = true
		c.status("Files are saved through the browser download flow; keep the window open.")
	}

	images, documents := c.sess.Toggles()
	queue := download.BuildQueue(c.sess.Set(), images, documents)
	if len(queue) == 0 {
		c.status("Nothing to download")
		return download.Report{}, nil
	}

	c.status(fmt.Sprintf("Downloading %d files...", len(queue)))

	rep := c.Orch.Run(ctx, download.Request{
		Conversation: c.sess.Conversation(),
		Items:        queue,
		Handles:      c.sess.Handles(),
		Progress:     c.progress,
	})

	c.status(fmt.Sprintf("Download complete: %d files (%d errors)", rep.Downloaded, rep.Errors))

	sleep(ctx, c.Cfg.CompletedDisplay)
	c.sess.Reset()
	c.counts()
	return rep, nil
}

func (c *Controller) onConversationSwitch(id string, first bool) {
	// An in-flight full scan belongs to the old conversation; stop it
	// before the reset so its driver cannot refill the fresh set.
	c.sess.RequestStop()
	c.sess.Reset()
	c.sess.SetConversation(id)
	c.counts()
	if !first {
		c.status(`Click "Magic Scan" to start`)
	}
}

func (c *Controller) rescan(ctx context.Context) {
	c.scanOnce(ctx)
}

func (c *Controller) scanOnce(ctx context.Context) {
	c.Scanner.Scan(ctx, c.Page, c.sess, c.sess.Window())
	c.counts()
}

func (c *Controller) stats(start time.Time, scrolls int) plugin.ScanStats {
	images, documents := c.sess.Set().Counts()
	return plugin.ScanStats{
		Images:    images,
		Documents: documents,
		Scrolls:   scrolls,
		Elapsed:   time.Since(start),
	}
}

func (c *Controller) emit(ctx context.Context, name string, total int) {
	if c.Analytics == nil {
		return
	}
	_ = c.Analytics.Send(ctx, plugin.AnalyticsEvent{
		Name:       name,
		TotalItems: total,
		Timestamp:  time.Now().Unix(),
	})
}

func (c *Controller) status(text string) {
	if c.Reporter != nil {
		c.Reporter.Status(text)
	}
}

func (c *Controller) counts() {
	if c.Reporter != nil {
		images, documents := c.sess.Set().Counts()
		c.Reporter.Counts(images, documents)
	}
}

func (c *Controller) progress(p plugin.DownloadProgress) {
	if c.Reporter != nil {
		c.Reporter.Progress(p)
	}
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
