// Package watcher re-runs the scanner when the chat subtree mutates.
package watcher

import (
	"sync"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Watcher bridges page mutation events to rescans. Rescans fire only while
// the active predicate holds, so an idle panel never scans. One observer is
// held at a time; it must be detached before the page goes away or the
// callback leaks.
type Watcher struct {
	Logger *zap.Logger

	mu   sync.Mutex
	stop func()
}

// Attach subscribes to structural mutations under the chat subtree. Any
// previous subscription is detached first.
func (w *Watcher) Attach(page plugin.Page, active func() bool, rescan func()) error {
	w.Detach()

	stop, err := page.OnMutation(func() {
		if active() {
			rescan()
		}
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.stop = stop
	w.mu.Unlock()

	if w.Logger != nil {
		w.Logger.Debug("mutation observer attached")
	}
	return nil
}

// Detach unsubscribes. Safe to call repeatedly and when never attached.
func (w *Watcher) Detach() {
	w.mu.Lock()
	stop := w.stop
	w.stop = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Attached reports whether an observer is currently held.
func (w *Watcher) Attached() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stop != nil
}
