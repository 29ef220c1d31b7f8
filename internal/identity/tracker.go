package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Tracker polls the page on a fixed interval and fires OnSwitch when the
// open conversation changes. First-ever detection fires with first=true so
// the caller can seed state without treating it as a change.
type Tracker struct {
	Page     plugin.Page
	Interval time.Duration
	Logger   *zap.Logger

	// OnSwitch receives the sanitized conversation id. Runs on the
	// tracker's goroutine; keep it short.
	OnSwitch func(id string, first bool)

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
}

// Start begins polling. It is a no-op when already running.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	interval := t.Interval
	if interval == 0 {
		interval = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.loop(ctx, interval)
}

// Stop halts polling and forgets the last-known identity, so the next
// Start behaves like a fresh panel open.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.current = ""
}

// Check performs one poll step immediately. Exposed for the controller's
// panel-open path and for tests.
func (t *Tracker) Check() {
	id := SanitizeID(Resolve(t.Page))

	t.mu.Lock()
	prev := t.current
	t.current = id
	cb := t.OnSwitch
	t.mu.Unlock()

	switch {
	case prev == "":
		if t.Logger != nil {
			t.Logger.Debug("conversation detected", zap.String("id", id))
		}
		if cb != nil {
			cb(id, true)
		}
	case prev != id:
		if t.Logger != nil {
			t.Logger.Info("conversation changed", zap.String("from", prev), zap.String("to", id))
		}
		if cb != nil {
			cb(id, false)
		}
	}
}

func (t *Tracker) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Check()
		}
	}
}
