// Package scrollback drives the exhaustive full-scan mode: repeatedly
// scroll the chat container toward older history, let the page settle,
// and rescan.
package scrollback

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Driver walks the chat container backward in fixed steps. Cancellation is
// cooperative: the stop flag is checked once per iteration, so stop latency
// is bounded by one settle delay.
type Driver struct {
	MaxScrolls int
	Step       float64
	Settle     time.Duration
	Logger     *zap.Logger
}

// Run scrolls back through the conversation, invoking scan after every
// settled step. It terminates on the iteration cap, on the scroll position
// not moving between iterations, on reaching the very top, on the stop
// flag, or on ctx. The current iteration always completes its scan before
// a stop takes effect. Returns the number of iterations performed.
func (d *Driver) Run(ctx context.Context, container plugin.Element, scan func(), stopped func() bool, progress func(iteration int)) int {
	iterations := 0

	for i := 0; i < d.MaxScrolls; i++ {
		if stopped != nil && stopped() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		before, err := container.ScrollTop()
		if err != nil {
			d.debug("scroll position read failed", err)
			break
		}

		next := before - d.Step
		if next < 0 {
			next = 0
		}
		if err := container.SetScrollTop(next); err != nil {
			d.debug("scroll failed", err)
			break
		}

		if !sleep(ctx, d.Settle) {
			break
		}

		scan()
		iterations = i + 1
		if progress != nil {
			progress(iterations)
		}

		after, err := container.ScrollTop()
		if err != nil {
			d.debug("scroll position read failed", err)
			break
		}
		// Top of history, or the container stopped moving.
		if after == 0 || after == before {
			break
		}
	}

	return iterations
}

func (d *Driver) debug(msg string, err error) {
	if d.Logger != nil {
		d.Logger.Debug(msg, zap.Error(err))
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
