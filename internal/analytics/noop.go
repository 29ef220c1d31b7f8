package analytics

import (
	"context"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Noop discards every event. Used when the user has not opted in and in
// tests.
type Noop struct{}

func (Noop) Send(context.Context, plugin.AnalyticsEvent) error { return nil }

func (Noop) Close() error { return nil }
