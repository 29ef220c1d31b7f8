// Package config holds the engine's tunable constants and the analyticsd
// environment configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Engine holds all timing and bound constants of the scan/download engine.
// Tests shrink the delays; production uses Default().
type Engine struct {
	// Page readiness
	LoadPollInterval time.Duration
	LoadPollAttempts int

	// Conversation change detection
	ConversationPoll time.Duration

	// Scanning
	ScanSettle     time.Duration
	RescanSettles  []time.Duration
	MinMediaSquare int

	// Scroll-back
	MaxScrolls   int
	ScrollStep   float64
	ScrollSettle time.Duration

	// Downloading
	MaxAttempts      int
	RetryBackoff     time.Duration
	ItemPause        time.Duration
	HoverSettle      time.Duration
	ClickSettle      time.Duration
	ReleaseGrace     time.Duration
	DownloadTimeout  time.Duration
	InterceptExpiry  time.Duration
	CompletedDisplay time.Duration

	// Paths
	DownloadRoot string
}

// Default returns the production constants, tuned against the live chat
// page's render and download timing.
func Default() Engine {
	return Engine{
		LoadPollInterval: 500 * time.Millisecond,
		LoadPollAttempts: 60,

		ConversationPoll: 2 * time.Second,

		ScanSettle:     500 * time.Millisecond,
		RescanSettles:  []time.Duration{300 * time.Millisecond, 200 * time.Millisecond},
		MinMediaSquare: 70,

		MaxScrolls:   100,
		ScrollStep:   800,
		ScrollSettle: 700 * time.Millisecond,

		MaxAttempts:      3,
		RetryBackoff:     500 * time.Millisecond,
		ItemPause:        200 * time.Millisecond,
		HoverSettle:      300 * time.Millisecond,
		ClickSettle:      time.Second,
		ReleaseGrace:     5 * time.Second,
		DownloadTimeout:  30 * time.Second,
		InterceptExpiry:  10 * time.Second,
		CompletedDisplay: 3 * time.Second,

		DownloadRoot: "chat_media",
	}
}

// Server is the analyticsd configuration, parsed from the environment.
type Server struct {
	Port          int           `env:"PORT" envDefault:"3001"`
	DBPath        string        `env:"DB_PATH" envDefault:"data/analytics.db"`
	RateLimit     int           `env:"RATE_LIMIT" envDefault:"100"`
	RateWindow    time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

// LoadServer parses the analyticsd configuration from the environment.
func LoadServer() (*Server, error) {
	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
