package download

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// BinaryFetcher retrieves raw media bytes over HTTP. It doubles as the
// scanner's content-type sniffer for sources without a usable extension.
type BinaryFetcher struct {
	collector *colly.Collector
}

// BinaryFetcherConfig holds configuration for the binary fetcher.
type BinaryFetcherConfig struct {
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
}

// NewBinaryFetcher creates a Colly-based binary fetcher.
func NewBinaryFetcher(cfg BinaryFetcherConfig) *BinaryFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.MaxResponseSize > 0 {
		c.MaxBodySize = cfg.MaxResponseSize
	}

	return &BinaryFetcher{collector: c}
}

// Fetch downloads the resource and returns its bytes and content type.
func (f *BinaryFetcher) Fetch(ctx context.Context, targetURL string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	// Clone the collector per fetch for clean state.
	c := f.collector.Clone()
	if deadline, ok := ctx.Deadline(); ok {
		c.SetRequestTimeout(time.Until(deadline))
	}

	var (
		body        []byte
		contentType string
		fetchErr    error
	)

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(targetURL); err != nil {
		if !strings.Contains(err.Error(), "already visited") {
			return nil, "", fmt.Errorf("fetch %s: %w", targetURL, err)
		}
	}
	c.Wait()

	if fetchErr != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", targetURL, fetchErr)
	}
	return body, contentType, nil
}

// SniffType fetches the resource once and returns only its content type.
// Satisfies scanner.SniffFunc.
func (f *BinaryFetcher) SniffType(ctx context.Context, targetURL string) (string, error) {
	_, ct, err := f.Fetch(ctx, targetURL)
	return ct, err
}
