// Package analytics ships anonymous usage events to the aggregation
// backend. Delivery is strictly best-effort: a failure is logged at debug
// and must never influence user-visible state.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

const sendTimeout = 5 * time.Second

// Client posts events to the backend's /events endpoint. It implements
// plugin.AnalyticsSink.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Logger   *zap.Logger
}

func NewClient(endpoint string, logger *zap.Logger) *Client {
	return &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		HTTP:     &http.Client{Timeout: sendTimeout},
		Logger:   logger,
	}
}

// Send posts one event. The response body is ignored beyond the fire.
func (c *Client) Send(ctx context.Context, ev plugin.AnalyticsEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return c.drop(ev, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/events", bytes.NewReader(payload))
	if err != nil {
		return c.drop(ev, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return c.drop(ev, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return c.drop(ev, fmt.Errorf("backend returned %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) Close() error {
	c.HTTP.CloseIdleConnections()
	return nil
}

func (c *Client) drop(ev plugin.AnalyticsEvent, err error) error {
	if c.Logger != nil {
		c.Logger.Debug("analytics event dropped",
			zap.String("event", ev.Name),
			zap.Error(err))
	}
	return err
}
