package analytics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmarca/chatgrab/internal/analytics"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

func TestClientPostsEvent(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL, nil)
	err := c.Send(context.Background(), plugin.AnalyticsEvent{
		Name:       plugin.EventMagicScan,
		TotalItems: 12,
		Timestamp:  1718445000,
	})
	require.NoError(t, err)

	assert.Equal(t, "/events", gotPath)
	assert.Equal(t, "magic_scan", gotBody["event"])
	assert.Equal(t, float64(12), gotBody["total_items"])
	assert.Equal(t, float64(1718445000), gotBody["timestamp"])
	assert.NotContains(t, gotBody, "file_type")
}

func TestClientReportsBackendRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Invalid payload"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL, nil)
	err := c.Send(context.Background(), plugin.AnalyticsEvent{Name: "bogus"})
	assert.Error(t, err)
}

func fileConsent(t *testing.T) *analytics.Consent {
	t.Helper()
	return &analytics.Consent{
		Store: &analytics.FileStore{Path: filepath.Join(t.TempDir(), "storage.json")},
	}
}

func TestConsentTriState(t *testing.T) {
	c := fileConsent(t)

	state, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, analytics.Unset, state)

	require.NoError(t, c.Grant())
	state, err = c.State()
	require.NoError(t, err)
	assert.Equal(t, analytics.Granted, state)

	require.NoError(t, c.Deny())
	state, err = c.State()
	require.NoError(t, err)
	assert.Equal(t, analytics.Denied, state)
}

type countingSink struct{ sent int }

func (s *countingSink) Send(context.Context, plugin.AnalyticsEvent) error {
	s.sent++
	return nil
}

func (s *countingSink) Close() error { return nil }

func TestGatedSinkHonorsConsent(t *testing.T) {
	consent := fileConsent(t)
	inner := &countingSink{}
	g := &analytics.Gated{Consent: consent, Sink: inner}

	ev := plugin.AnalyticsEvent{Name: plugin.EventFullScan}

	require.NoError(t, g.Send(context.Background(), ev))
	assert.Zero(t, inner.sent, "unset consent must not send")

	require.NoError(t, consent.Deny())
	require.NoError(t, g.Send(context.Background(), ev))
	assert.Zero(t, inner.sent)

	require.NoError(t, consent.Grant())
	require.NoError(t, g.Send(context.Background(), ev))
	assert.Equal(t, 1, inner.sent)
}

func TestFileStoreSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")

	first := &analytics.FileStore{Path: path}
	require.NoError(t, first.Set("analytics_consent", true))

	second := &analytics.FileStore{Path: path}
	v, present, err := second.Get("analytics_consent")
	require.NoError(t, err)
	assert.True(t, present)
	assert.True(t, v)
}
