package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/internal/config"
	"github.com/anmarca/chatgrab/internal/server"
)

func newTestRouter(t *testing.T) (http.Handler, *server.Handler) {
	t.Helper()

	store, err := server.NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := server.NewHandler(store, zap.NewNop())
	cfg := &config.Server{RateLimit: 100, RateWindow: time.Minute}
	return server.NewRouter(h, cfg), h
}

func postEvent(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestEventsAccumulate(t *testing.T) {
	router, h := newTestRouter(t)

	ts := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	h.Now = func() time.Time { return ts }

	body := fmt.Sprintf(`{"event":"magic_scan","total_items":5,"timestamp":%d}`, ts.Unix())
	rec := postEvent(t, router, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	body = fmt.Sprintf(`{"event":"magic_scan","total_items":3,"timestamp":%d}`, ts.Unix())
	require.Equal(t, http.StatusOK, postEvent(t, router, body).Code)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	statsRec := httptest.NewRecorder()
	router.ServeHTTP(statsRec, req)
	require.Equal(t, http.StatusOK, statsRec.Code)

	var summary struct {
		TotalRecords int `json:"total_records"`
		ByEvent      map[string]struct {
			TotalEvents int `json:"total_events"`
			TotalItems  int `json:"total_items"`
		} `json:"by_event"`
		Last7Days []struct {
			Date      string `json:"date"`
			MagicScan struct {
				Events int `json:"events"`
				Items  int `json:"items"`
			} `json:"magic_scan"`
		} `json:"last_7_days"`
	}
	require.NoError(t, json.Unmarshal(statsRec.Body.Bytes(), &summary))

	assert.Equal(t, 1, summary.TotalRecords)
	assert.Equal(t, 2, summary.ByEvent["magic_scan"].TotalEvents)
	assert.Equal(t, 8, summary.ByEvent["magic_scan"].TotalItems)

	require.Len(t, summary.Last7Days, 7)
	assert.Equal(t, "2024-06-15", summary.Last7Days[0].Date)
	assert.Equal(t, 2, summary.Last7Days[0].MagicScan.Events)
	assert.Equal(t, 8, summary.Last7Days[0].MagicScan.Items)
	assert.Zero(t, summary.Last7Days[1].MagicScan.Events)
}

func TestEventsValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := []struct {
		name    string
		body    string
		details int
	}{
		{"unsupported event", `{"event":"file_download","total_items":1,"timestamp":1718445000}`, 1},
		{"missing everything", `{}`, 3},
		{"negative items", `{"event":"magic_scan","total_items":-1,"timestamp":1718445000}`, 1},
		{"fractional items", `{"event":"magic_scan","total_items":1.5,"timestamp":1718445000}`, 1},
		{"missing timestamp", `{"event":"full_scan","total_items":0}`, 1},
		{"not json", `nonsense`, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postEvent(t, router, tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Error   string   `json:"error"`
				Details []string `json:"details"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid payload", resp.Error)
			assert.Len(t, resp.Details, tc.details)
		})
	}
}

func TestEventsZeroItemsValid(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postEvent(t, router, `{"event":"full_scan","total_items":0,"timestamp":1718445000}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRateLimitOnEvents(t *testing.T) {
	store, err := server.NewStore(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := server.NewHandler(store, zap.NewNop())
	cfg := &config.Server{RateLimit: 2, RateWindow: time.Minute}
	router := server.NewRouter(h, cfg)

	body := `{"event":"magic_scan","total_items":1,"timestamp":1718445000}`
	assert.Equal(t, http.StatusOK, postEvent(t, router, body).Code)
	assert.Equal(t, http.StatusOK, postEvent(t, router, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, postEvent(t, router, body).Code)

	// Reads stay unthrottled.
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
