package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Only scan completions are aggregated; per-download events from older
// clients are rejected by validation.
var supportedEvents = []string{plugin.EventMagicScan, plugin.EventFullScan}

// Handler serves the analytics endpoints.
type Handler struct {
	store  *Store
	logger *zap.Logger

	// Now is injectable for the stats-window tests.
	Now func() time.Time
}

func NewHandler(store *Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger, Now: time.Now}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// eventPayload uses pointers so validation can tell a missing field from a
// zero one.
type eventPayload struct {
	Event      string   `json:"event"`
	TotalItems *float64 `json:"total_items"`
	Timestamp  *float64 `json:"timestamp"`
}

func (p *eventPayload) validate() []string {
	var errs []string

	if p.Event == "" {
		errs = append(errs, "event is required and must be a string")
	} else if !supported(p.Event) {
		errs = append(errs, "event must be one of: "+strings.Join(supportedEvents, ", "))
	}

	if p.TotalItems == nil {
		errs = append(errs, "total_items is required and must be a number")
	} else if *p.TotalItems < 0 || *p.TotalItems != math.Trunc(*p.TotalItems) {
		errs = append(errs, "total_items must be a non-negative integer")
	}

	if p.Timestamp == nil || *p.Timestamp == 0 {
		errs = append(errs, "timestamp is required and must be a number")
	}

	return errs
}

// Events handles POST /events: validate, then fold the event into the
// day+event counter row.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid payload",
			"details": []string{"body must be JSON"},
		})
		return
	}

	if errs := payload.validate(); len(errs) > 0 {
		JSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Invalid payload",
			"details": errs,
		})
		return
	}

	date := time.Unix(int64(*payload.Timestamp), 0).UTC().Format("2006-01-02")
	if err := h.store.Record(r.Context(), date, payload.Event, int(*payload.TotalItems)); err != nil {
		h.logger.Error("record event failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

type eventTotals struct {
	TotalEvents int `json:"total_events"`
	TotalItems  int `json:"total_items"`
}

type dayCounters struct {
	Events int `json:"events"`
	Items  int `json:"items"`
}

type dayStats struct {
	Date      string      `json:"date"`
	MagicScan dayCounters `json:"magic_scan"`
	FullScan  dayCounters `json:"full_scan"`
}

type statsSummary struct {
	TotalRecords int                    `json:"total_records"`
	ByEvent      map[string]eventTotals `json:"by_event"`
	Last7Days    []dayStats             `json:"last_7_days"`
}

// Stats handles GET /stats: per-event totals plus a trailing 7-day
// breakdown for the two fixed event names, today first.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.All(r.Context())
	if err != nil {
		h.logger.Error("load stats failed", zap.Error(err))
		Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	summary := statsSummary{
		TotalRecords: len(records),
		ByEvent:      make(map[string]eventTotals),
		Last7Days:    make([]dayStats, 0, 7),
	}

	byDay := make(map[string]map[string]DailyEvent)
	for _, rec := range records {
		totals := summary.ByEvent[rec.Event]
		totals.TotalEvents += rec.TotalEvents
		totals.TotalItems += rec.TotalItems
		summary.ByEvent[rec.Event] = totals

		if byDay[rec.Date] == nil {
			byDay[rec.Date] = make(map[string]DailyEvent)
		}
		byDay[rec.Date][rec.Event] = rec
	}

	today := h.Now().UTC()
	for i := 0; i < 7; i++ {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		day := dayStats{Date: date}
		if rec, ok := byDay[date][plugin.EventMagicScan]; ok {
			day.MagicScan = dayCounters{Events: rec.TotalEvents, Items: rec.TotalItems}
		}
		if rec, ok := byDay[date][plugin.EventFullScan]; ok {
			day.FullScan = dayCounters{Events: rec.TotalEvents, Items: rec.TotalItems}
		}
		summary.Last7Days = append(summary.Last7Days, day)
	}

	JSON(w, http.StatusOK, summary)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"error":  fmt.Sprintf("database: %v", err),
		})
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"db_configured": true,
	})
}

func supported(event string) bool {
	for _, e := range supportedEvents {
		if e == event {
			return true
		}
	}
	return false
}
