package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a fixed-window in-memory per-IP limiter for /events.
// State is process-local; analyticsd runs as a single instance.
type RateLimiter struct {
	Limit  int
	Window time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		Limit:   limit,
		Window:  windowSize,
		Now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Middleware rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			Error(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	now := rl.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.windows[ip]
	if win == nil || now.Sub(win.start) >= rl.Window {
		rl.windows[ip] = &window{start: now, count: 1}
		return true
	}

	win.count++
	return win.count <= rl.Limit
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
