package download

import (
	"sync"
	"time"
)

// Intercept is a short-lived registration that redirects the next native
// download (triggered by clicking a host page control) into a chosen
// relative path. Unclaimed registrations expire.
type Intercept struct {
	Path string
	at   time.Time
}

// Intercepts holds at most one pending registration, matching the single
// in-flight item of the sequential download queue.
type Intercepts struct {
	Expiry time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	pending *Intercept
}

func NewIntercepts(expiry time.Duration) *Intercepts {
	return &Intercepts{Expiry: expiry, Now: time.Now}
}

// Prepare registers the target path for the next native download,
// replacing any previous registration.
func (r *Intercepts) Prepare(path string) {
	r.mu.Lock()
	r.pending = &Intercept{Path: path, at: r.now()}
	r.mu.Unlock()
}

// Claim returns and clears the pending registration. Expired registrations
// are discarded.
func (r *Intercepts) Claim() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return "", false
	}
	p := r.pending
	r.pending = nil

	if r.Expiry > 0 && r.now().Sub(p.at) > r.Expiry {
		return "", false
	}
	return p.Path, true
}

// Clear drops any pending registration.
func (r *Intercepts) Clear() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}

func (r *Intercepts) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
