// Package session holds the per-conversation scan/download state and the
// controller that drives the engine's lifecycle operations.
package session

import (
	"fmt"
	"sync"

	"time"

	"github.com/google/uuid"

	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

// State is the session's exclusive activity tag. Scanning and downloading
// are mutually exclusive; the enum makes the illegal combination
// unrepresentable.
type State int

const (
	Idle State = iota
	Scanning
	Downloading
)

func (s State) String() string {
	switch s {
	case Scanning:
		return "scanning"
	case Downloading:
		return "downloading"
	default:
		return "idle"
	}
}

// Session is the state scoped to one open panel against one conversation.
// It is created on open, and fully reset on conversation change, reopen,
// or a completed download cycle.
type Session struct {
	mu sync.Mutex

	state        State
	conversation string
	window       time.Duration // 0 = unbounded
	stopRequested bool

	includeImages    bool
	includeDocuments bool

	set     *scanner.MediaSet
	handles map[string]plugin.Element
}

func New() *Session {
	return &Session{
		includeImages:    true,
		includeDocuments: true,
		set:              scanner.NewMediaSet(),
		handles:          make(map[string]plugin.Element),
	}
}

// BeginScan moves Idle -> Scanning. It also clears a leftover stop request
// so a new scan starts fresh.
func (s *Session) BeginScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return fmt.Errorf("cannot scan while %s", s.state)
	}
	s.state = Scanning
	s.stopRequested = false
	return nil
}

// EndScan moves Scanning -> Idle.
func (s *Session) EndScan() {
	s.mu.Lock()
	if s.state == Scanning {
		s.state = Idle
	}
	s.mu.Unlock()
}

// BeginDownload moves Idle -> Downloading.
func (s *Session) BeginDownload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return fmt.Errorf("cannot download while %s", s.state)
	}
	s.state = Downloading
	return nil
}

// EndDownload moves Downloading -> Idle.
func (s *Session) EndDownload() {
	s.mu.Lock()
	if s.state == Downloading {
		s.state = Idle
	}
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestStop asks a running full scan to wind down. Cooperative: the
// current iteration still completes.
func (s *Session) RequestStop() {
	s.mu.Lock()
	s.stopRequested = true
	s.mu.Unlock()
}

func (s *Session) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *Session) Conversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation
}

func (s *Session) SetConversation(id string) {
	s.mu.Lock()
	s.conversation = id
	s.mu.Unlock()
}

// Window returns the active time window; 0 means unbounded.
func (s *Session) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Session) SetWindow(d time.Duration) {
	s.mu.Lock()
	s.window = d
	s.mu.Unlock()
}

// SetToggles controls which media types the download queue includes.
func (s *Session) SetToggles(images, documents bool) {
	s.mu.Lock()
	s.includeImages = images
	s.includeDocuments = documents
	s.mu.Unlock()
}

func (s *Session) Toggles() (images, documents bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.includeImages, s.includeDocuments
}

// Set returns the accumulated media set.
func (s *Session) Set() *scanner.MediaSet {
	return s.set
}

// AddImage feeds the media set; part of the scanner.Sink contract.
func (s *Session) AddImage(sourceURL string) bool {
	return s.set.AddImage(sourceURL)
}

// AddDocument registers the live element under a fresh opaque id and
// inserts the document entry. The id is the only route back to the node
// when the download later has to re-trigger the host page's own
// interaction. No-op for duplicate or image-shadowed titles.
func (s *Session) AddDocument(title string, el plugin.Element) bool {
	id := "doc_" + uuid.NewString()
	if !s.set.AddDocument(plugin.MediaItem{Type: plugin.MediaDocument, ID: id, Title: title}) {
		return false
	}

	s.mu.Lock()
	s.handles[id] = el
	s.mu.Unlock()
	return true
}

// Handles returns a snapshot of the handle table for a download run.
func (s *Session) Handles() map[string]plugin.Element {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]plugin.Element, len(s.handles))
	for id, el := range s.handles {
		out[id] = el
	}
	return out
}

// Reset restores the pre-scan state: media set and handle table are
// invalidated wholesale, the time window and type toggles back to
// defaults. The conversation id survives; it identifies the panel, not
// the scan. A pending stop request also survives so a reset during a
// running full scan still winds the scroll driver down; BeginScan clears
// it for the next scan.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set.Clear()
	s.handles = make(map[string]plugin.Element)
	s.state = Idle
	s.window = 0
	s.includeImages = true
	s.includeDocuments = true
}
