package scanner

import (
	"sync"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// MediaSet accumulates discovered media for one session. Entries are keyed
// by identity (source URL for images, title for documents) and kept in
// insertion order so repeated scans and the download queue stay stable.
// Safe for concurrent use: mutation-triggered rescans may overlap.
type MediaSet struct {
	mu sync.Mutex

	images     map[string]struct{}
	imageOrder []string

	documents map[string]plugin.MediaItem
	docOrder  []string
}

func NewMediaSet() *MediaSet {
	return &MediaSet{
		images:    make(map[string]struct{}),
		documents: make(map[string]plugin.MediaItem),
	}
}

// AddImage inserts an image by source URL. A document entry under the same
// key is evicted first: a confirmed image corrects an earlier heuristic
// misclassification. The inverse never happens (see AddDocument). Returns
// false when the image was already present.
func (s *MediaSet) AddImage(sourceURL string) bool {
	if sourceURL == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[sourceURL]; ok {
		delete(s.documents, sourceURL)
		s.docOrder = removeKey(s.docOrder, sourceURL)
	}

	if _, ok := s.images[sourceURL]; ok {
		return false
	}
	s.images[sourceURL] = struct{}{}
	s.imageOrder = append(s.imageOrder, sourceURL)
	return true
}

// AddDocument inserts a document entry keyed by title. It refuses to add
// when an image already holds the same key, so the image wins regardless of
// insertion order. Returns false for duplicates and shadowed keys.
func (s *MediaSet) AddDocument(item plugin.MediaItem) bool {
	if item.Title == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[item.Title]; ok {
		return false
	}
	if _, ok := s.documents[item.Title]; ok {
		return false
	}
	s.documents[item.Title] = item
	s.docOrder = append(s.docOrder, item.Title)
	return true
}

// HasDocument reports whether a document with the given title is present.
func (s *MediaSet) HasDocument(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.documents[title]
	return ok
}

// Images returns the image entries in insertion order.
func (s *MediaSet) Images() []plugin.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]plugin.MediaItem, 0, len(s.imageOrder))
	for _, url := range s.imageOrder {
		out = append(out, plugin.MediaItem{Type: plugin.MediaImage, SourceURL: url})
	}
	return out
}

// Documents returns the document entries in insertion order.
func (s *MediaSet) Documents() []plugin.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]plugin.MediaItem, 0, len(s.docOrder))
	for _, title := range s.docOrder {
		out = append(out, s.documents[title])
	}
	return out
}

// Counts returns the current image and document counts.
func (s *MediaSet) Counts() (images, documents int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images), len(s.documents)
}

// Len returns the total number of entries.
func (s *MediaSet) Len() int {
	i, d := s.Counts()
	return i + d
}

// Clear removes all entries.
func (s *MediaSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = make(map[string]struct{})
	s.imageOrder = nil
	s.documents = make(map[string]plugin.MediaItem)
	s.docOrder = nil
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
