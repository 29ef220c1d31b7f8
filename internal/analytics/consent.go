package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

// Decision is the tri-state consent value: until the user answers, the
// question is still open and nothing is sent.
type Decision int

const (
	Unset Decision = iota
	Granted
	Denied
)

const consentKey = "analytics_consent"

// KVStore is the persistence boundary for consent.
type KVStore interface {
	Get(key string) (value bool, present bool, err error)
	Set(key string, value bool) error
}

// Consent wraps a KVStore with the tri-state semantics.
type Consent struct {
	Store KVStore
}

func (c *Consent) State() (Decision, error) {
	v, present, err := c.Store.Get(consentKey)
	if err != nil {
		return Unset, err
	}
	if !present {
		return Unset, nil
	}
	if v {
		return Granted, nil
	}
	return Denied, nil
}

func (c *Consent) Grant() error { return c.Store.Set(consentKey, true) }

func (c *Consent) Deny() error { return c.Store.Set(consentKey, false) }

// Gated forwards events only while consent is granted. An unreadable store
// counts as not granted.
type Gated struct {
	Consent *Consent
	Sink    plugin.AnalyticsSink
}

func (g *Gated) Send(ctx context.Context, ev plugin.AnalyticsEvent) error {
	state, err := g.Consent.State()
	if err != nil || state != Granted {
		return nil
	}
	return g.Sink.Send(ctx, ev)
}

func (g *Gated) Close() error { return g.Sink.Close() }

// FileStore is a JSON-file KVStore.
type FileStore struct {
	Path string

	mu sync.Mutex
}

func (s *FileStore) Get(key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return false, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[key] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o644)
}

func (s *FileStore) read() (map[string]bool, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]bool{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return values, nil
}
