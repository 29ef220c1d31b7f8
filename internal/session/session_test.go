package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmarca/chatgrab/internal/dom"
	"github.com/anmarca/chatgrab/internal/session"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

func TestStateTransitions(t *testing.T) {
	s := session.New()
	assert.Equal(t, session.Idle, s.State())

	require.NoError(t, s.BeginScan())
	assert.Equal(t, session.Scanning, s.State())
	assert.Error(t, s.BeginScan())
	assert.Error(t, s.BeginDownload(), "download must not start mid-scan")

	s.EndScan()
	assert.Equal(t, session.Idle, s.State())

	require.NoError(t, s.BeginDownload())
	assert.Error(t, s.BeginScan(), "scan must not start mid-download")
	s.EndDownload()
	assert.Equal(t, session.Idle, s.State())
}

func TestBeginScanClearsStopFlag(t *testing.T) {
	s := session.New()
	s.RequestStop()
	require.True(t, s.Stopped())

	require.NoError(t, s.BeginScan())
	assert.False(t, s.Stopped())
}

func docElement(t *testing.T) plugin.Element {
	t.Helper()
	p, err := dom.NewStaticPage(`<html><body><div id="d" role="button">a.pdf</div></body></html>`)
	require.NoError(t, err)
	el, ok := p.Query("#d")
	require.True(t, ok)
	return el
}

func TestAddDocumentRegistersHandle(t *testing.T) {
	s := session.New()
	el := docElement(t)

	require.True(t, s.AddDocument("a.pdf", el))
	assert.False(t, s.AddDocument("a.pdf", el), "duplicate title")

	documents := s.Set().Documents()
	require.Len(t, documents, 1)

	handles := s.Handles()
	require.Len(t, handles, 1)
	assert.Contains(t, handles, documents[0].ID)
}

func TestAddDocumentSkipsHandleWhenShadowed(t *testing.T) {
	s := session.New()
	require.True(t, s.AddImage("shared-key"))

	assert.False(t, s.AddDocument("shared-key", docElement(t)))
	assert.Empty(t, s.Handles())
}

func TestResetClearsEverything(t *testing.T) {
	s := session.New()
	s.SetConversation("alice")
	s.SetWindow(time.Hour)
	s.SetToggles(false, true)
	s.RequestStop()
	s.AddImage("blob:a")
	s.AddDocument("a.pdf", docElement(t))
	require.NoError(t, s.BeginScan())

	s.Reset()

	assert.Equal(t, session.Idle, s.State())
	assert.False(t, s.Stopped())
	assert.Zero(t, s.Set().Len())
	assert.Empty(t, s.Handles())
	assert.Zero(t, s.Window())

	images, documents := s.Toggles()
	assert.True(t, images)
	assert.True(t, documents)

	// The panel is still pointed at the same conversation.
	assert.Equal(t, "alice", s.Conversation())
}

func TestResetKeepsPendingStopRequest(t *testing.T) {
	s := session.New()
	require.NoError(t, s.BeginScan())

	s.RequestStop()
	s.Reset()
	assert.True(t, s.Stopped())

	require.NoError(t, s.BeginScan())
	assert.False(t, s.Stopped())
}
