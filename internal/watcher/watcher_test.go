package watcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmarca/chatgrab/internal/dom"
	"github.com/anmarca/chatgrab/internal/watcher"
)

func newPage(t *testing.T) *dom.StaticPage {
	t.Helper()
	p, err := dom.NewStaticPage(`<html><body><div id="main"></div></body></html>`)
	require.NoError(t, err)
	return p
}

func TestRescanOnlyWhileActive(t *testing.T) {
	page := newPage(t)

	active := false
	rescans := 0

	w := &watcher.Watcher{}
	require.NoError(t, w.Attach(page, func() bool { return active }, func() { rescans++ }))

	page.EmitMutation()
	assert.Zero(t, rescans, "idle panel must not scan")

	active = true
	page.EmitMutation()
	page.EmitMutation()
	assert.Equal(t, 2, rescans)
}

func TestDetachStopsRescans(t *testing.T) {
	page := newPage(t)

	rescans := 0
	w := &watcher.Watcher{}
	require.NoError(t, w.Attach(page, func() bool { return true }, func() { rescans++ }))
	assert.True(t, w.Attached())

	w.Detach()
	assert.False(t, w.Attached())

	page.EmitMutation()
	assert.Zero(t, rescans)
}

func TestDetachIsIdempotent(t *testing.T) {
	page := newPage(t)

	w := &watcher.Watcher{}
	w.Detach() // never attached

	require.NoError(t, w.Attach(page, func() bool { return true }, func() {}))
	w.Detach()
	w.Detach()
	assert.False(t, w.Attached())
}

func TestAttachReplacesPreviousObserver(t *testing.T) {
	page := newPage(t)

	first, second := 0, 0
	w := &watcher.Watcher{}
	require.NoError(t, w.Attach(page, func() bool { return true }, func() { first++ }))
	require.NoError(t, w.Attach(page, func() bool { return true }, func() { second++ }))

	page.EmitMutation()
	assert.Zero(t, first)
	assert.Equal(t, 1, second)
}
