package download_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anmarca/chatgrab/internal/download"
)

func TestInterceptClaimOnce(t *testing.T) {
	r := download.NewIntercepts(10 * time.Second)
	r.Prepare("alice_20240615/report.pdf")

	path, ok := r.Claim()
	require.True(t, ok)
	assert.Equal(t, "alice_20240615/report.pdf", path)

	_, ok = r.Claim()
	assert.False(t, ok)
}

func TestInterceptExpires(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	r := download.NewIntercepts(10 * time.Second)
	r.Now = func() time.Time { return now }

	r.Prepare("a/b.pdf")
	now = now.Add(11 * time.Second)

	_, ok := r.Claim()
	assert.False(t, ok)
}

func TestInterceptReplaceAndClear(t *testing.T) {
	r := download.NewIntercepts(10 * time.Second)

	r.Prepare("a/1.pdf")
	r.Prepare("a/2.pdf")
	path, ok := r.Claim()
	require.True(t, ok)
	assert.Equal(t, "a/2.pdf", path)

	r.Prepare("a/3.pdf")
	r.Clear()
	_, ok = r.Claim()
	assert.False(t, ok)
}
