package dom

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDownloads(t *testing.T) *Downloads {
	t.Helper()
	return &Downloads{
		root: t.TempDir(),
		done: make(chan downloadResult, 4),
		stop: func() {},
	}
}

func TestAwaitRelocatesFinishedFile(t *testing.T) {
	d := tempDownloads(t)
	require.NoError(t, os.WriteFile(filepath.Join(d.root, "guid-1"), []byte("pdf bytes"), 0o644))
	d.done <- downloadResult{name: "guid-1"}

	err := d.Await(context.Background(), "alice_20240615/report.pdf")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(d.root, "alice_20240615", "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))

	_, err = os.Stat(filepath.Join(d.root, "guid-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestAwaitTimesOutWithoutCompletion(t *testing.T) {
	d := tempDownloads(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Await(ctx, "alice/report.pdf")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitSurfacesCanceledDownload(t *testing.T) {
	d := tempDownloads(t)
	d.done <- downloadResult{err: errDownloadCanceled}

	err := d.Await(context.Background(), "alice/report.pdf")
	assert.ErrorIs(t, err, errDownloadCanceled)
}

func TestFlushDropsStaleCompletions(t *testing.T) {
	d := tempDownloads(t)
	d.done <- downloadResult{name: "stale-1"}
	d.done <- downloadResult{name: "stale-2"}

	d.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Await(ctx, "alice/report.pdf")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
