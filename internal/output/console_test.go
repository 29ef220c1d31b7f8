package output_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/anmarca/chatgrab/internal/output"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

func TestConsoleProgressBar(t *testing.T) {
	var buf bytes.Buffer
	c := output.NewConsole(&buf)

	c.Progress(plugin.DownloadProgress{Downloaded: 3, Errors: 1, Total: 8, Fraction: 0.5})

	out := buf.String()
	assert.Contains(t, out, "3/8")
	assert.Contains(t, out, "(1 errors)")
	assert.Contains(t, out, "############------------")
}

func TestConsoleSummary(t *testing.T) {
	var buf bytes.Buffer
	c := output.NewConsole(&buf)

	c.Summary(plugin.ScanStats{Images: 4, Documents: 2, Elapsed: 1500 * time.Millisecond})
	assert.Contains(t, buf.String(), "Found 6 files (4 images, 2 documents) in 1.5s")

	buf.Reset()
	c.Summary(plugin.ScanStats{})
	assert.Contains(t, buf.String(), "No media found")
}
