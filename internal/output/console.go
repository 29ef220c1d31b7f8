// Package output renders engine status to the terminal. It is the engine's
// only user-visible failure surface: errors show up in the status line and
// the downloaded/error counters, nowhere else.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/anmarca/chatgrab/pkg/plugin"
)

const barWidth = 24

// Console implements plugin.StatusReporter on a writer.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Status(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "  %s\n", text)
}

func (c *Console) Counts(images, documents int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "  found images:%d documents:%d\n", images, documents)
}

func (c *Console) Progress(p plugin.DownloadProgress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	filled := int(p.Fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
	fmt.Fprintf(c.w, "  [%s] %d/%d (%d errors)\n", bar, p.Downloaded, p.Total, p.Errors)
}

// Summary prints the end-of-scan line.
func (c *Console) Summary(stats plugin.ScanStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := stats.Images + stats.Documents
	if total == 0 {
		fmt.Fprintf(c.w, "  No media found. Try a wider time range.\n")
		return
	}
	fmt.Fprintf(c.w, "  Found %d files (%d images, %d documents) in %s\n",
		total, stats.Images, stats.Documents, fmtDur(stats.Elapsed))
}

func fmtDur(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
