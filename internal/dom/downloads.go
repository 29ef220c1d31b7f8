package dom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod/lib/proto"
)

var errDownloadCanceled = errors.New("browser canceled the download")

// Downloads captures downloads the browser performs itself after a host
// page control is clicked. The browser is told to save every file under
// root using an opaque name; Await then moves the finished file to the
// path the caller chose for it.
type Downloads struct {
	root string
	done chan downloadResult
	stop func()
}

type downloadResult struct {
	name string
	err  error
}

// Downloads routes the browser's native downloads into root and returns a
// watcher for their completion events.
func (b *Browser) Downloads(root string) (*Downloads, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("download root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("download root: %w", err)
	}

	err = proto.BrowserSetDownloadBehavior{
		Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllowAndName,
		DownloadPath:  abs,
		EventsEnabled: true,
	}.Call(b.browser)
	if err != nil {
		return nil, fmt.Errorf("configure download capture: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Downloads{
		root: abs,
		done: make(chan downloadResult, 4),
		stop: cancel,
	}

	browser := b.browser.Context(ctx)
	go browser.EachEvent(func(e *proto.BrowserDownloadProgress) {
		switch e.State {
		case proto.BrowserDownloadProgressStateCompleted:
			d.deliver(downloadResult{name: e.GUID})
		case proto.BrowserDownloadProgressStateCanceled:
			d.deliver(downloadResult{err: errDownloadCanceled})
		}
	})()

	return d, nil
}

func (d *Downloads) deliver(res downloadResult) {
	select {
	case d.done <- res:
	default:
		// A full buffer means nobody is awaiting; the file stays under
		// its opaque name.
	}
}

// Flush drops completions from earlier downloads that were never awaited,
// so the next Await cannot match a stale file.
func (d *Downloads) Flush() {
	for {
		select {
		case <-d.done:
		default:
			return
		}
	}
}

// Await blocks until the next native download finishes, then moves the
// file to relativePath under the download root. ctx bounds the wait; when
// it expires the download is abandoned where it lies.
func (d *Downloads) Await(ctx context.Context, relativePath string) error {
	select {
	case res := <-d.done:
		if res.err != nil {
			return res.err
		}
		return d.relocate(res.name, relativePath)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Downloads) relocate(name, relativePath string) error {
	dst := filepath.Join(d.root, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("relocate download: %w", err)
	}
	if err := os.Rename(filepath.Join(d.root, name), dst); err != nil {
		return fmt.Errorf("relocate download: %w", err)
	}
	return nil
}

// Close stops the completion listener.
func (d *Downloads) Close() {
	d.stop()
}
