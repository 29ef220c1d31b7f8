package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
)

// FileSink fetches a resource and writes it under a root directory. It is
// the sink used when chatgrab drives its own browser.
type FileSink struct {
	Root    string
	Fetcher *BinaryFetcher
}

func (s *FileSink) Download(ctx context.Context, resourceURL, relativePath string) error {
	body, _, err := s.Fetcher.Fetch(ctx, resourceURL)
	if err != nil {
		return err
	}

	target := filepath.Join(s.Root, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	if err := os.WriteFile(target, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	return nil
}

// BrowserSink hands the resource to the browser's own download pipeline by
// injecting a temporary anchor. Needed for blob: sources only the page
// context can read.
type BrowserSink struct {
	Page *rod.Page
}

func (s *BrowserSink) Download(ctx context.Context, resourceURL, relativePath string) error {
	_, err := s.Page.Context(ctx).Eval(`(url, name) => {
		const a = document.createElement('a');
		a.href = url;
		a.download = name;
		document.body.appendChild(a);
		a.click();
		a.remove();
	}`, resourceURL, relativePath)
	if err != nil {
		return fmt.Errorf("trigger browser download: %w", err)
	}
	return nil
}
