package scanner

import (
	"context"
	"path"
	"strings"
	"time"
)

// SniffFunc fetches a resource once and returns its content type. The
// download package's binary fetcher satisfies this.
type SniffFunc func(ctx context.Context, url string) (string, error)

// TypeFilter is the optional advanced per-type restriction. The zero value
// allows everything.
type TypeFilter struct {
	// JPEGPNGOnly restricts images to JPEG and PNG. Sources without a
	// recognizable extension (in-page binary handles) are resolved with
	// one bounded content-type sniff.
	JPEGPNGOnly bool

	// DocExtensions restricts documents to these extensions (lowercase,
	// no dot). Empty means all.
	DocExtensions []string

	Sniff        SniffFunc
	SniffTimeout time.Duration
}

// AllowImage decides whether an image candidate passes the type filter.
// A failed sniff skips the item rather than guessing.
func (f *TypeFilter) AllowImage(ctx context.Context, sourceURL string) bool {
	if f == nil || !f.JPEGPNGOnly {
		return true
	}

	switch ext := urlExtension(sourceURL); ext {
	case "jpg", "jpeg", "png":
		return true
	case "":
		// Ambiguous source; fall through to the sniff.
	default:
		return false
	}

	if f.Sniff == nil {
		return false
	}

	timeout := f.SniffTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ct, err := f.Sniff(ctx, sourceURL)
	if err != nil {
		return false
	}
	return strings.Contains(ct, "jpeg") || strings.Contains(ct, "png")
}

// AllowDocument decides whether a document title passes the extension
// restriction.
func (f *TypeFilter) AllowDocument(title string) bool {
	if f == nil || len(f.DocExtensions) == 0 {
		return true
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(title), "."))
	for _, allowed := range f.DocExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func urlExtension(sourceURL string) string {
	if strings.HasPrefix(sourceURL, "blob:") {
		return ""
	}

	trimmed := sourceURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(trimmed), "."))
	if len(ext) > 4 {
		return ""
	}
	return ext
}
