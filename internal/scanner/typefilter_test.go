package scanner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anmarca/chatgrab/internal/scanner"
)

func TestTypeFilterZeroValueAllowsEverything(t *testing.T) {
	var f *scanner.TypeFilter
	assert.True(t, f.AllowImage(context.Background(), "blob:anything"))
	assert.True(t, f.AllowDocument("notes.txt"))
}

func TestTypeFilterImageByExtension(t *testing.T) {
	f := &scanner.TypeFilter{JPEGPNGOnly: true}

	assert.True(t, f.AllowImage(context.Background(), "https://mmg.whatsapp.net/a.jpg?x=1"))
	assert.True(t, f.AllowImage(context.Background(), "https://mmg.whatsapp.net/a.png"))
	assert.False(t, f.AllowImage(context.Background(), "https://mmg.whatsapp.net/a.webp"))
	assert.False(t, f.AllowImage(context.Background(), "https://mmg.whatsapp.net/a.gif"))
}

func TestTypeFilterSniffsAmbiguousSources(t *testing.T) {
	var sniffed string
	f := &scanner.TypeFilter{
		JPEGPNGOnly: true,
		Sniff: func(_ context.Context, url string) (string, error) {
			sniffed = url
			return "image/png", nil
		},
	}

	assert.True(t, f.AllowImage(context.Background(), "blob:https://web.host/abc"))
	assert.Equal(t, "blob:https://web.host/abc", sniffed)
}

func TestTypeFilterSniffFailureSkips(t *testing.T) {
	f := &scanner.TypeFilter{
		JPEGPNGOnly: true,
		Sniff: func(context.Context, string) (string, error) {
			return "", errors.New("fetch failed")
		},
	}

	assert.False(t, f.AllowImage(context.Background(), "blob:https://web.host/abc"))
}

func TestTypeFilterSniffRejectsOtherTypes(t *testing.T) {
	f := &scanner.TypeFilter{
		JPEGPNGOnly: true,
		Sniff: func(context.Context, string) (string, error) {
			return "image/webp", nil
		},
	}

	assert.False(t, f.AllowImage(context.Background(), "blob:https://web.host/abc"))
}

func TestTypeFilterDocumentExtensions(t *testing.T) {
	f := &scanner.TypeFilter{DocExtensions: []string{"pdf", "docx"}}

	assert.True(t, f.AllowDocument("report.pdf"))
	assert.True(t, f.AllowDocument("Minutes.DOCX"))
	assert.False(t, f.AllowDocument("archive.zip"))
	assert.False(t, f.AllowDocument("document"))
}
