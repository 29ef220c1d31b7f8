package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anmarca/chatgrab/internal/scanner"
	"github.com/anmarca/chatgrab/pkg/plugin"
)

func doc(id, title string) plugin.MediaItem {
	return plugin.MediaItem{Type: plugin.MediaDocument, ID: id, Title: title}
}

func TestMediaSetDeduplicates(t *testing.T) {
	s := scanner.NewMediaSet()

	assert.True(t, s.AddImage("blob:a"))
	assert.False(t, s.AddImage("blob:a"))
	assert.True(t, s.AddDocument(doc("h1", "report.pdf")))
	assert.False(t, s.AddDocument(doc("h2", "report.pdf")))

	images, documents := s.Counts()
	assert.Equal(t, 1, images)
	assert.Equal(t, 1, documents)
}

func TestMediaSetImageEvictsDocument(t *testing.T) {
	s := scanner.NewMediaSet()

	assert.True(t, s.AddDocument(doc("h1", "shared-key")))
	assert.True(t, s.AddImage("shared-key"))

	images, documents := s.Counts()
	assert.Equal(t, 1, images)
	assert.Equal(t, 0, documents)
}

func TestMediaSetDocumentNeverShadowsImage(t *testing.T) {
	s := scanner.NewMediaSet()

	assert.True(t, s.AddImage("shared-key"))
	assert.False(t, s.AddDocument(doc("h1", "shared-key")))

	images, documents := s.Counts()
	assert.Equal(t, 1, images)
	assert.Equal(t, 0, documents)
}

func TestMediaSetPreservesInsertionOrder(t *testing.T) {
	s := scanner.NewMediaSet()

	s.AddImage("blob:b")
	s.AddImage("blob:a")
	s.AddDocument(doc("h1", "z.pdf"))
	s.AddDocument(doc("h2", "a.pdf"))

	images := s.Images()
	assert.Equal(t, "blob:b", images[0].SourceURL)
	assert.Equal(t, "blob:a", images[1].SourceURL)

	documents := s.Documents()
	assert.Equal(t, "z.pdf", documents[0].Title)
	assert.Equal(t, "a.pdf", documents[1].Title)
}

func TestMediaSetClear(t *testing.T) {
	s := scanner.NewMediaSet()
	s.AddImage("blob:a")
	s.AddDocument(doc("h1", "report.pdf"))

	s.Clear()

	assert.Zero(t, s.Len())
	assert.Empty(t, s.Images())
	assert.Empty(t, s.Documents())
}

func TestMediaSetRejectsEmptyKeys(t *testing.T) {
	s := scanner.NewMediaSet()
	assert.False(t, s.AddImage(""))
	assert.False(t, s.AddDocument(doc("h1", "")))
	assert.Zero(t, s.Len())
}
