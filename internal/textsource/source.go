// Package textsource supplies document text to the engine: the in-memory
// text of open documents layered over the file system.
package textsource

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/errors"
)

// Document is an open document and its current text.
type Document struct {
	URI  uri.URI
	Text string
}

// Source reads document text.
type Source interface {
	Read(ctx context.Context, u uri.URI) (string, error)
	OpenDocuments() []Document
}

// Overlay serves open documents from memory and everything else from disk.
type Overlay struct {
	docs  map[uri.URI]string
	mutex sync.RWMutex
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{docs: make(map[uri.URI]string)}
}

// Open records the text of a document opened in the host.
func (o *Overlay) Open(u uri.URI, text string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.docs[u] = text
}

// Update replaces the text of an open document.
func (o *Overlay) Update(u uri.URI, text string) {
	o.Open(u, text)
}

// Close forgets an open document; later reads go to disk.
func (o *Overlay) Close(u uri.URI) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	delete(o.docs, u)
}

// IsOpen reports whether u is held in memory.
func (o *Overlay) IsOpen(u uri.URI) bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	_, ok := o.docs[u]
	return ok
}

// Read returns the in-memory text of u when open, else the file contents.
func (o *Overlay) Read(ctx context.Context, u uri.URI) (string, error) {
	o.mutex.RLock()
	text, ok := o.docs[u]
	o.mutex.RUnlock()
	if ok {
		return text, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := Filename(u)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.ReadError(string(u), err)
	}
	return string(data), nil
}

// OpenDocuments lists open documents ordered by URI.
func (o *Overlay) OpenDocuments() []Document {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	docs := make([]Document, 0, len(o.docs))
	for u, text := range o.docs {
		docs = append(docs, Document{URI: u, Text: text})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs
}

// Filename returns the file system path of a file URI.
func Filename(u uri.URI) (string, error) {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return "", errors.NewIOError(errors.ErrCodeUnsupportedURI, "only file URIs can be read from disk", nil).
			WithLocation(string(u), 0)
	}
	return u.Filename(), nil
}

// DisplayPath is the file system path of u, or u itself for non-file URIs.
func DisplayPath(u uri.URI) string {
	if path, err := Filename(u); err == nil {
		return path
	}
	return string(u)
}
