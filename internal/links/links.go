// Package links resolves the targets of link anchors. A link anchor's text
// names a file, optionally followed by ":line" or "#id":
//
//	// LINK src/server.go:42
//	// LINK ./notes.md#design
//
// Paths starting with "./" or "../" are relative to the document holding the
// link; anything else is relative to the workspace root.
package links

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/tags"
	"github.com/conneroisu/anchorage/internal/textsource"
)

var linkPattern = regexp.MustCompile(`^(\.{1,2}[/\\])?(.+?)(:\d+|#[\w-]+)?$`)

// Link is the parsed text of a link anchor.
type Link struct {
	// Relative is "./", "../" or empty.
	Relative string
	Path     string
	// Line is the 1-based target line, 0 when absent.
	Line int
	ID   string
}

// Parse splits link text into its components.
func Parse(text string) (Link, bool) {
	m := linkPattern.FindStringSubmatch(text)
	if m == nil {
		return Link{}, false
	}

	link := Link{Relative: m[1], Path: m[2]}
	switch suffix := m[3]; {
	case suffix == "":
	case suffix[0] == ':':
		link.Line, _ = strconv.Atoi(suffix[1:])
	default:
		link.ID = suffix[1:]
	}
	return link, true
}

// Target is a resolved link.
type Target struct {
	Source   uri.URI
	Anchor   *anchor.Node
	Link     Link
	URI      uri.URI
	Location protocol.Location
	Broken   bool
	Err      error
}

// Indexes gives access to cached anchor indexes.
type Indexes interface {
	Get(u uri.URI) *anchor.Index
}

// Resolver turns link anchors into navigation targets.
type Resolver struct {
	root    string
	indexes Indexes
}

// NewResolver creates a resolver rooted at the workspace root. indexes may be
// nil, in which case "#id" links open the target file at its first line.
func NewResolver(root string, indexes Indexes) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{root: root, indexes: indexes}
}

// Resolve computes the target of a link anchor found in source.
func (r *Resolver) Resolve(source uri.URI, n *anchor.Node) Target {
	target := Target{Source: source, Anchor: n}

	link, ok := Parse(n.Comment)
	if !ok {
		target.Broken = true
		target.Err = errors.MalformedLink(n.Comment)
		return target
	}
	target.Link = link

	path := r.path(source, link)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		target.Broken = true
		target.Err = errors.TargetNotFound(path)
		return target
	}
	target.URI = uri.File(path)

	line := 1
	switch {
	case link.Line > 0:
		line = link.Line
	case link.ID != "":
		found, ok := r.lookup(target.URI, link.ID)
		if !ok {
			target.Broken = true
			target.Err = errors.AnchorIDNotFound(link.ID)
			return target
		}
		line = found
	}

	pos := protocol.Position{Line: uint32(line - 1)}
	target.Location = protocol.Location{
		URI:   protocol.DocumentURI(target.URI),
		Range: protocol.Range{Start: pos, End: pos},
	}
	return target
}

// lookup finds the line of the anchor with id in u. A file without indexed
// anchors resolves to its first line.
func (r *Resolver) lookup(u uri.URI, id string) (int, bool) {
	if r.indexes == nil {
		return 1, true
	}
	idx := r.indexes.Get(u)
	if idx == nil || idx.IsEmpty() {
		return 1, true
	}

	line := 0
	idx.Walk(func(n *anchor.Node) {
		if line == 0 && n.Attributes.ID == id {
			line = n.LineNumber
		}
	})
	return line, line > 0
}

func (r *Resolver) path(source uri.URI, link Link) string {
	if link.Relative != "" {
		base := filepath.Dir(textsource.DisplayPath(source))
		return filepath.Join(base, link.Relative, link.Path)
	}
	if filepath.IsAbs(link.Path) {
		return filepath.Clean(link.Path)
	}
	return filepath.Join(r.root, link.Path)
}

// Targets resolves every link anchor of idx in document order.
func (r *Resolver) Targets(source uri.URI, idx *anchor.Index) []Target {
	var out []Target
	idx.Walk(func(n *anchor.Node) {
		if n.Behavior == tags.BehaviorLink {
			out = append(out, r.Resolve(source, n))
		}
	})
	return out
}
