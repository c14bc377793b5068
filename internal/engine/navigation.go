package engine

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/textsource"
)

// Row is one flattened anchor for export.
type Row struct {
	FilePath   string `json:"filename" yaml:"filename"`
	LineNumber int    `json:"line" yaml:"line"`
	Tag        string `json:"tag" yaml:"tag"`
	Text       string `json:"text" yaml:"text"`
	ID         string `json:"id" yaml:"id"`
	Epic       string `json:"epic" yaml:"epic"`
}

// Rows flattens every cached index depth first, files in URI order.
func (e *Engine) Rows() []Row {
	snapshot := e.Snapshot()

	var rows []Row
	for _, u := range sortedURIs(snapshot) {
		path := textsource.DisplayPath(u)
		snapshot[u].Walk(func(n *anchor.Node) {
			rows = append(rows, Row{
				FilePath:   path,
				LineNumber: n.LineNumber,
				Tag:        n.Tag,
				Text:       n.Text,
				ID:         n.Attributes.ID,
				Epic:       n.Attributes.Epic,
			})
		})
	}
	return rows
}

// ResolveLine returns the navigation target for a 1-based line of u.
func (e *Engine) ResolveLine(u uri.URI, line int) protocol.Location {
	if line < 1 {
		line = 1
	}
	pos := protocol.Position{Line: uint32(line - 1)}
	return protocol.Location{
		URI:   protocol.DocumentURI(u),
		Range: protocol.Range{Start: pos, End: pos},
	}
}

// ResolveID finds the anchor whose id attribute is id.
func (e *Engine) ResolveID(id string) (protocol.Location, error) {
	snapshot := e.Snapshot()
	for _, u := range sortedURIs(snapshot) {
		var hit *anchor.Node
		snapshot[u].Walk(func(n *anchor.Node) {
			if hit == nil && n.Attributes.ID == id {
				hit = n
			}
		})
		if hit != nil {
			return e.ResolveLine(u, hit.LineNumber), nil
		}
	}
	return protocol.Location{}, errors.AnchorIDNotFound(id)
}

// Hit is a fuzzy text search result.
type Hit struct {
	URI      uri.URI
	Node     *anchor.Node
	Distance int
}

// FindText ranks every anchor whose display text contains the characters of
// query in order, closest first.
func (e *Engine) FindText(query string) []Hit {
	snapshot := e.Snapshot()

	var targets []string
	var owners []Hit
	for _, u := range sortedURIs(snapshot) {
		snapshot[u].Walk(func(n *anchor.Node) {
			targets = append(targets, n.Text)
			owners = append(owners, Hit{URI: u, Node: n})
		})
	}

	ranks := fuzzy.RankFindFold(query, targets)
	sort.Stable(ranks)

	hits := make([]Hit, 0, len(ranks))
	for _, r := range ranks {
		h := owners[r.OriginalIndex]
		h.Node = h.Node.Copy()
		h.Distance = r.Distance
		hits = append(hits, h)
	}
	return hits
}

func sortedURIs(m map[uri.URI]*anchor.Index) []uri.URI {
	out := make([]uri.URI, 0, len(m))
	for u := range m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
