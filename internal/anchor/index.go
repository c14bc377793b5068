package anchor

import (
	"go.lsp.dev/protocol"
)

// Index is the immutable anchor tree of one document snapshot.
type Index struct {
	roots  []*Node
	byText map[string]*Node
	folds  []protocol.FoldingRange
}

// Empty is the shared placeholder for a document not yet parsed or without
// anchors.
var Empty = &Index{byText: map[string]*Node{}}

// NewIndex builds an index over roots. When two anchors share a display
// text the first one in document order is kept.
func NewIndex(roots []*Node, folds []protocol.FoldingRange) *Index {
	idx := &Index{
		roots:  roots,
		byText: make(map[string]*Node),
		folds:  folds,
	}
	for _, n := range Flatten(roots) {
		if _, ok := idx.byText[n.Text]; !ok {
			idx.byText[n.Text] = n
		}
	}
	return idx
}

// Roots returns a deep copy of the root nodes.
func (i *Index) Roots() []*Node {
	return Copy(i.roots)
}

// Walk visits every node depth first. fn must not modify the node.
func (i *Index) Walk(fn func(*Node)) {
	for _, n := range Flatten(i.roots) {
		fn(n)
	}
}

// Lookup finds an anchor by display text.
func (i *Index) Lookup(text string) (*Node, bool) {
	n, ok := i.byText[text]
	if !ok {
		return nil, false
	}
	return n.Copy(), true
}

// Texts returns the display texts of every anchor.
func (i *Index) Texts() []string {
	out := make([]string, 0, len(i.byText))
	i.Walk(func(n *Node) {
		if i.byText[n.Text] == n {
			out = append(out, n.Text)
		}
	})
	return out
}

// FoldingRanges returns the region folds found during the parse.
func (i *Index) FoldingRanges() []protocol.FoldingRange {
	out := make([]protocol.FoldingRange, len(i.folds))
	copy(out, i.folds)
	return out
}

// Len returns the number of anchors, nested ones included.
func (i *Index) Len() int {
	return len(Flatten(i.roots))
}

// IsEmpty reports whether the index holds no anchors.
func (i *Index) IsEmpty() bool {
	return len(i.roots) == 0
}
