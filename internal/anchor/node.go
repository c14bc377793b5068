// Package anchor defines the per-document anchor tree and the index built
// from it.
package anchor

import (
	"sort"

	"github.com/conneroisu/anchorage/internal/tags"
)

// Unset marks a close field of a region that has not been closed.
const Unset = -1

// Attributes are the key=value pairs attached to an anchor.
type Attributes struct {
	Epic string `json:"epic,omitempty" yaml:"epic,omitempty"`
	Seq  int    `json:"seq" yaml:"seq"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Node is one anchor occurrence.
type Node struct {
	Tag         string        `json:"tag" yaml:"tag"`
	Text        string        `json:"text" yaml:"text"`
	Comment     string        `json:"comment" yaml:"comment"`
	StartOffset int           `json:"startOffset" yaml:"startOffset"`
	EndOffset   int           `json:"endOffset" yaml:"endOffset"`
	MatchLength int           `json:"matchLength" yaml:"matchLength"`
	LineNumber  int           `json:"line" yaml:"line"`
	Attributes  Attributes    `json:"attributes" yaml:"attributes"`
	Scope       tags.Scope    `json:"scope" yaml:"scope"`
	Behavior    tags.Behavior `json:"behavior" yaml:"behavior"`
	Children    []*Node       `json:"children,omitempty" yaml:"children,omitempty"`

	CloseStartOffset int `json:"closeStartOffset" yaml:"closeStartOffset"`
	CloseEndOffset   int `json:"closeEndOffset" yaml:"closeEndOffset"`
	CloseLineNumber  int `json:"closeLine" yaml:"closeLine"`
	// CloseAttributes holds the attribute block of the end tag; nil until
	// the region is closed.
	CloseAttributes *Attributes `json:"closeAttributes,omitempty" yaml:"closeAttributes,omitempty"`
}

// IsRegion reports whether the node opens a region.
func (n *Node) IsRegion() bool {
	return n.Behavior == tags.BehaviorRegion
}

// IsClosed reports whether a region node found its end tag.
func (n *Node) IsClosed() bool {
	return n.CloseLineNumber != Unset
}

// IsVisibleInWorkspace reports whether the anchor belongs in workspace views.
func (n *Node) IsVisibleInWorkspace() bool {
	return n.Scope == tags.ScopeWorkspace
}

// Copy returns a deep copy of n and its children.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.CloseAttributes != nil {
		attrs := *n.CloseAttributes
		c.CloseAttributes = &attrs
	}
	c.Children = Copy(n.Children)
	return &c
}

// Copy deep-copies a list of nodes.
func Copy(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Copy()
	}
	return out
}

// Flatten returns the nodes depth first, parents before children.
func Flatten(nodes []*Node) []*Node {
	var out []*Node
	var walk func([]*Node)
	walk = func(list []*Node) {
		for _, n := range list {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// FilterTree returns a new tree with the nodes that satisfy keep. A rejected
// node is dropped together with its subtree; kept nodes are copies.
func FilterTree(keep func(*Node) bool, nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if !keep(n) {
			continue
		}
		c := *n
		c.Children = FilterTree(keep, n.Children)
		out = append(out, &c)
	}
	return out
}

// SortMethod selects the ordering of sibling nodes.
type SortMethod string

const (
	SortByLine SortMethod = "line"
	SortByType SortMethod = "type"
)

// Sort returns a copy of nodes with siblings ordered by method at every level.
func Sort(nodes []*Node, method SortMethod) []*Node {
	out := Copy(nodes)
	sortInPlace(out, method)
	return out
}

func sortInPlace(nodes []*Node, method SortMethod) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if method == SortByType && a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return a.StartOffset < b.StartOffset
	})
	for _, n := range nodes {
		sortInPlace(n.Children, method)
	}
}
