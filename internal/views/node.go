// Package views turns anchor indexes into display trees. Every entry shown
// to a user is one of the Node variants below, and Render is the single place
// that knows how to draw them.
package views

import (
	"fmt"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
)

// Node is a display entry. The set of implementations is closed.
type Node interface {
	isNode()
}

// Anchor is a plain or link anchor.
type Anchor struct {
	URI      uri.URI
	Anchor   *anchor.Node
	ShowLine bool
	Children []Node
}

// Region is an anchor that spans lines up to its end tag.
type Region struct {
	URI      uri.URI
	Anchor   *anchor.Node
	ShowLine bool
	Expanded bool
	Children []Node
}

// Error is a message shown in place of anchors.
type Error struct {
	Message string
}

// Loading is shown while the workspace is being indexed.
type Loading struct{}

// ScanPrompt asks the user to start a workspace scan.
type ScanPrompt struct{}

// Cursor marks the caret position among the anchors of a file.
type Cursor struct {
	Line int
}

// File groups the workspace anchors of one document.
type File struct {
	URI      uri.URI
	Label    string
	Children []Node
}

// Epic groups anchors sharing an epic attribute.
type Epic struct {
	Name     string
	Children []Node
}

func (Anchor) isNode()     {}
func (Region) isNode()     {}
func (Error) isNode()      {}
func (Loading) isNode()    {}
func (ScanPrompt) isNode() {}
func (Cursor) isNode()     {}
func (File) isNode()       {}
func (Epic) isNode()       {}

// Placeholder messages.
var (
	ErrNoEditor          = Error{Message: "Waiting for open editor..."}
	ErrEmptyFile         = Error{Message: "No comment anchors detected"}
	ErrEmptyWorkspace    = Error{Message: "No comment anchors in workspace"}
	ErrWorkspaceDisabled = Error{Message: "Workspace disabled"}
	ErrEmptyEpics        = Error{Message: "No epics found"}
)

const (
	loadingLabel    = "Searching for anchors..."
	scanPromptLabel = "Run `anchorage scan` to index the workspace"
)

// Label is the one-line text of n.
func Label(n Node) string {
	switch v := n.(type) {
	case Anchor:
		if v.ShowLine {
			return fmt.Sprintf("[%d] %s", v.Anchor.LineNumber, v.Anchor.Text)
		}
		return v.Anchor.Text
	case Region:
		if !v.ShowLine {
			return v.Anchor.Text
		}
		if v.Anchor.IsClosed() {
			return fmt.Sprintf("[%d - %d] %s", v.Anchor.LineNumber, v.Anchor.CloseLineNumber, v.Anchor.Text)
		}
		return fmt.Sprintf("[%d - ?] %s", v.Anchor.LineNumber, v.Anchor.Text)
	case Error:
		return v.Message
	case Loading:
		return loadingLabel
	case ScanPrompt:
		return scanPromptLabel
	case Cursor:
		return fmt.Sprintf("➤ Cursor position (line %d)", v.Line)
	case File:
		return v.Label
	case Epic:
		return v.Name
	}
	return ""
}

// Children returns the nested entries of n.
func Children(n Node) []Node {
	switch v := n.(type) {
	case Anchor:
		return v.Children
	case Region:
		return v.Children
	case File:
		return v.Children
	case Epic:
		return v.Children
	}
	return nil
}

// fromAnchors wraps anchor nodes, recursing into children when deep is set.
func fromAnchors(u uri.URI, nodes []*anchor.Node, showLine, expand, deep bool) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		var children []Node
		if deep {
			children = fromAnchors(u, n.Children, showLine, expand, deep)
		}
		if n.IsRegion() {
			out = append(out, Region{URI: u, Anchor: n, ShowLine: showLine, Expanded: expand, Children: children})
			continue
		}
		out = append(out, Anchor{URI: u, Anchor: n, ShowLine: showLine, Children: children})
	}
	return out
}
