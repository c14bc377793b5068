package views

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/tags"
	"github.com/conneroisu/anchorage/internal/textsource"
)

// Path formats for workspace file entries.
const (
	PathFull        = "full"
	PathAbbreviated = "abbreviated"
	PathHidden      = "hidden"
)

// Options control how anchors are presented.
type Options struct {
	ShowLine   bool
	Sort       anchor.SortMethod
	Hierarchy  bool
	PathFormat string
	Expand     bool
}

// FileState is everything the file view needs about the active document.
type FileState struct {
	URI    uri.URI
	Index  *anchor.Index
	Loaded bool
	// Cursor is the 1-based caret line; 0 hides the cursor entry.
	Cursor int
}

// WorkspaceState is everything the workspace and epic views need.
type WorkspaceState struct {
	Root     string
	Files    map[uri.URI]*anchor.Index
	Enabled  bool
	LazyLoad bool
	Scanned  bool
	Loaded   bool
}

func notHidden(n *anchor.Node) bool {
	return n.Scope != tags.ScopeHidden
}

func visible(n *anchor.Node) bool {
	return n.IsVisibleInWorkspace()
}

// FileView lists the anchors of the active document, hidden-scope anchors
// excluded.
func FileView(state FileState, opts Options) []Node {
	if !state.Loaded {
		return []Node{Loading{}}
	}
	if state.Index == nil {
		return []Node{ErrNoEditor}
	}

	roots := anchor.FilterTree(notHidden, state.Index.Roots())
	if len(roots) == 0 {
		return []Node{ErrEmptyFile}
	}

	nodes := fromAnchors(state.URI, anchor.Sort(roots, opts.Sort), opts.ShowLine, opts.Expand, true)
	if state.Cursor > 0 {
		nodes, _ = insertCursor(nodes, state.Cursor)
	}
	return nodes
}

// insertCursor places one Cursor entry before the first anchor below line,
// searching depth first.
func insertCursor(nodes []Node, line int) ([]Node, bool) {
	out := make([]Node, 0, len(nodes)+1)
	placed := false
	for _, n := range nodes {
		var a *anchor.Node
		switch v := n.(type) {
		case Anchor:
			a = v.Anchor
		case Region:
			a = v.Anchor
		}
		if !placed && a != nil && a.LineNumber > line {
			out = append(out, Cursor{Line: line})
			placed = true
		}
		if !placed {
			switch v := n.(type) {
			case Anchor:
				v.Children, placed = insertCursor(v.Children, line)
				n = v
			case Region:
				v.Children, placed = insertCursor(v.Children, line)
				n = v
			}
		}
		out = append(out, n)
	}
	return out, placed
}

// gate returns the status entry for a workspace that cannot be listed yet.
func gate(state WorkspaceState) []Node {
	switch {
	case !state.Enabled:
		return []Node{ErrWorkspaceDisabled}
	case state.LazyLoad && !state.Scanned:
		return []Node{ScanPrompt{}}
	case !state.Loaded:
		return []Node{Loading{}}
	}
	return nil
}

// WorkspaceView lists every file holding workspace-scoped anchors, ordered
// by label.
func WorkspaceView(state WorkspaceState, opts Options) []Node {
	if status := gate(state); status != nil {
		return status
	}

	var files []File
	for u, idx := range state.Files {
		if idx == nil || idx.IsEmpty() {
			continue
		}
		all := anchor.Flatten(idx.Roots())
		shown, hidden := 0, 0
		for _, n := range all {
			if visible(n) {
				shown++
			} else {
				hidden++
			}
		}
		if shown == 0 {
			continue
		}

		label, ok := FileLabel(state.Root, textsource.DisplayPath(u), shown, hidden, opts.PathFormat)
		if !ok {
			continue
		}

		var children []Node
		if opts.Hierarchy {
			roots := anchor.Sort(anchor.FilterTree(visible, idx.Roots()), opts.Sort)
			children = fromAnchors(u, roots, opts.ShowLine, opts.Expand, true)
		} else {
			children = fromAnchors(u, anchor.Sort(leaves(all, visible), opts.Sort), opts.ShowLine, opts.Expand, false)
		}
		files = append(files, File{URI: u, Label: label, Children: children})
	}

	if len(files) == 0 {
		return []Node{ErrEmptyWorkspace}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Label < files[j].Label })

	out := make([]Node, len(files))
	for i, f := range files {
		out[i] = f
	}
	return out
}

// leaves copies the nodes satisfying keep without their children.
func leaves(nodes []*anchor.Node, keep func(*anchor.Node) bool) []*anchor.Node {
	var out []*anchor.Node
	for _, n := range nodes {
		if !keep(n) {
			continue
		}
		c := *n
		c.Children = nil
		out = append(out, &c)
	}
	return out
}

// FileLabel formats a workspace file entry as "path (N Anchors, M Hidden)".
// Files outside root are rejected.
func FileLabel(root, path string, shown, hidden int, format string) (string, bool) {
	rel := path
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		r, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return "", false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	stats := fmt.Sprintf("%d Anchors", shown)
	if hidden > 0 {
		stats += fmt.Sprintf(", %d Hidden", hidden)
	}

	switch format {
	case PathHidden:
		return rel[strings.LastIndex(rel, "/")+1:], true
	case PathAbbreviated:
		segments := strings.Split(rel, "/")
		for i := 1; i < len(segments)-1; i++ {
			if segments[i] != "" {
				segments[i] = segments[i][:1]
			}
		}
		rel = strings.Join(segments, "/")
	}
	return rel + " (" + stats + ")", true
}

// EpicView groups workspace anchors by their epic attribute, each group
// ordered by seq.
func EpicView(state WorkspaceState, opts Options) []Node {
	if status := gate(state); status != nil {
		return status
	}

	type member struct {
		uri  uri.URI
		node *anchor.Node
	}
	groups := make(map[string][]member)
	for u, idx := range state.Files {
		if idx == nil {
			continue
		}
		for _, n := range anchor.Flatten(idx.Roots()) {
			if n.Attributes.Epic == "" || !visible(n) {
				continue
			}
			groups[n.Attributes.Epic] = append(groups[n.Attributes.Epic], member{uri: u, node: n})
		}
	}
	if len(groups) == 0 {
		return []Node{ErrEmptyEpics}
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Node, 0, len(names))
	for _, name := range names {
		members := groups[name]
		sort.SliceStable(members, func(i, j int) bool {
			a, b := members[i], members[j]
			if a.node.Attributes.Seq != b.node.Attributes.Seq {
				return a.node.Attributes.Seq < b.node.Attributes.Seq
			}
			if a.uri != b.uri {
				return a.uri < b.uri
			}
			return a.node.StartOffset < b.node.StartOffset
		})

		children := make([]Node, 0, len(members))
		for _, m := range members {
			var n []*anchor.Node
			if opts.Hierarchy {
				n = anchor.FilterTree(visible, []*anchor.Node{m.node})
			} else {
				n = leaves([]*anchor.Node{m.node}, visible)
			}
			children = append(children, fromAnchors(m.uri, n, false, opts.Expand, opts.Hierarchy)...)
		}
		out = append(out, Epic{Name: name, Children: children})
	}
	return out
}

// NextSeq suggests the seq for the next anchor of every epic: the highest
// seq seen among top-level anchors plus step.
func NextSeq(files map[uri.URI]*anchor.Index, step int) map[string]int {
	next := make(map[string]int)
	for _, idx := range files {
		if idx == nil {
			continue
		}
		for _, n := range idx.Roots() {
			epic := n.Attributes.Epic
			if epic == "" {
				continue
			}
			if cur, ok := next[epic]; !ok || n.Attributes.Seq+step > cur {
				next[epic] = n.Attributes.Seq + step
			}
		}
	}
	return next
}

// EpicCompletions renders NextSeq as attribute snippets, sorted by epic.
func EpicCompletions(files map[uri.URI]*anchor.Index, step int) []string {
	next := NextSeq(files, step)
	out := make([]string, 0, len(next))
	for epic, seq := range next {
		out = append(out, fmt.Sprintf("epic=%s,seq=%d", epic, seq))
	}
	sort.Strings(out)
	return out
}
