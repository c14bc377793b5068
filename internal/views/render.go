package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disiqueira/gotree/v3"

	"github.com/conneroisu/anchorage/internal/tags"
)

var (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("86")
	colorWarning   = lipgloss.Color("220")
	colorError     = lipgloss.Color("196")
	colorDim       = lipgloss.Color("241")

	fileStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	epicStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	regionStyle = lipgloss.NewStyle().
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	cursorStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Italic(true)
)

// RenderOptions control terminal output.
type RenderOptions struct {
	// Color enables ANSI styling.
	Color bool
	// Registry supplies per-tag highlight colors when Color is set.
	Registry *tags.Registry
}

// Render draws nodes as a tree under title.
func Render(title string, nodes []Node, opts RenderOptions) string {
	root := gotree.New(title)
	for _, n := range nodes {
		add(root, n, opts)
	}
	return root.Print()
}

func add(parent gotree.Tree, n Node, opts RenderOptions) {
	children := Children(n)
	label := Label(n)
	if r, ok := n.(Region); ok && !r.Expanded && len(children) > 0 {
		label = fmt.Sprintf("%s (+%d)", label, len(children))
		children = nil
	}

	branch := parent.Add(style(n, label, opts))
	for _, c := range children {
		add(branch, c, opts)
	}
}

func style(n Node, label string, opts RenderOptions) string {
	if !opts.Color {
		return label
	}

	switch v := n.(type) {
	case Anchor:
		return tagStyle(v.Anchor.Tag, opts.Registry).Render(label)
	case Region:
		return tagStyle(v.Anchor.Tag, opts.Registry).Inherit(regionStyle).Render(label)
	case Error:
		return errorStyle.Render(label)
	case Loading:
		return dimStyle.Render(label)
	case ScanPrompt:
		return promptStyle.Render(label)
	case Cursor:
		return cursorStyle.Render(label)
	case File:
		return fileStyle.Render(label)
	case Epic:
		return epicStyle.Render(label)
	}
	return label
}

// tagStyle colors an anchor with its tag's highlight and background colors
// when they are hex values.
func tagStyle(tag string, registry *tags.Registry) lipgloss.Style {
	s := lipgloss.NewStyle()
	if registry == nil {
		return s
	}
	def, ok := registry.Get(tag)
	if !ok {
		return s
	}
	if strings.HasPrefix(def.HighlightColor, "#") {
		s = s.Foreground(lipgloss.Color(def.HighlightColor))
	}
	if strings.HasPrefix(def.BackgroundColor, "#") {
		s = s.Background(lipgloss.Color(def.BackgroundColor))
	}
	if def.Bold {
		s = s.Bold(true)
	}
	if def.Italic {
		s = s.Italic(true)
	}
	return s
}
