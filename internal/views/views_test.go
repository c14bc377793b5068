package views

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/matcher"
	"github.com/conneroisu/anchorage/internal/parser"
	"github.com/conneroisu/anchorage/internal/tags"
)

const fileText = "// TODO: fix\n" +
	"// SECTION: setup\n" +
	"// ANCHOR: nested\n" +
	"// !SECTION\n" +
	"// NOTE: later\n"

func parse(t *testing.T, text string) *anchor.Index {
	t.Helper()
	registry := tags.NewRegistry("!", tags.Defaults()...)
	m, err := matcher.Compile(registry, matcher.Options{
		Separators: matcher.DefaultSeparators,
		Prefixes:   matcher.DefaultPrefixes,
	})
	require.NoError(t, err)
	idx, _, err := parser.Parse(text, m, registry, parser.Options{})
	require.NoError(t, err)
	return idx
}

func labels(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = Label(n)
	}
	return out
}

func TestLabels(t *testing.T) {
	closed := &anchor.Node{Text: "setup", LineNumber: 2, Behavior: tags.BehaviorRegion, CloseLineNumber: 4}
	open := &anchor.Node{Text: "setup", LineNumber: 2, Behavior: tags.BehaviorRegion, CloseLineNumber: anchor.Unset}
	plain := &anchor.Node{Text: "fix", LineNumber: 1}

	tests := []struct {
		name string
		node Node
		want string
	}{
		{"anchor with line", Anchor{Anchor: plain, ShowLine: true}, "[1] fix"},
		{"anchor without line", Anchor{Anchor: plain}, "fix"},
		{"closed region", Region{Anchor: closed, ShowLine: true}, "[2 - 4] setup"},
		{"open region", Region{Anchor: open, ShowLine: true}, "[2 - ?] setup"},
		{"region without line", Region{Anchor: closed}, "setup"},
		{"cursor", Cursor{Line: 7}, "➤ Cursor position (line 7)"},
		{"error", ErrEmptyFile, "No comment anchors detected"},
		{"loading", Loading{}, "Searching for anchors..."},
		{"epic", Epic{Name: "release"}, "release"},
		{"file", File{Label: "a.go (1 Anchors)"}, "a.go (1 Anchors)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.node))
		})
	}
}

func TestFileViewStates(t *testing.T) {
	assert.Equal(t, []Node{Loading{}}, FileView(FileState{}, Options{}))
	assert.Equal(t, []Node{ErrNoEditor}, FileView(FileState{Loaded: true}, Options{}))
	assert.Equal(t, []Node{ErrEmptyFile}, FileView(FileState{Loaded: true, Index: anchor.Empty}, Options{}))
}

func TestFileView(t *testing.T) {
	idx := parse(t, fileText)
	nodes := FileView(FileState{Loaded: true, Index: idx}, Options{ShowLine: true, Sort: anchor.SortByLine})

	assert.Equal(t, []string{"[1] fix", "[2 - 4] setup", "[5] later"}, labels(nodes))
	region, ok := nodes[1].(Region)
	require.True(t, ok)
	assert.Equal(t, []string{"[3] nested"}, labels(region.Children))

	byType := FileView(FileState{Loaded: true, Index: idx}, Options{Sort: anchor.SortByType})
	assert.Equal(t, []string{"later", "setup", "fix"}, labels(byType))
}

func TestFileViewExcludesHidden(t *testing.T) {
	registry := tags.NewRegistry("!", tags.Definition{Name: "SECRET", Scope: tags.ScopeHidden, Enabled: true},
		tags.Definition{Name: "TODO", Scope: tags.ScopeWorkspace, Enabled: true})
	m, err := matcher.Compile(registry, matcher.Options{Separators: matcher.DefaultSeparators, Prefixes: matcher.DefaultPrefixes})
	require.NoError(t, err)
	idx, _, err := parser.Parse("// SECRET: x\n// TODO: y\n", m, registry, parser.Options{})
	require.NoError(t, err)

	nodes := FileView(FileState{Loaded: true, Index: idx}, Options{})
	assert.Equal(t, []string{"y"}, labels(nodes))
}

func TestFileViewCursor(t *testing.T) {
	idx := parse(t, fileText)

	nodes := FileView(FileState{Loaded: true, Index: idx, Cursor: 2}, Options{})
	require.Len(t, nodes, 3)
	region := nodes[1].(Region)
	require.Len(t, region.Children, 2)
	assert.Equal(t, Cursor{Line: 2}, region.Children[0])

	nodes = FileView(FileState{Loaded: true, Index: idx, Cursor: 4}, Options{})
	assert.Equal(t, []string{"fix", "setup", "➤ Cursor position (line 4)", "later"}, labels(nodes))

	nodes = FileView(FileState{Loaded: true, Index: idx, Cursor: 9}, Options{})
	assert.Len(t, nodes, 3)
}

func TestWorkspaceGate(t *testing.T) {
	assert.Equal(t, []Node{ErrWorkspaceDisabled}, WorkspaceView(WorkspaceState{}, Options{}))
	assert.Equal(t, []Node{ScanPrompt{}}, WorkspaceView(WorkspaceState{Enabled: true, LazyLoad: true}, Options{}))
	assert.Equal(t, []Node{Loading{}}, WorkspaceView(WorkspaceState{Enabled: true}, Options{}))
	assert.Equal(t, []Node{ErrEmptyWorkspace}, WorkspaceView(WorkspaceState{Enabled: true, Loaded: true}, Options{}))
	assert.Equal(t, []Node{ErrEmptyEpics}, EpicView(WorkspaceState{Enabled: true, Loaded: true}, Options{}))
}

func TestWorkspaceView(t *testing.T) {
	root := t.TempDir()
	main := uri.File(filepath.Join(root, "src", "pkg", "main.go"))
	util := uri.File(filepath.Join(root, "util.go"))
	fileOnly := uri.File(filepath.Join(root, "only.go"))
	outside := uri.File(filepath.Join(filepath.Dir(root), "elsewhere.go"))

	state := WorkspaceState{
		Root:    root,
		Enabled: true,
		Loaded:  true,
		Files: map[uri.URI]*anchor.Index{
			main:     parse(t, "// TODO: one\n// ANCHOR: two\n// NOTE: three\n"),
			util:     parse(t, "// FIXME: broken\n"),
			fileOnly: parse(t, "// ANCHOR: local\n"),
			outside:  parse(t, "// TODO: away\n"),
		},
	}

	tests := []struct {
		format string
		want   []string
	}{
		{PathFull, []string{"src/pkg/main.go (1 Anchors, 2 Hidden)", "util.go (1 Anchors)"}},
		{PathAbbreviated, []string{"src/p/main.go (1 Anchors, 2 Hidden)", "util.go (1 Anchors)"}},
		{PathHidden, []string{"main.go", "util.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			nodes := WorkspaceView(state, Options{PathFormat: tt.format})
			assert.Equal(t, tt.want, labels(nodes))
		})
	}

	nodes := WorkspaceView(state, Options{PathFormat: PathFull})
	assert.Equal(t, []string{"one"}, labels(Children(nodes[0])))
}

func TestWorkspaceViewHierarchy(t *testing.T) {
	root := t.TempDir()
	u := uri.File(filepath.Join(root, "a.go"))
	state := WorkspaceState{
		Root:    root,
		Enabled: true,
		Loaded:  true,
		Files:   map[uri.URI]*anchor.Index{u: parse(t, "// SECTION: outer\n// TODO: inner\n// NOTE: private\n// !SECTION\n")},
	}

	nested := WorkspaceView(state, Options{Hierarchy: true})
	require.Len(t, nested, 1)
	top := Children(nested[0])
	assert.Equal(t, []string{"outer"}, labels(top))
	assert.Equal(t, []string{"inner"}, labels(Children(top[0])))

	flat := WorkspaceView(state, Options{})
	assert.Equal(t, []string{"outer", "inner"}, labels(Children(flat[0])))
	assert.Empty(t, Children(Children(flat[0])[0]))
}

func TestEpicView(t *testing.T) {
	a := uri.File("/work/a.go")
	b := uri.File("/work/b.go")
	state := WorkspaceState{
		Enabled: true,
		Loaded:  true,
		Files: map[uri.URI]*anchor.Index{
			a: parse(t, "// TODO[epic=release,seq=3]: third\n// ANCHOR[epic=release,seq=1]: local only\n"),
			b: parse(t, "// FIXME[epic=release,seq=2]: second\n// TODO[epic=auth,seq=1]: login\n"),
		},
	}

	nodes := EpicView(state, Options{ShowLine: true})
	assert.Equal(t, []string{"auth", "release"}, labels(nodes))
	assert.Equal(t, []string{"login"}, labels(Children(nodes[0])))
	assert.Equal(t, []string{"second", "third"}, labels(Children(nodes[1])))
}

func TestNextSeq(t *testing.T) {
	files := map[uri.URI]*anchor.Index{
		uri.File("/work/a.go"): parse(t, "// TODO[epic=release,seq=2]: a\n// TODO[epic=release,seq=5]: b\n"),
		uri.File("/work/b.go"): parse(t, "// TODO[epic=auth]: c\n"),
	}

	assert.Equal(t, map[string]int{"release": 7, "auth": 3}, NextSeq(files, 2))
	assert.Equal(t, []string{"epic=auth,seq=2", "epic=release,seq=6"}, EpicCompletions(files, 1))
}

func TestRender(t *testing.T) {
	idx := parse(t, fileText)

	expanded := FileView(FileState{Loaded: true, Index: idx}, Options{ShowLine: true, Expand: true})
	assert.Equal(t, "a.go\n"+
		"├── [1] fix\n"+
		"├── [2 - 4] setup\n"+
		"│   └── [3] nested\n"+
		"└── [5] later\n", Render("a.go", expanded, RenderOptions{}))

	collapsed := FileView(FileState{Loaded: true, Index: idx}, Options{ShowLine: true})
	assert.Equal(t, "a.go\n"+
		"├── [1] fix\n"+
		"├── [2 - 4] setup (+1)\n"+
		"└── [5] later\n", Render("a.go", collapsed, RenderOptions{}))
}

func TestRenderColor(t *testing.T) {
	idx := parse(t, fileText)
	registry := tags.NewRegistry("!", tags.Defaults()...)
	nodes := FileView(FileState{Loaded: true, Index: idx}, Options{Expand: true})

	out := Render("a.go", nodes, RenderOptions{Color: true, Registry: registry})
	for _, want := range []string{"fix", "setup", "nested", "later"} {
		assert.Contains(t, out, want)
	}
}
