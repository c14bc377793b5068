package glob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatch(t *testing.T) {
	testCases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"**/*", "main.go", true},
		{"**/*", "a/b/c.txt", true},
		{"**/*.go", "main.go", true},
		{"**/*.go", "pkg/sub/x.go", true},
		{"**/*.go", "pkg/x.goo", false},
		{"*.go", "pkg/x.go", false},
		{"src/**", "src/a/b.ts", true},
		{"**/*.{js,ts}", "web/app.ts", true},
		{"**/*.{js,ts}", "web/app.tsx", false},
		{"**/node_modules/**", "node_modules/x/index.js", true},
		{"**/node_modules/**", "a/node_modules/x.js", true},
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file/.txt", false},
		{"a+b.md", "a+b.md", true},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern+" "+tc.path, func(t *testing.T) {
			p, err := Compile(tc.pattern)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Match(tc.path))
		})
	}
}

func TestCompileEmpty(t *testing.T) {
	_, err := Compile("")
	assert.Error(t, err)
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"main.go",
		"README.md",
		"pkg/util.go",
		"node_modules/lib/index.js",
		".git/config",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	set, err := NewSet([]string{"**/*"}, []string{"**/node_modules/**", "**/.git/**", "**/*.md"})
	require.NoError(t, err)

	found, err := set.Enumerate(context.Background(), root)
	require.NoError(t, err)

	var rel []string
	for _, f := range found {
		r, err := filepath.Rel(root, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"main.go", "pkg/util.go"}, rel)
}

func TestEnumerateCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("x"), 0o644))

	set, err := NewSet(nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = set.Enumerate(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
