//go:build property

package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/matcher"
	"github.com/conneroisu/anchorage/internal/tags"
)

func lineGen() gopter.Gen {
	return gen.OneGenOf(
		gen.Const("// SECTION: region"),
		gen.Const("// !SECTION"),
		gen.Const("# TODO: task"),
		gen.Const("/* NOTE[seq=4]: note */"),
		gen.Const("<!-- FIXME: markup -->"),
		gen.RegexMatch(`[a-z ]{0,20}`),
	)
}

// TestParseProperties checks idempotence and structural invariants over
// random mixes of anchor and filler lines.
func TestParseProperties(t *testing.T) {
	registry := tags.NewRegistry("!", tags.Defaults()...)
	m, err := matcher.Compile(registry, matcher.Options{
		Separators: matcher.DefaultSeparators,
		Prefixes:   matcher.DefaultPrefixes,
	})
	require.NoError(t, err)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parsing is idempotent", prop.ForAll(
		func(lines []string) bool {
			text := strings.Join(lines, "\n")
			a, _, errA := Parse(text, m, registry, Options{})
			b, _, errB := Parse(text, m, registry, Options{})
			if errA != nil || errB != nil {
				return false
			}
			return reflect.DeepEqual(a.Roots(), b.Roots())
		},
		gen.SliceOf(lineGen()),
	))

	properties.Property("line numbers stay within the document", prop.ForAll(
		func(lines []string) bool {
			text := strings.Join(lines, "\n")
			idx, _, err := Parse(text, m, registry, Options{})
			if err != nil {
				return false
			}
			ok := true
			idx.Walk(func(n *anchor.Node) {
				if n.LineNumber < 1 || n.LineNumber > len(lines) {
					ok = false
				}
				if n.IsClosed() && n.CloseLineNumber <= n.LineNumber {
					ok = false
				}
			})
			return ok
		},
		gen.SliceOf(lineGen()),
	))

	properties.TestingRun(t)
}
