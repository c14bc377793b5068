//go:build property

package matcher

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/anchorage/internal/tags"
)

// TestPrefixCollisionProperty checks that a tag is never shadowed by a
// registered tag that is a prefix of it.
func TestPrefixCollisionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("longer tag wins over its prefix", prop.ForAll(
		func(base string, suffix string, comment string) bool {
			short := base
			long := base + suffix

			m, err := Compile(tags.NewRegistry("!",
				tags.Definition{Name: short},
				tags.Definition{Name: long},
			), Options{Separators: []string{": "}, Prefixes: []string{"//"}, MatchCase: true})
			if err != nil {
				return false
			}

			text := fmt.Sprintf("// %s: %s", long, comment)
			matches := m.FindAll(text)
			if len(matches) != 1 {
				return false
			}
			return text[matches[0].TagStart:matches[0].TagEnd] == long &&
				text[matches[0].TextStart:matches[0].TextEnd] == comment
		},
		gen.RegexMatch(`[A-Z]{1,4}`),
		gen.RegexMatch(`[A-Z]{1,4}`),
		gen.RegexMatch(`[a-z]{1,12}`),
	))

	properties.TestingRun(t)
}
