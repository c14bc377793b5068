// Package matcher compiles the tag registry and the separator, prefix and
// case-sensitivity settings into the single expression that finds anchors.
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/tags"
)

// Options configures compilation.
type Options struct {
	Separators []string
	Prefixes   []string
	MatchCase  bool
}

// DefaultSeparators are the separators accepted between a tag and its comment.
var DefaultSeparators = []string{" ", ": ", " - "}

// DefaultPrefixes are the comment openers an anchor may follow.
var DefaultPrefixes = []string{"//", "#", "--", "/*", "<!--", ";", "%", "*", "'"}

// Matcher is an immutable compiled anchor expression.
type Matcher struct {
	re     *regexp.Regexp
	tokens []string
}

// Match holds the byte positions of one anchor occurrence. Optional parts
// that did not participate are -1.
type Match struct {
	Start, End         int
	TagStart, TagEnd   int
	AttrStart, AttrEnd int
	TextStart, TextEnd int
}

// Compile builds the matcher for registry and opts. It returns a
// configuration error when tags, separators or prefixes are empty.
func Compile(registry *tags.Registry, opts Options) (*Matcher, error) {
	tokens := registry.Tokens()
	if len(tokens) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeNoTags, "at least one tag must be configured")
	}
	if len(nonEmpty(opts.Separators)) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeNoSeparators, "at least one separator must be configured")
	}
	if len(nonEmpty(opts.Prefixes)) == 0 {
		return nil, errors.NewConfigError(errors.ErrCodeNoPrefixes, "at least one comment prefix must be configured")
	}

	separators := make([]string, 0, len(opts.Separators))
	for _, sep := range longestFirst(nonEmpty(opts.Separators)) {
		parts := strings.Split(sep, " ")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		separators = append(separators, strings.Join(parts, " +"))
	}

	var b strings.Builder
	b.WriteString("(?m)")
	if !opts.MatchCase {
		b.WriteString("(?i)")
	}
	b.WriteString("(?:")
	b.WriteString(alternation(longestFirst(nonEmpty(opts.Prefixes))))
	b.WriteString(")[ \\t]*(")
	b.WriteString(alternation(longestFirst(tokens)))
	b.WriteString(`)(?:\[([^\]\r\n]*)\])?(?:(?:`)
	b.WriteString(strings.Join(separators, "|"))
	b.WriteString(`)([^\r\n]*?))?[ \t]*(?:\r|$)`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeBadExpression, "tag configuration produced an invalid expression").
			WithContext("expression", b.String()).
			WithContext("error", err.Error())
	}

	return &Matcher{re: re, tokens: longestFirst(tokens)}, nil
}

// FindAll returns every non-overlapping anchor occurrence in text, left to right.
func (m *Matcher) FindAll(text string) []Match {
	locs := m.re.FindAllStringSubmatchIndex(text, -1)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		end := loc[1]
		if end > loc[0] && text[end-1] == '\r' {
			end--
		}
		matches = append(matches, Match{
			Start:     loc[0],
			End:       end,
			TagStart:  loc[2],
			TagEnd:    loc[3],
			AttrStart: loc[4],
			AttrEnd:   loc[5],
			TextStart: loc[6],
			TextEnd:   loc[7],
		})
	}
	return matches
}

// Tokens returns the matchable tokens, longest first.
func (m *Matcher) Tokens() []string {
	out := make([]string, len(m.tokens))
	copy(out, m.tokens)
	return out
}

// Describe returns the expression source.
func (m *Matcher) Describe() string {
	return m.re.String()
}

func alternation(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = regexp.QuoteMeta(item)
	}
	return strings.Join(quoted, "|")
}

// longestFirst sorts a copy by descending length, ties alphabetically.
func longestFirst(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
