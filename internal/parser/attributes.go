package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/matcher"
)

var trailingAttributes = regexp.MustCompile(`[ \t]*\[([^\[\]]*=[^\[\]]*|[ \t]*)\][ \t]*$`)

// parseAttributes reads "key=value,key=value". seq defaults to line when it
// is missing or not an integer.
func parseAttributes(block string, line int) anchor.Attributes {
	attrs := anchor.Attributes{Seq: line}

	for _, pair := range strings.Split(block, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "epic":
			attrs.Epic = value
		case "id":
			attrs.ID = value
		case "seq":
			if seq, err := strconv.Atoi(value); err == nil {
				attrs.Seq = seq
			}
		}
	}

	return attrs
}

// splitTrailingAttributes separates a "[k=v]" or empty "[]" block at the end
// of comment.
func splitTrailingAttributes(comment string) (string, string, bool) {
	loc := trailingAttributes.FindStringSubmatchIndex(comment)
	if loc == nil {
		return comment, "", false
	}
	return strings.TrimSpace(comment[:loc[0]]), comment[loc[2]:loc[3]], true
}

// matchAttributes returns the attributes of match and its comment with any
// trailing attribute block removed. The bracket block right after the tag
// takes precedence over a trailing one.
func matchAttributes(text string, match matcher.Match, comment string, line int) (string, anchor.Attributes) {
	if match.AttrStart >= 0 {
		return comment, parseAttributes(text[match.AttrStart:match.AttrEnd], line)
	}
	if rest, block, ok := splitTrailingAttributes(comment); ok {
		return rest, parseAttributes(block, line)
	}
	return comment, anchor.Attributes{Seq: line}
}
