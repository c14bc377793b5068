// Package parser turns document text into an anchor index. Parsing is a pure
// function of the text, the compiled matcher and the tag registry.
package parser

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/errors"
	"github.com/conneroisu/anchorage/internal/logging"
	"github.com/conneroisu/anchorage/internal/matcher"
	"github.com/conneroisu/anchorage/internal/tags"
)

// Options controls how anchors are presented.
type Options struct {
	// URI identifies the document in errors and logs.
	URI string
	// DisplayTagName prefixes display text with the tag ("TODO: text").
	DisplayTagName bool
}

var closers = []string{"-->", "*/"}

// Parse finds every anchor in text. It reports whether at least one anchor
// occurrence, opening or closing, was seen.
func Parse(text string, m *matcher.Matcher, registry *tags.Registry, opts Options) (*anchor.Index, bool, error) {
	lines := newLineTable(text)

	var (
		roots   []*anchor.Node
		regions []*anchor.Node
		folds   []protocol.FoldingRange
		found   bool
	)

	for _, match := range m.FindAll(text) {
		token := text[match.TagStart:match.TagEnd]
		occ, ok := registry.Resolve(token)
		if !ok {
			return anchor.Empty, false, errors.UnknownTokenError(opts.URI, token, lines.line(match.TagStart))
		}
		found = true

		def := occ.Definition
		var current *anchor.Node
		if len(regions) > 0 {
			current = regions[len(regions)-1]
		}

		if occ.Close {
			if current == nil || tags.Key(current.Tag) != tags.Key(def.Name) {
				continue
			}
			current.CloseStartOffset = match.TagStart
			current.CloseEndOffset = match.TagEnd
			current.CloseLineNumber = lines.line(match.TagStart)
			_, closeAttrs := matchAttributes(text, match, matchComment(text, match), current.CloseLineNumber)
			current.CloseAttributes = &closeAttrs
			regions = regions[:len(regions)-1]

			folds = append(folds, protocol.FoldingRange{
				StartLine: uint32(current.LineNumber - 1),
				EndLine:   uint32(current.CloseLineNumber - 1),
				Kind:      protocol.RegionFoldingRange,
			})
			continue
		}

		node := newNode(text, match, def, lines, opts)

		if def.IsRegion() {
			regions = append(regions, node)
		}

		if current != nil {
			current.Children = append(current.Children, node)
		} else {
			roots = append(roots, node)
		}
	}

	return anchor.NewIndex(roots, folds), found, nil
}

func newNode(text string, match matcher.Match, def *tags.Definition, lines lineTable, opts Options) *anchor.Node {
	start := match.TagStart
	if def.StyleMode == tags.StyleFull {
		start = match.Start
	}
	line := lines.line(start)

	comment := matchComment(text, match)

	comment, attrs := matchAttributes(text, match, comment, line)

	end := match.End
	switch def.StyleMode {
	case tags.StyleTag:
		end = match.TagEnd
	case tags.StyleComment:
		end = commentEnd(text, match)
	}

	display := def.Name
	if comment != "" {
		display = comment
		if opts.DisplayTagName {
			display = def.Name + ": " + comment
		}
	}

	return &anchor.Node{
		Tag:              def.Name,
		Text:             display,
		Comment:          comment,
		StartOffset:      start,
		EndOffset:        end,
		MatchLength:      match.End - match.Start,
		LineNumber:       line,
		Attributes:       attrs,
		Scope:            def.Scope,
		Behavior:         def.Behavior,
		CloseStartOffset: anchor.Unset,
		CloseEndOffset:   anchor.Unset,
		CloseLineNumber:  anchor.Unset,
	}
}

// matchComment is the free text of match with comment closers trimmed.
func matchComment(text string, match matcher.Match) string {
	raw := ""
	if match.TextStart >= 0 {
		raw = text[match.TextStart:match.TextEnd]
	}
	return strings.TrimSpace(trimCloser(strings.TrimSpace(raw)))
}

func trimCloser(comment string) string {
	for _, closer := range closers {
		if strings.HasSuffix(comment, closer) {
			return comment[:strings.LastIndex(comment, closer)]
		}
	}
	return comment
}

// commentEnd is the end of the match with a trailing comment closer and the
// whitespace around it retracted.
func commentEnd(text string, match matcher.Match) int {
	body := strings.TrimRight(text[match.Start:match.End], " \t")
	for _, closer := range closers {
		if strings.HasSuffix(body, closer) && len(body)-len(closer) > match.TagEnd-match.Start {
			body = strings.TrimRight(body[:len(body)-len(closer)], " \t")
			break
		}
	}
	return match.Start + len(body)
}

// ParseSafe is Parse for callers that cannot act on a failure. Any error or
// panic is logged and the document resolves to no anchors.
func ParseSafe(ctx context.Context, logger logging.Logger, text string, m *matcher.Matcher, registry *tags.Registry, opts Options) (idx *anchor.Index, found bool) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewInternalError(errors.ErrCodeParsePanic, "parser panicked", fmt.Errorf("%v", r)).
				WithLocation(opts.URI, 0)
			logger.Error(ctx, err, "Parse failed", "uri", opts.URI)
			idx, found = anchor.Empty, false
		}
	}()

	var err error
	idx, found, err = Parse(text, m, registry, opts)
	if err != nil {
		logger.Warn(ctx, err, "Parse failed", "uri", opts.URI)
		return anchor.Empty, false
	}
	return idx, found
}
