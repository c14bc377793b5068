// Package glob matches workspace-relative paths against include and exclude
// patterns supporting '**', '*', '?' and '{a,b}' alternatives.
package glob

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// Pattern is a compiled glob.
type Pattern struct {
	raw string
	re  *regexp.Regexp
}

// Compile translates a glob into a regular expression anchored at both ends.
func Compile(pattern string) (*Pattern, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty glob pattern")
	}
	re, err := regexp.Compile(globToRegex(filepath.ToSlash(pattern)))
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return &Pattern{raw: pattern, re: re}, nil
}

// String returns the source pattern.
func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether the slash-separated relative path matches.
func (p *Pattern) Match(path string) bool {
	return p.re.MatchString(filepath.ToSlash(path))
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	depth := 0
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch ch {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				i++
				if i+1 < len(runes) && runes[i+1] == '/' {
					// "**/" also matches no directory at all
					i++
					b.WriteString("(?:.*/)?")
				} else {
					b.WriteString(".*")
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '{':
			depth++
			b.WriteString("(?:")
		case '}':
			if depth > 0 {
				depth--
				b.WriteString(")")
			} else {
				b.WriteString(`\}`)
			}
		case ',':
			if depth > 0 {
				b.WriteString("|")
			} else {
				b.WriteRune(ch)
			}
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '\\':
			b.WriteRune('\\')
			b.WriteRune(ch)
		default:
			b.WriteRune(ch)
		}
	}
	for ; depth > 0; depth-- {
		b.WriteString(")")
	}
	b.WriteString("$")
	return b.String()
}

// Set is an include/exclude filter over workspace-relative paths.
type Set struct {
	include []*Pattern
	exclude []*Pattern
}

// NewSet compiles include and exclude patterns. An empty include list
// matches every path.
func NewSet(include, exclude []string) (*Set, error) {
	s := &Set{}
	for _, raw := range include {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		s.include = append(s.include, p)
	}
	for _, raw := range exclude {
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		s.exclude = append(s.exclude, p)
	}
	return s, nil
}

// Match reports whether a relative file path is included and not excluded.
func (s *Set) Match(rel string) bool {
	if s.Excluded(rel) {
		return false
	}
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

// Excluded reports whether rel matches an exclude pattern.
func (s *Set) Excluded(rel string) bool {
	for _, p := range s.exclude {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

// Enumerate walks root and returns the absolute paths of matching files in
// lexical order. Directories whose contents are all excluded are skipped.
func (s *Set) Enumerate(ctx context.Context, root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && s.Excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() && s.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
