package tags

import (
	"sort"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Key returns the case-insensitive lookup key for a tag name.
func Key(name string) string {
	return folder.String(name)
}

// Registry is the set of recognized tags. It is never modified after
// NewRegistry; a configuration change builds a new one.
type Registry struct {
	tags      map[string]*Definition
	endPrefix string
}

// Occurrence is the resolution of a matched tag token.
type Occurrence struct {
	Definition *Definition
	// Close is set when the token is the end form of a region tag.
	Close bool
}

// NewRegistry creates a registry holding copies of defs. endPrefix forms the
// closing token of region tags ("!" turns SECTION into !SECTION). A later
// definition replaces an earlier one with the same name.
func NewRegistry(endPrefix string, defs ...Definition) *Registry {
	r := &Registry{
		tags:      make(map[string]*Definition, len(defs)),
		endPrefix: endPrefix,
	}
	for i := range defs {
		d := defs[i]
		r.tags[Key(d.Name)] = &d
	}
	return r
}

// EndPrefix returns the prefix that turns a region tag into its end tag.
func (r *Registry) EndPrefix() string {
	return r.endPrefix
}

// Get retrieves a tag by name, ignoring case.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, exists := r.tags[Key(name)]
	return def, exists
}

// Resolve maps a matched token to its tag. A token that is the end prefix
// followed by a registered region tag resolves with Close set.
func (r *Registry) Resolve(token string) (Occurrence, bool) {
	if def, ok := r.tags[Key(token)]; ok {
		return Occurrence{Definition: def}, true
	}

	if r.endPrefix == "" || len(token) <= len(r.endPrefix) {
		return Occurrence{}, false
	}
	if Key(token[:len(r.endPrefix)]) != Key(r.endPrefix) {
		return Occurrence{}, false
	}
	def, ok := r.tags[Key(token[len(r.endPrefix):])]
	if !ok || !def.IsRegion() {
		return Occurrence{}, false
	}
	return Occurrence{Definition: def, Close: true}, true
}

// All returns the registered tags sorted by name.
func (r *Registry) All() []Definition {
	result := make([]Definition, 0, len(r.tags))
	for _, def := range r.tags {
		result = append(result, *def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Tokens returns every matchable token: each tag name plus the end token of
// every region tag.
func (r *Registry) Tokens() []string {
	tokens := make([]string, 0, len(r.tags)+1)
	for _, def := range r.tags {
		tokens = append(tokens, def.Name)
		if def.IsRegion() {
			tokens = append(tokens, r.endPrefix+def.Name)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Completions lists the tag tokens with separator appended, for editor
// completion lists.
func (r *Registry) Completions(separator string) []string {
	tokens := r.Tokens()
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t + separator
	}
	return out
}

// Count returns the number of registered tags
func (r *Registry) Count() int {
	return len(r.tags)
}
