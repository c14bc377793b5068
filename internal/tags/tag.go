// Package tags holds the recognized anchor tag definitions, the built-in
// defaults and the merge of user configuration over them.
package tags

import (
	"fmt"
	"strings"
)

// Behavior describes how occurrences of a tag participate in the tree.
type Behavior string

const (
	BehaviorPlain  Behavior = "anchor"
	BehaviorRegion Behavior = "region"
	BehaviorLink   Behavior = "link"
)

// Scope controls where anchors of a tag are visible.
type Scope string

const (
	ScopeFile      Scope = "file"
	ScopeWorkspace Scope = "workspace"
	ScopeHidden    Scope = "hidden"
)

// StyleMode selects which part of a match is decorated and therefore where
// the anchor's offsets start and end.
type StyleMode string

const (
	StyleTag     StyleMode = "tag"
	StyleComment StyleMode = "comment"
	StyleFull    StyleMode = "full"
)

// ParseBehavior converts a configuration value into a Behavior.
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anchor", "plain":
		return BehaviorPlain, nil
	case "region":
		return BehaviorRegion, nil
	case "link":
		return BehaviorLink, nil
	}
	return BehaviorPlain, fmt.Errorf("unknown behavior %q", s)
}

// ParseScope converts a configuration value into a Scope. Unset means workspace.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "workspace":
		return ScopeWorkspace, nil
	case "file":
		return ScopeFile, nil
	case "hidden":
		return ScopeHidden, nil
	}
	return ScopeWorkspace, fmt.Errorf("unknown scope %q", s)
}

// ParseStyleMode converts a configuration value into a StyleMode.
func ParseStyleMode(s string) (StyleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tag":
		return StyleTag, nil
	case "comment":
		return StyleComment, nil
	case "full":
		return StyleFull, nil
	}
	return StyleTag, fmt.Errorf("unknown style mode %q", s)
}

// Definition describes one recognized tag.
type Definition struct {
	Name            string    `json:"name" yaml:"name"`
	Behavior        Behavior  `json:"behavior" yaml:"behavior"`
	Scope           Scope     `json:"scope" yaml:"scope"`
	StyleMode       StyleMode `json:"styleMode" yaml:"styleMode"`
	HighlightColor  string    `json:"highlightColor,omitempty" yaml:"highlightColor,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	IconColor       string    `json:"iconColor,omitempty" yaml:"iconColor,omitempty"`
	BorderStyle     string    `json:"borderStyle,omitempty" yaml:"borderStyle,omitempty"`
	BorderRadius    int       `json:"borderRadius,omitempty" yaml:"borderRadius,omitempty"`
	Bold            bool      `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic          bool      `json:"italic,omitempty" yaml:"italic,omitempty"`
	Enabled         bool      `json:"enabled" yaml:"enabled"`
}

// IsRegion reports whether the tag opens a region closed by its end tag.
func (d *Definition) IsRegion() bool {
	return d.Behavior == BehaviorRegion
}

// IsLink reports whether the tag's comment is a navigation target.
func (d *Definition) IsLink() bool {
	return d.Behavior == BehaviorLink
}

// Defaults returns the built-in tag set.
func Defaults() []Definition {
	def := func(name, icon, color string, scope Scope, behavior Behavior) Definition {
		return Definition{
			Name:           name,
			Behavior:       behavior,
			Scope:          scope,
			StyleMode:      StyleTag,
			IconColor:      icon,
			HighlightColor: color,
			Enabled:        true,
		}
	}

	return []Definition{
		def("ANCHOR", "default", "#A8C023", ScopeFile, BehaviorPlain),
		def("TODO", "blue", "#3ea8ff", ScopeWorkspace, BehaviorPlain),
		def("FIXME", "red", "#F44336", ScopeWorkspace, BehaviorPlain),
		def("STUB", "purple", "#BA68C8", ScopeFile, BehaviorPlain),
		def("NOTE", "orange", "#FFB300", ScopeFile, BehaviorPlain),
		def("REVIEW", "green", "#64DD17", ScopeWorkspace, BehaviorPlain),
		def("SECTION", "blurple", "#896afc", ScopeWorkspace, BehaviorRegion),
		def("LINK", "#2ecc71", "#2ecc71", ScopeWorkspace, BehaviorLink),
	}
}
