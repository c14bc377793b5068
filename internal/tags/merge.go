package tags

import (
	"fmt"
	"sort"
)

// Override is one user-supplied tag entry. Unset fields inherit from the tag
// already registered under the same name.
type Override struct {
	Tag             string `mapstructure:"tag" yaml:"tag,omitempty"`
	Behavior        string `mapstructure:"behavior" yaml:"behavior,omitempty"`
	Scope           string `mapstructure:"scope" yaml:"scope,omitempty"`
	StyleMode       string `mapstructure:"styleMode" yaml:"styleMode,omitempty"`
	HighlightColor  string `mapstructure:"highlightColor" yaml:"highlightColor,omitempty"`
	BackgroundColor string `mapstructure:"backgroundColor" yaml:"backgroundColor,omitempty"`
	IconColor       string `mapstructure:"iconColor" yaml:"iconColor,omitempty"`
	BorderStyle     string `mapstructure:"borderStyle" yaml:"borderStyle,omitempty"`
	BorderRadius    *int   `mapstructure:"borderRadius" yaml:"borderRadius,omitempty"`
	Bold            *bool  `mapstructure:"bold" yaml:"bold,omitempty"`
	Italic          *bool  `mapstructure:"italic" yaml:"italic,omitempty"`
	IsRegion        *bool  `mapstructure:"isRegion" yaml:"isRegion,omitempty"`
	StyleComment    *bool  `mapstructure:"styleComment" yaml:"styleComment,omitempty"`
	Enabled         *bool  `mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// Merge layers the legacy list and then the keyed map over base. A later layer
// wins for every field it sets; enabled=false removes the tag entirely.
func Merge(base []Definition, legacy []Override, keyed map[string]Override) ([]Definition, error) {
	merged := make(map[string]Definition, len(base))
	order := make([]string, 0, len(base))

	put := func(d Definition) {
		k := Key(d.Name)
		if _, ok := merged[k]; !ok {
			order = append(order, k)
		}
		merged[k] = d
	}

	for _, d := range base {
		put(d)
	}

	apply := func(name string, o Override) error {
		if name == "" {
			return fmt.Errorf("tag entry without a name")
		}
		k := Key(name)
		if o.Enabled != nil && !*o.Enabled {
			delete(merged, k)
			return nil
		}

		d, ok := merged[k]
		if !ok {
			d = Definition{
				Name:      name,
				Behavior:  BehaviorPlain,
				Scope:     ScopeWorkspace,
				StyleMode: StyleTag,
			}
		}
		d.Enabled = true

		if err := o.applyTo(&d); err != nil {
			return fmt.Errorf("tag %s: %w", name, err)
		}
		put(d)
		return nil
	}

	for _, o := range legacy {
		if err := apply(o.Tag, o); err != nil {
			return nil, err
		}
	}

	// Map iteration order is random; apply keyed entries deterministically.
	names := make([]string, 0, len(keyed))
	for name := range keyed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := apply(name, keyed[name]); err != nil {
			return nil, err
		}
	}

	result := make([]Definition, 0, len(merged))
	for _, k := range order {
		if d, ok := merged[k]; ok {
			result = append(result, d)
		}
	}
	return result, nil
}

func (o Override) applyTo(d *Definition) error {
	if o.Behavior != "" {
		b, err := ParseBehavior(o.Behavior)
		if err != nil {
			return err
		}
		d.Behavior = b
	}
	if o.Scope != "" {
		s, err := ParseScope(o.Scope)
		if err != nil {
			return err
		}
		d.Scope = s
	}
	if o.StyleMode != "" {
		m, err := ParseStyleMode(o.StyleMode)
		if err != nil {
			return err
		}
		d.StyleMode = m
	}
	if o.HighlightColor != "" {
		d.HighlightColor = o.HighlightColor
	}
	if o.BackgroundColor != "" {
		d.BackgroundColor = o.BackgroundColor
	}
	if o.IconColor != "" {
		d.IconColor = o.IconColor
	}
	if o.BorderStyle != "" {
		d.BorderStyle = o.BorderStyle
	}
	if o.BorderRadius != nil {
		d.BorderRadius = *o.BorderRadius
	}
	if o.Bold != nil {
		d.Bold = *o.Bold
	}
	if o.Italic != nil {
		d.Italic = *o.Italic
	}
	if o.IsRegion != nil && *o.IsRegion {
		d.Behavior = BehaviorRegion
	}
	if o.StyleComment != nil && *o.StyleComment {
		d.StyleMode = StyleComment
	}
	return nil
}
