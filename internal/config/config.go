// Package config provides configuration management for anchorage using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration covers the tag set and its matching grammar, display
// options for the views, workspace scanning, the notification server and
// logging. Values missing from every source fall back to the defaults in
// Default.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/matcher"
	"github.com/conneroisu/anchorage/internal/tags"
	"github.com/conneroisu/anchorage/internal/views"
)

type Config struct {
	Tags       TagsConfig      `mapstructure:"tags" yaml:"tags"`
	Display    DisplayConfig   `mapstructure:"display" yaml:"display"`
	Workspace  WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Epic       EpicConfig      `mapstructure:"epic" yaml:"epic"`
	ParseDelay int             `mapstructure:"parse_delay" yaml:"parse_delay"`
	Server     ServerConfig    `mapstructure:"server" yaml:"server"`
	Log        LogConfig       `mapstructure:"log" yaml:"log"`
}

type TagsConfig struct {
	List       []tags.Override          `mapstructure:"list" yaml:"list,omitempty"`
	Anchors    map[string]tags.Override `mapstructure:"anchors" yaml:"anchors,omitempty"`
	Separators []string                 `mapstructure:"separators" yaml:"separators"`
	Prefixes   []string                 `mapstructure:"prefixes" yaml:"prefixes"`
	EndTag     string                   `mapstructure:"end_tag" yaml:"end_tag"`
	MatchCase  bool                     `mapstructure:"match_case" yaml:"match_case"`
}

type DisplayConfig struct {
	TagName              bool   `mapstructure:"tag_name" yaml:"tag_name"`
	LineNumbers          bool   `mapstructure:"line_numbers" yaml:"line_numbers"`
	HierarchyInWorkspace bool   `mapstructure:"hierarchy_in_workspace" yaml:"hierarchy_in_workspace"`
	PathFormat           string `mapstructure:"path_format" yaml:"path_format"`
	SortMethod           string `mapstructure:"sort_method" yaml:"sort_method"`
	ExpandSections       bool   `mapstructure:"expand_sections" yaml:"expand_sections"`
}

type WorkspaceConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	LazyLoad bool     `mapstructure:"lazy_load" yaml:"lazy_load"`
	Root     string   `mapstructure:"root" yaml:"root"`
	Include  []string `mapstructure:"include" yaml:"include"`
	Exclude  []string `mapstructure:"exclude" yaml:"exclude"`
	MaxFiles int      `mapstructure:"max_files" yaml:"max_files"`
}

type EpicConfig struct {
	SeqStep int `mapstructure:"seq_step" yaml:"seq_step"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Path label formats for workspace file entries.
const (
	PathFull        = views.PathFull
	PathAbbreviated = views.PathAbbreviated
	PathHidden      = views.PathHidden
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Tags: TagsConfig{
			Separators: append([]string(nil), matcher.DefaultSeparators...),
			Prefixes:   append([]string(nil), matcher.DefaultPrefixes...),
			EndTag:     "!",
		},
		Display: DisplayConfig{
			TagName:              true,
			LineNumbers:          true,
			HierarchyInWorkspace: true,
			PathFormat:           PathFull,
			SortMethod:           string(anchor.SortByLine),
			ExpandSections:       true,
		},
		Workspace: WorkspaceConfig{
			Enabled:  true,
			Root:     ".",
			Include:  []string{"**/*"},
			Exclude:  []string{"**/node_modules/**", "**/.git/**", "**/vendor/**", "**/dist/**", "**/out/**"},
			MaxFiles: 100,
		},
		Epic:       EpicConfig{SeqStep: 1},
		ParseDelay: 500,
		Server:     ServerConfig{Host: "localhost", Port: 8383},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func Load() (*Config, error) {
	config := Default()
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	// Handle slices set via viper (workaround for viper slice handling)
	if viper.IsSet("tags.separators") {
		config.Tags.Separators = viper.GetStringSlice("tags.separators")
	}
	if viper.IsSet("tags.prefixes") {
		config.Tags.Prefixes = viper.GetStringSlice("tags.prefixes")
	}
	if viper.IsSet("workspace.include") {
		config.Workspace.Include = viper.GetStringSlice("workspace.include")
	}
	if viper.IsSet("workspace.exclude") {
		config.Workspace.Exclude = viper.GetStringSlice("workspace.exclude")
	}

	// Apply default values when a key is present but empty
	if !viper.IsSet("tags.end_tag") && config.Tags.EndTag == "" {
		config.Tags.EndTag = "!"
	}
	if config.Epic.SeqStep == 0 {
		config.Epic.SeqStep = 1
	}
	if config.Workspace.Root == "" {
		config.Workspace.Root = "."
	}

	// Validate configuration values
	if result := Validate(config); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}

	return config, nil
}

// ParseDelayDuration returns the edit debounce window.
func (c *Config) ParseDelayDuration() time.Duration {
	return time.Duration(c.ParseDelay) * time.Millisecond
}

// MatcherOptions returns the matching grammar settings.
func (c *Config) MatcherOptions() matcher.Options {
	return matcher.Options{
		Separators: c.Tags.Separators,
		Prefixes:   c.Tags.Prefixes,
		MatchCase:  c.Tags.MatchCase,
	}
}

// TagDefinitions merges the legacy list and the keyed map over the default
// tags. Viper lowercases map keys, so keyed names are upper-cased.
func (c *Config) TagDefinitions() ([]tags.Definition, error) {
	upper := cases.Upper(language.Und)
	keyed := make(map[string]tags.Override, len(c.Tags.Anchors))
	for name, o := range c.Tags.Anchors {
		keyed[upper.String(name)] = o
	}
	return tags.Merge(tags.Defaults(), c.Tags.List, keyed)
}

// Registry builds the tag registry for this configuration.
func (c *Config) Registry() (*tags.Registry, error) {
	defs, err := c.TagDefinitions()
	if err != nil {
		return nil, err
	}
	return tags.NewRegistry(c.Tags.EndTag, defs...), nil
}

// SortMethod returns the file view ordering.
func (c *Config) SortMethod() anchor.SortMethod {
	if c.Display.SortMethod == string(anchor.SortByType) {
		return anchor.SortByType
	}
	return anchor.SortByLine
}

// ViewOptions returns the presentation settings for the views.
func (c *Config) ViewOptions() views.Options {
	return views.Options{
		ShowLine:   c.Display.LineNumbers,
		Sort:       c.SortMethod(),
		Hierarchy:  c.Display.HierarchyInWorkspace,
		PathFormat: c.Display.PathFormat,
		Expand:     c.Display.ExpandSections,
	}
}
