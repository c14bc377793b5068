package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/anchorage/internal/anchor"
	"github.com/conneroisu/anchorage/internal/tags"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, config *Config)
	}{
		{
			name:  "defaults",
			setup: func() { viper.Reset() },
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, Default(), config)
			},
		},
		{
			name: "overrides",
			setup: func() {
				viper.Reset()
				viper.Set("tags.separators", []string{": "})
				viper.Set("tags.match_case", true)
				viper.Set("display.tag_name", false)
				viper.Set("workspace.max_files", 10)
				viper.Set("parse_delay", 50)
			},
			check: func(t *testing.T, config *Config) {
				assert.Equal(t, []string{": "}, config.Tags.Separators)
				assert.True(t, config.Tags.MatchCase)
				assert.False(t, config.Display.TagName)
				assert.Equal(t, 10, config.Workspace.MaxFiles)
				assert.Equal(t, 50*time.Millisecond, config.ParseDelayDuration())
			},
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "validation failure",
			setup: func() {
				viper.Reset()
				viper.Set("display.path_format", "sideways")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			tt.check(t, config)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), ".anchorage.yml")
	content := `
tags:
  end_tag: "END"
  list:
    - tag: HACK
      scope: file
  anchors:
    todo:
      highlightColor: "#ffffff"
    fixme:
      enabled: false
    block:
      isRegion: true
display:
  sort_method: type
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, anchor.SortByType, config.SortMethod())

	registry, err := config.Registry()
	require.NoError(t, err)
	assert.Equal(t, "END", registry.EndPrefix())

	todo, ok := registry.Get("TODO")
	require.True(t, ok)
	assert.Equal(t, "#ffffff", todo.HighlightColor)

	_, ok = registry.Get("FIXME")
	assert.False(t, ok)

	hack, ok := registry.Get("HACK")
	require.True(t, ok)
	assert.Equal(t, tags.ScopeFile, hack.Scope)

	block, ok := registry.Get("BLOCK")
	require.True(t, ok)
	assert.Equal(t, "BLOCK", block.Name)
	assert.True(t, block.IsRegion())

	occ, ok := registry.Resolve("ENDBLOCK")
	require.True(t, ok)
	assert.True(t, occ.Close)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		warning bool
	}{
		{"empty separators", func(c *Config) { c.Tags.Separators = nil }, "tags.separators", false},
		{"empty prefixes", func(c *Config) { c.Tags.Prefixes = []string{""} }, "tags.prefixes", false},
		{"empty end tag", func(c *Config) { c.Tags.EndTag = "" }, "tags.end_tag", true},
		{"bad scope", func(c *Config) { c.Tags.Anchors = map[string]tags.Override{"X": {Scope: "moon"}} }, "tags", false},
		{"negative delay", func(c *Config) { c.ParseDelay = -1 }, "parse_delay", false},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port", false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level", false},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format", false},
		{"bad sort", func(c *Config) { c.Display.SortMethod = "size" }, "display.sort_method", false},
		{"unbounded scan", func(c *Config) { c.Workspace.MaxFiles = 0 }, "workspace.max_files", true},
		{"zero seq step", func(c *Config) { c.Epic.SeqStep = 0 }, "epic.seq_step", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			result := Validate(config)

			issues := result.Errors
			if tt.warning {
				issues = result.Warnings
				assert.True(t, result.Valid)
			} else {
				assert.False(t, result.Valid)
			}

			var fields []string
			for _, issue := range issues {
				fields = append(fields, issue.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.Contains(t, result.String(), tt.field)
		})
	}

	assert.True(t, Validate(Default()).Valid)
}
