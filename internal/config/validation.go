package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/anchorage/internal/glob"
	"github.com/conneroisu/anchorage/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate checks the configuration and collects every problem found.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateTags(&config.Tags, result)
	if _, err := config.TagDefinitions(); err != nil {
		result.addError("tags", nil, err.Error(),
			"Valid scopes: file, workspace, hidden",
			"Valid behaviors: anchor, region, link",
			"Valid style modes: tag, comment, full",
		)
	}
	validateDisplay(&config.Display, result)
	validateWorkspace(&config.Workspace, result)

	if config.ParseDelay < 0 {
		result.addError("parse_delay", config.ParseDelay, "parse delay cannot be negative",
			"Use 500 for the default debounce window",
			"Use 0 to re-parse on every edit",
		)
	}
	if config.Epic.SeqStep < 1 {
		result.addError("epic.seq_step", config.Epic.SeqStep, "sequence step must be at least 1")
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		result.addError("server.port", config.Server.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Server.Port),
			"Port 0 allows system to assign an available port",
		)
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		result.addError("log.level", config.Log.Level, err.Error())
	}
	if config.Log.Format != "" && config.Log.Format != "text" && config.Log.Format != "json" {
		result.addError("log.format", config.Log.Format, "log format must be text or json")
	}

	// Set overall validity
	result.Valid = !result.HasErrors()

	return result
}

func validateTags(config *TagsConfig, result *ValidationResult) {
	if len(nonBlank(config.Separators)) == 0 {
		result.addError("tags.separators", config.Separators, "at least one separator is required",
			`Use [" ", ": ", " - "] for the defaults`,
		)
	}
	if len(nonBlank(config.Prefixes)) == 0 {
		result.addError("tags.prefixes", config.Prefixes, "at least one comment prefix is required",
			`Use ["//", "#"] for C-like and shell-like languages`,
		)
	}
	if config.EndTag == "" {
		result.addWarning("tags.end_tag", config.EndTag, "empty end tag: regions can never be closed",
			`Use "!" so SECTION is closed by !SECTION`,
		)
	}
}

func validateDisplay(config *DisplayConfig, result *ValidationResult) {
	switch config.PathFormat {
	case "", PathFull, PathAbbreviated, PathHidden:
	default:
		result.addError("display.path_format", config.PathFormat, "unknown path format",
			"Available formats: full, abbreviated, hidden",
		)
	}
	switch config.SortMethod {
	case "", "line", "type":
	default:
		result.addError("display.sort_method", config.SortMethod, "unknown sort method",
			"Available methods: line, type",
		)
	}
}

func validateWorkspace(config *WorkspaceConfig, result *ValidationResult) {
	if config.MaxFiles < 0 {
		result.addError("workspace.max_files", config.MaxFiles, "max files cannot be negative")
	} else if config.MaxFiles == 0 && config.Enabled {
		result.addWarning("workspace.max_files", config.MaxFiles, "no file limit: large workspaces may scan slowly",
			"Set max_files to cap the number of anchor-bearing files",
		)
	}

	for _, pattern := range append(append([]string{}, config.Include...), config.Exclude...) {
		if _, err := glob.Compile(pattern); err != nil {
			result.addError("workspace.include/exclude", pattern, err.Error(),
				"Use patterns like **/*.go or **/node_modules/**",
			)
		}
	}

	if config.Enabled && len(config.Include) == 0 {
		result.addWarning("workspace.include", config.Include, "no include patterns: every file is a candidate")
	}
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
