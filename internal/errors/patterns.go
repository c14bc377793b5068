package errors

import (
	"fmt"
)

// ConfigurationError creates a configuration error for a single setting.
func ConfigurationError(setting, message string, value interface{}) *AnchorError {
	return NewConfigError(
		ErrCodeInvalidConfig,
		fmt.Sprintf("invalid configuration for %s: %s", setting, message),
	).WithContext("setting", setting).WithContext("value", value)
}

// ReadError wraps a failure to read a document's text.
func ReadError(uri string, cause error) *AnchorError {
	return NewIOError(ErrCodeReadFailed, "unable to read document", cause).
		WithLocation(uri, 0)
}

// UnknownTokenError reports a matched token that resolves to no registered tag.
// It indicates a matcher compiled against a different registry.
func UnknownTokenError(uri, token string, line int) *AnchorError {
	return NewParseError(
		ErrCodeUnknownToken,
		fmt.Sprintf("matched token %q is not a registered tag", token),
		nil,
	).WithLocation(uri, line)
}

// TargetNotFound reports a link whose target file does not exist.
func TargetNotFound(target string) *AnchorError {
	return NewLinkError(ErrCodeTargetNotFound, fmt.Sprintf("file not found: %s", target)).
		WithContext("target", target)
}

// AnchorIDNotFound reports a link or jump whose anchor id is not indexed.
func AnchorIDNotFound(id string) *AnchorError {
	return NewLinkError(ErrCodeAnchorIDNotFound, fmt.Sprintf("no anchor with id %q", id)).
		WithContext("id", id)
}

// MalformedLink reports a link anchor whose text names no target.
func MalformedLink(text string) *AnchorError {
	return NewLinkError(ErrCodeMalformedLink, fmt.Sprintf("link has no target: %q", text)).
		WithContext("text", text)
}
