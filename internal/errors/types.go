// Package errors defines the structured error type shared by the anchor
// engine, its configuration layer and its adapters.
//
// Errors carry a category (configuration, parse, io, link, internal) and a
// stable code so callers can decide whether a failure is fatal to an
// operation (configuration) or local to one document (parse, io).
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeLink     ErrorType = "link"
	ErrorTypeInternal ErrorType = "internal"
)

// Error codes used across the engine.
const (
	ErrCodeNoTags           = "ERR_NO_TAGS"
	ErrCodeNoSeparators     = "ERR_NO_SEPARATORS"
	ErrCodeNoPrefixes       = "ERR_NO_PREFIXES"
	ErrCodeBadExpression    = "ERR_BAD_EXPRESSION"
	ErrCodeInvalidConfig    = "ERR_CONFIG_INVALID"
	ErrCodeUnknownToken     = "ERR_UNKNOWN_TOKEN"
	ErrCodeParsePanic       = "ERR_PARSE_PANIC"
	ErrCodeReadFailed       = "ERR_READ_FAILED"
	ErrCodeUnsupportedURI   = "ERR_UNSUPPORTED_URI"
	ErrCodeTargetNotFound   = "ERR_TARGET_NOT_FOUND"
	ErrCodeAnchorIDNotFound = "ERR_ANCHOR_ID_NOT_FOUND"
	ErrCodeMalformedLink    = "ERR_LINK_MALFORMED"
)

// AnchorError is a structured error type with context.
type AnchorError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	URI     string
	Line    int
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AnchorError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.URI != "" {
		location := e.URI
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *AnchorError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison on type and code.
func (e *AnchorError) Is(target error) bool {
	var t *AnchorError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *AnchorError) WithContext(key string, value interface{}) *AnchorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds document location information.
func (e *AnchorError) WithLocation(uri string, line int) *AnchorError {
	e.URI = uri
	e.Line = line

	return e
}

// NewConfigError creates a configuration error. Configuration errors are fatal
// to matcher compilation only.
func NewConfigError(code, message string) *AnchorError {
	return &AnchorError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewParseError creates a per-document parse error.
func NewParseError(code, message string, cause error) *AnchorError {
	return &AnchorError{
		Type:    ErrorTypeParse,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *AnchorError {
	return &AnchorError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewLinkError creates a navigation/link resolution error.
func NewLinkError(code, message string) *AnchorError {
	return &AnchorError{
		Type:    ErrorTypeLink,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *AnchorError {
	return &AnchorError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether any error in the chain is an AnchorError of errType.
func IsType(err error, errType ErrorType) bool {
	var ae *AnchorError
	for err != nil {
		if errors.As(err, &ae) {
			if ae.Type == errType {
				return true
			}
			err = ae.Cause
			continue
		}
		return false
	}

	return false
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code string) bool {
	var ae *AnchorError
	for err != nil {
		if !errors.As(err, &ae) {
			return false
		}
		if ae.Code == code {
			return true
		}
		err = ae.Cause
	}

	return false
}

// Code returns the code of the outermost AnchorError in the chain, or "".
func Code(err error) string {
	var ae *AnchorError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
