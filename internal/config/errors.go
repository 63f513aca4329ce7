package config

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationFailed matches every ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrTypeMismatch matches validation errors for values of the wrong type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ParseError reports a settings file that is not valid TOML. Line and
// Column are zero when the decoder gave no position.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports one rejected setting. Path is the dotted TOML key.
type ValidationError struct {
	Path    string
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrValidationFailed:
		return true
	case ErrTypeMismatch:
		return e.Code == ErrCodeTypeMismatch
	}
	return false
}

// ValidationErrorCode categorizes validation errors.
type ValidationErrorCode uint8

const (
	ErrCodeUnknownSetting ValidationErrorCode = iota
	ErrCodeTypeMismatch
	ErrCodeOutOfRange
	ErrCodeInvalidEnum
)

var codeNames = [...]string{
	ErrCodeUnknownSetting: "unknown_setting",
	ErrCodeTypeMismatch:   "type_mismatch",
	ErrCodeOutOfRange:     "out_of_range",
	ErrCodeInvalidEnum:    "invalid_enum",
}

func (c ValidationErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}
