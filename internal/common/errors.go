// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Model lifecycle errors.
	ErrModelNotTrained = errors.New("model not trained")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError reports configuration that must block model load or serving,
// such as sub-models trained on incompatible category sets or malformed
// blend weights.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError creates a ConfigError with the given reason.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// FeatureShapeError reports a feature vector whose shape does not match what
// the trained model expects. Fatal for the offending request only.
type FeatureShapeError struct {
	Got  int
	Want int
}

func (e *FeatureShapeError) Error() string {
	return fmt.Sprintf("feature vector has %d entries, model expects %d", e.Got, e.Want)
}

// InsufficientDataError reports a category with too few labeled examples to
// form valid stratified folds. Training aborts rather than silently dropping
// the category.
type InsufficientDataError struct {
	Category string
	Count    int
	Need     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("category %q has %d labeled examples, need at least %d", e.Category, e.Count, e.Need)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// FormatUserError returns the message to show on the CLI for an error.
// UserErrors surface only their user-facing message.
func FormatUserError(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
