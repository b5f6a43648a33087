// Package bencherr defines the failure categories shared by the benchmark
// harness. Every error raised by the harness belongs to exactly one category
// and can be matched with errors.Is against the category sentinel.
package bencherr

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrValidation      = errors.New("ValidationError")
	ErrConfiguration   = errors.New("ConfigurationError")
	ErrShapeMismatch   = errors.New("ShapeMismatchError")
	ErrDegenerateInput = errors.New("DegenerateInputError")
	ErrSchema          = errors.New("SchemaError")
)

// Error is a categorized harness failure. Subject names the option, metric
// or field the failure is about.
type Error struct {
	Kind    error
	Subject string
	Msg     string
}

// Error formats e as "subject: message".
func (e *Error) Error() string {
	if e.Subject == "" {
		return e.Msg
	}

	return fmt.Sprintf("%s: %s", e.Subject, e.Msg)
}

// Is reports whether target is the category sentinel of e.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func newError(kind error, subject, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Subject: subject,
		Msg:     fmt.Sprintf(format, args...),
	}
}

// Validation reports a CLI value outside its declared domain. An empty
// option name marks a command line that could not be tokenized at all.
func Validation(option, format string, args ...any) error {
	if option != "" {
		option = "--" + option
	}

	return newError(ErrValidation, option, format, args...)
}

// Configuration reports an inconsistent or degenerate configuration.
func Configuration(subject, format string, args ...any) error {
	return newError(ErrConfiguration, subject, format, args...)
}

// ShapeMismatch reports arrays of different lengths fed to a metric.
func ShapeMismatch(subject, format string, args ...any) error {
	return newError(ErrShapeMismatch, subject, format, args...)
}

// DegenerateInput reports a mathematically undefined metric.
func DegenerateInput(subject, format string, args ...any) error {
	return newError(ErrDegenerateInput, subject, format, args...)
}

// Schema reports a violated output record invariant.
func Schema(subject, format string, args ...any) error {
	return newError(ErrSchema, subject, format, args...)
}

// Category returns the category name of err, or "Error" when err carries
// no harness category.
func Category(err error) string {
	for _, kind := range []error{
		ErrValidation,
		ErrConfiguration,
		ErrShapeMismatch,
		ErrDegenerateInput,
		ErrSchema,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}

	return "Error"
}

// ExitCode maps err to a process exit status: 0 for nil, 2 for invalid
// command line values, 1 for everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidation):
		return 2
	default:
		return 1
	}
}
