package validation

import (
	"errors"
	"fmt"
)

// Failure is returned by validators to report invalid data. Any other error
// is treated as a validator malfunction.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Fail reports a validation failure with message. An empty message falls back
// to the field's errorMessage or the default text.
func Fail(message string) error {
	return &Failure{Message: message}
}

// IsFailure reports whether err carries a validation failure.
func IsFailure(err error) bool {
	var failure *Failure
	return errors.As(err, &failure)
}

// CustomValidatorError wraps an error or panic raised by a registered
// validator. It is logged; users only see a generic message.
type CustomValidatorError struct {
	Rule  string
	Field string
	Err   error
	Panic any
}

func (e *CustomValidatorError) Error() string {
	target := e.Field
	if target == "" {
		target = "form"
	}
	if e.Panic != nil {
		return fmt.Sprintf("validation: validator %q panicked on %s: %v", e.Rule, target, e.Panic)
	}
	return fmt.Sprintf("validation: validator %q failed on %s: %v", e.Rule, target, e.Err)
}

func (e *CustomValidatorError) Unwrap() error {
	return e.Err
}
