package models

import "strings"

const defaultHint = "See the error report above for more information."

// UserError is a fatal build error meant to be read by the person running
// the build. It carries an optional cause and a remediation hint.
type UserError struct {
	Message string
	Hint    string
	Err     error
}

// NewUserError creates a UserError with the default hint.
func NewUserError(message string, err error) *UserError {
	return &UserError{Message: message, Hint: defaultHint, Err: err}
}

func (e *UserError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString("\n\n  ")
		sb.WriteString(e.Err.Error())
		sb.WriteString("\n")
	}
	if e.Hint != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Hint)
	}
	return sb.String()
}

func (e *UserError) Unwrap() error {
	return e.Err
}
