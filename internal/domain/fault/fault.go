package fault

import (
	"fmt"
	"strings"
)

// Error is a request-level failure: which operation, which constraint, which entities.
type Error struct {
	Op         string
	Kind       error
	EmployeeID string
	ProjectID  string
	Msg        string
	Err        error
}

// New builds an Error of the given kind.
func New(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// WithEmployee records the employee the error is about.
func (e *Error) WithEmployee(id string) *Error {
	e.EmployeeID = id
	return e
}

// WithProject records the project the error is about.
func (e *Error) WithProject(id string) *Error {
	e.ProjectID = id
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.EmployeeID != "" || e.ProjectID != "" {
		b.WriteString(" (")
		if e.EmployeeID != "" {
			b.WriteString("employee=")
			b.WriteString(e.EmployeeID)
		}
		if e.ProjectID != "" {
			if e.EmployeeID != "" {
				b.WriteString(" ")
			}
			b.WriteString("project=")
			b.WriteString(e.ProjectID)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Message is the caller-facing text without the operation prefix.
func (e *Error) Message() string {
	s := e.Error()
	if e.Op != "" {
		s = strings.TrimPrefix(s, e.Op+": ")
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
