package manifest

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax is wrapped by every [SyntaxError].
	ErrSyntax = errors.New("manifest syntax error")
	// ErrLookup is wrapped by every [LookupError].
	ErrLookup = errors.New("manifest lookup error")
)

// SyntaxError reports a directive argument that cannot be used.
type SyntaxError struct {
	Line int
	Text string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *SyntaxError) Unwrap() []error {
	return []error{ErrSyntax, e.Err}
}

// LookupError reports a reference to a category that was never declared.
type LookupError struct {
	Line int
	Text string
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrLookup, e.Err}
}

// LineError attaches the offending manifest line to any other fatal error,
// such as a script that fails to parse.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
