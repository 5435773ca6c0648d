// Package diag carries structured diagnostics from the compiler core to the
// host environment: a severity, a typed error from the taxonomy, and the most
// specific source location available. Validators accumulate diagnostics for a
// whole round instead of failing fast, so one pass surfaces every problem.
package diag

import "github.com/sghaida/loom/model"

// Severity of a diagnostic.
type Severity uint8

const (
	// None disables a configurable check.
	None Severity = iota

	// Warning is reported but does not fail the build.
	Warning

	// Error fails the build.
	Error
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// Diagnostic is one finding attached to a source element.
type Diagnostic struct {
	Severity Severity

	// Err is the structured taxonomy error; its Error() is the rendered
	// message.
	Err error

	// Element labels the declaration the finding attaches to.
	Element string

	Pos model.Position
}

// Message returns the rendered message.
func (d Diagnostic) Message() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// Sink accumulates diagnostics in encounter order.
type Sink struct {
	diags []Diagnostic
}

// Report appends one diagnostic. Severity None findings are dropped.
func (s *Sink) Report(sev Severity, err error, element string, pos model.Position) {
	if sev == None || err == nil {
		return
	}
	s.diags = append(s.diags, Diagnostic{Severity: sev, Err: err, Element: element, Pos: pos})
}

// Add appends an already-built diagnostic, subject to the same None filter.
func (s *Sink) Add(d Diagnostic) {
	if d.Severity == None || d.Err == nil {
		return
	}
	s.diags = append(s.diags, d)
}

// All returns the accumulated diagnostics in encounter order.
func (s *Sink) All() []Diagnostic { return s.diags }

// HasErrors reports whether any accumulated diagnostic is an error.
func (s *Sink) HasErrors() bool {
	for _, d := range s.diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
