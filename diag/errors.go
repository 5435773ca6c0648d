package diag

import (
	"strconv"
	"strings"
)

// The error taxonomy. Every structured finding the core can produce is one
// of these types, so callers and tests can match with errors.As instead of
// scraping message text. Keys and declaration sites are carried as rendered
// strings; the structured graph objects stay inside the core.

// UnresolvedReferenceError reports references that could not be resolved
// this round. It is recoverable by deferring the component to a later round
// and escalates to a hard failure only once rounds are exhausted.
type UnresolvedReferenceError struct {
	Component string
	Refs      []string

	// Cause optionally carries a stack-capturing wrapper, attached when
	// includeStacktraceWithDeferredErrorMessages is set.
	Cause error
}

// Error implements the error interface.
func (e UnresolvedReferenceError) Error() string {
	var sb strings.Builder
	sb.WriteString("cannot resolve ")
	sb.WriteString(strings.Join(e.Refs, ", "))
	sb.WriteString(" referenced by component ")
	sb.WriteString(e.Component)
	if e.Cause != nil {
		sb.WriteString("\n")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap exposes the stack-carrying cause, if any.
func (e UnresolvedReferenceError) Unwrap() error { return e.Cause }

// DuplicateBindingsError reports a key with multiple distinct candidate
// bindings reachable from one component.
type DuplicateBindingsError struct {
	Key string

	// Declarations lists every conflicting declaration site in the order
	// the graph encountered them.
	Declarations []string
}

// Error implements the error interface.
func (e DuplicateBindingsError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Key)
	sb.WriteString(" is bound multiple times:")
	summarize(&sb, e.Declarations, MaxListedEntryPoints)
	return sb.String()
}

// MissingBindingError reports a reachable key with no candidate bindings.
type MissingBindingError struct {
	Key string

	// Trace is the shortest dependency path from an entry point to the key.
	Trace Trace

	// OtherEntryPoints lists further affected entry points, pre-capped by
	// the validator; Omitted counts the ones summarized away.
	OtherEntryPoints []string
	Omitted          int
}

// Error implements the error interface.
func (e MissingBindingError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Key)
	sb.WriteString(" cannot be provided without an @Inject constructor or an @Provides-annotated method.")
	if len(e.Trace) > 0 {
		sb.WriteString("\n")
		sb.WriteString(e.Trace.String())
	}
	if len(e.OtherEntryPoints) > 0 {
		sb.WriteString("\nIt is also requested at:")
		for _, ep := range e.OtherEntryPoints {
			sb.WriteString("\n    ")
			sb.WriteString(ep)
		}
		if e.Omitted > 0 {
			sb.WriteString("\n    and ")
			sb.WriteString(strconv.Itoa(e.Omitted))
			sb.WriteString(" others")
		}
	}
	return sb.String()
}

// DependencyCycleError reports a cycle with no deferred edge breaking it.
type DependencyCycleError struct {
	// Cycle lists the keys along the cycle, starting and ending at the
	// cycle head.
	Cycle []string

	// ComponentPath names the components the cycle spans, parent first.
	ComponentPath []string
}

// Error implements the error interface.
func (e DependencyCycleError) Error() string {
	var sb strings.Builder
	sb.WriteString("found a dependency cycle")
	if len(e.ComponentPath) > 1 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.ComponentPath, " → "))
		sb.WriteString("]")
	}
	sb.WriteString(":")
	summarize(&sb, e.Cycle, MaxListedEntryPoints)
	return sb.String()
}

// MultipleScopeError reports a binding declaration carrying two or more
// scope annotations.
type MultipleScopeError struct {
	Decl   string
	Scopes []string
}

// Error implements the error interface.
func (e MultipleScopeError) Error() string {
	return e.Decl + " has more than one scope annotation: " + strings.Join(e.Scopes, " ")
}

// InvalidScopeOnInjectConstructorError reports a scope annotation placed on
// an inject constructor rather than on the type.
type InvalidScopeOnInjectConstructorError struct {
	Decl  string
	Scope string
}

// Error implements the error interface.
func (e InvalidScopeOnInjectConstructorError) Error() string {
	return "scope annotation " + e.Scope + " must be placed on the type, not on the @Inject constructor: " + e.Decl
}

// IncompatibleScopeError reports a scoped binding installed in a component
// hierarchy with no matching scope.
type IncompatibleScopeError struct {
	Decl      string
	Scope     string
	Component string
}

// Error implements the error interface.
func (e IncompatibleScopeError) Error() string {
	return e.Component + " scoped with incompatible scope: " + e.Decl + " is " + e.Scope
}

// InconsistentMapKeyError reports map contributions that disagree on the map
// key annotation type.
type InconsistentMapKeyError struct {
	Key          string
	KeyTypes     []string
	Declarations []string
}

// Error implements the error interface.
func (e InconsistentMapKeyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Key)
	sb.WriteString(" uses more than one map key annotation type (")
	sb.WriteString(strings.Join(e.KeyTypes, ", "))
	sb.WriteString("):")
	summarize(&sb, e.Declarations, MaxListedEntryPoints)
	return sb.String()
}

// IncompatibleBindingsError reports contributions mixing incompatible
// wildcard variances for one collection key.
type IncompatibleBindingsError struct {
	Key          string
	Declarations []string
}

// Error implements the error interface.
func (e IncompatibleBindingsError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Key)
	sb.WriteString(" has contributions with incompatible type variances:")
	summarize(&sb, e.Declarations, MaxListedEntryPoints)
	return sb.String()
}

// InvalidInjectionSiteError reports an inject-annotated member that cannot
// be injected (private, static, final field, abstract, or inner-class).
type InvalidInjectionSiteError struct {
	Site   string
	Reason string
}

// Error implements the error interface.
func (e InvalidInjectionSiteError) Error() string {
	return "members injection cannot target " + e.Reason + ": " + e.Site
}

// SubcomponentWiringError reports an invalid subcomponent factory method.
type SubcomponentWiringError struct {
	Factory string
	Reason  string
}

// Error implements the error interface.
func (e SubcomponentWiringError) Error() string {
	return e.Factory + ": " + e.Reason
}

// InvalidRawTypeError reports a raw generic type used as an injection target.
type InvalidRawTypeError struct {
	Type string
	Site string
}

// Error implements the error interface.
func (e InvalidRawTypeError) Error() string {
	return "raw type " + e.Type + " cannot be used as an injection target at " + e.Site
}
