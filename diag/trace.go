package diag

import (
	"strconv"
	"strings"
)

// MaxListedEntryPoints bounds how many "also requested at" entry points a
// message enumerates before summarizing the remainder.
const MaxListedEntryPoints = 10

// Step is one hop of a dependency trace: a key and the site requesting it.
type Step struct {
	// Key is the rendered key at this hop.
	Key string

	// Site is the declaration requesting the key, e.g. "Foo(str)" or
	// "Component.foo()".
	Site string

	// EntryPoint marks the terminal hop at a component method.
	EntryPoint bool
}

// Trace is an ordered dependency path from a key back to an entry point.
type Trace []Step

// String renders the trace in the two-line-per-hop form:
//
//	String is injected at
//	    Foo(str)
//	Foo is requested at
//	    Component.foo()
func (t Trace) String() string {
	var sb strings.Builder
	for i, step := range t {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(step.Key)
		if step.EntryPoint {
			sb.WriteString(" is requested at\n    ")
		} else {
			sb.WriteString(" is injected at\n    ")
		}
		sb.WriteString(step.Site)
	}
	return sb.String()
}

// Equal reports step-wise equality; used to deduplicate identical traces
// reached from multiple entry points.
func (t Trace) Equal(o Trace) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

// CapList bounds a listing deterministically: at most max items are shown and
// the count of omitted items is returned for an "and N others" summary.
func CapList(items []string, max int) (shown []string, omitted int) {
	if len(items) <= max {
		return items, 0
	}
	return items[:max], len(items) - max
}

// summarize renders a capped listing with one item per indented line and a
// trailing "and N others" when capped.
func summarize(sb *strings.Builder, items []string, max int) {
	shown, omitted := CapList(items, max)
	for _, item := range shown {
		sb.WriteString("\n    ")
		sb.WriteString(item)
	}
	if omitted > 0 {
		sb.WriteString("\n    and ")
		sb.WriteString(strconv.Itoa(omitted))
		sb.WriteString(" others")
	}
}
