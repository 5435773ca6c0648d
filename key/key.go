// Package key models "what is requested" in a binding graph: a canonical,
// immutable (type, qualifier) pair plus an optional multibinding contribution
// marker. Keys are pure value objects with deterministic string identities,
// so graph structures can index them by Key.ID().
//
// The package also knows the framework wrapper types (Provider, Lazy, Set,
// Map, Optional, ...) and how to unwrap a requested type into a request kind
// plus the underlying key (see request.go), and how to normalize keys for
// comparison under the wildcard-erasure option (see normalize.go).
package key

import "strings"

// ContributionKind distinguishes a multibinding contribution key from the
// key of the aggregated collection itself.
type ContributionKind uint8

const (
	// NoContribution is an ordinary provision key.
	NoContribution ContributionKind = iota

	// SetElement is a single contributed set element.
	SetElement

	// SetValues is a contribution of a whole collection of set elements.
	SetValues

	// MapEntry is a single contributed map entry.
	MapEntry
)

// String returns a short tag used in key identities.
func (c ContributionKind) String() string {
	switch c {
	case SetElement:
		return "set-element"
	case SetValues:
		return "set-values"
	case MapEntry:
		return "map-entry"
	default:
		return "none"
	}
}

// Key identifies a requested dependency.
//
// Two keys are equal iff their type, qualifier and contribution parts are
// equal. Contribution keys additionally carry the identity of the declaring
// contribution so that independent contributions to the same collection stay
// distinct keys.
type Key struct {
	Type      Type
	Qualifier *Annotation

	Contribution ContributionKind

	// ContributionID identifies the declaring contribution (module-qualified
	// declaration name). Empty unless Contribution != NoContribution.
	ContributionID string
}

// New constructs an unqualified key.
func New(t Type) Key {
	return Key{Type: t}
}

// Qualified constructs a key with a qualifier annotation.
func Qualified(t Type, q Annotation) Key {
	return Key{Type: t, Qualifier: &q}
}

// AsContribution returns k re-tagged as a contribution key of the given kind,
// owned by the identified declaration.
func (k Key) AsContribution(kind ContributionKind, id string) Key {
	k.Contribution = kind
	k.ContributionID = id
	return k
}

// Unqualified returns k without its qualifier.
func (k Key) Unqualified() Key {
	k.Qualifier = nil
	return k
}

// Equal reports canonical equality.
func (k Key) Equal(o Key) bool {
	if k.Contribution != o.Contribution || k.ContributionID != o.ContributionID {
		return false
	}
	if (k.Qualifier == nil) != (o.Qualifier == nil) {
		return false
	}
	if k.Qualifier != nil && !k.Qualifier.Equal(*o.Qualifier) {
		return false
	}
	return k.Type.Equal(o.Type)
}

// ID renders the full canonical identity, usable as a map key.
func (k Key) ID() string {
	var sb strings.Builder
	if k.Qualifier != nil {
		sb.WriteString(k.Qualifier.String())
		sb.WriteString(" ")
	}
	sb.WriteString(k.Type.String())
	if k.Contribution != NoContribution {
		sb.WriteString(" [")
		sb.WriteString(k.Contribution.String())
		sb.WriteString(" ")
		sb.WriteString(k.ContributionID)
		sb.WriteString("]")
	}
	return sb.String()
}

// String renders the user-facing form: qualifier (if any) plus type. The
// contribution tag is deliberately omitted; diagnostics talk about the
// collection key, not internal contribution identities.
func (k Key) String() string {
	if k.Qualifier != nil {
		return k.Qualifier.String() + " " + k.Type.String()
	}
	return k.Type.String()
}
