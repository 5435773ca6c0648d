// Package binding models one resolved way to satisfy a key.
//
// A Binding is a tagged value: the Kind discriminates constructor injection,
// module provisions, delegate aliases, synthesized multibindings and the
// component-supplied kinds, while the graph algorithms stay kind-agnostic
// and switch on the tag only where behavior truly differs.
package binding

import (
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// Kind discriminates how a binding produces its value.
type Kind uint8

const (
	// Injection constructs via an inject-annotated constructor.
	Injection Kind = iota

	// Provision calls a module provider method.
	Provision

	// Production calls a module producer method.
	Production

	// Delegate aliases the key to another key.
	Delegate

	// MultiboundSet aggregates set contributions.
	MultiboundSet

	// MultiboundMap aggregates map contributions.
	MultiboundMap

	// Optional wraps the presence or absence of an underlying key.
	Optional

	// BoundInstance returns an instance bound on the component creator.
	BoundInstance

	// ComponentInstance returns the component itself.
	ComponentInstance

	// ComponentDependency calls a provision method on a component dependency.
	ComponentDependency

	// SubcomponentCreator returns a creator for a child subcomponent.
	SubcomponentCreator

	// MembersInjection injects members into an existing instance.
	MembersInjection
)

var kindNames = map[Kind]string{
	Injection:           "injection",
	Provision:           "provision",
	Production:          "production",
	Delegate:            "binds-delegate",
	MultiboundSet:       "multibound-set",
	MultiboundMap:       "multibound-map",
	Optional:            "optional",
	BoundInstance:       "bound-instance",
	ComponentInstance:   "component-instance",
	ComponentDependency: "component-dependency",
	SubcomponentCreator: "subcomponent-creator",
	MembersInjection:    "members-injection",
}

// String returns the canonical kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Binding is one way to satisfy a key. The dependency list is fixed once the
// binding enters a graph; nothing mutates it afterwards.
type Binding struct {
	Key  key.Key
	Kind Kind

	// Deps are the declared dependencies in declaration order.
	Deps []key.Request

	// Scopes carries every scope annotation on the declaration. More than
	// one is invalid; the scope validator reports it, the planner uses the
	// first.
	Scopes []key.Annotation

	// Owner names the declaring module or component.
	Owner string

	// Component names the component whose graph owns the resolved binding.
	// For a binding found in an ancestor, this is the ancestor.
	Component string

	// Decl is the declaration-site label used in diagnostics, e.g.
	// "AppModule.provideFoo" or "Foo(str)".
	Decl string

	Pos model.Position

	// MapKey is the map-key annotation of a map contribution.
	MapKey *key.Annotation

	// Subcomponent names the child component of a SubcomponentCreator.
	Subcomponent string

	// AccessibleVia names an accessible supertype used for wiring when the
	// binding's own type is inaccessible from the generated package.
	AccessibleVia string

	// Optional-binding payload: whether the underlying key was present.
	OptionalPresent bool
}

// ID is a stable identity combining key, kind and declaration site.
func (b *Binding) ID() string {
	return b.Key.ID() + "/" + b.Kind.String() + "/" + b.Decl
}

// Multibound reports whether the binding aggregates contributions.
func (b *Binding) Multibound() bool {
	return b.Kind == MultiboundSet || b.Kind == MultiboundMap
}

// Scoped reports whether the binding carries any scope annotation.
func (b *Binding) Scoped() bool { return len(b.Scopes) > 0 }

// Scope returns the primary (first-declared) scope annotation.
func (b *Binding) Scope() (key.Annotation, bool) {
	if len(b.Scopes) == 0 {
		return key.Annotation{}, false
	}
	return b.Scopes[0], true
}

// DelegateTarget returns the aliased request of a Delegate binding.
func (b *Binding) DelegateTarget() (key.Request, bool) {
	if b.Kind != Delegate || len(b.Deps) == 0 {
		return key.Request{}, false
	}
	return b.Deps[0], true
}

// SameAlias reports whether a and b are both delegate aliases of the same
// target. Identical aliases for one key are tolerated where distinct
// candidates would be a duplicate-binding conflict.
func SameAlias(a, b *Binding) bool {
	at, aok := a.DelegateTarget()
	bt, bok := b.DelegateTarget()
	return aok && bok && at.Kind == bt.Kind && at.Key.Equal(bt.Key)
}
