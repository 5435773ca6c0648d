// Package model is the in-memory element model the compiler core consumes.
//
// It is the concrete form of the narrow front-end contract: modules,
// components and injectable types with their annotations, members and
// supertype links, owned by a read-only Universe for the duration of one
// compilation round. The Go source loader produces a Universe from annotated
// packages; tests construct one directly.
package model

import (
	"strconv"

	"github.com/sghaida/loom/key"
)

// Position locates a declaration in source, for diagnostics.
type Position struct {
	File string
	Line int
}

// String renders "file:line", or "<unknown>" for the zero position.
func (p Position) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	return p.File + ":" + strconv.Itoa(p.Line)
}

// Contribution marks how a provision contributes to a multibinding.
type Contribution uint8

const (
	// ContributesNone is an ordinary provision.
	ContributesNone Contribution = iota

	// IntoSet contributes one element to a set multibinding.
	IntoSet

	// ElementsIntoSet contributes a whole collection of set elements.
	ElementsIntoSet

	// IntoMap contributes one entry to a map multibinding.
	IntoMap
)

// Param is a declared dependency parameter: type plus optional qualifier.
type Param struct {
	Name      string
	Type      key.Type
	Qualifier *key.Annotation
}

// Request derives the dependency request this parameter declares.
func (p Param) Request() key.Request {
	return key.RequestFor(p.Type, p.Qualifier)
}

// Provision is a provider (or producer) method declared by a module or a
// component dependency.
type Provision struct {
	Module string
	Method string

	Type      key.Type
	Qualifier *key.Annotation

	// Scopes carries every scope annotation on the declaration; more than
	// one is invalid and reported by the scope validator.
	Scopes []key.Annotation

	// Production marks a producer method (asynchronous provision).
	Production bool

	Contribution Contribution
	MapKey       *key.Annotation

	Params []Param

	Static  bool
	Private bool

	Pos Position
}

// DeclID is the module-qualified declaration name.
func (p Provision) DeclID() string { return p.Module + "." + p.Method }

// Delegate is a declaration that aliases one key to another ("binds").
type Delegate struct {
	Module string
	Method string

	Type      key.Type
	Qualifier *key.Annotation
	Scopes    []key.Annotation

	Contribution Contribution
	MapKey       *key.Annotation

	// Target is the key the delegate forwards to.
	Target Param

	Pos Position
}

// DeclID is the module-qualified declaration name.
func (d Delegate) DeclID() string { return d.Module + "." + d.Method }

// Multibind declares an empty multibound collection, so the collection key
// resolves even with zero contributions.
type Multibind struct {
	Module     string
	Method     string
	Collection key.Type
	Qualifier  *key.Annotation
	Pos        Position
}

// OptionalBind declares an optional binding: Optional of the underlying key,
// present iff the underlying key has a binding anywhere in scope.
type OptionalBind struct {
	Module    string
	Method    string
	Type      key.Type
	Qualifier *key.Annotation
	Pos       Position
}

// Module is a named collection of binding declarations.
type Module struct {
	Name string
	Pos  Position

	// Includes lists module names pulled in transitively.
	Includes []string

	// Subcomponents lists subcomponent names this module installs.
	Subcomponents []string

	Provides      []Provision
	Binds         []Delegate
	Multibinds    []Multibind
	OptionalBinds []OptionalBind
}

// EntryPoint is an abstract component method: either a provision request or
// a members-injection request.
type EntryPoint struct {
	Method string

	Type      key.Type
	Qualifier *key.Annotation

	// Members marks a members-injection entry point; Type is then the
	// injected type, not a requested value.
	Members bool

	Pos Position
}

// Request derives the dependency request this entry point declares.
func (e EntryPoint) Request() key.Request {
	if e.Members {
		return key.Request{Key: key.Key{Type: e.Type}, Kind: key.MembersInjectionRequest}
	}
	return key.RequestFor(e.Type, e.Qualifier)
}

// FactoryMethod is a component method constructing a subcomponent. Its
// parameters must be modules of that subcomponent, each at most once.
type FactoryMethod struct {
	Name         string
	Subcomponent string
	Params       []Param
	Pos          Position
}

// Dependency is a component dependency: an external object whose provision
// methods are exposed as bindings.
type Dependency struct {
	Type       key.Type
	Provisions []Provision
}

// Component declares a component or subcomponent to be generated.
type Component struct {
	Name string
	Pos  Position

	// Type is the declared component type; the component instance itself is
	// bound under it. Defaults to a bare named type of Name when unset.
	Type key.Type

	// CreatorType is the declared builder/factory type, if the component
	// has one; subcomponent-creator bindings are synthesized under it.
	CreatorType key.Type

	// Subcomponent marks a nested component resolved under an ancestor.
	Subcomponent bool

	Scopes  []key.Annotation
	Modules []string

	Dependencies []Dependency

	// BoundInstances are creator-bound instances available as bindings.
	BoundInstances []Param

	EntryPoints []EntryPoint

	// FactoryMethods construct child subcomponents.
	FactoryMethods []FactoryMethod

	// Subcomponents lists child component names reachable through creator
	// references or factory-method return types.
	Subcomponents []string
}

// SelfType returns the component's declared type, defaulting to a bare
// named type of the component name.
func (c *Component) SelfType() key.Type {
	if c.Type.Name != "" {
		return c.Type
	}
	return key.Named("", c.Name)
}

// HasCreator reports whether a builder/factory type is declared.
func (c *Component) HasCreator() bool { return c.CreatorType.Name != "" }
