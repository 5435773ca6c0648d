package model

import "github.com/sghaida/loom/key"

// InjectionSite is a field or method that receives an injected value during
// members injection.
type InjectionSite struct {
	Name string

	Type      key.Type
	Qualifier *key.Annotation

	// Field distinguishes field sites from method sites.
	Field bool

	Private  bool
	Static   bool
	Final    bool
	Abstract bool

	// Inner marks a site declared on a non-static inner class.
	Inner bool

	Pos Position
}

// Request derives the dependency request of the site.
func (s InjectionSite) Request() key.Request {
	return key.RequestFor(s.Type, s.Qualifier)
}

// InjectType describes a type with an inject-annotated constructor and/or
// inject-annotated members.
type InjectType struct {
	Type key.Type

	// Supertype names the supertype's InjectType entry ("" for none).
	// Supertype chains are walked iteratively, never recursively.
	Supertype string

	// Scopes are scope annotations on the type declaration.
	Scopes []key.Annotation

	// CtorScopes are scope annotations placed on the constructor itself,
	// which is always invalid and reported separately.
	CtorScopes []key.Annotation

	// HasCtor marks an injectable constructor; CtorParams are its
	// dependencies in declaration order.
	HasCtor    bool
	CtorParams []Param

	Fields  []InjectionSite
	Methods []InjectionSite

	// Accessible reports whether the type itself is accessible from the
	// component's generated package. Inaccessible types are wired through
	// AccessibleVia instead of being rejected.
	Accessible    bool
	AccessibleVia string

	Pos Position
}

// ID is the canonical identity used by Universe lookups and Supertype links.
func (it *InjectType) ID() string { return it.Type.String() }
