package key

import "strings"

// TypeKind discriminates the structural shape of a Type descriptor.
type TypeKind uint8

const (
	// KindNamed is a declared (possibly generic) type.
	KindNamed TypeKind = iota

	// KindPrimitive is a builtin value type (int, string, bool, ...).
	KindPrimitive

	// KindArray is an array of an element type.
	KindArray

	// KindError marks a reference that the front end could not resolve.
	// Error types poison resolution: a graph touching one is deferred.
	KindError
)

// Variance describes the use-site variance of a type argument.
//
// The core compares keys variance-sensitively by default; Normalizer can
// erase variance for provision-key comparison (see normalize.go).
type Variance uint8

const (
	// Invariant is an exact type argument.
	Invariant Variance = iota

	// Extends is an upper-bounded wildcard argument ("? extends T").
	Extends

	// Super is a lower-bounded wildcard argument ("? super T").
	Super
)

// Type is an immutable structural type descriptor.
//
// It is the core's own representation of "a type in the host language",
// supplied by the front end (or constructed directly in tests). It carries
// exactly what key identity needs: name, package, type arguments with their
// variance, and a raw flag for generic types used without arguments.
type Type struct {
	Kind TypeKind

	// Pkg is the declaring package (empty for primitives and error types).
	Pkg string

	// Name is the declared name, or the primitive name, or the unresolved
	// reference text for error types.
	Name string

	// Args are the type arguments of a named generic type.
	Args []Type

	// Elem is the element type of an array.
	Elem *Type

	// Variance applies where this Type appears as a type argument.
	Variance Variance

	// Raw marks a generic type referenced without type arguments.
	Raw bool
}

// Named constructs a declared type with optional type arguments.
func Named(pkg, name string, args ...Type) Type {
	return Type{Kind: KindNamed, Pkg: pkg, Name: name, Args: args}
}

// RawNamed constructs a generic type referenced without its arguments.
func RawNamed(pkg, name string) Type {
	return Type{Kind: KindNamed, Pkg: pkg, Name: name, Raw: true}
}

// Primitive constructs a builtin value type.
func Primitive(name string) Type {
	return Type{Kind: KindPrimitive, Name: name}
}

// ArrayOf constructs an array type.
func ArrayOf(elem Type) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e}
}

// ErrorRef constructs an error type for an unresolvable reference.
func ErrorRef(ref string) Type {
	return Type{Kind: KindError, Name: ref}
}

// ExtendsOf returns t marked as an upper-bounded wildcard argument.
func ExtendsOf(t Type) Type {
	t.Variance = Extends
	return t
}

// SuperOf returns t marked as a lower-bounded wildcard argument.
func SuperOf(t Type) Type {
	t.Variance = Super
	return t
}

// IsError reports whether t (or any type it mentions) is unresolved.
func (t Type) IsError() bool {
	if t.Kind == KindError {
		return true
	}
	for _, a := range t.Args {
		if a.IsError() {
			return true
		}
	}
	if t.Elem != nil {
		return t.Elem.IsError()
	}
	return false
}

// ErrorRefs collects the unresolved reference names mentioned by t.
func (t Type) ErrorRefs() []string {
	var refs []string
	t.collectErrorRefs(&refs)
	return refs
}

func (t Type) collectErrorRefs(out *[]string) {
	if t.Kind == KindError {
		*out = append(*out, t.Name)
	}
	for _, a := range t.Args {
		a.collectErrorRefs(out)
	}
	if t.Elem != nil {
		t.Elem.collectErrorRefs(out)
	}
}

// Equal reports structural equality, including variance and rawness.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind || t.Pkg != o.Pkg || t.Name != o.Name ||
		t.Variance != o.Variance || t.Raw != o.Raw || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	if (t.Elem == nil) != (o.Elem == nil) {
		return false
	}
	if t.Elem != nil && !t.Elem.Equal(*o.Elem) {
		return false
	}
	return true
}

// WithoutVariance returns t with all variance erased, recursively.
func (t Type) WithoutVariance() Type {
	t.Variance = Invariant
	if len(t.Args) > 0 {
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.WithoutVariance()
		}
		t.Args = args
	}
	if t.Elem != nil {
		e := t.Elem.WithoutVariance()
		t.Elem = &e
	}
	return t
}

// String renders a canonical, deterministic form of the descriptor.
// Two types are Equal iff their String forms are equal.
func (t Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Type) write(sb *strings.Builder) {
	switch t.Variance {
	case Extends:
		sb.WriteString("? extends ")
	case Super:
		sb.WriteString("? super ")
	}
	switch t.Kind {
	case KindPrimitive:
		sb.WriteString(t.Name)
	case KindArray:
		t.Elem.write(sb)
		sb.WriteString("[]")
	case KindError:
		sb.WriteString("!")
		sb.WriteString(t.Name)
	default:
		if t.Pkg != "" {
			sb.WriteString(t.Pkg)
			sb.WriteString(".")
		}
		sb.WriteString(t.Name)
		if t.Raw {
			sb.WriteString("<raw>")
		}
		if len(t.Args) > 0 {
			sb.WriteString("<")
			for i, a := range t.Args {
				if i > 0 {
					sb.WriteString(", ")
				}
				a.write(sb)
			}
			sb.WriteString(">")
		}
	}
}
