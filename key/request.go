package key

// Names of the framework wrapper types. They live in a reserved package so
// user types can never collide with them.
const (
	FrameworkPkg = "loom.runtime"

	providerName = "Provider"
	lazyName     = "Lazy"
	producerName = "Producer"
	producedName = "Produced"
	setName      = "Set"
	mapName      = "Map"
	optionalName = "Optional"
	injectorName = "MembersInjector"
)

// RequestKind describes how a dependency is requested at a use site.
type RequestKind uint8

const (
	// InstanceRequest asks for the value itself, constructed eagerly.
	InstanceRequest RequestKind = iota

	// ProviderRequest asks for a Provider<T> indirection.
	ProviderRequest

	// LazyRequest asks for a Lazy<T> indirection.
	LazyRequest

	// ProducerRequest asks for a Producer<T> indirection.
	ProducerRequest

	// ProducedRequest asks for a Produced<T> wrapper.
	ProducedRequest

	// ProviderOfLazyRequest asks for Provider<Lazy<T>>.
	ProviderOfLazyRequest

	// MembersInjectionRequest asks for members injection into an existing
	// instance rather than for a value.
	MembersInjectionRequest
)

// String returns the lower-case request kind name.
func (r RequestKind) String() string {
	switch r {
	case ProviderRequest:
		return "provider"
	case LazyRequest:
		return "lazy"
	case ProducerRequest:
		return "producer"
	case ProducedRequest:
		return "produced"
	case ProviderOfLazyRequest:
		return "provider-of-lazy"
	case MembersInjectionRequest:
		return "members-injection"
	default:
		return "instance"
	}
}

// Deferred reports whether a request through this kind defers construction,
// breaking what would otherwise be an eager dependency edge. Such requests
// are what make a dependency cycle legal.
func (r RequestKind) Deferred() bool {
	switch r {
	case ProviderRequest, LazyRequest, ProducerRequest, ProviderOfLazyRequest:
		return true
	default:
		return false
	}
}

// ProviderOf wraps t in the Provider framework type.
func ProviderOf(t Type) Type { return Named(FrameworkPkg, providerName, t) }

// LazyOf wraps t in the Lazy framework type.
func LazyOf(t Type) Type { return Named(FrameworkPkg, lazyName, t) }

// ProducerOf wraps t in the Producer framework type.
func ProducerOf(t Type) Type { return Named(FrameworkPkg, producerName, t) }

// ProducedOf wraps t in the Produced framework type.
func ProducedOf(t Type) Type { return Named(FrameworkPkg, producedName, t) }

// SetOf is the aggregated set collection type of an element type.
func SetOf(t Type) Type { return Named(FrameworkPkg, setName, t) }

// MapOf is the aggregated map collection type.
func MapOf(k, v Type) Type { return Named(FrameworkPkg, mapName, k, v) }

// OptionalOf wraps t in the Optional framework type.
func OptionalOf(t Type) Type { return Named(FrameworkPkg, optionalName, t) }

// MembersInjectorOf is the distinct key type under which a members-injection
// binding for t is recorded, keeping it apart from any provision of t.
func MembersInjectorOf(t Type) Type { return Named(FrameworkPkg, injectorName, t) }

func isFramework(t Type, name string, arity int) bool {
	return t.Kind == KindNamed && t.Pkg == FrameworkPkg && t.Name == name && len(t.Args) == arity
}

// IsSet reports whether t is the Set collection type.
func IsSet(t Type) bool { return isFramework(t, setName, 1) }

// IsMap reports whether t is the Map collection type.
func IsMap(t Type) bool { return isFramework(t, mapName, 2) }

// IsOptional reports whether t is the Optional wrapper.
func IsOptional(t Type) bool { return isFramework(t, optionalName, 1) }

// SetElementType returns the element type of a Set collection type.
func SetElementType(t Type) (Type, bool) {
	if !IsSet(t) {
		return Type{}, false
	}
	return t.Args[0], true
}

// MapEntryTypes returns the key and value types of a Map collection type.
func MapEntryTypes(t Type) (Type, Type, bool) {
	if !IsMap(t) {
		return Type{}, Type{}, false
	}
	return t.Args[0], t.Args[1], true
}

// OptionalInnerType returns the wrapped type of an Optional.
func OptionalInnerType(t Type) (Type, bool) {
	if !IsOptional(t) {
		return Type{}, false
	}
	return t.Args[0], true
}

// Request pairs a key with the kind it is requested through.
type Request struct {
	Key  Key
	Kind RequestKind
}

// RequestFor derives a Request from a declared use-site type and optional
// qualifier. The qualifier applies to the unwrapped key: a qualified
// Provider<Foo> parameter is a provider request for the qualified Foo key.
func RequestFor(t Type, qualifier *Annotation) Request {
	kind, inner := ExtractRequest(t)
	k := Key{Type: inner}
	if qualifier != nil {
		q := *qualifier
		k.Qualifier = &q
	}
	return Request{Key: k, Kind: kind}
}

// ExtractRequest unwraps a requested type into its request kind and the
// underlying type. Provider<Lazy<T>> unwraps to (ProviderOfLazyRequest, T);
// all other framework wrappers unwrap one level; anything else is an
// instance request of the type itself.
func ExtractRequest(t Type) (RequestKind, Type) {
	switch {
	case isFramework(t, providerName, 1):
		inner := t.Args[0]
		if isFramework(inner, lazyName, 1) {
			return ProviderOfLazyRequest, inner.Args[0]
		}
		return ProviderRequest, inner
	case isFramework(t, lazyName, 1):
		return LazyRequest, t.Args[0]
	case isFramework(t, producerName, 1):
		return ProducerRequest, t.Args[0]
	case isFramework(t, producedName, 1):
		return ProducedRequest, t.Args[0]
	default:
		return InstanceRequest, t
	}
}
