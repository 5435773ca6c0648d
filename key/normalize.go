package key

// Normalizer controls how keys are canonicalized before comparison.
//
// By default comparison is variance-sensitive: List<? extends Foo> and
// List<Foo> are distinct provision keys. With IgnoreProvisionKeyWildcards
// set, wildcard variance is erased for comparison purposes only; declaration
// sites keep their original variance.
type Normalizer struct {
	IgnoreProvisionKeyWildcards bool
}

// ForComparison returns the canonical form of k under this normalizer.
//
// Multibinding collections and Optional wrappers are special-cased: the
// wrapper itself never carries variance, and the contribution (or wrapped)
// type is normalized independently of the wrapper, so a Set<? extends Foo>
// contribution and its Set<Foo> collection shape compare the way their
// element shapes do.
func (n Normalizer) ForComparison(k Key) Key {
	if !n.IgnoreProvisionKeyWildcards {
		return k
	}
	k.Type = n.typeForComparison(k.Type)
	return k
}

func (n Normalizer) typeForComparison(t Type) Type {
	if IsSet(t) || IsMap(t) || IsOptional(t) {
		t.Variance = Invariant
		args := make([]Type, len(t.Args))
		for i, a := range t.Args {
			args[i] = n.typeForComparison(a)
		}
		t.Args = args
		return t
	}
	return t.WithoutVariance()
}

// SameKey reports whether a and b identify the same binding under this
// normalizer's comparison rules.
func (n Normalizer) SameKey(a, b Key) bool {
	return n.ForComparison(a).Equal(n.ForComparison(b))
}
