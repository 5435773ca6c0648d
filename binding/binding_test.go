package binding_test

import (
	"testing"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "injection", binding.Injection.String())
	assert.Equal(t, "binds-delegate", binding.Delegate.String())
	assert.Equal(t, "subcomponent-creator", binding.SubcomponentCreator.String())
	assert.Equal(t, "unknown", binding.Kind(250).String())
}

func TestDelegateTargetAndSameAlias(t *testing.T) {
	t.Parallel()

	iface := key.New(key.Named("app", "Iface"))
	impl := key.New(key.Named("app", "Impl"))
	other := key.New(key.Named("app", "Other"))

	alias1 := &binding.Binding{
		Key:  iface,
		Kind: binding.Delegate,
		Deps: []key.Request{{Key: impl, Kind: key.InstanceRequest}},
		Decl: "ModA.bindIface",
	}
	alias2 := &binding.Binding{
		Key:  iface,
		Kind: binding.Delegate,
		Deps: []key.Request{{Key: impl, Kind: key.InstanceRequest}},
		Decl: "ModB.bindIface",
	}
	alias3 := &binding.Binding{
		Key:  iface,
		Kind: binding.Delegate,
		Deps: []key.Request{{Key: other, Kind: key.InstanceRequest}},
		Decl: "ModC.bindIface",
	}
	provision := &binding.Binding{Key: iface, Kind: binding.Provision, Decl: "ModD.provideIface"}

	target, ok := alias1.DelegateTarget()
	require.True(t, ok)
	assert.True(t, target.Key.Equal(impl))

	_, ok = provision.DelegateTarget()
	assert.False(t, ok)

	assert.True(t, binding.SameAlias(alias1, alias2))
	assert.False(t, binding.SameAlias(alias1, alias3))
	assert.False(t, binding.SameAlias(alias1, provision))
}

func TestBindingPredicates(t *testing.T) {
	t.Parallel()

	scope := key.Marker("Singleton")
	scoped := &binding.Binding{Key: key.New(key.Named("app", "Foo")), Kind: binding.Injection, Scopes: []key.Annotation{scope}}
	set := &binding.Binding{Key: key.New(key.SetOf(key.Named("app", "Foo"))), Kind: binding.MultiboundSet}

	assert.True(t, scoped.Scoped())
	got, ok := scoped.Scope()
	require.True(t, ok)
	assert.True(t, got.Equal(scope))
	_, ok = set.Scope()
	assert.False(t, ok)
	assert.False(t, scoped.Multibound())
	assert.True(t, set.Multibound())
	assert.NotEqual(t, scoped.ID(), set.ID())
}
