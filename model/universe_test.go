package model_test

import (
	"testing"

	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstalledModulesIncludeClosure(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse().
		AddModule(&model.Module{Name: "A", Includes: []string{"B"}}).
		AddModule(&model.Module{Name: "B", Includes: []string{"C", "A"}}).
		AddModule(&model.Module{Name: "C"})

	comp := &model.Component{Name: "App", Modules: []string{"A"}}
	mods := u.InstalledModules(comp)

	require.Len(t, mods, 3)
	assert.Equal(t, "A", mods[0].Name)
	assert.Equal(t, "B", mods[1].Name)
	assert.Equal(t, "C", mods[2].Name)
}

func TestSupertypeChainStopsOnCycle(t *testing.T) {
	t.Parallel()

	child := &model.InjectType{Type: key.Named("app", "Child"), Supertype: "app.Parent"}
	parent := &model.InjectType{Type: key.Named("app", "Parent"), Supertype: "app.Child"}

	u := model.NewUniverse().AddInject(child).AddInject(parent)

	chain := u.Supertypes(child)
	require.Len(t, chain, 1)
	assert.Equal(t, "app.Parent", chain[0].ID())
}

func TestInjectionSitesOrder(t *testing.T) {
	t.Parallel()

	str := key.Primitive("string")
	parent := &model.InjectType{
		Type:   key.Named("app", "Parent"),
		Fields: []model.InjectionSite{{Name: "base", Type: str, Field: true}},
	}
	child := &model.InjectType{
		Type:      key.Named("app", "Child"),
		Supertype: "app.Parent",
		Fields:    []model.InjectionSite{{Name: "own", Type: str, Field: true}},
		Methods:   []model.InjectionSite{{Name: "setOwn", Type: str}},
	}

	u := model.NewUniverse().AddInject(parent).AddInject(child)

	sites := u.InjectionSites(child)
	require.Len(t, sites, 3)
	assert.Equal(t, "own", sites[0].Name)
	assert.Equal(t, "setOwn", sites[1].Name)
	assert.Equal(t, "base", sites[2].Name)
}

func TestResolveAndUnresolvable(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse().MarkMissing("app.Generated")

	assert.False(t, u.Resolve("app.Generated"))
	assert.True(t, u.Resolve("app.Foo"))

	refs := u.Unresolvable(key.Named("app", "Generated"))
	require.Len(t, refs, 1)
	assert.Equal(t, "app.Generated", refs[0])

	refs = u.Unresolvable(key.Named("app", "Holder", key.ErrorRef("app.Lost")))
	require.Len(t, refs, 1)
	assert.Equal(t, "app.Lost", refs[0])
}

func TestEntryPointRequest(t *testing.T) {
	t.Parallel()

	foo := key.Named("app", "Foo")

	ep := model.EntryPoint{Method: "foo", Type: key.ProviderOf(foo)}
	req := ep.Request()
	assert.Equal(t, key.ProviderRequest, req.Kind)
	assert.True(t, req.Key.Type.Equal(foo))

	members := model.EntryPoint{Method: "inject", Type: foo, Members: true}
	req = members.Request()
	assert.Equal(t, key.MembersInjectionRequest, req.Kind)
	assert.True(t, req.Key.Type.Equal(foo))
}
