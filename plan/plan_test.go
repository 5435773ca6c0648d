package plan

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
)

func appType(name string) key.Type { return key.Named("app", name) }

// chainUniverse is a linear chain svc0 <- svc1 <- ... <- svc{n-1}, with the
// entry point at the deep end so resolution order is deterministic.
func chainUniverse(n int) (*model.Universe, *model.Component) {
	u := model.NewUniverse()
	m := &model.Module{Name: "M"}
	for i := 0; i < n; i++ {
		p := model.Provision{Module: "M", Method: "svc" + strconv.Itoa(i), Type: appType("Svc" + strconv.Itoa(i))}
		if i > 0 {
			p.Params = []model.Param{{Name: "prev", Type: appType("Svc" + strconv.Itoa(i-1))}}
		}
		m.Provides = append(m.Provides, p)
	}
	u.AddModule(m)
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "svc", Type: appType("Svc" + strconv.Itoa(n-1))}},
	}
	u.AddComponent(comp)
	return u, comp
}

func mustPlan(t *testing.T, u *model.Universe, comp *model.Component, opts option.Options) *Plan {
	t.Helper()
	g, d := graph.Build(u, comp, opts)
	require.Nil(t, d)
	return New(g, opts)
}

func TestPlanSharedKeyPlannedOnce(t *testing.T) {
	t.Parallel()

	u, comp := chainUniverse(2)
	comp.EntryPoints = append(comp.EntryPoints,
		model.EntryPoint{Method: "alias", Type: appType("Svc1")},
		model.EntryPoint{Method: "direct", Type: appType("Svc0")})

	p := mustPlan(t, u, comp, option.Default())

	seen := map[string]int{}
	for _, s := range p.Shards {
		for _, e := range s.Entries {
			seen[e.Key.ID()]++
		}
	}
	assert.Len(t, seen, 2)
	for id, n := range seen {
		assert.Equal(t, 1, n, "key %s planned once", id)
	}
}

func TestPlanShardBound(t *testing.T) {
	t.Parallel()

	u, comp := chainUniverse(10)
	opts := option.Default()
	opts.KeysPerComponentShard = 3

	p := mustPlan(t, u, comp, opts)

	require.Len(t, p.Shards, 4, "10 keys at 3 per shard")
	total := 0
	for _, s := range p.Shards {
		assert.LessOrEqual(t, len(s.Entries), 3)
		total += len(s.Entries)
	}
	assert.Equal(t, 10, total, "every key planned exactly once")

	last := p.Shards[len(p.Shards)-1]
	assert.True(t, last.ComponentShard)
	assert.Equal(t, "AppImpl", last.Name)
	assert.Equal(t, "AppImplShard1", p.Shards[0].Name)
	for _, s := range p.Shards[:len(p.Shards)-1] {
		assert.False(t, s.ComponentShard)
	}
}

func TestPlanSingleShardByDefault(t *testing.T) {
	t.Parallel()

	u, comp := chainUniverse(5)
	p := mustPlan(t, u, comp, option.Default())

	require.Len(t, p.Shards, 1)
	assert.True(t, p.Shards[0].ComponentShard)
	assert.Len(t, p.Shards[0].Entries, 5)
}

func TestPlanCycleNeverSplit(t *testing.T) {
	t.Parallel()

	// foo <-> bar through a Provider edge is a legal cycle; both members
	// must land in one shard and get delegate placeholders.
	u := model.NewUniverse()
	m := &model.Module{Name: "M"}
	m.Provides = append(m.Provides,
		model.Provision{Module: "M", Method: "a", Type: appType("A"),
			Params: []model.Param{{Name: "b", Type: appType("B")}}},
		model.Provision{Module: "M", Method: "b", Type: appType("B"),
			Params: []model.Param{{Name: "a", Type: key.ProviderOf(appType("A"))}}},
		model.Provision{Module: "M", Method: "c", Type: appType("C"),
			Params: []model.Param{{Name: "a", Type: appType("A")}}},
	)
	u.AddModule(m)
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "c", Type: appType("C")}},
	}
	u.AddComponent(comp)

	opts := option.Default()
	opts.KeysPerComponentShard = 1
	p := mustPlan(t, u, comp, opts)

	byShard := map[string]int{}
	placeholders := map[string]bool{}
	for _, s := range p.Shards {
		for _, e := range s.Entries {
			byShard[e.Key.String()] = s.Index
			placeholders[e.Key.String()] = e.DelegatePlaceholder
		}
	}
	assert.Equal(t, byShard["app.A"], byShard["app.B"], "cycle members share a shard")
	assert.True(t, placeholders["app.A"])
	assert.True(t, placeholders["app.B"])
	assert.False(t, placeholders["app.C"])
}

func TestPlanStrategies(t *testing.T) {
	t.Parallel()

	singleton := key.Marker("Singleton")
	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Provides: []model.Provision{
			{Module: "M", Method: "cache", Type: appType("Cache"), Scopes: []key.Annotation{singleton}},
			{Module: "M", Method: "conn", Type: appType("Conn")},
		},
	})
	comp := &model.Component{
		Name:    "App",
		Scopes:  []key.Annotation{singleton},
		Modules: []string{"M"},
		EntryPoints: []model.EntryPoint{
			{Method: "cache", Type: appType("Cache")},
			{Method: "conn", Type: appType("Conn")},
		},
	}
	u.AddComponent(comp)

	p := mustPlan(t, u, comp, option.Default())
	_, cache, ok := p.Lookup(key.New(appType("Cache")))
	require.True(t, ok)
	assert.Equal(t, DoubleCheck, cache.Strategy)
	assert.Equal(t, -1, cache.SwitchID)

	_, conn, ok := p.Lookup(key.New(appType("Conn")))
	require.True(t, ok)
	assert.Equal(t, Direct, conn.Strategy)
}

func TestPlanFastInitSwitchIDs(t *testing.T) {
	t.Parallel()

	u, comp := chainUniverse(7)
	opts := option.Default()
	opts.FastInit = true
	opts.KeysPerComponentShard = 4

	p := mustPlan(t, u, comp, opts)
	assert.True(t, p.FastInit)

	for _, s := range p.Shards {
		seen := map[int]bool{}
		for i, e := range s.Entries {
			assert.Equal(t, Switching, e.Strategy)
			assert.Equal(t, i, e.SwitchID, "ids are dense within the shard")
			assert.False(t, seen[e.SwitchID])
			seen[e.SwitchID] = true
		}
	}
}

func TestPlanCrossShardRefs(t *testing.T) {
	t.Parallel()

	u, comp := chainUniverse(4)
	opts := option.Default()
	opts.KeysPerComponentShard = 2

	p := mustPlan(t, u, comp, opts)
	require.Len(t, p.Shards, 2)

	crossed := 0
	for _, s := range p.Shards {
		for _, e := range s.Entries {
			for _, ref := range e.CrossShard {
				crossed++
				assert.NotEqual(t, s.Index, ref.Shard)
			}
		}
	}
	assert.Equal(t, 1, crossed, "one dependency spans the shard boundary in a linear chain")
}

func TestPlanAncestorRefs(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name:     "ParentM",
		Provides: []model.Provision{{Module: "ParentM", Method: "cfg", Type: appType("Config")}},
	})
	u.AddModule(&model.Module{
		Name: "ChildM",
		Provides: []model.Provision{{
			Module: "ChildM", Method: "svc", Type: appType("Svc"),
			Params: []model.Param{{Name: "cfg", Type: appType("Config")}},
		}},
	})
	parent := &model.Component{Name: "App", Modules: []string{"ParentM"}, Subcomponents: []string{"Req"}}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "req", Subcomponent: "Req"}}
	child := &model.Component{
		Name:         "Req",
		Subcomponent: true,
		Modules:      []string{"ChildM"},
		EntryPoints:  []model.EntryPoint{{Method: "svc", Type: appType("Svc")}},
	}
	u.AddComponent(parent)
	u.AddComponent(child)

	p := mustPlan(t, u, parent, option.Default())
	require.Len(t, p.Subplans, 1)
	sub := p.Subplans[0]

	_, svc, ok := sub.Lookup(key.New(appType("Svc")))
	require.True(t, ok)
	require.Len(t, svc.CrossShard, 1)
	assert.Equal(t, -1, svc.CrossShard[0].Shard)
	assert.Equal(t, "App", svc.CrossShard[0].Component)

	owner, _, ok := sub.Lookup(key.New(appType("Config")))
	require.True(t, ok)
	assert.Equal(t, "App", owner.Component)
}

func TestPlanMembersInjectionStrategy(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddInject(&model.InjectType{
		Type:   appType("Activity"),
		Fields: []model.InjectionSite{{Name: "logger", Type: appType("Logger"), Field: true}},
	})
	u.AddModule(&model.Module{
		Name:     "M",
		Provides: []model.Provision{{Module: "M", Method: "logger", Type: appType("Logger")}},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "inject", Type: appType("Activity"), Members: true}},
	}
	u.AddComponent(comp)

	p := mustPlan(t, u, comp, option.Default())
	_, e, ok := p.Lookup(key.New(key.MembersInjectorOf(appType("Activity"))))
	require.True(t, ok)
	assert.Equal(t, binding.MembersInjection, e.Binding.Kind)
	assert.Equal(t, SingleCheck, e.Strategy)
}
