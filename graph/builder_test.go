package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
)

func appType(name string) key.Type { return key.Named("app", name) }

func provides(module, method string, t key.Type, params ...model.Param) model.Provision {
	return model.Provision{Module: module, Method: method, Type: t, Params: params}
}

func param(name string, t key.Type) model.Param {
	return model.Param{Name: name, Type: t}
}

// serverUniverse wires AppModule{config, server(config), metrics} into the
// App component with a single server() entry point; metrics is declared but
// unreferenced.
func serverUniverse() (*model.Universe, *model.Component) {
	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "AppModule",
		Provides: []model.Provision{
			provides("AppModule", "config", appType("Config")),
			provides("AppModule", "server", appType("Server"), param("cfg", appType("Config"))),
			provides("AppModule", "metrics", appType("Metrics")),
		},
	})
	comp := &model.Component{
		Name:    "App",
		Modules: []string{"AppModule"},
		EntryPoints: []model.EntryPoint{
			{Method: "server", Type: appType("Server")},
		},
	}
	u.AddComponent(comp)
	return u, comp
}

func TestBuildResolvesEntryPointClosure(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)
	require.NotNil(t, g)

	_, server := g.Lookup(key.New(appType("Server")))
	require.Len(t, server, 1)
	assert.Equal(t, binding.Provision, server[0].Kind)
	assert.Equal(t, "AppModule.server(cfg)", server[0].Decl)

	_, config := g.Lookup(key.New(appType("Config")))
	assert.Len(t, config, 1)

	// Unreferenced declarations stay out of the entry-point graph.
	lvl, _ := g.Lookup(key.New(appType("Metrics")))
	assert.Nil(t, lvl)
}

func TestBuildFullGraphSeeding(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	opts := option.Default()
	opts.FullBindingGraphValidation = diag.Error

	g, d := Build(u, comp, opts)
	require.Nil(t, d)

	metrics := key.New(appType("Metrics"))
	_, cands := g.Lookup(metrics)
	require.Len(t, cands, 1)
	assert.True(t, g.FullGraphOnly(metrics))
	assert.False(t, g.FullGraphOnly(key.New(appType("Server"))))
}

func TestBuildRecordsMissingKey(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	comp := &model.Component{
		Name:        "App",
		EntryPoints: []model.EntryPoint{{Method: "db", Type: appType("Database")}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	// The unresolved key is owned with zero candidates, so validation can
	// trace the request back to its entry point.
	lvl, cands := g.Lookup(key.New(appType("Database")))
	require.NotNil(t, lvl)
	assert.Empty(t, cands)
}

func TestBuildDefersOnUnresolvedReference(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.MarkMissing("gen.Widget")
	comp := &model.Component{
		Name:        "App",
		EntryPoints: []model.EntryPoint{{Method: "widget", Type: key.Named("gen", "Widget")}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	assert.Nil(t, g)
	require.NotNil(t, d)
	assert.Equal(t, "App", d.Component)
	assert.Equal(t, []string{"gen.Widget"}, d.Refs)
}

func TestBuildDefersOnErrorRef(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Provides: []model.Provision{
			provides("M", "svc", appType("Service"), param("dep", key.ErrorRef("app.NotYetGenerated"))),
		},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "svc", Type: appType("Service")}},
	}
	u.AddComponent(comp)

	_, d := Build(u, comp, option.Default())
	require.NotNil(t, d)
	assert.Equal(t, []string{"app.NotYetGenerated"}, d.Refs)
}

func TestBuildInjectConstructorFallback(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddInject(&model.InjectType{
		Type:       appType("Client"),
		HasCtor:    true,
		CtorParams: []model.Param{param("cfg", appType("Config"))},
	})
	u.AddModule(&model.Module{
		Name:     "M",
		Provides: []model.Provision{provides("M", "config", appType("Config"))},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "client", Type: appType("Client")}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	_, cands := g.Lookup(key.New(appType("Client")))
	require.Len(t, cands, 1)
	assert.Equal(t, binding.Injection, cands[0].Kind)
	assert.Equal(t, "Client(cfg)", cands[0].Decl)
	require.Len(t, cands[0].Deps, 1)
	assert.True(t, cands[0].Deps[0].Key.Equal(key.New(appType("Config"))))
}

func TestBuildScopedInjectionOwnedByMatchingAncestor(t *testing.T) {
	t.Parallel()

	singleton := key.Marker("Singleton")
	u := model.NewUniverse()
	u.AddInject(&model.InjectType{
		Type:    appType("Cache"),
		Scopes:  []key.Annotation{singleton},
		HasCtor: true,
	})
	parent := &model.Component{
		Name:          "App",
		Scopes:        []key.Annotation{singleton},
		Subcomponents: []string{"Session"},
	}
	child := &model.Component{
		Name:         "Session",
		Subcomponent: true,
		EntryPoints:  []model.EntryPoint{{Method: "cache", Type: appType("Cache")}},
	}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "session", Subcomponent: "Session"}}
	u.AddComponent(parent)
	u.AddComponent(child)

	g, d := Build(u, parent, option.Default())
	require.Nil(t, d)
	require.Len(t, g.Subgraphs, 1)
	sub := g.Subgraphs[0]

	lvl, cands := sub.Lookup(key.New(appType("Cache")))
	require.Len(t, cands, 1)
	assert.Same(t, g, lvl, "scoped binding belongs to the scope-matching ancestor")
	assert.Equal(t, "App", cands[0].Owner)
	assert.Empty(t, sub.OwnBindings(key.New(appType("Cache"))))
}

func TestBuildDelegateCarriesTargetDep(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Binds: []model.Delegate{{
			Module: "M", Method: "store",
			Type:   appType("Store"),
			Target: param("impl", appType("SQLStore")),
		}},
	})
	u.AddInject(&model.InjectType{Type: appType("SQLStore"), HasCtor: true})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "store", Type: appType("Store")}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	_, cands := g.Lookup(key.New(appType("Store")))
	require.Len(t, cands, 1)
	assert.Equal(t, binding.Delegate, cands[0].Kind)
	target, ok := cands[0].DelegateTarget()
	require.True(t, ok)
	assert.True(t, target.Key.Equal(key.New(appType("SQLStore"))))

	// The target resolved through its inject constructor.
	_, impl := g.Lookup(key.New(appType("SQLStore")))
	require.Len(t, impl, 1)
	assert.Equal(t, binding.Injection, impl[0].Kind)
}

func TestBuildMultibindingUnionAcrossChain(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "ParentM",
		Provides: []model.Provision{{
			Module: "ParentM", Method: "auth",
			Type: appType("Interceptor"), Contribution: model.IntoSet,
		}},
	})
	u.AddModule(&model.Module{
		Name: "ChildM",
		Provides: []model.Provision{{
			Module: "ChildM", Method: "logging",
			Type: appType("Interceptor"), Contribution: model.IntoSet,
		}},
	})
	parent := &model.Component{Name: "App", Modules: []string{"ParentM"}, Subcomponents: []string{"Req"}}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "req", Subcomponent: "Req"}}
	child := &model.Component{
		Name:         "Req",
		Subcomponent: true,
		Modules:      []string{"ChildM"},
		EntryPoints: []model.EntryPoint{
			{Method: "interceptors", Type: key.SetOf(appType("Interceptor"))},
		},
	}
	u.AddComponent(parent)
	u.AddComponent(child)

	g, d := Build(u, parent, option.Default())
	require.Nil(t, d)
	require.Len(t, g.Subgraphs, 1)
	sub := g.Subgraphs[0]

	setKey := key.New(key.SetOf(appType("Interceptor")))
	lvl, cands := sub.Lookup(setKey)
	require.Len(t, cands, 1)
	assert.Same(t, sub, lvl, "a contributing child owns its own aggregation")
	assert.Equal(t, binding.MultiboundSet, cands[0].Kind)
	assert.Len(t, cands[0].Deps, 2, "contributions union across the component path")
}

func TestBuildMultibindingReusedFromAncestor(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "ParentM",
		Provides: []model.Provision{{
			Module: "ParentM", Method: "auth",
			Type: appType("Interceptor"), Contribution: model.IntoSet,
		}},
	})
	setKey := key.New(key.SetOf(appType("Interceptor")))
	parent := &model.Component{
		Name:        "App",
		Modules:     []string{"ParentM"},
		EntryPoints: []model.EntryPoint{{Method: "interceptors", Type: setKey.Type}},
	}
	parent.Subcomponents = []string{"Req"}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "req", Subcomponent: "Req"}}
	child := &model.Component{
		Name:         "Req",
		Subcomponent: true,
		EntryPoints:  []model.EntryPoint{{Method: "interceptors", Type: setKey.Type}},
	}
	u.AddComponent(parent)
	u.AddComponent(child)

	g, d := Build(u, parent, option.Default())
	require.Nil(t, d)
	require.Len(t, g.Subgraphs, 1)
	sub := g.Subgraphs[0]

	lvl, cands := sub.Lookup(setKey)
	require.Len(t, cands, 1)
	assert.Same(t, g, lvl, "a non-contributing child shares the parent's aggregation")
}

func TestBuildDeclaredEmptyCollection(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Multibinds: []model.Multibind{{
			Module: "M", Method: "interceptors",
			Collection: key.SetOf(appType("Interceptor")),
		}},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "interceptors", Type: key.SetOf(appType("Interceptor"))}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	_, cands := g.Lookup(key.New(key.SetOf(appType("Interceptor"))))
	require.Len(t, cands, 1)
	assert.Equal(t, binding.MultiboundSet, cands[0].Kind)
	assert.Empty(t, cands[0].Deps)
}

func TestBuildMapRequestCanonicalizesValueWrapper(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Provides: []model.Provision{{
			Module: "M", Method: "home",
			Type:         appType("Handler"),
			Contribution: model.IntoMap,
			MapKey:       annPtr(key.NewAnnotation("StringKey", map[string]string{"value": `"home"`})),
		}},
	})
	mapType := key.MapOf(key.Primitive("string"), appType("Handler"))
	comp := &model.Component{
		Name:    "App",
		Modules: []string{"M"},
		EntryPoints: []model.EntryPoint{
			{Method: "handlers", Type: key.MapOf(key.Primitive("string"), key.ProviderOf(appType("Handler")))},
		},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	// The Provider-valued request resolves against the plain map binding.
	_, cands := g.Lookup(key.New(mapType))
	require.Len(t, cands, 1)
	assert.Equal(t, binding.MultiboundMap, cands[0].Kind)
	require.Len(t, cands[0].Deps, 1)
	assert.Equal(t, key.MapEntry, cands[0].Deps[0].Key.Contribution)
}

func TestBuildOptionalPresence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bound   bool
		present bool
	}{
		{name: "present when underlying bound", bound: true, present: true},
		{name: "absent without underlying binding", bound: false, present: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			u := model.NewUniverse()
			m := &model.Module{
				Name: "M",
				OptionalBinds: []model.OptionalBind{{
					Module: "M", Method: "tracer", Type: appType("Tracer"),
				}},
			}
			if tc.bound {
				m.Provides = append(m.Provides, provides("M", "tracer", appType("Tracer")))
			}
			u.AddModule(m)
			comp := &model.Component{
				Name:        "App",
				Modules:     []string{"M"},
				EntryPoints: []model.EntryPoint{{Method: "tracer", Type: key.OptionalOf(appType("Tracer"))}},
			}
			u.AddComponent(comp)

			g, d := Build(u, comp, option.Default())
			require.Nil(t, d)

			_, cands := g.Lookup(key.New(key.OptionalOf(appType("Tracer"))))
			require.Len(t, cands, 1)
			assert.Equal(t, binding.Optional, cands[0].Kind)
			assert.Equal(t, tc.present, cands[0].OptionalPresent)
			if !tc.present {
				assert.Empty(t, cands[0].Deps)
				// Absence is not a missing binding.
				lvl, _ := g.Lookup(key.New(appType("Tracer")))
				assert.Nil(t, lvl)
			}
		})
	}
}

func TestBuildSubcomponentPruning(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	parent := &model.Component{
		Name:          "App",
		Subcomponents: []string{"Used", "Unused"},
		EntryPoints:   []model.EntryPoint{{Method: "used", Type: key.Named("app", "UsedCreator")}},
	}
	used := &model.Component{
		Name:         "Used",
		Subcomponent: true,
		CreatorType:  key.Named("app", "UsedCreator"),
	}
	unused := &model.Component{
		Name:         "Unused",
		Subcomponent: true,
		CreatorType:  key.Named("app", "UnusedCreator"),
	}
	u.AddComponent(parent)
	u.AddComponent(used)
	u.AddComponent(unused)

	g, d := Build(u, parent, option.Default())
	require.Nil(t, d)

	require.Len(t, g.Subgraphs, 1)
	assert.Equal(t, "Used", g.Subgraphs[0].Component.Name)

	_, creator := g.Lookup(key.New(key.Named("app", "UsedCreator")))
	require.Len(t, creator, 1)
	assert.Equal(t, binding.SubcomponentCreator, creator[0].Kind)
	assert.Equal(t, "Used", creator[0].Subcomponent)
}

func TestBuildChildDeferralPropagates(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.MarkMissing("gen.Late")
	parent := &model.Component{Name: "App", Subcomponents: []string{"Child"}}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "child", Subcomponent: "Child"}}
	child := &model.Component{
		Name:         "Child",
		Subcomponent: true,
		EntryPoints:  []model.EntryPoint{{Method: "late", Type: key.Named("gen", "Late")}},
	}
	u.AddComponent(parent)
	u.AddComponent(child)

	g, d := Build(u, parent, option.Default())
	assert.Nil(t, g)
	require.NotNil(t, d)
	assert.Equal(t, "Child", d.Component)
}

func TestBuildMembersInjection(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddInject(&model.InjectType{
		Type: appType("Activity"),
		Fields: []model.InjectionSite{
			{Name: "logger", Type: appType("Logger"), Field: true},
		},
	})
	u.AddModule(&model.Module{
		Name:     "M",
		Provides: []model.Provision{provides("M", "logger", appType("Logger"))},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "inject", Type: appType("Activity"), Members: true}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)

	cands := g.Resolved(key.Request{Key: key.New(appType("Activity")), Kind: key.MembersInjectionRequest})
	require.Len(t, cands, 1)
	assert.Equal(t, binding.MembersInjection, cands[0].Kind)
	require.Len(t, cands[0].Deps, 1)
	assert.True(t, cands[0].Deps[0].Key.Equal(key.New(appType("Logger"))))

	// The site's own dependency resolved too.
	_, logger := g.Lookup(key.New(appType("Logger")))
	assert.Len(t, logger, 1)
}

func TestBuildRawTypeFinding(t *testing.T) {
	t.Parallel()

	raw := key.RawNamed("app", "List")
	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name:     "M",
		Provides: []model.Provision{provides("M", "list", raw)},
	})
	comp := &model.Component{
		Name:        "App",
		Modules:     []string{"M"},
		EntryPoints: []model.EntryPoint{{Method: "list", Type: raw}},
	}
	u.AddComponent(comp)

	g, d := Build(u, comp, option.Default())
	require.Nil(t, d)
	require.Len(t, g.Findings, 1)
	assert.Equal(t, diag.Warning, g.Findings[0].Severity)
	var rawErr *diag.InvalidRawTypeError
	require.ErrorAs(t, g.Findings[0].Err, &rawErr)
	assert.Equal(t, "app.List<raw>", rawErr.Type)
	assert.Equal(t, "App", rawErr.Site)
}

func annPtr(a key.Annotation) *key.Annotation { return &a }
