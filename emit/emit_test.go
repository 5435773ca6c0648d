package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
	"github.com/sghaida/loom/plan"
)

func appType(name string) key.Type { return key.Named("", name) }

func planFor(t *testing.T, u *model.Universe, comp *model.Component, opts option.Options) *plan.Plan {
	t.Helper()
	g, d := graph.Build(u, comp, opts)
	require.Nil(t, d)
	return plan.New(g, opts)
}

func serverUniverse() (*model.Universe, *model.Component) {
	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "AppModule",
		Provides: []model.Provision{
			{Module: "AppModule", Method: "config", Type: appType("Config")},
			{Module: "AppModule", Method: "server", Type: appType("Server"),
				Scopes: []key.Annotation{key.Marker("Singleton")},
				Params: []model.Param{{Name: "cfg", Type: appType("Config")}}},
		},
	})
	comp := &model.Component{
		Name:        "App",
		Scopes:      []key.Annotation{key.Marker("Singleton")},
		Modules:     []string{"AppModule"},
		EntryPoints: []model.EntryPoint{{Method: "server", Type: appType("Server")}},
	}
	u.AddComponent(comp)
	return u, comp
}

func TestGenerateComponentFile(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	p := planFor(t, u, comp, option.Default())

	files, err := Generate(p, "gen")
	require.NoError(t, err)
	require.Len(t, files, 2, "helpers file plus one component file")

	assert.Equal(t, "loom_helpers.gen.go", files[0].Name)
	assert.Equal(t, "app_impl.gen.go", files[1].Name)

	src := string(files[1].Content)
	assert.Contains(t, src, "// Code generated by loom; DO NOT EDIT.")
	assert.Contains(t, src, "package gen")
	assert.Contains(t, src, "type AppImpl struct")
	assert.Regexp(t, `modAppModule\s+AppModule`, src)
	assert.Contains(t, src, "func (c *AppImpl) config() Config {")
	assert.Contains(t, src, "c.modAppModule.Config()")
}

func TestGenerateScopedBindingUsesOnce(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	p := planFor(t, u, comp, option.Default())

	files, err := Generate(p, "gen")
	require.NoError(t, err)
	src := string(files[1].Content)

	assert.Contains(t, src, `"sync"`)
	assert.Regexp(t, `serverOnce\s+sync\.Once`, src)
	assert.Contains(t, src, "c.serverOnce.Do(func() {")
	assert.Contains(t, src, "c.serverCache = c.modAppModule.Server(c.config())")
}

func TestGenerateFastInitSwitching(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	opts := option.Default()
	opts.FastInit = true
	p := planFor(t, u, comp, opts)

	files, err := Generate(p, "gen")
	require.NoError(t, err)
	src := string(files[1].Content)

	assert.Contains(t, src, "func (c *AppImpl) getAppImpl(id int) any {")
	assert.Contains(t, src, "switch id {")
	assert.Contains(t, src, "case 0:")
	assert.Contains(t, src, "case 1:")
	assert.Contains(t, src, ".(Config)")
}

func TestGenerateSubcomponentCreator(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name:     "ChildM",
		Provides: []model.Provision{{Module: "ChildM", Method: "svc", Type: appType("Svc")}},
	})
	parent := &model.Component{Name: "App", Subcomponents: []string{"Session"}}
	parent.FactoryMethods = []model.FactoryMethod{{Name: "session", Subcomponent: "Session"}}
	child := &model.Component{
		Name:           "Session",
		Subcomponent:   true,
		Modules:        []string{"ChildM"},
		BoundInstances: []model.Param{{Name: "userID", Type: key.Primitive("string")}},
		EntryPoints:    []model.EntryPoint{{Method: "svc", Type: appType("Svc")}},
	}
	u.AddComponent(parent)
	u.AddComponent(child)

	p := planFor(t, u, parent, option.Default())
	files, err := Generate(p, "gen")
	require.NoError(t, err)
	require.Len(t, files, 3)

	src := string(files[2].Content)
	assert.Contains(t, src, "type SessionImpl struct")
	assert.Regexp(t, `parent\s+\*AppImpl`, src)
	assert.Contains(t, src, "type SessionCreator struct")
	assert.Contains(t, src, "func (cr *SessionCreator) Build() *SessionImpl {")
}

func TestGenerateDeterministic(t *testing.T) {
	t.Parallel()

	u, comp := serverUniverse()
	p := planFor(t, u, comp, option.Default())

	first, err := Generate(p, "gen")
	require.NoError(t, err)
	second, err := Generate(p, "gen")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, string(first[i].Content), string(second[i].Content))
	}
}

func TestGenerateCollectionsAndOptionals(t *testing.T) {
	t.Parallel()

	u := model.NewUniverse()
	u.AddModule(&model.Module{
		Name: "M",
		Provides: []model.Provision{
			{Module: "M", Method: "auth", Type: appType("Interceptor"), Contribution: model.IntoSet},
			{Module: "M", Method: "log", Type: appType("Interceptor"), Contribution: model.IntoSet},
		},
		OptionalBinds: []model.OptionalBind{{Module: "M", Method: "tracer", Type: appType("Tracer")}},
	})
	comp := &model.Component{
		Name:    "App",
		Modules: []string{"M"},
		EntryPoints: []model.EntryPoint{
			{Method: "interceptors", Type: key.SetOf(appType("Interceptor"))},
			{Method: "tracer", Type: key.OptionalOf(appType("Tracer"))},
		},
	}
	u.AddComponent(comp)

	p := planFor(t, u, comp, option.Default())
	files, err := Generate(p, "gen")
	require.NoError(t, err)
	src := string(files[1].Content)

	assert.Contains(t, src, "[]Interceptor{")
	assert.Contains(t, src, "func (c *AppImpl) optionalTracer() *Tracer {")
	assert.Contains(t, src, "return nil", "absent optional yields nil")
}
