package diag_test

import (
	"fmt"
	"testing"

	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkFiltersNoneAndTracksErrors(t *testing.T) {
	t.Parallel()

	var sink diag.Sink
	sink.Report(diag.None, fmt.Errorf("dropped"), "x", model.Position{})
	assert.Empty(t, sink.All())
	assert.False(t, sink.HasErrors())

	sink.Report(diag.Warning, fmt.Errorf("warn"), "x", model.Position{})
	assert.False(t, sink.HasErrors())

	sink.Report(diag.Error, fmt.Errorf("boom"), "y", model.Position{File: "a.go", Line: 3})
	require.Len(t, sink.All(), 2)
	assert.True(t, sink.HasErrors())
	assert.Equal(t, "boom", sink.All()[1].Message())
	assert.Equal(t, "a.go:3", sink.All()[1].Pos.String())
}

func TestTraceRendering(t *testing.T) {
	t.Parallel()

	trace := diag.Trace{
		{Key: "string", Site: "Foo(str)"},
		{Key: "app.Foo", Site: "Component.foo()", EntryPoint: true},
	}

	want := "string is injected at\n    Foo(str)\napp.Foo is requested at\n    Component.foo()"
	assert.Equal(t, want, trace.String())
}

func TestTraceEqual(t *testing.T) {
	t.Parallel()

	trace := diag.Trace{
		{Key: "string", Site: "Foo(str)"},
		{Key: "app.Foo", Site: "Component.foo()", EntryPoint: true},
	}
	same := diag.Trace{
		{Key: "string", Site: "Foo(str)"},
		{Key: "app.Foo", Site: "Component.foo()", EntryPoint: true},
	}
	otherSite := diag.Trace{
		{Key: "string", Site: "Foo(str)"},
		{Key: "app.Foo", Site: "Component.bar()", EntryPoint: true},
	}

	assert.True(t, trace.Equal(same))
	assert.False(t, trace.Equal(otherSite))
	assert.False(t, trace.Equal(trace[:1]))
}

func TestMissingBindingMessage(t *testing.T) {
	t.Parallel()

	err := diag.MissingBindingError{
		Key: "string",
		Trace: diag.Trace{
			{Key: "string", Site: "Foo(str)"},
			{Key: "app.Foo", Site: "Component.foo()", EntryPoint: true},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "string cannot be provided without an @Inject constructor or an @Provides-annotated method.")
	assert.Contains(t, msg, "string is injected at\n    Foo(str)")
	assert.Contains(t, msg, "app.Foo is requested at\n    Component.foo()")
}

func TestMissingBindingOtherEntryPointsSummary(t *testing.T) {
	t.Parallel()

	err := diag.MissingBindingError{
		Key:              "string",
		OtherEntryPoints: []string{"Component.a()", "Component.b()"},
		Omitted:          4,
	}

	msg := err.Error()
	assert.Contains(t, msg, "It is also requested at:")
	assert.Contains(t, msg, "Component.a()")
	assert.Contains(t, msg, "and 4 others")
}

func TestCapList(t *testing.T) {
	t.Parallel()

	items := make([]string, 13)
	for i := range items {
		items[i] = fmt.Sprintf("ep%d", i)
	}

	shown, omitted := diag.CapList(items, diag.MaxListedEntryPoints)
	assert.Len(t, shown, 10)
	assert.Equal(t, 3, omitted)

	shown, omitted = diag.CapList(items[:5], diag.MaxListedEntryPoints)
	assert.Len(t, shown, 5)
	assert.Zero(t, omitted)
}

func TestDuplicateBindingsMessageListsAllDeclarations(t *testing.T) {
	t.Parallel()

	err := diag.DuplicateBindingsError{
		Key:          "app.Iface",
		Declarations: []string{"ModA.provideIface", "ModB.provideIface"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "app.Iface is bound multiple times:")
	assert.Contains(t, msg, "ModA.provideIface")
	assert.Contains(t, msg, "ModB.provideIface")
}

func TestDependencyCycleMessageShowsComponentPath(t *testing.T) {
	t.Parallel()

	err := diag.DependencyCycleError{
		Cycle:         []string{"app.A", "app.B", "app.A"},
		ComponentPath: []string{"Parent", "Child"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "[Parent → Child]")
	assert.Contains(t, msg, "app.A")

	single := diag.DependencyCycleError{Cycle: []string{"app.A", "app.A"}, ComponentPath: []string{"App"}}
	assert.NotContains(t, single.Error(), "[")
}

func TestUnresolvedReferenceUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("stack capture")
	err := diag.UnresolvedReferenceError{Component: "App", Refs: []string{"app.Gen"}, Cause: cause}

	assert.Contains(t, err.Error(), "cannot resolve app.Gen referenced by component App")
	assert.ErrorIs(t, err, cause)
}
