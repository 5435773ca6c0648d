// Package graph builds and represents per-component binding graphs.
//
// A Graph maps every key reachable from a component's entry points to its
// candidate bindings. Subcomponent graphs reference their ancestor through a
// parent link only: bindings resolved in an ancestor are usable from a child
// graph but are never copied down. Resolution is a single-pass worklist
// algorithm; an unresolvable reference abandons the component for this round
// and surfaces as a Deferred result, to be retried from scratch next round.
package graph

import (
	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// Graph is the resolved binding graph of one component.
type Graph struct {
	Component *model.Component

	// Parent is the enclosing component's graph, nil for roots. The link
	// is a back-reference only; the parent does not own or list children
	// except through Subgraphs.
	Parent *Graph

	// Subgraphs are the reachable child subcomponent graphs, in
	// deterministic declaration order. Unreachable subcomponents are
	// pruned: they never get a graph.
	Subgraphs []*Graph

	// Findings are structural diagnostics discovered while building
	// (e.g. raw-type injection targets), reported alongside validation.
	Findings []diag.Diagnostic

	universe *model.Universe
	norm     key.Normalizer

	// bindings maps comparison-form key IDs to candidates; order preserves
	// first-resolution order for deterministic iteration.
	bindings map[string][]*binding.Binding
	keys     map[string]key.Key
	order    []string

	// entrySeeds records which comparison IDs were seeded only by
	// full-graph validation rather than a real entry point.
	fullGraphOnly map[string]bool
}

func newGraph(u *model.Universe, comp *model.Component, parent *Graph, norm key.Normalizer) *Graph {
	return &Graph{
		Component:     comp,
		Parent:        parent,
		universe:      u,
		norm:          norm,
		bindings:      map[string][]*binding.Binding{},
		keys:          map[string]key.Key{},
		fullGraphOnly: map[string]bool{},
	}
}

// Universe returns the element model the graph was resolved against.
func (g *Graph) Universe() *model.Universe { return g.universe }

// Normalizer returns the key normalizer the graph was resolved under.
func (g *Graph) Normalizer() key.Normalizer { return g.norm }

// Keys returns the keys owned by this graph (not ancestors), in resolution
// order.
func (g *Graph) Keys() []key.Key {
	out := make([]key.Key, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.keys[id])
	}
	return out
}

// OwnBindings returns the candidates this graph owns for k, without
// consulting ancestors.
func (g *Graph) OwnBindings(k key.Key) []*binding.Binding {
	return g.bindings[g.norm.ForComparison(k).ID()]
}

// Lookup walks the component chain from this graph upward and returns the
// nearest graph holding candidates for k, along with those candidates.
// A graph that resolved k to zero candidates still owns the key ("missing").
func (g *Graph) Lookup(k key.Key) (*Graph, []*binding.Binding) {
	id := g.norm.ForComparison(k).ID()
	for lvl := g; lvl != nil; lvl = lvl.Parent {
		if cands, ok := lvl.bindings[id]; ok {
			return lvl, cands
		}
	}
	return nil, nil
}

// Resolved returns the candidates for a request anywhere along the chain.
// Members-injection requests resolve under their injector key.
func (g *Graph) Resolved(req key.Request) []*binding.Binding {
	k := req.Key
	if req.Kind == key.MembersInjectionRequest {
		k = key.New(key.MembersInjectorOf(k.Type))
	}
	_, cands := g.Lookup(k)
	return cands
}

// FullGraphOnly reports whether k was reachable only through full-graph
// validation seeding, not from a real entry point.
func (g *Graph) FullGraphOnly(k key.Key) bool {
	return g.fullGraphOnly[g.norm.ForComparison(k).ID()]
}

// Path returns the component names from the root down to this graph.
func (g *Graph) Path() []string {
	if g.Parent == nil {
		return []string{g.Component.Name}
	}
	return append(g.Parent.Path(), g.Component.Name)
}

// EntryPoints returns the component's declared entry points.
func (g *Graph) EntryPoints() []model.EntryPoint {
	return g.Component.EntryPoints
}

// install records candidates for a key owned by this graph.
func (g *Graph) install(k key.Key, cands []*binding.Binding) {
	id := g.norm.ForComparison(k).ID()
	if _, ok := g.bindings[id]; !ok {
		g.keys[id] = k
		g.order = append(g.order, id)
	}
	g.bindings[id] = append(g.bindings[id], cands...)
}

// owns reports whether this graph already resolved k.
func (g *Graph) owns(k key.Key) bool {
	_, ok := g.bindings[g.norm.ForComparison(k).ID()]
	return ok
}
