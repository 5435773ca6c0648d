package validate

import (
	"sort"

	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
)

// cycleNode is one (owning graph, key) vertex of the dependency relation.
type cycleNode struct {
	g *graph.Graph
	k key.Key

	id    string
	edges []*cycleNode

	index   int
	lowlink int
	onStack bool
}

// cycles detects dependency cycles over the whole component tree with
// Tarjan's strongly-connected-components algorithm. Edges follow eager
// dependency requests only: a Provider, Lazy, Producer or Provider-of-Lazy
// request defers construction and legally breaks a cycle, so those edges are
// omitted. Any remaining component of size two or more, or a self-edge, is
// reported once with the keys along the cycle and the components it spans.
func (v *validator) cycles() {
	nodes := map[string]*cycleNode{}
	var order []*cycleNode

	var collect func(g *graph.Graph)
	collect = func(g *graph.Graph) {
		for _, k := range g.Keys() {
			if len(g.OwnBindings(k)) == 0 {
				continue
			}
			n := &cycleNode{g: g, k: k, id: nodeID(g, k), index: -1}
			nodes[n.id] = n
			order = append(order, n)
		}
		for _, sub := range g.Subgraphs {
			collect(sub)
		}
	}
	collect(v.root)

	for _, n := range order {
		for _, b := range n.g.OwnBindings(n.k) {
			for _, dep := range b.Deps {
				if dep.Kind.Deferred() {
					continue
				}
				dk := dep.Key
				if dep.Kind == key.MembersInjectionRequest {
					dk = key.New(key.MembersInjectorOf(dk.Type))
				}
				lvl := owningGraph(n.g, dk)
				if lvl == nil {
					continue
				}
				if target, ok := nodes[nodeID(lvl, dk)]; ok {
					n.edges = append(n.edges, target)
				}
			}
		}
	}

	t := &tarjan{}
	for _, n := range order {
		if n.index < 0 {
			t.strongConnect(n)
		}
	}
	for _, scc := range t.sccs {
		v.reportCycle(scc)
	}
}

// owningGraph finds the graph holding candidates for k: first along g's
// ancestor chain, then among g's descendants. A binding installed at an
// ancestor on behalf of a child request may have dependencies the child
// resolved below the ancestor; descendant search keeps those edges.
func owningGraph(g *graph.Graph, k key.Key) *graph.Graph {
	if lvl, cands := g.Lookup(k); lvl != nil && len(cands) > 0 {
		return lvl
	}
	for _, sub := range g.Subgraphs {
		if lvl := owningGraph(sub, k); lvl != nil {
			return lvl
		}
	}
	return nil
}

func nodeID(g *graph.Graph, k key.Key) string {
	return g.Component.Name + "\x00" + g.Normalizer().ForComparison(k).ID()
}

type tarjan struct {
	counter int
	stack   []*cycleNode
	sccs    [][]*cycleNode
}

func (t *tarjan) strongConnect(n *cycleNode) {
	n.index = t.counter
	n.lowlink = t.counter
	t.counter++
	t.stack = append(t.stack, n)
	n.onStack = true

	for _, m := range n.edges {
		if m.index < 0 {
			t.strongConnect(m)
			if m.lowlink < n.lowlink {
				n.lowlink = m.lowlink
			}
		} else if m.onStack && m.index < n.lowlink {
			n.lowlink = m.index
		}
	}

	if n.lowlink != n.index {
		return
	}
	var scc []*cycleNode
	for {
		m := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		m.onStack = false
		scc = append(scc, m)
		if m == n {
			break
		}
	}
	t.sccs = append(t.sccs, scc)
}

func (v *validator) reportCycle(scc []*cycleNode) {
	if len(scc) == 1 {
		n := scc[0]
		selfEdge := false
		for _, m := range n.edges {
			if m == n {
				selfEdge = true
				break
			}
		}
		if !selfEdge {
			return
		}
	}

	sort.Slice(scc, func(i, j int) bool { return scc[i].k.String() < scc[j].k.String() })
	inSCC := map[*cycleNode]bool{}
	for _, n := range scc {
		inSCC[n] = true
	}

	// Walk a concrete ring starting at the smallest key so the report is
	// stable across runs.
	head := scc[0]
	ring := []*cycleNode{head}
	visited := map[*cycleNode]bool{head: true}
	cur := head
	for {
		var next *cycleNode
		for _, m := range sortedEdges(cur) {
			if !inSCC[m] {
				continue
			}
			if m == head && len(ring) > 1 {
				next = m
				break
			}
			if !visited[m] {
				next = m
				break
			}
		}
		if next == nil || next == head {
			break
		}
		visited[next] = true
		ring = append(ring, next)
		cur = next
	}

	cycleKeys := make([]string, 0, len(ring)+1)
	for _, n := range ring {
		cycleKeys = append(cycleKeys, n.k.String())
	}
	cycleKeys = append(cycleKeys, head.k.String())

	v.sink.Report(
		v.severity(head.g, head.k, diag.Error),
		diag.DependencyCycleError{Cycle: cycleKeys, ComponentPath: componentPath(ring)},
		head.k.String(),
		head.g.Component.Pos,
	)
}

func sortedEdges(n *cycleNode) []*cycleNode {
	out := append([]*cycleNode(nil), n.edges...)
	sort.Slice(out, func(i, j int) bool { return out[i].k.String() < out[j].k.String() })
	return out
}

// componentPath lists the distinct components a cycle spans, root first.
func componentPath(ring []*cycleNode) []string {
	byName := map[string]int{}
	for _, n := range ring {
		byName[n.g.Component.Name] = len(n.g.Path())
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if byName[names[i]] != byName[names[j]] {
			return byName[names[i]] < byName[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
