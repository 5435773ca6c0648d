package validate

import (
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
)

// traceTo finds the shortest dependency path from any entry point in the
// component tree to the key k owned by target, rendered as a diag.Trace. It
// also returns the other entry points that reach k, capped for display, so
// the report names every affected surface without repeating the trace.
// Identical traces, such as one subcomponent reached through two factory
// methods, count once.
func traceTo(root *graph.Graph, target *graph.Graph, k key.Key) (diag.Trace, []string, int) {
	goalLvl, _ := target.Lookup(k)
	var best diag.Trace
	var seen []diag.Trace
	var affected []string

	for _, ep := range entryPoints(root) {
		tr := shortestFrom(ep.g, ep.site, ep.req, goalLvl, k)
		if tr == nil || containsTrace(seen, tr) {
			continue
		}
		seen = append(seen, tr)
		if best == nil || len(tr) < len(best) {
			if best != nil {
				affected = append(affected, traceEntryPoint(best))
			}
			best = tr
			continue
		}
		affected = append(affected, traceEntryPoint(tr))
	}
	shown, omitted := diag.CapList(affected, diag.MaxListedEntryPoints)
	return best, shown, omitted
}

func containsTrace(seen []diag.Trace, tr diag.Trace) bool {
	for _, s := range seen {
		if tr.Equal(s) {
			return true
		}
	}
	return false
}

func traceEntryPoint(tr diag.Trace) string {
	return tr[len(tr)-1].Site
}

type entryPoint struct {
	g    *graph.Graph
	site string
	req  key.Request
}

func entryPoints(g *graph.Graph) []entryPoint {
	var eps []entryPoint
	for _, ep := range g.Component.EntryPoints {
		eps = append(eps, entryPoint{
			g:    g,
			site: g.Component.Name + "." + ep.Method + "()",
			req:  ep.Request(),
		})
	}
	for _, sub := range g.Subgraphs {
		eps = append(eps, entryPoints(sub)...)
	}
	return eps
}

// bfsNode tracks one (key, requesting site) hop; prev links rebuild the path.
type bfsNode struct {
	req  key.Request
	site string
	ep   bool
	prev *bfsNode
}

// shortestFrom runs a breadth-first search from one entry point over resolved
// binding dependencies, returning the trace to k or nil when unreachable.
// Deferred request kinds are still followed: a Provider of a missing key is
// as broken as the key itself.
func shortestFrom(g *graph.Graph, epSite string, epReq key.Request, goalLvl *graph.Graph, k key.Key) diag.Trace {
	norm := g.Normalizer()
	goalID := norm.ForComparison(k).ID()

	start := &bfsNode{req: epReq, site: epSite, ep: true}
	queue := []*bfsNode{start}
	seen := map[string]bool{norm.ForComparison(epReq.Key).ID(): true}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if lvl, _ := g.Lookup(n.req.Key); lvl == goalLvl && norm.ForComparison(n.req.Key).ID() == goalID {
			return buildTrace(n)
		}
		for _, b := range g.Resolved(n.req) {
			for _, dep := range b.Deps {
				id := norm.ForComparison(dep.Key).ID()
				if seen[id] {
					continue
				}
				seen[id] = true
				queue = append(queue, &bfsNode{req: dep, site: b.Decl, prev: n})
			}
		}
	}
	return nil
}

// buildTrace renders the path from the found key back out to the entry
// point, one "is injected at" hop per requesting site and a final
// "is requested at" hop at the component method.
func buildTrace(n *bfsNode) diag.Trace {
	var tr diag.Trace
	for ; n != nil; n = n.prev {
		tr = append(tr, diag.Step{
			Key:        n.req.Key.String(),
			Site:       n.site,
			EntryPoint: n.ep,
		})
	}
	return tr
}
