// Package plan lowers validated binding graphs into a deterministic code
// generation plan: bindings grouped into shards bounded by the configured
// keys-per-shard limit, with initialization strategies chosen per binding and
// explicit references for anything that crosses a shard or component
// boundary. The emitter renders a Plan without consulting the graph again.
package plan

import (
	"sort"
	"strconv"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/option"
)

// Strategy selects how a generated factory initializes and caches.
type Strategy uint8

const (
	// Direct constructs on every request, no caching.
	Direct Strategy = iota

	// DoubleCheck caches the first construction behind a double-checked
	// lock; used for scoped bindings in the default mode.
	DoubleCheck

	// SingleCheck caches without locking; used for unscoped repeated-use
	// bindings where reconstruction is tolerable.
	SingleCheck

	// Switching routes construction through the shard's switching provider
	// keyed by an integer id; used for every binding in fast-init mode.
	Switching
)

// String returns the strategy name as used in generated-code comments.
func (s Strategy) String() string {
	switch s {
	case DoubleCheck:
		return "double-check"
	case SingleCheck:
		return "single-check"
	case Switching:
		return "switching"
	default:
		return "direct"
	}
}

// Ref points at an entry planned elsewhere: another shard of the same
// component, or an ancestor component when Shard is -1.
type Ref struct {
	Key   key.Key
	Shard int

	// Component names the owning component for ancestor references.
	Component string
}

// Entry is one binding's slot in a shard.
type Entry struct {
	Key     key.Key
	Binding *binding.Binding

	Strategy Strategy

	// DelegatePlaceholder marks entries inside a dependency cycle whose
	// factory field must be created empty first and delegated to the real
	// factory once every cycle member is constructed.
	DelegatePlaceholder bool

	// SwitchID is the entry's id in its shard's switching provider.
	// Unique and dense within the shard; -1 outside fast-init mode.
	SwitchID int

	// CrossShard lists dependencies planned in other shards or ancestor
	// components.
	CrossShard []Ref
}

// Shard is one generated type holding a slice of the component's factories.
type Shard struct {
	Index int
	Name  string

	// ComponentShard marks the final shard, which doubles as the component
	// implementation and holds the entry points.
	ComponentShard bool

	Entries []*Entry
}

// Plan is the full generation plan of one component and its subcomponents.
type Plan struct {
	Component string
	FastInit  bool
	Shards    []*Shard
	Subplans  []*Plan

	// entries indexes planned entries by comparison key ID.
	entries map[string]*Entry
	shardOf map[string]int
	parent  *Plan
	norm    key.Normalizer
}

// New lowers a validated graph tree into a Plan tree.
func New(g *graph.Graph, opts option.Options) *Plan {
	return newPlan(g, nil, opts)
}

func newPlan(g *graph.Graph, parent *Plan, opts option.Options) *Plan {
	p := &Plan{
		Component: g.Component.Name,
		FastInit:  opts.FastInit,
		entries:   map[string]*Entry{},
		shardOf:   map[string]int{},
		parent:    parent,
		norm:      g.Normalizer(),
	}
	p.shard(g, opts)
	p.wireRefs(g)
	for _, sub := range g.Subgraphs {
		p.Subplans = append(p.Subplans, newPlan(sub, p, opts))
	}
	return p
}

// ParentPlan returns the enclosing component's plan, nil for roots.
func (p *Plan) ParentPlan() *Plan { return p.parent }

// Lookup finds the planned entry for a key in this plan or an ancestor's.
func (p *Plan) Lookup(k key.Key) (*Plan, *Entry, bool) {
	id := p.norm.ForComparison(k).ID()
	for cur := p; cur != nil; cur = cur.parent {
		if e, ok := cur.entries[id]; ok {
			return cur, e, true
		}
	}
	return nil, nil, false
}

// shard assigns every locally-owned binding to a shard. Keys are taken in
// resolution order, grouped so that a dependency cycle is never split across
// shards, and packed greedily up to the keys-per-shard bound. The final
// shard is the component shard.
func (p *Plan) shard(g *graph.Graph, opts option.Options) {
	keys := plannedKeys(g)
	groups := cycleGroups(g, keys)

	bound := opts.KeysPerComponentShard
	if bound <= 0 {
		bound = option.DefaultKeysPerShard
	}

	var shards [][]planned
	var cur []planned
	for _, grp := range groups {
		if len(cur) > 0 && len(cur)+len(grp) > bound {
			shards = append(shards, cur)
			cur = nil
		}
		cur = append(cur, grp...)
	}
	shards = append(shards, cur)

	for i, members := range shards {
		s := &Shard{Index: i}
		last := i == len(shards)-1
		if last {
			s.ComponentShard = true
			s.Name = p.Component + "Impl"
		} else {
			s.Name = p.Component + "ImplShard" + strconv.Itoa(i+1)
		}
		nextID := 0
		for _, m := range members {
			e := &Entry{Key: m.key, Binding: m.binding, SwitchID: -1}
			e.Strategy = p.strategyFor(m.binding)
			e.DelegatePlaceholder = m.inCycle
			if p.FastInit {
				e.SwitchID = nextID
				nextID++
			}
			s.Entries = append(s.Entries, e)
			id := p.norm.ForComparison(m.key).ID()
			p.entries[id] = e
			p.shardOf[id] = i
		}
		p.Shards = append(p.Shards, s)
	}
}

func (p *Plan) strategyFor(b *binding.Binding) Strategy {
	if p.FastInit {
		return Switching
	}
	if b.Scoped() {
		return DoubleCheck
	}
	if b.Kind == binding.MembersInjection {
		return SingleCheck
	}
	return Direct
}

// wireRefs records, per entry, every dependency that lives in a different
// shard or in an ancestor component.
func (p *Plan) wireRefs(g *graph.Graph) {
	for _, s := range p.Shards {
		for _, e := range s.Entries {
			for _, dep := range e.Binding.Deps {
				dk := resolvedKey(dep)
				id := p.norm.ForComparison(dk).ID()
				if home, ok := p.shardOf[id]; ok {
					if home != s.Index {
						e.CrossShard = append(e.CrossShard, Ref{Key: dk, Shard: home})
					}
					continue
				}
				if owner, _, ok := p.lookupAncestor(dk); ok {
					e.CrossShard = append(e.CrossShard, Ref{Key: dk, Shard: -1, Component: owner.Component})
				}
			}
		}
	}
}

func (p *Plan) lookupAncestor(k key.Key) (*Plan, *Entry, bool) {
	if p.parent == nil {
		return nil, nil, false
	}
	return p.parent.Lookup(k)
}

func resolvedKey(dep key.Request) key.Key {
	if dep.Kind == key.MembersInjectionRequest {
		return key.New(key.MembersInjectorOf(dep.Key.Type))
	}
	return dep.Key
}

// planned pairs a key with the binding chosen for generation.
type planned struct {
	key     key.Key
	binding *binding.Binding
	inCycle bool
}

// plannedKeys selects the generated binding per owned key in resolution order.
// Keys that failed validation (zero candidates) are skipped; the plan is only
// built for graphs that validated clean, but staying defensive here keeps the
// emitter total.
func plannedKeys(g *graph.Graph) []planned {
	var out []planned
	for _, k := range g.Keys() {
		cands := g.OwnBindings(k)
		if len(cands) == 0 {
			continue
		}
		out = append(out, planned{key: k, binding: cands[0]})
	}
	return out
}

// cycleGroups partitions planned keys into shard-atomic groups: every
// strongly connected component of the local dependency relation (including
// deferred-request edges, which is what makes legal cycles appear here)
// stays whole, and its members are marked for delegate placeholders. Group
// order follows the first member's resolution order, so output is stable.
func cycleGroups(g *graph.Graph, keys []planned) [][]planned {
	norm := g.Normalizer()
	index := map[string]int{}
	for i, m := range keys {
		index[norm.ForComparison(m.key).ID()] = i
	}

	adj := make([][]int, len(keys))
	for i, m := range keys {
		for _, dep := range m.binding.Deps {
			if j, ok := index[norm.ForComparison(resolvedKey(dep)).ID()]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}

	scc := newSCC(adj)
	grouped := map[int][]int{}
	for i := range keys {
		grouped[scc.component[i]] = append(grouped[scc.component[i]], i)
	}

	seen := map[int]bool{}
	var groups [][]planned
	for i := range keys {
		c := scc.component[i]
		if seen[c] {
			continue
		}
		seen[c] = true
		members := grouped[c]
		sort.Ints(members)
		cyclic := len(members) > 1 || selfEdge(adj, members[0])
		grp := make([]planned, 0, len(members))
		for _, idx := range members {
			m := keys[idx]
			m.inCycle = cyclic
			grp = append(grp, m)
		}
		groups = append(groups, grp)
	}
	return groups
}

func selfEdge(adj [][]int, i int) bool {
	for _, j := range adj[i] {
		if j == i {
			return true
		}
	}
	return false
}

// sccState runs Tarjan's strongly-connected-components pass over an integer
// adjacency list.
type sccState struct {
	adj       [][]int
	index     []int
	lowlink   []int
	onStack   []bool
	stack     []int
	counter   int
	component []int
	nextComp  int
}

func newSCC(adj [][]int) *sccState {
	n := len(adj)
	s := &sccState{
		adj:       adj,
		index:     make([]int, n),
		lowlink:   make([]int, n),
		onStack:   make([]bool, n),
		component: make([]int, n),
	}
	for i := range s.index {
		s.index[i] = -1
		s.component[i] = -1
	}
	for i := 0; i < n; i++ {
		if s.index[i] < 0 {
			s.connect(i)
		}
	}
	return s
}

func (s *sccState) connect(v int) {
	s.index[v] = s.counter
	s.lowlink[v] = s.counter
	s.counter++
	s.stack = append(s.stack, v)
	s.onStack[v] = true

	for _, w := range s.adj[v] {
		if s.index[w] < 0 {
			s.connect(w)
			if s.lowlink[w] < s.lowlink[v] {
				s.lowlink[v] = s.lowlink[w]
			}
		} else if s.onStack[w] && s.index[w] < s.lowlink[v] {
			s.lowlink[v] = s.index[w]
		}
	}

	if s.lowlink[v] != s.index[v] {
		return
	}
	for {
		w := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		s.onStack[w] = false
		s.component[w] = s.nextComp
		if w == v {
			break
		}
	}
	s.nextComp++
}
