package graph

import (
	"sort"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
	"github.com/sghaida/loom/option"
)

// Deferred reports that a component graph could not be completed this round
// because the named type references do not resolve yet. The caller is
// expected to retry after more types become available.
type Deferred struct {
	Component string
	Refs      []string
}

func deferral(component string, refs []string) *Deferred {
	sort.Strings(refs)
	out := refs[:0]
	for i, r := range refs {
		if i == 0 || refs[i-1] != r {
			out = append(out, r)
		}
	}
	return &Deferred{Component: component, Refs: out}
}

// builder drives worklist resolution for one component level. Builders chain
// parent-ward alongside their graphs so a child request can materialize a
// declaration that lives at an ancestor level.
type builder struct {
	u      *model.Universe
	opts   option.Options
	norm   key.Normalizer
	g      *Graph
	idx    *declIndex
	parent *builder

	work      []key.Request
	fullPhase bool

	// subcomponents whose creators or factory methods were reached.
	reachable map[string]bool

	// keys already flagged for raw-type findings.
	rawSeen map[string]bool
}

// Build resolves the binding graph rooted at comp. Resolution walks every
// entry point's transitive dependencies, pulling candidate bindings from the
// component's own declarations first and its ancestors' otherwise, without
// copying ancestor bindings down. Subcomponent graphs are built for every
// child reachable through a factory method or a resolved creator binding.
//
// When any required type reference does not resolve in the universe, Build
// stops and returns a Deferred naming the references; the partial graph is
// discarded by the caller and the component retried in a later round.
func Build(u *model.Universe, comp *model.Component, opts option.Options) (*Graph, *Deferred) {
	return build(u, comp, nil, opts)
}

func build(u *model.Universe, comp *model.Component, parent *builder, opts option.Options) (*Graph, *Deferred) {
	norm := opts.Normalizer()
	g := newGraph(u, comp, parentGraph(parent), norm)
	b := &builder{
		u:         u,
		opts:      opts,
		norm:      norm,
		g:         g,
		idx:       buildIndex(u, comp, norm),
		parent:    parent,
		reachable: map[string]bool{},
		rawSeen:   map[string]bool{},
	}

	for _, ep := range comp.EntryPoints {
		b.enqueue(ep.Request())
	}
	for _, fm := range comp.FactoryMethods {
		b.reachable[fm.Subcomponent] = true
	}
	if d := b.run(); d != nil {
		return nil, d
	}

	if opts.FullBindingGraphValidation != diag.None {
		b.fullPhase = true
		b.seedFullGraph()
		if d := b.run(); d != nil {
			return nil, d
		}
	}

	children := make([]string, 0, len(b.reachable))
	for name := range b.reachable {
		children = append(children, name)
	}
	sort.Strings(children)
	for _, name := range children {
		sub, ok := u.Component(name)
		if !ok {
			continue
		}
		child, d := build(u, sub, b, opts)
		if d != nil {
			return nil, d
		}
		g.Subgraphs = append(g.Subgraphs, child)
	}
	return g, nil
}

func parentGraph(b *builder) *Graph {
	if b == nil {
		return nil
	}
	return b.g
}

func (b *builder) enqueue(reqs ...key.Request) {
	b.work = append(b.work, reqs...)
}

func (b *builder) run() *Deferred {
	for len(b.work) > 0 {
		req := b.work[0]
		b.work = b.work[1:]
		var d *Deferred
		if req.Kind == key.MembersInjectionRequest {
			d = b.resolveMembers(req.Key)
		} else {
			d = b.resolve(req.Key)
		}
		if d != nil {
			return d
		}
	}
	return nil
}

// seedFullGraph enqueues every key declared at this level that entry-point
// reachability did not already resolve, so full-graph validation sees the
// whole declaration surface.
func (b *builder) seedFullGraph() {
	for _, id := range b.idx.order {
		for _, cand := range b.idx.explicit[id] {
			b.enqueue(key.Request{Key: cand.Key, Kind: key.InstanceRequest})
		}
	}
	var collections []string
	for id := range b.idx.contributions {
		collections = append(collections, id)
	}
	for id := range b.idx.multibinds {
		if _, ok := b.idx.contributions[id]; !ok {
			collections = append(collections, id)
		}
	}
	sort.Strings(collections)
	for _, id := range collections {
		if k, ok := b.collectionKey(id); ok {
			b.enqueue(key.Request{Key: k, Kind: key.InstanceRequest})
		}
	}
}

// collectionKey reconstructs a collection key from the contribution index by
// stripping the contribution tag off any contributor's key.
func (b *builder) collectionKey(id string) (key.Key, bool) {
	if cands, ok := b.idx.contributions[id]; ok && len(cands) > 0 {
		k := cands[0].Key
		k.Contribution = key.NoContribution
		k.ContributionID = ""
		return k, true
	}
	if mb, ok := b.idx.multibinds[id]; ok {
		return key.Key{Type: mb.Collection, Qualifier: mb.Qualifier}, true
	}
	return key.Key{}, false
}

// resolve installs bindings for k at the owning level and enqueues their
// dependencies. Keys that resolve to nothing are still installed, with zero
// candidates, so validation can report them with a request trace.
func (b *builder) resolve(k key.Key) *Deferred {
	if refs := b.u.Unresolvable(k.Type); len(refs) > 0 {
		return deferral(b.g.Component.Name, refs)
	}
	k = canonicalKey(k)
	b.noteRawType(k)

	if key.IsSet(k.Type) || key.IsMap(k.Type) {
		if done, d := b.resolveCollection(k); done || d != nil {
			return d
		}
	}
	if key.IsOptional(k.Type) {
		if done, d := b.resolveOptional(k); done || d != nil {
			return d
		}
	}

	id := b.norm.ForComparison(k).ID()
	for lvl := b; lvl != nil; lvl = lvl.parent {
		if lvl.g.owns(k) {
			return nil
		}
		if cands := lvl.idx.explicit[id]; len(cands) > 0 {
			lvl.installAt(b, k, cands)
			return nil
		}
	}
	return b.resolveInjection(k)
}

// installAt records candidates at this level on behalf of the requesting
// builder, which receives the dependency requests and reachability marks.
func (lvl *builder) installAt(req *builder, k key.Key, cands []*binding.Binding) {
	lvl.install(k, cands)
	for _, c := range cands {
		req.enqueue(c.Deps...)
		if c.Kind == binding.SubcomponentCreator {
			req.reachable[c.Subcomponent] = true
		}
	}
}

func (b *builder) install(k key.Key, cands []*binding.Binding) {
	b.g.install(k, cands)
	if b.fullPhase {
		b.g.fullGraphOnly[b.norm.ForComparison(k).ID()] = true
	}
}

// resolveCollection synthesizes a multibound binding when the chain carries
// contributions or a declared-empty collection for k. The binding lives at
// the deepest contributing level, so components below it share the ancestor's
// aggregation instead of rebuilding it.
func (b *builder) resolveCollection(k key.Key) (bool, *Deferred) {
	id := b.norm.ForComparison(k).ID()

	var owner *builder
	for lvl := b; lvl != nil; lvl = lvl.parent {
		_, contributes := lvl.idx.contributions[id]
		_, declared := lvl.idx.multibinds[id]
		if (contributes || declared) && owner == nil {
			owner = lvl
		}
	}
	if owner == nil {
		return false, nil
	}
	if owner.g.owns(k) {
		return true, nil
	}

	kind := binding.MultiboundSet
	if key.IsMap(k.Type) {
		kind = binding.MultiboundMap
	}
	agg := &binding.Binding{
		Key:       k,
		Kind:      kind,
		Owner:     owner.g.Component.Name,
		Component: owner.g.Component.Name,
		Decl:      k.String(),
	}
	for lvl := owner; lvl != nil; lvl = lvl.parent {
		contribs := append([]*binding.Binding(nil), lvl.idx.contributions[id]...)
		sort.Slice(contribs, func(i, j int) bool { return contribs[i].Key.ID() < contribs[j].Key.ID() })
		for _, c := range contribs {
			if !lvl.g.owns(c.Key) {
				lvl.installAt(b, c.Key, []*binding.Binding{c})
			}
			agg.Deps = append(agg.Deps, key.Request{Key: c.Key, Kind: key.InstanceRequest})
		}
		if mb, ok := lvl.idx.multibinds[id]; ok {
			agg.Pos = mb.Pos
		}
	}
	cands := []*binding.Binding{agg}
	// An explicit provision of the whole collection conflicts with the
	// contributions; surface both so validation can report the clash.
	for lvl := owner; lvl != nil; lvl = lvl.parent {
		for _, c := range lvl.idx.explicit[id] {
			cands = append(cands, c)
			b.enqueue(c.Deps...)
		}
	}
	owner.install(k, cands)
	return true, nil
}

// resolveOptional synthesizes an Optional binding when some level declares
// one for k's inner key. Presence follows whether the inner key is bindable
// from the requesting component; an absent optional is not a missing binding.
func (b *builder) resolveOptional(k key.Key) (bool, *Deferred) {
	id := b.norm.ForComparison(k).ID()
	declared := false
	for lvl := b; lvl != nil; lvl = lvl.parent {
		if _, ok := lvl.idx.optionals[id]; ok {
			declared = true
			break
		}
	}
	if !declared {
		return false, nil
	}
	if b.g.owns(k) {
		return true, nil
	}

	inner, _ := key.OptionalInnerType(k.Type)
	innerKey := key.Key{Type: inner, Qualifier: k.Qualifier}
	ob := &binding.Binding{
		Key:       k,
		Kind:      binding.Optional,
		Owner:     b.g.Component.Name,
		Component: b.g.Component.Name,
		Decl:      k.String(),
	}
	if b.bindable(innerKey) {
		ob.OptionalPresent = true
		ob.Deps = []key.Request{{Key: innerKey, Kind: key.InstanceRequest}}
		if d := b.resolve(innerKey); d != nil {
			return true, d
		}
	}
	b.install(k, []*binding.Binding{ob})
	return true, nil
}

// bindable probes whether k would resolve to at least one candidate without
// installing anything.
func (b *builder) bindable(k key.Key) bool {
	k = canonicalKey(k)
	id := b.norm.ForComparison(k).ID()
	for lvl := b; lvl != nil; lvl = lvl.parent {
		if cands, ok := lvl.g.bindings[id]; ok {
			return len(cands) > 0
		}
		if len(lvl.idx.explicit[id]) > 0 {
			return true
		}
		if key.IsSet(k.Type) || key.IsMap(k.Type) {
			if _, ok := lvl.idx.contributions[id]; ok {
				return true
			}
			if _, ok := lvl.idx.multibinds[id]; ok {
				return true
			}
		}
	}
	if it, ok := b.injectCandidate(k); ok {
		return it.HasCtor
	}
	return false
}

// resolveInjection falls back to the type's inject constructor when no
// declaration anywhere in the chain covers k.
func (b *builder) resolveInjection(k key.Key) *Deferred {
	it, ok := b.injectCandidate(k)
	if !ok || !it.HasCtor {
		b.install(k, nil)
		return nil
	}
	if refs := b.u.Unresolvable(it.Type); len(refs) > 0 {
		return deferral(b.g.Component.Name, refs)
	}

	deps := paramRequests(it.CtorParams)
	for _, site := range b.u.InjectionSites(it) {
		deps = append(deps, site.Request())
	}
	bnd := &binding.Binding{
		Key:       k,
		Kind:      binding.Injection,
		Deps:      deps,
		Scopes:    it.Scopes,
		Owner:     b.g.Component.Name,
		Component: b.g.Component.Name,
		Decl:      declLabel(it.Type.Name, it.CtorParams),
		Pos:       it.Pos,
	}
	if !it.Accessible {
		bnd.AccessibleVia = it.AccessibleVia
	}

	owner := b.ownerForScopes(it.Scopes)
	bnd.Owner = owner.g.Component.Name
	owner.installAt(b, k, []*binding.Binding{bnd})
	return nil
}

func (b *builder) injectCandidate(k key.Key) (*model.InjectType, bool) {
	if k.Qualifier != nil || k.Contribution != key.NoContribution {
		return nil, false
	}
	t := k.Type
	if t.Kind != key.KindNamed || t.Pkg == key.FrameworkPkg {
		return nil, false
	}
	return b.u.InjectFor(t)
}

// ownerForScopes picks the nearest level whose component declares one of the
// binding's scopes. Unscoped bindings stay at the requesting level; a scope
// no level declares also stays here, for the scope validator to report.
func (b *builder) ownerForScopes(scopes []key.Annotation) *builder {
	for lvl := b; lvl != nil; lvl = lvl.parent {
		for _, s := range scopes {
			for _, cs := range lvl.g.Component.Scopes {
				if s.Equal(cs) {
					return lvl
				}
			}
		}
	}
	return b
}

// resolveMembers installs a members-injection binding for t under its
// injector key. A type with no injectable members still gets a binding; the
// generated injector is simply a no-op.
func (b *builder) resolveMembers(k key.Key) *Deferred {
	if refs := b.u.Unresolvable(k.Type); len(refs) > 0 {
		return deferral(b.g.Component.Name, refs)
	}
	ik := key.New(key.MembersInjectorOf(k.Type))
	if lvl, _ := b.g.Lookup(ik); lvl != nil {
		return nil
	}

	bnd := &binding.Binding{
		Key:       ik,
		Kind:      binding.MembersInjection,
		Owner:     b.g.Component.Name,
		Component: b.g.Component.Name,
		Decl:      k.Type.String(),
	}
	if it, ok := b.u.InjectFor(k.Type); ok {
		if refs := b.u.Unresolvable(it.Type); len(refs) > 0 {
			return deferral(b.g.Component.Name, refs)
		}
		for _, site := range b.u.InjectionSites(it) {
			bnd.Deps = append(bnd.Deps, site.Request())
		}
		bnd.Pos = it.Pos
		if !it.Accessible {
			bnd.AccessibleVia = it.AccessibleVia
		}
	}
	b.installAt(b, ik, []*binding.Binding{bnd})
	return nil
}

func (b *builder) noteRawType(k key.Key) {
	if !k.Type.Raw {
		return
	}
	id := b.norm.ForComparison(k).ID()
	if b.rawSeen[id] {
		return
	}
	b.rawSeen[id] = true
	b.g.Findings = append(b.g.Findings, diag.Diagnostic{
		Severity: diag.Warning,
		Err:      &diag.InvalidRawTypeError{Type: k.Type.String(), Site: b.g.Component.Name},
		Element:  b.g.Component.Name,
		Pos:      b.g.Component.Pos,
	})
}

// canonicalKey folds framework request wrappers out of collection value
// positions: a Map<K, Provider<V>> request targets the Map<K, V> binding, and
// Optional<Lazy<T>> targets Optional<T>. Without this the same aggregation
// would resolve (and validate) once per wrapper form.
func canonicalKey(k key.Key) key.Key {
	if kt, vt, ok := key.MapEntryTypes(k.Type); ok {
		if kind, inner := key.ExtractRequest(vt); kind.Deferred() || kind == key.ProducedRequest {
			k.Type = key.MapOf(kt, inner)
		}
	}
	if inner, ok := key.OptionalInnerType(k.Type); ok {
		if kind, base := key.ExtractRequest(inner); kind != key.InstanceRequest {
			k.Type = key.OptionalOf(base)
		}
	}
	return k
}
