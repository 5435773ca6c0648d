package model

import (
	"sort"

	"github.com/sghaida/loom/key"
)

// Universe owns every element visible in one compilation round. The core
// treats it as read-only; a new round builds a fresh Universe.
type Universe struct {
	modules    map[string]*Module
	components map[string]*Component
	injects    map[string]*InjectType

	// missing records references known to be unresolved this round
	// (typically types expected from a later generation round).
	missing map[string]bool
}

// NewUniverse returns an empty universe.
func NewUniverse() *Universe {
	return &Universe{
		modules:    map[string]*Module{},
		components: map[string]*Component{},
		injects:    map[string]*InjectType{},
		missing:    map[string]bool{},
	}
}

// AddModule registers a module declaration.
func (u *Universe) AddModule(m *Module) *Universe {
	u.modules[m.Name] = m
	return u
}

// AddComponent registers a component declaration.
func (u *Universe) AddComponent(c *Component) *Universe {
	u.components[c.Name] = c
	return u
}

// AddInject registers an injectable type.
func (u *Universe) AddInject(it *InjectType) *Universe {
	if it.AccessibleVia == "" {
		it.Accessible = true
	}
	u.injects[it.ID()] = it
	return u
}

// MarkMissing records a reference as unresolved for this round.
func (u *Universe) MarkMissing(ref string) *Universe {
	u.missing[ref] = true
	return u
}

// Module looks up a module by name.
func (u *Universe) Module(name string) (*Module, bool) {
	m, ok := u.modules[name]
	return m, ok
}

// Component looks up a component by name.
func (u *Universe) Component(name string) (*Component, bool) {
	c, ok := u.components[name]
	return c, ok
}

// InjectFor looks up the injectable type declaration for a type.
func (u *Universe) InjectFor(t key.Type) (*InjectType, bool) {
	it, ok := u.injects[t.String()]
	return it, ok
}

// Resolve reports whether a reference is resolvable this round.
func (u *Universe) Resolve(ref string) bool {
	return !u.missing[ref]
}

// Unresolvable returns the unresolved references among those mentioned by t,
// including references marked missing and error-typed references.
func (u *Universe) Unresolvable(t key.Type) []string {
	refs := t.ErrorRefs()
	name := t.String()
	if u.missing[name] {
		refs = append(refs, name)
	}
	return refs
}

// Roots returns the non-subcomponent components in deterministic name order.
func (u *Universe) Roots() []*Component {
	var roots []*Component
	for _, c := range u.components {
		if !c.Subcomponent {
			roots = append(roots, c)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	return roots
}

// Supertypes returns the supertype chain of an injectable type, nearest
// first, computed as a worklist closure over Supertype links. Broken or
// cyclic links terminate the walk.
func (u *Universe) Supertypes(it *InjectType) []*InjectType {
	var chain []*InjectType
	seen := map[string]bool{it.ID(): true}
	next := it.Supertype
	for next != "" {
		super, ok := u.injects[next]
		if !ok || seen[super.ID()] {
			break
		}
		seen[super.ID()] = true
		chain = append(chain, super)
		next = super.Supertype
	}
	return chain
}

// InjectionSites returns every members-injection site of a type, own sites
// first and then supertype sites nearest-first, fields before methods at
// each level.
func (u *Universe) InjectionSites(it *InjectType) []InjectionSite {
	var sites []InjectionSite
	levels := append([]*InjectType{it}, u.Supertypes(it)...)
	for _, level := range levels {
		sites = append(sites, level.Fields...)
		sites = append(sites, level.Methods...)
	}
	return sites
}

// InstalledModules computes the transitive include-closure of a component's
// module list, in deterministic name order. Unknown module names are skipped;
// the loader reports those before the core runs.
func (u *Universe) InstalledModules(c *Component) []*Module {
	seen := map[string]bool{}
	var out []*Module
	work := append([]string{}, c.Modules...)
	for len(work) > 0 {
		name := work[0]
		work = work[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		m, ok := u.modules[name]
		if !ok {
			continue
		}
		out = append(out, m)
		work = append(work, m.Includes...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
