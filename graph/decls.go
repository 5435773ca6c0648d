package graph

import (
	"strings"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// declIndex pre-materializes every binding a component level can contribute
// from its own declarations: installed modules, bound instances, component
// dependencies, the component-instance self binding and synthesized
// subcomponent-creator bindings. Resolution moves candidates from here into
// the graph; nothing in the index mutates afterwards.
type declIndex struct {
	norm key.Normalizer

	// explicit candidate bindings per comparison key ID.
	explicit map[string][]*binding.Binding
	order    []string

	// contributions per collection comparison key ID.
	contributions map[string][]*binding.Binding

	// declared-empty collections and optional declarations.
	multibinds map[string]model.Multibind
	optionals  map[string]model.OptionalBind
}

func buildIndex(u *model.Universe, comp *model.Component, norm key.Normalizer) *declIndex {
	idx := &declIndex{
		norm:          norm,
		explicit:      map[string][]*binding.Binding{},
		contributions: map[string][]*binding.Binding{},
		multibinds:    map[string]model.Multibind{},
		optionals:     map[string]model.OptionalBind{},
	}

	for _, m := range u.InstalledModules(comp) {
		for i := range m.Provides {
			idx.addProvision(comp, m.Provides[i])
		}
		for i := range m.Binds {
			idx.addDelegate(comp, m.Binds[i])
		}
		for _, mb := range m.Multibinds {
			k := key.Key{Type: mb.Collection, Qualifier: mb.Qualifier}
			idx.multibinds[norm.ForComparison(k).ID()] = mb
		}
		for _, ob := range m.OptionalBinds {
			k := key.Key{Type: key.OptionalOf(ob.Type), Qualifier: ob.Qualifier}
			idx.optionals[norm.ForComparison(k).ID()] = ob
		}
	}

	// Creator-bound instances.
	for _, p := range comp.BoundInstances {
		k := key.Key{Type: p.Type, Qualifier: p.Qualifier}
		idx.add(k, &binding.Binding{
			Key:       k,
			Kind:      binding.BoundInstance,
			Owner:     comp.Name,
			Component: comp.Name,
			Decl:      comp.Name + "#" + p.Name,
			Pos:       comp.Pos,
		})
	}

	// Component dependencies: the dependency object and its provisions.
	for _, dep := range comp.Dependencies {
		depKey := key.New(dep.Type)
		idx.add(depKey, &binding.Binding{
			Key:       depKey,
			Kind:      binding.ComponentDependency,
			Owner:     comp.Name,
			Component: comp.Name,
			Decl:      dep.Type.String(),
			Pos:       comp.Pos,
		})
		for _, p := range dep.Provisions {
			k := key.Key{Type: p.Type, Qualifier: p.Qualifier}
			idx.add(k, &binding.Binding{
				Key:       k,
				Kind:      binding.ComponentDependency,
				Scopes:    p.Scopes,
				Owner:     dep.Type.String(),
				Component: comp.Name,
				Decl:      dep.Type.String() + "." + p.Method + "()",
				Pos:       p.Pos,
			})
		}
	}

	// The component instance itself.
	selfKey := key.New(comp.SelfType())
	idx.add(selfKey, &binding.Binding{
		Key:       selfKey,
		Kind:      binding.ComponentInstance,
		Owner:     comp.Name,
		Component: comp.Name,
		Decl:      comp.Name,
		Pos:       comp.Pos,
	})

	// Subcomponent creators, for every child declared by this component or
	// by an installed module. Unreachable ones are pruned later simply by
	// never being resolved.
	for _, child := range declaredSubcomponents(u, comp) {
		sub, ok := u.Component(child)
		if !ok || !sub.HasCreator() {
			continue
		}
		k := key.New(sub.CreatorType)
		idx.add(k, &binding.Binding{
			Key:          k,
			Kind:         binding.SubcomponentCreator,
			Owner:        comp.Name,
			Component:    comp.Name,
			Decl:         sub.CreatorType.String(),
			Pos:          sub.Pos,
			Subcomponent: sub.Name,
		})
	}

	return idx
}

func (idx *declIndex) add(k key.Key, b *binding.Binding) {
	id := idx.norm.ForComparison(k).ID()
	if _, ok := idx.explicit[id]; !ok {
		idx.order = append(idx.order, id)
	}
	idx.explicit[id] = append(idx.explicit[id], b)
}

func (idx *declIndex) addContribution(collection key.Key, b *binding.Binding) {
	id := idx.norm.ForComparison(collection).ID()
	idx.contributions[id] = append(idx.contributions[id], b)
}

func (idx *declIndex) addProvision(comp *model.Component, p model.Provision) {
	kind := binding.Provision
	if p.Production {
		kind = binding.Production
	}
	b := &binding.Binding{
		Kind:      kind,
		Deps:      paramRequests(p.Params),
		Scopes:    p.Scopes,
		Owner:     p.Module,
		Component: comp.Name,
		Decl:      declLabel(p.DeclID(), p.Params),
		Pos:       p.Pos,
		MapKey:    p.MapKey,
	}
	idx.place(comp, b, p.Type, p.Qualifier, p.Contribution, p.DeclID())
}

func (idx *declIndex) addDelegate(comp *model.Component, d model.Delegate) {
	b := &binding.Binding{
		Kind:      binding.Delegate,
		Deps:      []key.Request{d.Target.Request()},
		Scopes:    d.Scopes,
		Owner:     d.Module,
		Component: comp.Name,
		Decl:      declLabel(d.DeclID(), []model.Param{d.Target}),
		Pos:       d.Pos,
		MapKey:    d.MapKey,
	}
	idx.place(comp, b, d.Type, d.Qualifier, d.Contribution, d.DeclID())
}

// place routes a materialized binding either to the explicit index or, for
// multibinding contributions, to the contribution index under its collection
// key, giving the binding its distinct contribution key.
func (idx *declIndex) place(comp *model.Component, b *binding.Binding, t key.Type, q *key.Annotation, contrib model.Contribution, declID string) {
	base := key.Key{Type: t, Qualifier: q}
	switch contrib {
	case model.IntoSet:
		collection := key.Key{Type: key.SetOf(t), Qualifier: q}
		b.Key = collection.AsContribution(key.SetElement, declID)
		idx.addContribution(collection, b)
	case model.ElementsIntoSet:
		// The declaration's own type is already the collection.
		collection := base
		b.Key = collection.AsContribution(key.SetValues, declID)
		idx.addContribution(collection, b)
	case model.IntoMap:
		mk := key.Primitive("string")
		if b.MapKey != nil {
			mk = mapKeyType(*b.MapKey)
		}
		collection := key.Key{Type: key.MapOf(mk, t), Qualifier: q}
		b.Key = collection.AsContribution(key.MapEntry, declID)
		idx.addContribution(collection, b)
	default:
		b.Key = base
		idx.add(base, b)
	}
}

// mapKeyType derives the map key's value type from the map-key annotation.
// The well-known single-member annotations unwrap to their value type;
// anything else unwraps by the shape of its value literal, falling back to
// the annotation type itself for multi-member keys.
func mapKeyType(ann key.Annotation) key.Type {
	switch ann.Type {
	case "StringKey":
		return key.Primitive("string")
	case "IntKey":
		return key.Primitive("int")
	case "LongKey":
		return key.Primitive("long")
	case "ClassKey":
		return key.Named("", "Class")
	}
	if len(ann.Members) == 1 {
		if t, ok := literalType(ann.Members[0].Value); ok {
			return t
		}
	}
	return key.Named("", ann.Type)
}

func literalType(lit string) (key.Type, bool) {
	if lit == "" {
		return key.Type{}, false
	}
	if lit[0] == '"' {
		return key.Primitive("string"), true
	}
	digits := lit
	long := false
	if digits[0] == '-' {
		digits = digits[1:]
	}
	if n := len(digits); n > 0 && digits[n-1] == 'L' {
		long = true
		digits = digits[:n-1]
	}
	if digits == "" {
		return key.Type{}, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return key.Type{}, false
		}
	}
	if long {
		return key.Primitive("long"), true
	}
	return key.Primitive("int"), true
}

func paramRequests(params []model.Param) []key.Request {
	out := make([]key.Request, 0, len(params))
	for _, p := range params {
		out = append(out, p.Request())
	}
	return out
}

func declLabel(declID string, params []model.Param) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	return declID + "(" + strings.Join(names, ", ") + ")"
}

func declaredSubcomponents(u *model.Universe, comp *model.Component) []string {
	seen := map[string]bool{}
	var out []string
	addAll := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	addAll(comp.Subcomponents)
	for _, fm := range comp.FactoryMethods {
		addAll([]string{fm.Subcomponent})
	}
	for _, m := range u.InstalledModules(comp) {
		addAll(m.Subcomponents)
	}
	return out
}
