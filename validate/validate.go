// Package validate checks resolved binding graphs and reports every problem
// it can find in one pass: missing and duplicate bindings, dependency cycles,
// scope misuse, inconsistent multibindings and invalid injection sites.
// Validators never stop at the first finding; the sink aggregates everything
// so a single compile surfaces the full picture.
package validate

import (
	"sort"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/option"
)

// Validate runs every validator over the component tree rooted at g,
// reporting findings into sink. Findings on keys reachable only through
// full-graph seeding are reported at the configured full-graph severity
// instead of the validator's own.
func Validate(g *graph.Graph, opts option.Options, sink *diag.Sink) {
	v := &validator{root: g, opts: opts, sink: sink, siteSeen: map[string]bool{}}
	v.walk(g)
	v.cycles()
}

type validator struct {
	root *graph.Graph
	opts option.Options
	sink *diag.Sink

	// siteSeen dedupes injection-site findings for types bound in more
	// than one component.
	siteSeen map[string]bool
}

func (v *validator) walk(g *graph.Graph) {
	for _, f := range g.Findings {
		v.sink.Add(f)
	}
	for _, k := range g.Keys() {
		cands := g.OwnBindings(k)
		v.checkMissing(g, k, cands)
		v.checkDuplicates(g, k, cands)
		v.checkContributions(g, k, cands)
		for _, b := range cands {
			v.checkScopes(g, k, b)
			v.checkInjectionSites(g, k, b)
		}
	}
	if !v.opts.IgnoreProvisionKeyWildcards {
		v.checkVarianceForks(g)
	}
	v.checkFactoryMethods(g)
	for _, sub := range g.Subgraphs {
		v.walk(sub)
	}
}

// severity downgrades a finding to the full-graph severity when its key was
// only reached by full-graph seeding.
func (v *validator) severity(g *graph.Graph, k key.Key, base diag.Severity) diag.Severity {
	if g.FullGraphOnly(k) {
		return v.opts.FullBindingGraphValidation
	}
	return base
}

func (v *validator) checkMissing(g *graph.Graph, k key.Key, cands []*binding.Binding) {
	if len(cands) > 0 {
		return
	}
	trace, others, omitted := traceTo(v.root, g, k)
	v.sink.Report(
		v.severity(g, k, diag.Error),
		diag.MissingBindingError{Key: k.String(), Trace: trace, OtherEntryPoints: others, Omitted: omitted},
		k.String(),
		g.Component.Pos,
	)
}

// checkDuplicates reports keys with more than one candidate. Identical
// delegate aliases of one target are tolerated; any other combination is a
// conflict.
func (v *validator) checkDuplicates(g *graph.Graph, k key.Key, cands []*binding.Binding) {
	if len(cands) < 2 {
		return
	}
	allAliases := true
	for i := 1; i < len(cands); i++ {
		if !binding.SameAlias(cands[0], cands[i]) {
			allAliases = false
			break
		}
	}
	if allAliases {
		return
	}
	decls := make([]string, 0, len(cands))
	for _, b := range cands {
		decls = append(decls, b.Decl)
	}
	v.sink.Report(
		v.severity(g, k, diag.Error),
		diag.DuplicateBindingsError{Key: k.String(), Declarations: decls},
		k.String(),
		cands[0].Pos,
	)
}

// checkContributions validates multibound aggregations: map contributions
// must agree on the map key annotation type and must not reuse a map key
// value, and set contributions must not differ only in wildcard variance.
func (v *validator) checkContributions(g *graph.Graph, k key.Key, cands []*binding.Binding) {
	var agg *binding.Binding
	for _, b := range cands {
		if b.Multibound() {
			agg = b
			break
		}
	}
	if agg == nil {
		return
	}

	contribs := make([]*binding.Binding, 0, len(agg.Deps))
	for _, dep := range agg.Deps {
		contribs = append(contribs, g.Resolved(dep)...)
	}

	if agg.Kind == binding.MultiboundMap {
		v.checkMapKeys(g, k, contribs)
	}
}

func (v *validator) checkMapKeys(g *graph.Graph, k key.Key, contribs []*binding.Binding) {
	keyTypes := map[string]bool{}
	byValue := map[string][]string{}
	var decls []string
	for _, c := range contribs {
		if c.MapKey == nil {
			continue
		}
		keyTypes[c.MapKey.Type] = true
		byValue[c.MapKey.String()] = append(byValue[c.MapKey.String()], c.Decl)
		decls = append(decls, c.Decl)
	}

	if len(keyTypes) > 1 {
		types := make([]string, 0, len(keyTypes))
		for t := range keyTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		v.sink.Report(
			v.severity(g, k, diag.Error),
			diag.InconsistentMapKeyError{Key: k.String(), KeyTypes: types, Declarations: decls},
			k.String(),
			g.Component.Pos,
		)
		return
	}

	values := make([]string, 0, len(byValue))
	for val := range byValue {
		values = append(values, val)
	}
	sort.Strings(values)
	for _, val := range values {
		if dup := byValue[val]; len(dup) > 1 {
			v.sink.Report(
				v.severity(g, k, diag.Error),
				diag.DuplicateBindingsError{Key: k.String() + " with map key " + val, Declarations: dup},
				k.String(),
				g.Component.Pos,
			)
		}
	}
}

// checkVarianceForks finds multibound keys in one component that differ only
// in wildcard variance. Such keys silently fork a collection users mean to be
// one: each aggregation sees only the contributions spelled with its exact
// variance. Reported unless wildcard erasure is enabled, which merges them.
func (v *validator) checkVarianceForks(g *graph.Graph) {
	byErased := map[string][]key.Key{}
	for _, k := range g.Keys() {
		hasAgg := false
		for _, b := range g.OwnBindings(k) {
			if b.Multibound() {
				hasAgg = true
				break
			}
		}
		if !hasAgg {
			continue
		}
		erased := k.Unqualified()
		erased.Type = k.Type.WithoutVariance()
		id := erased.ID()
		if k.Qualifier != nil {
			id += "@" + k.Qualifier.String()
		}
		byErased[id] = append(byErased[id], k)
	}

	ids := make([]string, 0, len(byErased))
	for id := range byErased {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		forked := byErased[id]
		if len(forked) < 2 {
			continue
		}
		sort.Slice(forked, func(i, j int) bool { return forked[i].String() < forked[j].String() })
		var decls []string
		for _, fk := range forked {
			for _, b := range g.OwnBindings(fk) {
				for _, dep := range b.Deps {
					for _, c := range g.Resolved(dep) {
						decls = append(decls, c.Decl)
					}
				}
			}
		}
		v.sink.Report(
			v.severity(g, forked[0], diag.Error),
			diag.IncompatibleBindingsError{Key: forked[0].String(), Declarations: decls},
			forked[0].String(),
			g.Component.Pos,
		)
	}
}

// checkFactoryMethods validates subcomponent factory wiring on the
// component's declared methods.
func (v *validator) checkFactoryMethods(g *graph.Graph) {
	seen := map[string]string{}
	for _, fm := range g.Component.FactoryMethods {
		label := g.Component.Name + "." + fm.Name + "()"
		sub, ok := g.Universe().Component(fm.Subcomponent)
		switch {
		case !ok:
			v.sink.Report(diag.Error,
				diag.SubcomponentWiringError{Factory: label, Reason: "unknown subcomponent " + fm.Subcomponent},
				label, fm.Pos)
		case !sub.Subcomponent:
			v.sink.Report(diag.Error,
				diag.SubcomponentWiringError{Factory: label, Reason: fm.Subcomponent + " is not a subcomponent"},
				label, fm.Pos)
		case sub.HasCreator():
			v.sink.Report(diag.Error,
				diag.SubcomponentWiringError{Factory: label, Reason: fm.Subcomponent + " declares a creator; request the creator instead"},
				label, fm.Pos)
		}
		if prev, dup := seen[fm.Subcomponent]; dup {
			v.sink.Report(diag.Error,
				diag.SubcomponentWiringError{Factory: label, Reason: "duplicate factory method for " + fm.Subcomponent + " (see " + prev + ")"},
				label, fm.Pos)
		}
		seen[fm.Subcomponent] = label
	}
}
