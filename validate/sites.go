package validate

import (
	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// checkInjectionSites validates the members-injection sites behind an
// injection or members-injection binding. Generated code assigns fields and
// calls methods directly, so a site the generated package cannot reach, or
// one the language forbids assigning, is reported here rather than failing
// at generation time. Findings are deduplicated per type and site because
// the same type may be bound in several components.
func (v *validator) checkInjectionSites(g *graph.Graph, k key.Key, b *binding.Binding) {
	if b.Kind != binding.Injection && b.Kind != binding.MembersInjection {
		return
	}
	t := k.Type
	if b.Kind == binding.MembersInjection {
		if inner, ok := injectorTarget(t); ok {
			t = inner
		}
	}
	it, ok := g.Universe().InjectFor(t)
	if !ok {
		return
	}
	for _, site := range g.Universe().InjectionSites(it) {
		v.checkSite(g, k, it, site)
	}
}

func injectorTarget(t key.Type) (key.Type, bool) {
	if t.Kind == key.KindNamed && t.Pkg == key.FrameworkPkg && len(t.Args) == 1 {
		return t.Args[0], true
	}
	return t, false
}

func (v *validator) checkSite(g *graph.Graph, k key.Key, it *model.InjectType, site model.InjectionSite) {
	label := it.Type.String() + "." + site.Name
	if v.siteSeen[label] {
		return
	}
	v.siteSeen[label] = true

	report := func(sev diag.Severity, reason string) {
		v.sink.Report(
			v.severity(g, k, sev),
			diag.InvalidInjectionSiteError{Site: label, Reason: reason},
			label,
			site.Pos,
		)
	}

	switch {
	case site.Field && site.Final:
		report(diag.Error, "a final field")
	case !site.Field && site.Abstract:
		report(diag.Error, "an abstract method")
	case site.Inner:
		report(diag.Error, "a member of a non-static inner class")
	case site.Private:
		report(v.opts.PrivateMemberValidation, "a private member")
	case site.Static:
		report(v.opts.StaticMemberValidation, "a static member")
	}
}
