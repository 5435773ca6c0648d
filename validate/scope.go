package validate

import (
	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/diag"
	"github.com/sghaida/loom/graph"
	"github.com/sghaida/loom/key"
)

// checkScopes validates scope annotations on one binding: at most one scope,
// no scope on an inject constructor, and the scope must match a component on
// the owning graph's ancestor chain.
func (v *validator) checkScopes(g *graph.Graph, k key.Key, b *binding.Binding) {
	if len(b.Scopes) > 1 {
		names := make([]string, 0, len(b.Scopes))
		for _, s := range b.Scopes {
			names = append(names, s.String())
		}
		v.sink.Report(
			v.severity(g, k, diag.Error),
			diag.MultipleScopeError{Decl: b.Decl, Scopes: names},
			b.Decl,
			b.Pos,
		)
		return
	}

	if b.Kind == binding.Injection {
		if it, ok := g.Universe().InjectFor(k.Type); ok {
			for _, s := range it.CtorScopes {
				v.sink.Report(
					v.severity(g, k, diag.Error),
					diag.InvalidScopeOnInjectConstructorError{Decl: b.Decl, Scope: s.String()},
					b.Decl,
					b.Pos,
				)
			}
		}
	}

	scope, ok := b.Scope()
	if !ok {
		return
	}
	for lvl := g; lvl != nil; lvl = lvl.Parent {
		for _, cs := range lvl.Component.Scopes {
			if scope.Equal(cs) {
				return
			}
		}
	}
	v.sink.Report(
		v.severity(g, k, diag.Error),
		diag.IncompatibleScopeError{Decl: b.Decl, Scope: scope.String(), Component: g.Component.Name},
		b.Decl,
		b.Pos,
	)
}
