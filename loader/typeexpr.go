package loader

import (
	"go/ast"

	"github.com/sghaida/loom/key"
)

// resolver maps source identifiers to package paths for one file.
type resolver struct {
	// pkgPath is the declaring package of unqualified identifiers.
	pkgPath string

	// imports maps local import names to import paths.
	imports map[string]string
}

func newResolver(pkgPath string, file *ast.File) *resolver {
	r := &resolver{pkgPath: pkgPath, imports: map[string]string{}}
	for _, imp := range file.Imports {
		path := imp.Path.Value
		path = path[1 : len(path)-1]
		name := path
		if i := lastSlash(path); i >= 0 {
			name = path[i+1:]
		}
		if imp.Name != nil {
			name = imp.Name.Name
		}
		r.imports[name] = path
	}
	return r
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

var goPrimitives = map[string]bool{
	"bool": true, "string": true, "byte": true, "rune": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"uintptr": true, "any": true,
}

// typeOf converts a source type expression into a type descriptor. Pointers
// unwrap to their element: the element model deals in values, and the emitter
// reintroduces indirection where a strategy needs it. Collection shapes map
// to the framework collection keys the emitter lowers back to Go shapes, so
// []T requests the Set of T and map[K]V the Map of K to V. Niladic func types
// map to framework wrappers so parameter lists can request deferred
// construction: func() T is a Provider of T, func() (T, error) a Producer
// of T.
func (r *resolver) typeOf(expr ast.Expr) key.Type {
	switch e := expr.(type) {
	case *ast.Ident:
		if goPrimitives[e.Name] {
			return key.Primitive(e.Name)
		}
		return key.Named(r.pkgPath, e.Name)
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok {
			return key.ErrorRef(render(expr))
		}
		path, ok := r.imports[pkg.Name]
		if !ok {
			return key.ErrorRef(render(expr))
		}
		return key.Named(path, e.Sel.Name)
	case *ast.StarExpr:
		return r.typeOf(e.X)
	case *ast.ArrayType:
		return key.SetOf(r.typeOf(e.Elt))
	case *ast.MapType:
		return key.MapOf(r.typeOf(e.Key), r.typeOf(e.Value))
	case *ast.FuncType:
		return r.funcTypeOf(e)
	case *ast.IndexExpr:
		base := r.typeOf(e.X)
		base.Args = []key.Type{r.typeOf(e.Index)}
		return base
	case *ast.IndexListExpr:
		base := r.typeOf(e.X)
		for _, idx := range e.Indices {
			base.Args = append(base.Args, r.typeOf(idx))
		}
		return base
	default:
		return key.ErrorRef(render(expr))
	}
}

func (r *resolver) funcTypeOf(e *ast.FuncType) key.Type {
	if e.Params != nil && len(e.Params.List) > 0 {
		return key.ErrorRef(render(e))
	}
	results := fieldTypes(e.Results)
	switch len(results) {
	case 1:
		return key.ProviderOf(r.typeOf(results[0]))
	case 2:
		if ident, ok := results[1].(*ast.Ident); ok && ident.Name == "error" {
			return key.ProducerOf(r.typeOf(results[0]))
		}
	}
	return key.ErrorRef(render(e))
}

func fieldTypes(fl *ast.FieldList) []ast.Expr {
	if fl == nil {
		return nil
	}
	var out []ast.Expr
	for _, f := range fl.List {
		n := len(f.Names)
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, f.Type)
		}
	}
	return out
}

// render prints an expression the way diagnostics quote it.
func render(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return render(e.X) + "." + e.Sel.Name
	case *ast.StarExpr:
		return "*" + render(e.X)
	case *ast.ArrayType:
		return "[]" + render(e.Elt)
	case *ast.MapType:
		return "map[" + render(e.Key) + "]" + render(e.Value)
	case *ast.IndexExpr:
		return render(e.X) + "[" + render(e.Index) + "]"
	case *ast.FuncType:
		return "func"
	default:
		return "<expr>"
	}
}
