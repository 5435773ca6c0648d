// Package loader builds the element model from annotated Go source.
//
// Declarations opt in through loom directive comments: //loom:module on a
// module struct, //loom:provides and //loom:binds on its methods,
// //loom:component and //loom:subcomponent on component interfaces,
// //loom:creator on a subcomponent builder interface and //loom:inject on
// injectable types and their constructors. The loader is purely syntactic;
// references it cannot resolve within the loaded packages are recorded as
// missing so the round driver can defer and retry after generation.
package loader

import (
	"context"
	"go/ast"
	"go/token"
	"reflect"
	"strings"

	"github.com/alecthomas/errors"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/model"
)

// Loader scans Go packages into a Universe.
type Loader struct {
	log *zap.Logger
}

// New returns a loader logging through log; a nil logger is replaced with a
// no-op one.
func New(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// Load scans the packages matched by patterns, rooted at dir, into a fresh
// Universe. Packages that fail to load do not abort the scan: references into
// them are marked missing so a later round can resolve them against generated
// output.
func (l *Loader) Load(ctx context.Context, dir string, patterns ...string) (*model.Universe, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedSyntax | packages.NeedImports,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Wrap(err, "load packages")
	}

	s := newScanner(l.log)
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			s.failed[pkg.PkgPath] = true
			l.log.Warn("package failed to load",
				zap.String("package", pkg.PkgPath),
				zap.Int("errors", len(pkg.Errors)))
			continue
		}
		s.scanPackage(pkg)
	}
	s.finish()

	l.log.Info("loaded element model",
		zap.Int("packages", len(pkgs)),
		zap.Int("modules", len(s.modules)),
		zap.Int("components", len(s.components)),
		zap.Int("injects", len(s.injects)))
	return s.u, nil
}

// scanner accumulates declarations across packages, then links them in
// finish: creators to their components, factory methods to subcomponents and
// unresolved references to the missing set.
type scanner struct {
	log *zap.Logger
	u   *model.Universe

	scanned  map[string]bool
	failed   map[string]bool
	declared map[string]bool

	modules    map[string]*model.Module
	components map[string]*model.Component
	injects    map[string]*model.InjectType

	// componentIfaces holds raw component methods for classification once
	// every component name is known.
	componentIfaces []componentIface

	// creators maps a component name to its declared creator interface.
	creators map[string]creatorIface

	referenced []key.Type
}

type componentIface struct {
	comp    *model.Component
	methods []ifaceMethod
}

type ifaceMethod struct {
	name      string
	params    []model.Param
	pointer   bool
	result    *key.Type
	qualifier *key.Annotation
	pos       model.Position
}

type creatorIface struct {
	typ    key.Type
	bounds []model.Param
}

func newScanner(log *zap.Logger) *scanner {
	return &scanner{
		log:        log,
		u:          model.NewUniverse(),
		scanned:    map[string]bool{},
		failed:     map[string]bool{},
		declared:   map[string]bool{},
		modules:    map[string]*model.Module{},
		components: map[string]*model.Component{},
		injects:    map[string]*model.InjectType{},
		creators:   map[string]creatorIface{},
	}
}

func (s *scanner) scanPackage(pkg *packages.Package) {
	s.scanned[pkg.PkgPath] = true
	for _, file := range pkg.Syntax {
		r := newResolver(pkg.PkgPath, file)
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				if d.Tok != token.TYPE {
					continue
				}
				for _, spec := range d.Specs {
					ts, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					s.declared[pkg.PkgPath+"."+ts.Name.Name] = true
					s.scanType(pkg, r, d, ts)
				}
			case *ast.FuncDecl:
				s.scanFunc(pkg, r, d)
			}
		}
	}
}

func declDoc(gen *ast.GenDecl, ts *ast.TypeSpec) []string {
	doc := ts.Doc
	if doc == nil {
		doc = gen.Doc
	}
	if doc == nil {
		return nil
	}
	lines := make([]string, 0, len(doc.List))
	for _, c := range doc.List {
		lines = append(lines, c.Text)
	}
	return lines
}

func funcDoc(fn *ast.FuncDecl) []string {
	if fn.Doc == nil {
		return nil
	}
	lines := make([]string, 0, len(fn.Doc.List))
	for _, c := range fn.Doc.List {
		lines = append(lines, c.Text)
	}
	return lines
}

func (s *scanner) scanType(pkg *packages.Package, r *resolver, gen *ast.GenDecl, ts *ast.TypeSpec) {
	for _, d := range docDirectives(declDoc(gen, ts)) {
		switch d.Verb {
		case "module":
			s.addModule(ts, d)
		case "component", "subcomponent":
			s.addComponent(pkg, r, ts, d)
		case "creator":
			s.addCreator(r, ts, d)
		case "inject":
			s.addInject(pkg, r, ts, d)
		}
	}
}

func (s *scanner) addModule(ts *ast.TypeSpec, d directive) {
	m := &model.Module{
		Name:          ts.Name.Name,
		Includes:      d.values("includes"),
		Subcomponents: d.values("subcomponents"),
	}
	s.modules[m.Name] = m
	s.u.AddModule(m)
	s.log.Debug("module", zap.String("name", m.Name))
}

func (s *scanner) addComponent(pkg *packages.Package, r *resolver, ts *ast.TypeSpec, d directive) {
	comp := &model.Component{
		Name:         ts.Name.Name,
		Type:         key.Named(pkg.PkgPath, ts.Name.Name),
		Subcomponent: d.Verb == "subcomponent",
		Scopes:       d.annotations("scope"),
		Modules:      d.values("modules"),
		Pos:          s.pos(pkg, ts.Pos()),
	}
	for _, dep := range d.values("deps") {
		comp.Dependencies = append(comp.Dependencies, model.Dependency{Type: s.note(parseTypeRef(r, dep))})
	}

	ci := componentIface{comp: comp}
	if iface, ok := ts.Type.(*ast.InterfaceType); ok {
		for _, f := range iface.Methods.List {
			if len(f.Names) == 0 {
				continue
			}
			sig, ok := f.Type.(*ast.FuncType)
			if !ok {
				continue
			}
			ci.methods = append(ci.methods, s.ifaceMethod(pkg, r, f.Names[0].Name, f, sig))
		}
	}
	s.componentIfaces = append(s.componentIfaces, ci)
	s.components[comp.Name] = comp
	s.u.AddComponent(comp)
	s.log.Debug("component", zap.String("name", comp.Name), zap.Bool("subcomponent", comp.Subcomponent))
}

func (s *scanner) ifaceMethod(pkg *packages.Package, r *resolver, name string, f *ast.Field, sig *ast.FuncType) ifaceMethod {
	m := ifaceMethod{name: name, pos: s.pos(pkg, f.Pos())}
	for _, d := range docDirectives(fieldDoc(f)) {
		if d.Verb == "entry" {
			m.qualifier = d.annotation("qualifier")
		}
	}
	m.params = s.paramsOf(r, sig.Params)
	if sig.Params != nil {
		for _, p := range sig.Params.List {
			if _, ok := p.Type.(*ast.StarExpr); ok {
				m.pointer = true
			}
		}
	}
	if results := fieldTypes(sig.Results); len(results) == 1 {
		t := s.note(r.typeOf(results[0]))
		m.result = &t
	}
	return m
}

func fieldDoc(f *ast.Field) []string {
	if f.Doc == nil {
		return nil
	}
	lines := make([]string, 0, len(f.Doc.List))
	for _, c := range f.Doc.List {
		lines = append(lines, c.Text)
	}
	return lines
}

func (s *scanner) addCreator(r *resolver, ts *ast.TypeSpec, d directive) {
	target, ok := d.value("for")
	if !ok {
		return
	}
	ci := creatorIface{typ: key.Named(r.pkgPath, ts.Name.Name)}
	iface, ok := ts.Type.(*ast.InterfaceType)
	if !ok {
		return
	}
	for _, f := range iface.Methods.List {
		if len(f.Names) == 0 {
			continue
		}
		sig, ok := f.Type.(*ast.FuncType)
		if !ok {
			continue
		}
		params := fieldTypes(sig.Params)
		if len(params) != 1 {
			continue
		}
		name := strings.TrimPrefix(f.Names[0].Name, "Set")
		ci.bounds = append(ci.bounds, model.Param{
			Name: lowerFirst(name),
			Type: s.note(r.typeOf(params[0])),
		})
	}
	s.creators[target] = ci
}

func (s *scanner) addInject(pkg *packages.Package, r *resolver, ts *ast.TypeSpec, d directive) {
	it := &model.InjectType{
		Type:   key.Named(pkg.PkgPath, ts.Name.Name),
		Scopes: d.annotations("scope"),
		Pos:    s.pos(pkg, ts.Pos()),
	}
	if via, ok := d.value("accessibleVia"); ok {
		it.AccessibleVia = via
	}
	if st, ok := ts.Type.(*ast.StructType); ok {
		s.injectFields(r, it, st)
	}
	s.injects[it.ID()] = it
	s.u.AddInject(it)
	s.log.Debug("inject type", zap.String("type", it.ID()))
}

// injectFields collects field injection sites from struct tags and the
// supertype link from the first embedded named type.
func (s *scanner) injectFields(r *resolver, it *model.InjectType, st *ast.StructType) {
	for _, f := range st.Fields.List {
		if len(f.Names) == 0 {
			if it.Supertype == "" {
				it.Supertype = s.note(r.typeOf(f.Type)).String()
			}
			continue
		}
		qualifier, ok := injectTag(f.Tag)
		if !ok {
			continue
		}
		for _, name := range f.Names {
			it.Fields = append(it.Fields, model.InjectionSite{
				Name:      name.Name,
				Type:      s.note(r.typeOf(f.Type)),
				Qualifier: qualifier,
				Field:     true,
				Private:   !ast.IsExported(name.Name),
			})
		}
	}
}

// injectTag recognizes a `loom:"inject"` struct tag, with an optional
// qualifier option: `loom:"inject,Named(\"db\")"`.
func injectTag(tag *ast.BasicLit) (*key.Annotation, bool) {
	if tag == nil {
		return nil, false
	}
	raw := strings.Trim(tag.Value, "`")
	value, ok := reflect.StructTag(raw).Lookup("loom")
	if !ok {
		return nil, false
	}
	parts := strings.SplitN(value, ",", 2)
	if parts[0] != "inject" {
		return nil, false
	}
	if len(parts) == 2 && parts[1] != "" {
		ann := parseAnnotation(parts[1])
		return &ann, true
	}
	return nil, true
}

func (s *scanner) scanFunc(pkg *packages.Package, r *resolver, fn *ast.FuncDecl) {
	dirs := docDirectives(funcDoc(fn))
	if len(dirs) == 0 {
		return
	}
	if fn.Recv != nil {
		s.scanMethod(pkg, r, fn, dirs)
		return
	}
	// A free function directive marks an injectable constructor.
	for _, d := range dirs {
		if d.Verb == "inject" {
			s.addCtor(pkg, r, fn, d)
		}
	}
}

func (s *scanner) scanMethod(pkg *packages.Package, r *resolver, fn *ast.FuncDecl, dirs []directive) {
	recv := receiverName(fn)
	m, ok := s.modules[recv]
	if !ok {
		// Methods may precede their module declaration within a package;
		// register the module shell on first sight.
		m = &model.Module{Name: recv}
		s.modules[recv] = m
		s.u.AddModule(m)
	}
	for _, d := range dirs {
		switch d.Verb {
		case "provides":
			s.addProvision(pkg, r, m, fn, d)
		case "binds":
			s.addDelegate(pkg, r, m, fn, d)
		case "multibinds":
			s.addMultibind(pkg, r, m, fn, d)
		case "optional":
			s.addOptionalBind(pkg, r, m, fn, d)
		}
	}
}

func receiverName(fn *ast.FuncDecl) string {
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	if ident, ok := t.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

func (s *scanner) addProvision(pkg *packages.Package, r *resolver, m *model.Module, fn *ast.FuncDecl, d directive) {
	results := fieldTypes(fn.Type.Results)
	if len(results) == 0 {
		return
	}
	p := model.Provision{
		Module:       m.Name,
		Method:       fn.Name.Name,
		Type:         s.note(r.typeOf(results[0])),
		Qualifier:    d.annotation("qualifier"),
		Scopes:       d.annotations("scope"),
		Production:   d.has("production") || len(results) == 2,
		Contribution: contributionOf(d),
		MapKey:       d.annotation("mapKey"),
		Params:       s.paramsOf(r, fn.Type.Params),
		Pos:          s.pos(pkg, fn.Pos()),
	}
	m.Provides = append(m.Provides, p)
}

func (s *scanner) addDelegate(pkg *packages.Package, r *resolver, m *model.Module, fn *ast.FuncDecl, d directive) {
	results := fieldTypes(fn.Type.Results)
	params := s.paramsOf(r, fn.Type.Params)
	if len(results) == 0 || len(params) != 1 {
		return
	}
	m.Binds = append(m.Binds, model.Delegate{
		Module:       m.Name,
		Method:       fn.Name.Name,
		Type:         s.note(r.typeOf(results[0])),
		Qualifier:    d.annotation("qualifier"),
		Scopes:       d.annotations("scope"),
		Contribution: contributionOf(d),
		MapKey:       d.annotation("mapKey"),
		Target:       params[0],
		Pos:          s.pos(pkg, fn.Pos()),
	})
}

func (s *scanner) addMultibind(pkg *packages.Package, r *resolver, m *model.Module, fn *ast.FuncDecl, d directive) {
	results := fieldTypes(fn.Type.Results)
	if len(results) == 0 {
		return
	}
	collection := s.note(collectionType(r.typeOf(results[0])))
	m.Multibinds = append(m.Multibinds, model.Multibind{
		Module:     m.Name,
		Method:     fn.Name.Name,
		Collection: collection,
		Qualifier:  d.annotation("qualifier"),
		Pos:        s.pos(pkg, fn.Pos()),
	})
}

// collectionType maps a declared multibind result onto the aggregated
// framework collection key; a non-collection result declares the empty set of
// that element type.
func collectionType(t key.Type) key.Type {
	if key.IsMap(t) || key.IsSet(t) {
		return t
	}
	return key.SetOf(t)
}

func (s *scanner) addOptionalBind(pkg *packages.Package, r *resolver, m *model.Module, fn *ast.FuncDecl, d directive) {
	results := fieldTypes(fn.Type.Results)
	if len(results) == 0 {
		return
	}
	m.OptionalBinds = append(m.OptionalBinds, model.OptionalBind{
		Module:    m.Name,
		Method:    fn.Name.Name,
		Type:      s.note(r.typeOf(results[0])),
		Qualifier: d.annotation("qualifier"),
		Pos:       s.pos(pkg, fn.Pos()),
	})
}

// addCtor attaches an injectable constructor to its type, creating the
// InjectType entry when the type declaration carries no directive of its own.
func (s *scanner) addCtor(pkg *packages.Package, r *resolver, fn *ast.FuncDecl, d directive) {
	results := fieldTypes(fn.Type.Results)
	if len(results) == 0 {
		return
	}
	t := s.note(r.typeOf(results[0]))
	it, ok := s.injects[t.String()]
	if !ok {
		it = &model.InjectType{Type: t, Pos: s.pos(pkg, fn.Pos())}
		s.injects[it.ID()] = it
		s.u.AddInject(it)
	}
	it.HasCtor = true
	it.CtorParams = s.paramsOf(r, fn.Type.Params)
	it.CtorScopes = d.annotations("scope")
}

func (s *scanner) paramsOf(r *resolver, fl *ast.FieldList) []model.Param {
	if fl == nil {
		return nil
	}
	var out []model.Param
	for _, f := range fl.List {
		var qualifier *key.Annotation
		for _, d := range docDirectives(fieldDoc(f)) {
			if d.Verb == "qualified" {
				qualifier = d.annotation("with")
			}
		}
		t := s.note(r.typeOf(f.Type))
		if len(f.Names) == 0 {
			out = append(out, model.Param{Type: t, Qualifier: qualifier})
			continue
		}
		for _, name := range f.Names {
			out = append(out, model.Param{Name: name.Name, Type: t, Qualifier: qualifier})
		}
	}
	return out
}

func contributionOf(d directive) model.Contribution {
	switch {
	case d.has("intoSet"):
		return model.IntoSet
	case d.has("elementsIntoSet"):
		return model.ElementsIntoSet
	case d.has("intoMap"):
		return model.IntoMap
	default:
		return model.ContributesNone
	}
}

// parseTypeRef resolves a "pkg.Name" or "Name" directive argument against the
// file's imports.
func parseTypeRef(r *resolver, ref string) key.Type {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		if path, ok := r.imports[ref[:i]]; ok {
			return key.Named(path, ref[i+1:])
		}
		return key.ErrorRef(ref)
	}
	return key.Named(r.pkgPath, ref)
}

// finish links creators and factory methods now that every declaration has
// been seen, then marks unresolved references missing.
func (s *scanner) finish() {
	for name, cr := range s.creators {
		comp, ok := s.components[name]
		if !ok {
			continue
		}
		comp.CreatorType = cr.typ
		comp.BoundInstances = cr.bounds
	}

	for _, ci := range s.componentIfaces {
		s.linkMethods(ci)
	}

	for _, t := range s.referenced {
		if s.unresolved(t) {
			s.u.MarkMissing(t.String())
		}
	}
}

// linkMethods classifies a component interface's methods: a result naming a
// declared subcomponent is a factory method, a single pointer parameter with
// no result is a members-injection entry point, anything with a result is a
// provision entry point.
func (s *scanner) linkMethods(ci componentIface) {
	for _, m := range ci.methods {
		if m.result != nil {
			if sub, ok := s.components[m.result.Name]; ok && sub.Subcomponent {
				ci.comp.FactoryMethods = append(ci.comp.FactoryMethods, model.FactoryMethod{
					Name:         m.name,
					Subcomponent: sub.Name,
					Params:       m.params,
					Pos:          m.pos,
				})
				if !contains(ci.comp.Subcomponents, sub.Name) {
					ci.comp.Subcomponents = append(ci.comp.Subcomponents, sub.Name)
				}
				continue
			}
			if cr, ok := s.creatorFor(*m.result); ok {
				if !contains(ci.comp.Subcomponents, cr) {
					ci.comp.Subcomponents = append(ci.comp.Subcomponents, cr)
				}
			}
			ci.comp.EntryPoints = append(ci.comp.EntryPoints, model.EntryPoint{
				Method:    m.name,
				Type:      *m.result,
				Qualifier: m.qualifier,
				Pos:       m.pos,
			})
			continue
		}
		if len(m.params) == 1 && m.pointer {
			ci.comp.EntryPoints = append(ci.comp.EntryPoints, model.EntryPoint{
				Method:  m.name,
				Type:    m.params[0].Type,
				Members: true,
				Pos:     m.pos,
			})
		}
	}
}

// creatorFor reports which subcomponent a creator type belongs to.
func (s *scanner) creatorFor(t key.Type) (string, bool) {
	for name, cr := range s.creators {
		if cr.typ.Equal(t) {
			return name, true
		}
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// note records a referenced type for the unresolved-reference pass and
// returns it unchanged.
func (s *scanner) note(t key.Type) key.Type {
	s.referenced = append(s.referenced, t)
	for _, a := range t.Args {
		s.note(a)
	}
	if t.Elem != nil {
		s.note(*t.Elem)
	}
	return t
}

// unresolved reports whether a named reference falls inside the scanned (or
// failed) package set without a matching declaration. References into
// packages outside the load set are presumed resolvable by the Go toolchain.
func (s *scanner) unresolved(t key.Type) bool {
	if t.Kind != key.KindNamed || t.Pkg == key.FrameworkPkg {
		return false
	}
	if s.failed[t.Pkg] {
		return true
	}
	return s.scanned[t.Pkg] && !s.declared[t.Pkg+"."+t.Name]
}

func (s *scanner) pos(pkg *packages.Package, p token.Pos) model.Position {
	position := pkg.Fset.Position(p)
	return model.Position{File: position.Filename, Line: position.Line}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
