// Package emit renders a generation plan into Go source. The emitter never
// consults the binding graph: everything it needs (shard layout, strategies,
// cross-shard references, construction recipes) is read off the plan, so the
// rendered output is a pure deterministic function of its input.
//
// Generated shape, per component: one struct per shard holding cached
// provider state, a component impl struct (the final shard) embedding the
// others, and one accessor method per planned key. Scoped bindings cache
// through sync.Once; fast-init components route construction through one
// switching function per shard, dispatching on dense integer ids.
package emit

import (
	"go/format"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/alecthomas/errors"

	"github.com/sghaida/loom/binding"
	"github.com/sghaida/loom/key"
	"github.com/sghaida/loom/plan"
)

// File is one rendered source file.
type File struct {
	Name    string
	Content []byte
}

// Generate renders the plan tree into one file per component plus a shared
// helpers file. Output is gofmt-formatted; a plan that renders to unparsable
// source is a bug and reported as an error rather than written out.
func Generate(p *plan.Plan, pkg string) ([]File, error) {
	files := []File{helpersFile(pkg)}
	var walk func(cur *plan.Plan) error
	walk = func(cur *plan.Plan) error {
		f, err := render(cur, pkg)
		if err != nil {
			return err
		}
		files = append(files, f)
		for _, sub := range cur.Subplans {
			if err := walk(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(p); err != nil {
		return nil, err
	}
	return files, nil
}

func render(p *plan.Plan, pkg string) (File, error) {
	r := &renderer{plan: p, imports: newImportSet()}
	data := r.fileData(pkg)
	src := mustExecTemplate(componentTpl, data)
	formatted, err := format.Source(src)
	if err != nil {
		return File{}, errors.Wrapf(err, "emit %s: generated source does not format", p.Component)
	}
	return File{Name: fileName(p.Component), Content: formatted}, nil
}

func helpersFile(pkg string) File {
	src := "// Code generated by loom; DO NOT EDIT.\n\npackage " + pkg + "\n\n" +
		"func ptrOf[T any](v T) *T { return &v }\n"
	formatted, err := format.Source([]byte(src))
	if err != nil {
		panic(err)
	}
	return File{Name: "loom_helpers.gen.go", Content: formatted}
}

func fileName(component string) string {
	var sb strings.Builder
	for i, c := range component {
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(c - 'A' + 'a')
			continue
		}
		sb.WriteRune(c)
	}
	sb.WriteString("_impl.gen.go")
	return sb.String()
}

// renderer carries per-file naming state: field names must be unique within
// a component and stable across runs.
type renderer struct {
	plan    *plan.Plan
	imports *importSet
	fields  map[string]string
	used    map[string]bool
}

type fileData struct {
	Package    string
	Component  string
	Impl       string
	ParentImpl string
	FastInit   bool
	NeedsSync  bool
	Imports    []importSpec
	Modules    []string
	Deps       []storageField
	Bounds     []storageField
	Shards     []shardData
	Entries    []entryData
}

type shardData struct {
	Name           string
	ComponentShard bool
	SwitchEntries  []entryData
	Storage        []storageField
}

type storageField struct {
	Name string
	Type string
}

type entryData struct {
	Field       string
	Type        string
	Strategy    string
	Recv        string
	Cached      bool
	Switching   bool
	SwitchID    int
	SwitchRecv  string
	Placeholder bool
	Construct   string
	Comment     string
}

func (r *renderer) fileData(pkg string) fileData {
	r.fields = map[string]string{}
	r.used = map[string]bool{"parent": true, "ptrOf": true}

	data := fileData{
		Package:   pkg,
		Component: r.plan.Component,
		Impl:      r.plan.Component + "Impl",
		FastInit:  r.plan.FastInit,
	}
	if parent := r.plan.ParentPlan(); parent != nil {
		data.ParentImpl = parent.Component + "Impl"
	}

	// Name every entry first so construction expressions can reference
	// accessors in any shard.
	for _, s := range r.plan.Shards {
		for _, e := range s.Entries {
			r.fieldFor(e.Key)
		}
	}

	moduleSet := map[string]bool{}
	depSet := map[string]string{}
	boundSet := map[string]string{}

	for _, s := range r.plan.Shards {
		sd := shardData{Name: s.Name, ComponentShard: s.ComponentShard}
		recv := "c." + storageName(s)
		if s.ComponentShard {
			recv = "c"
		}
		for _, e := range s.Entries {
			switch e.Binding.Kind {
			case binding.Provision, binding.Production:
				moduleSet[e.Binding.Owner] = true
			case binding.ComponentDependency:
				name := sanitize(e.Binding.Owner)
				if strings.HasSuffix(e.Binding.Decl, "()") {
					if _, ok := depSet[name]; !ok {
						depSet[name] = r.ownerType(e.Binding.Owner)
					}
				} else {
					depSet[name] = r.goType(e.Key.Type)
				}
			case binding.BoundInstance:
				boundSet[boundName(e.Binding)] = r.goType(e.Key.Type)
			}

			ed := entryData{
				Field:       r.fieldFor(e.Key),
				Type:        r.goType(e.Key.Type),
				Strategy:    e.Strategy.String(),
				Recv:        recv,
				Cached:      cached(e),
				Switching:   e.Strategy == plan.Switching,
				SwitchID:    e.SwitchID,
				SwitchRecv:  "get" + exportName(s.Name),
				Placeholder: e.DelegatePlaceholder,
				Construct:   r.construct(e),
				Comment:     e.Binding.Decl,
			}
			if ed.Cached {
				data.NeedsSync = true
				sd.Storage = append(sd.Storage,
					storageField{Name: ed.Field + "Once", Type: "sync.Once"},
					storageField{Name: ed.Field + "Cache", Type: ed.Type},
				)
			}
			if ed.Placeholder {
				sd.Storage = append(sd.Storage,
					storageField{Name: ed.Field + "Delegate", Type: "func() " + ed.Type},
				)
			}
			if ed.Switching {
				sd.SwitchEntries = append(sd.SwitchEntries, ed)
			}
			data.Entries = append(data.Entries, ed)
		}
		data.Shards = append(data.Shards, sd)
	}

	data.Modules = sortedKeys(moduleSet)
	data.Deps = sortedFields(depSet)
	data.Bounds = sortedFields(boundSet)
	data.Imports = r.imports.specs()
	return data
}

// ownerType renders a dependency owner's printed type ("pkg.Name") back into
// Go source, reusing the import table for the package part.
func (r *renderer) ownerType(owner string) string {
	if i := strings.LastIndex(owner, "."); i >= 0 {
		return r.imports.alias(owner[:i]) + "." + owner[i+1:]
	}
	return owner
}

func cached(e *plan.Entry) bool {
	switch e.Strategy {
	case plan.DoubleCheck, plan.SingleCheck:
		return true
	case plan.Switching:
		return e.Binding.Scoped() || e.Binding.Kind == binding.MembersInjection
	default:
		return false
	}
}

func storageName(s *plan.Shard) string {
	return "shard" + strconv.Itoa(s.Index+1)
}

func boundName(b *binding.Binding) string {
	name := b.Decl
	if i := strings.LastIndex(name, "#"); i >= 0 {
		name = name[i+1:]
	}
	return sanitize(name)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedFields(set map[string]string) []storageField {
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]storageField, 0, len(names))
	for _, n := range names {
		out = append(out, storageField{Name: n, Type: set[n]})
	}
	return out
}

// fieldFor derives a stable unexported accessor name from a key,
// disambiguating collisions with a numeric suffix in first-seen order.
func (r *renderer) fieldFor(k key.Key) string {
	id := k.ID()
	if name, ok := r.fields[id]; ok {
		return name
	}
	base := identFrom(k)
	name := base
	for i := 2; r.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	r.used[name] = true
	r.fields[id] = name
	return name
}

func identFrom(k key.Key) string {
	t := k.Type
	name := t.Name
	switch {
	case key.IsSet(t):
		name = "setOf" + t.Args[0].Name
	case key.IsMap(t):
		name = "mapOf" + t.Args[1].Name
	case key.IsOptional(t):
		name = "optional" + t.Args[0].Name
	case t.Pkg == key.FrameworkPkg && len(t.Args) == 1:
		name = "inject" + t.Args[0].Name
	}
	if name == "" {
		name = "value"
	}
	ident := strings.ToLower(name[:1]) + name[1:]
	if k.Qualifier != nil {
		ident += exportName(k.Qualifier.Type)
	}
	if k.Contribution != key.NoContribution {
		ident += "Contrib"
	}
	return sanitize(ident)
}

func sanitize(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return "value"
	}
	return sb.String()
}

func exportName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// goType renders a key type as Go source, registering imports as it goes.
// Framework wrappers lower to native Go shapes: Provider and Lazy become
// niladic funcs, Producer a value-error func, Set a slice, Map a map,
// Optional a pointer and MembersInjector a mutator func.
func (r *renderer) goType(t key.Type) string {
	switch t.Kind {
	case key.KindPrimitive:
		return goPrimitive(t.Name)
	case key.KindArray:
		return "[]" + r.goType(*t.Elem)
	case key.KindError:
		return "any"
	}
	if t.Pkg == key.FrameworkPkg {
		switch {
		case key.IsSet(t):
			return "[]" + r.goType(t.Args[0])
		case key.IsMap(t):
			return "map[" + r.goType(t.Args[0]) + "]" + r.goType(t.Args[1])
		case key.IsOptional(t):
			return "*" + r.goType(t.Args[0])
		case t.Name == "Producer":
			return "func() (" + r.goType(t.Args[0]) + ", error)"
		case t.Name == "MembersInjector":
			return "func(*" + r.goType(t.Args[0]) + ")"
		default:
			// Provider, Lazy, Provider-of-Lazy.
			return "func() " + r.goType(t.Args[0])
		}
	}
	if t.Pkg == "" {
		return t.Name
	}
	return r.imports.alias(t.Pkg) + "." + t.Name
}

func goPrimitive(name string) string {
	switch name {
	case "String":
		return "string"
	case "long":
		return "int64"
	case "double":
		return "float64"
	case "boolean":
		return "bool"
	default:
		return name
	}
}

// construct builds the construction expression for one planned entry. All
// dependency references go through accessor calls so shard and component
// boundaries stay invisible at the use site.
func (r *renderer) construct(e *plan.Entry) string {
	b := e.Binding
	switch b.Kind {
	case binding.Provision, binding.Production:
		return r.callExpr("c.mod"+exportName(b.Owner)+"."+methodOf(b.Decl), b.Deps)
	case binding.Injection:
		t := e.Key.Type
		ctor := "New" + exportName(t.Name)
		if t.Pkg != "" {
			ctor = r.imports.alias(t.Pkg) + "." + ctor
		}
		return r.callExpr(ctor, b.Deps)
	case binding.Delegate:
		if target, ok := b.DelegateTarget(); ok {
			return r.depExpr(target)
		}
		return "nil"
	case binding.MultiboundSet:
		return r.setExpr(e)
	case binding.MultiboundMap:
		return r.mapExpr(e)
	case binding.Optional:
		if !b.OptionalPresent {
			return "nil"
		}
		return "ptrOf(" + r.depExpr(b.Deps[0]) + ")"
	case binding.BoundInstance:
		return "c.bound" + exportName(boundName(b))
	case binding.ComponentInstance:
		return "c"
	case binding.ComponentDependency:
		if strings.HasSuffix(b.Decl, "()") {
			return "c.dep" + exportName(sanitize(b.Owner)) + "." + methodOf(b.Decl) + "()"
		}
		return "c.dep" + exportName(sanitize(b.Owner))
	case binding.SubcomponentCreator:
		return "&" + b.Subcomponent + "Creator{parent: c}"
	case binding.MembersInjection:
		return r.injectorExpr(e)
	default:
		return "nil"
	}
}

func methodOf(decl string) string {
	name := decl
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return exportName(name)
}

func (r *renderer) callExpr(fn string, deps []key.Request) string {
	args := make([]string, 0, len(deps))
	for _, dep := range deps {
		args = append(args, r.depExpr(dep))
	}
	return fn + "(" + strings.Join(args, ", ") + ")"
}

// depExpr renders a dependency reference as an accessor call, wrapping it in
// a closure when the request defers construction.
func (r *renderer) depExpr(dep key.Request) string {
	k := dep.Key
	if dep.Kind == key.MembersInjectionRequest {
		k = key.New(key.MembersInjectorOf(k.Type))
	}
	if dep.Kind.Deferred() {
		return "func() " + r.goType(k.Type) + " { return " + r.accessor(k) + " }"
	}
	return r.accessor(k)
}

func (r *renderer) accessor(k key.Key) string {
	if owner, _, ok := r.plan.Lookup(k); ok && owner != r.plan {
		hops := 0
		for cur := r.plan; cur != nil && cur != owner; cur = cur.ParentPlan() {
			hops++
		}
		return "c" + strings.Repeat(".parent", hops) + "." + r.fieldFor(k) + "()"
	}
	return "c." + r.fieldFor(k) + "()"
}

func (r *renderer) setExpr(e *plan.Entry) string {
	elem := r.goType(e.Key.Type.Args[0])
	var parts []string
	for _, dep := range e.Binding.Deps {
		if dep.Key.Contribution == key.SetValues {
			continue
		}
		parts = append(parts, r.depExpr(dep))
	}
	expr := "[]" + elem + "{" + strings.Join(parts, ", ") + "}"
	for _, dep := range e.Binding.Deps {
		if dep.Key.Contribution == key.SetValues {
			expr = "append(" + expr + ", " + r.depExpr(dep) + "...)"
		}
	}
	return expr
}

func (r *renderer) mapExpr(e *plan.Entry) string {
	t := e.Key.Type
	var pairs []string
	for _, dep := range e.Binding.Deps {
		literal := `""`
		if _, entry, ok := r.plan.Lookup(dep.Key); ok && entry.Binding.MapKey != nil {
			literal = mapKeyLiteral(*entry.Binding.MapKey)
		}
		pairs = append(pairs, literal+": "+r.depExpr(dep))
	}
	sort.Strings(pairs)
	return "map[" + r.goType(t.Args[0]) + "]" + r.goType(t.Args[1]) + "{" + strings.Join(pairs, ", ") + "}"
}

func mapKeyLiteral(ann key.Annotation) string {
	if len(ann.Members) == 1 {
		return ann.Members[0].Value
	}
	return strconv.Quote(ann.String())
}

func (r *renderer) injectorExpr(e *plan.Entry) string {
	target := r.goType(e.Key.Type.Args[0])
	if len(e.Binding.Deps) == 0 {
		return "func(t *" + target + ") {}"
	}
	var sb strings.Builder
	sb.WriteString("func(t *" + target + ") {\n")
	for _, dep := range e.Binding.Deps {
		sb.WriteString("\t\tt." + exportName(identFrom(dep.Key)) + " = " + r.depExpr(dep) + "\n")
	}
	sb.WriteString("\t}")
	return sb.String()
}

// importSet assigns deterministic aliases to package paths.
type importSet struct {
	aliases map[string]string
	used    map[string]bool
}

type importSpec struct {
	Alias string
	Path  string
}

func newImportSet() *importSet {
	return &importSet{aliases: map[string]string{}, used: map[string]bool{"sync": true}}
}

func (s *importSet) alias(path string) string {
	if a, ok := s.aliases[path]; ok {
		return a
	}
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = sanitize(base)
	a := base
	for i := 2; s.used[a]; i++ {
		a = base + strconv.Itoa(i)
	}
	s.used[a] = true
	s.aliases[path] = a
	return a
}

func (s *importSet) specs() []importSpec {
	paths := make([]string, 0, len(s.aliases))
	for p := range s.aliases {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	out := make([]importSpec, 0, len(paths))
	for _, p := range paths {
		out = append(out, importSpec{Alias: s.aliases[p], Path: p})
	}
	return out
}

func mustExecTemplate(tpl *template.Template, data any) []byte {
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		panic(err)
	}
	return []byte(sb.String())
}
