package emit

import "text/template"

var componentTpl = template.Must(
	template.New("component").
		Funcs(template.FuncMap{
			"export": exportName,
			"add1":   func(n int) int { return n + 1 },
		}).
		Parse(`// Code generated by loom; DO NOT EDIT.

package {{.Package}}

{{- if or .NeedsSync .Imports}}

import (
{{- if .NeedsSync}}
	"sync"
{{- end}}
{{- range .Imports}}
	{{.Alias}} "{{.Path}}"
{{- end}}
)
{{- end}}

{{- range .Shards}}
{{- if not .ComponentShard}}

// {{.Name}} holds provider state for one slice of {{$.Component}}'s bindings.
type {{.Name}} struct {
{{- range .Storage}}
	{{.Name}} {{.Type}}
{{- end}}
}
{{- end}}
{{- end}}

// {{.Impl}} is the generated implementation of {{.Component}}.
type {{.Impl}} struct {
{{- if .ParentImpl}}
	parent *{{.ParentImpl}}
{{- end}}
{{- range .Modules}}
	mod{{export .}} {{.}}
{{- end}}
{{- range .Deps}}
	dep{{export .Name}} {{.Type}}
{{- end}}
{{- range .Bounds}}
	bound{{export .Name}} {{.Type}}
{{- end}}
{{- range $i, $s := .Shards}}
{{- if not $s.ComponentShard}}
	shard{{add1 $i}} {{$s.Name}}
{{- end}}
{{- if $s.ComponentShard}}
{{- range $s.Storage}}
	{{.Name}} {{.Type}}
{{- end}}
{{- end}}
{{- end}}
}

{{- range .Entries}}

// {{.Comment}} ({{.Strategy}})
func (c *{{$.Impl}}) {{.Field}}() {{.Type}} {
{{- if .Placeholder}}
	if {{.Recv}}.{{.Field}}Delegate != nil {
		return {{.Recv}}.{{.Field}}Delegate()
	}
{{- end}}
{{- if and .Cached .Switching}}
	{{.Recv}}.{{.Field}}Once.Do(func() {
		{{.Recv}}.{{.Field}}Cache = c.{{.SwitchRecv}}({{.SwitchID}}).({{.Type}})
	})
	return {{.Recv}}.{{.Field}}Cache
{{- else if .Cached}}
	{{.Recv}}.{{.Field}}Once.Do(func() {
		{{.Recv}}.{{.Field}}Cache = {{.Construct}}
	})
	return {{.Recv}}.{{.Field}}Cache
{{- else if .Switching}}
	return c.{{.SwitchRecv}}({{.SwitchID}}).({{.Type}})
{{- else}}
	return {{.Construct}}
{{- end}}
}
{{- end}}

{{- range .Shards}}
{{- if .SwitchEntries}}

// {{.Name}}'s switching provider dispatches construction on dense ids.
func (c *{{$.Impl}}) get{{export .Name}}(id int) any {
	switch id {
{{- range .SwitchEntries}}
	case {{.SwitchID}}:
		return {{.Construct}}
{{- end}}
	}
	return nil
}
{{- end}}
{{- end}}

{{- if .ParentImpl}}

// {{.Component}}Creator assembles a {{.Impl}} under its parent component.
type {{.Component}}Creator struct {
	parent *{{.ParentImpl}}
{{- range .Bounds}}
	bound{{export .Name}} {{.Type}}
{{- end}}
}
{{- range .Bounds}}

func (cr *{{$.Component}}Creator) Set{{export .Name}}(v {{.Type}}) *{{$.Component}}Creator {
	cr.bound{{export .Name}} = v
	return cr
}
{{- end}}

func (cr *{{.Component}}Creator) Build() *{{.Impl}} {
	return &{{.Impl}}{
		parent: cr.parent,
{{- range .Bounds}}
		bound{{export .Name}}: cr.bound{{export .Name}},
{{- end}}
	}
}
{{- end}}
`))
