package loader

import (
	"strings"

	"github.com/sghaida/loom/key"
)

// directive is one parsed //loom: comment: its verb plus arguments in
// declaration order. Arguments are either flags ("intoSet") or pairs
// ("scope=Singleton"); pair names may repeat.
type directive struct {
	Verb string
	Args []arg
}

type arg struct {
	Name  string
	Value string
}

const directivePrefix = "//loom:"

// parseDirective recognizes a loom directive comment line. Anything else,
// including regular comments that merely mention loom, parses as not-ok.
func parseDirective(comment string) (directive, bool) {
	if !strings.HasPrefix(comment, directivePrefix) {
		return directive{}, false
	}
	rest := comment[len(directivePrefix):]
	fields := splitArgs(rest)
	if len(fields) == 0 || fields[0] == "" {
		return directive{}, false
	}
	d := directive{Verb: fields[0]}
	for _, f := range fields[1:] {
		if i := strings.IndexByte(f, '='); i >= 0 {
			d.Args = append(d.Args, arg{Name: f[:i], Value: f[i+1:]})
			continue
		}
		d.Args = append(d.Args, arg{Name: f})
	}
	return d, true
}

// splitArgs splits on spaces at the top level, keeping quoted strings and
// parenthesized annotation arguments intact ("qualifier=Named(\"db\")" is one
// field).
func splitArgs(s string) []string {
	var fields []string
	var sb strings.Builder
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quoted:
			sb.WriteByte(c)
			if c == '"' {
				quoted = false
			}
		case c == '"':
			sb.WriteByte(c)
			quoted = true
		case c == '(':
			depth++
			sb.WriteByte(c)
		case c == ')':
			depth--
			sb.WriteByte(c)
		case c == ' ' && depth == 0:
			if sb.Len() > 0 {
				fields = append(fields, sb.String())
				sb.Reset()
			}
		default:
			sb.WriteByte(c)
		}
	}
	if sb.Len() > 0 {
		fields = append(fields, sb.String())
	}
	return fields
}

// has reports whether a flag argument is present.
func (d directive) has(name string) bool {
	for _, a := range d.Args {
		if a.Name == name && a.Value == "" {
			return true
		}
	}
	return false
}

// value returns the first value of a pair argument.
func (d directive) value(name string) (string, bool) {
	for _, a := range d.Args {
		if a.Name == name && a.Value != "" {
			return a.Value, true
		}
	}
	return "", false
}

// values returns every value of a repeatable pair argument, with
// comma-separated values flattened ("modules=A,B modules=C" yields A, B, C).
func (d directive) values(name string) []string {
	var out []string
	for _, a := range d.Args {
		if a.Name != name || a.Value == "" {
			continue
		}
		for _, v := range strings.Split(a.Value, ",") {
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// annotations parses every value of a repeatable argument as an annotation.
func (d directive) annotations(name string) []key.Annotation {
	var out []key.Annotation
	for _, a := range d.Args {
		if a.Name == name && a.Value != "" {
			out = append(out, parseAnnotation(a.Value))
		}
	}
	return out
}

// annotation parses the first value of an argument as an annotation.
func (d directive) annotation(name string) *key.Annotation {
	v, ok := d.value(name)
	if !ok {
		return nil
	}
	ann := parseAnnotation(v)
	return &ann
}

// parseAnnotation reads an annotation literal: a bare marker ("Singleton"),
// a single positional member ("Named(\"db\")", recorded under "value"), or
// explicit members ("RouteKey(path=\"home\", depth=2)"). Member values keep
// their literal spelling, quotes included.
func parseAnnotation(s string) key.Annotation {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return key.Marker(s)
	}
	typ := s[:open]
	body := strings.TrimSuffix(s[open+1:], ")")
	members := map[string]string{}
	for _, part := range splitMembers(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '='); i >= 0 && !strings.HasPrefix(part, `"`) {
			members[strings.TrimSpace(part[:i])] = strings.TrimSpace(part[i+1:])
			continue
		}
		members["value"] = part
	}
	return key.NewAnnotation(typ, members)
}

// splitMembers splits an annotation body on top-level commas.
func splitMembers(s string) []string {
	var parts []string
	var sb strings.Builder
	quoted := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			quoted = !quoted
			sb.WriteByte(c)
		case c == ',' && !quoted:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	if sb.Len() > 0 {
		parts = append(parts, sb.String())
	}
	return parts
}

// docDirectives extracts the loom directives from a doc comment block.
func docDirectives(lines []string) []directive {
	var out []directive
	for _, line := range lines {
		if d, ok := parseDirective(strings.TrimSpace(line)); ok {
			out = append(out, d)
		}
	}
	return out
}
