package key

import (
	"sort"
	"strings"
)

// Annotation is a canonicalized annotation value: a type name plus member
// assignments sorted by member name. Two annotations are equal iff their
// canonical forms are equal, independent of declaration order.
type Annotation struct {
	Type    string
	Members []Member
}

// Member is one name=value pair of an annotation.
type Member struct {
	Name  string
	Value string
}

// NewAnnotation canonicalizes an annotation from a member map.
func NewAnnotation(typ string, members map[string]string) Annotation {
	a := Annotation{Type: typ}
	for name, value := range members {
		a.Members = append(a.Members, Member{Name: name, Value: value})
	}
	sort.Slice(a.Members, func(i, j int) bool { return a.Members[i].Name < a.Members[j].Name })
	return a
}

// Marker constructs a member-less annotation.
func Marker(typ string) Annotation {
	return Annotation{Type: typ}
}

// Equal reports canonical equality.
func (a Annotation) Equal(o Annotation) bool {
	if a.Type != o.Type || len(a.Members) != len(o.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i] != o.Members[i] {
			return false
		}
	}
	return true
}

// String renders the canonical form, e.g. @StringKey(value="A").
func (a Annotation) String() string {
	var sb strings.Builder
	sb.WriteString("@")
	sb.WriteString(a.Type)
	if len(a.Members) > 0 {
		sb.WriteString("(")
		for i, m := range a.Members {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(m.Name)
			sb.WriteString("=")
			sb.WriteString(m.Value)
		}
		sb.WriteString(")")
	}
	return sb.String()
}
