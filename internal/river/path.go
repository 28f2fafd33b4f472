package river

import (
	"strings"
)

// LeafKind tells Apply how the last segment of a field path stores values.
type LeafKind int

const (
	// LeafScalar is a plain column such as "person.name".
	LeafScalar LeafKind = iota
	// LeafScalarArray is a column such as "person.name[]" whose values are
	// split on the session delimiter and accumulated into a list.
	LeafScalarArray
	// LeafObjectArray is a column such as "person.course[name]" that fills one
	// field of a positional array element.
	LeafObjectArray
)

func (k LeafKind) String() string {
	switch k {
	case LeafScalar:
		return "scalar"
	case LeafScalarArray:
		return "scalar array"
	case LeafObjectArray:
		return "object array"
	default:
		return "unknown"
	}
}

// FieldPath is the parsed form of a column name.
//
//	"a.b"       → Segments [a b], Kind LeafScalar
//	"a.b[]"     → Segments [a b], Kind LeafScalarArray
//	"a.b[c]"    → Segments [a b], Kind LeafObjectArray, Subfield c
type FieldPath struct {
	Column   string
	Segments []string
	Kind     LeafKind
	Subfield string
}

// Leaf returns the last segment.
func (p FieldPath) Leaf() string {
	return p.Segments[len(p.Segments)-1]
}

// String renders the path back into column syntax.
func (p FieldPath) String() string {
	s := strings.Join(p.Segments, ".")
	switch p.Kind {
	case LeafScalarArray:
		s += "[]"
	case LeafObjectArray:
		s += "[" + p.Subfield + "]"
	}
	return s
}

// ParsePath parses a column name into a FieldPath. Only the final segment may
// carry a bracket marker.
func ParsePath(column string) (FieldPath, error) {
	if column == "" {
		return FieldPath{}, &FormatError{Column: column, Reason: "empty column name"}
	}
	parts := strings.Split(column, ".")
	p := FieldPath{Column: column, Segments: make([]string, 0, len(parts))}
	for i, part := range parts {
		last := i == len(parts)-1
		open := strings.IndexByte(part, '[')
		if open < 0 {
			if strings.IndexByte(part, ']') >= 0 {
				return FieldPath{}, &FormatError{Column: column, Reason: "unbalanced ']'"}
			}
			if part == "" {
				return FieldPath{}, &FormatError{Column: column, Reason: "empty path segment"}
			}
			p.Segments = append(p.Segments, part)
			continue
		}
		if !last {
			return FieldPath{}, &FormatError{Column: column, Reason: "array marker only allowed on the last segment"}
		}
		name := part[:open]
		if name == "" {
			return FieldPath{}, &FormatError{Column: column, Reason: "array marker without a field name"}
		}
		if strings.IndexByte(name, ']') >= 0 {
			return FieldPath{}, &FormatError{Column: column, Reason: "unbalanced ']'"}
		}
		rest := part[open+1:]
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return FieldPath{}, &FormatError{Column: column, Reason: "unterminated '['"}
		}
		if end != len(rest)-1 {
			return FieldPath{}, &FormatError{Column: column, Reason: "unexpected text after ']'"}
		}
		sub := rest[:end]
		if strings.IndexByte(sub, '[') >= 0 {
			return FieldPath{}, &FormatError{Column: column, Reason: "nested '['"}
		}
		p.Segments = append(p.Segments, name)
		if sub == "" {
			p.Kind = LeafScalarArray
		} else {
			p.Kind = LeafObjectArray
			p.Subfield = sub
		}
	}
	return p, nil
}

// shapeCheck verifies that a set of paths describes one consistent document:
// no path is both a container and a leaf, and a leaf keeps a single kind.
type shapeCheck struct {
	leaves     map[string]FieldPath
	containers map[string]string
}

func newShapeCheck() *shapeCheck {
	return &shapeCheck{
		leaves:     make(map[string]FieldPath),
		containers: make(map[string]string),
	}
}

func (c *shapeCheck) add(p FieldPath) error {
	for i := 1; i < len(p.Segments); i++ {
		prefix := strings.Join(p.Segments[:i], ".")
		if leaf, ok := c.leaves[prefix]; ok {
			return &FormatError{Column: p.Column, Reason: "conflicts with leaf column " + leaf.Column}
		}
		if _, ok := c.containers[prefix]; !ok {
			c.containers[prefix] = p.Column
		}
	}
	full := strings.Join(p.Segments, ".")
	if owner, ok := c.containers[full]; ok {
		return &FormatError{Column: p.Column, Reason: "conflicts with nested column " + owner}
	}
	if prev, ok := c.leaves[full]; ok && prev.Kind != p.Kind {
		return &FormatError{
			Column: p.Column,
			Reason: "declared as " + p.Kind.String() + " but column " + prev.Column + " declares " + prev.Kind.String(),
		}
	}
	if _, ok := c.leaves[full]; !ok {
		c.leaves[full] = p
	}
	return nil
}
