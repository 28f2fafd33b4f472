package river

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NodeKind is the variant held by a Node.
type NodeKind int

const (
	KindScalar NodeKind = iota
	KindList
	KindMap
	KindObjectList
)

func (k NodeKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindObjectList:
		return "object list"
	default:
		return "unknown"
	}
}

// Object is one element of an object list, keyed by subfield in arrival order.
type Object = orderedmap.OrderedMap[string, string]

// Node is one value of an in-progress document. Exactly one of the variant
// fields is meaningful, selected by kind. All containers keep insertion order.
type Node struct {
	kind NodeKind

	scalar  string
	list    []string
	fields  *orderedmap.OrderedMap[string, *Node]
	objects []*Object

	// arrayLeaf marks lists declared with "name[]" as opposed to lists produced
	// by promotion; only they are affected by singleton collapsing.
	arrayLeaf bool
	// lastRow is the row sequence that last wrote into an object list.
	lastRow uint64
}

// NewMap returns an empty map node, the root of every document.
func NewMap() *Node {
	return &Node{kind: KindMap, fields: orderedmap.New[string, *Node]()}
}

func newScalar(v string) *Node { return &Node{kind: KindScalar, scalar: v} }

func newArrayLeaf() *Node { return &Node{kind: KindList, arrayLeaf: true} }

func newObjectList() *Node { return &Node{kind: KindObjectList} }

// Kind reports the variant held by n.
func (n *Node) Kind() NodeKind { return n.kind }

// Scalar returns the value of a scalar node.
func (n *Node) Scalar() string { return n.scalar }

// List returns the values of a list node in first-seen order.
func (n *Node) List() []string { return n.list }

// Objects returns the elements of an object list in row order.
func (n *Node) Objects() []*Object { return n.objects }

// Len returns the number of fields of a map node.
func (n *Node) Len() int {
	if n.kind != KindMap {
		return 0
	}
	return n.fields.Len()
}

// Get returns the child stored under name in a map node.
func (n *Node) Get(name string) (*Node, bool) {
	if n.kind != KindMap {
		return nil, false
	}
	return n.fields.Get(name)
}

// Each calls fn for every field of a map node in insertion order.
func (n *Node) Each(fn func(name string, child *Node)) {
	if n.kind != KindMap {
		return
	}
	for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// child returns the map child name, creating it with mk when missing.
func (n *Node) child(name string, mk func() *Node) *Node {
	if c, ok := n.fields.Get(name); ok {
		return c
	}
	c := mk()
	n.fields.Set(name, c)
	return c
}

// collapseSingletons turns every one-element array leaf below n into a scalar.
func (n *Node) collapseSingletons() {
	switch n.kind {
	case KindMap:
		for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
			pair.Value.collapseSingletons()
		}
	case KindList:
		if n.arrayLeaf && len(n.list) == 1 {
			n.kind = KindScalar
			n.scalar = n.list[0]
			n.list = nil
		}
	}
}

// MarshalJSON renders the node with fields, list values and object list
// elements in arrival order. The output is the canonical serialization used
// for digests.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.kind {
	case KindScalar:
		return writeString(buf, n.scalar)
	case KindList:
		buf.WriteByte('[')
		for i, v := range n.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		first := true
		for pair := n.fields.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := writeString(buf, pair.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := pair.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindObjectList:
		buf.WriteByte('[')
		for i, obj := range n.objects {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('{')
			first := true
			for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
				if !first {
					buf.WriteByte(',')
				}
				first = false
				if err := writeString(buf, pair.Key); err != nil {
					return err
				}
				buf.WriteByte(':')
				if err := writeString(buf, pair.Value); err != nil {
					return err
				}
			}
			buf.WriteByte('}')
		}
		buf.WriteByte(']')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
