package river

import (
	"strings"

	"github.com/samber/lo"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Apply merges one column value of row number rowSeq into the map node n.
// A nil value never creates, overwrites or promotes anything. Paths must have
// passed header validation; shapes are trusted here.
func (n *Node) Apply(p FieldPath, value *string, rowSeq uint64, delimiter string) {
	if value == nil {
		return
	}
	switch p.Kind {
	case LeafScalar:
		parent := n.descend(p.Segments[:len(p.Segments)-1])
		leaf, ok := parent.fields.Get(p.Leaf())
		if !ok {
			parent.fields.Set(p.Leaf(), newScalar(*value))
			return
		}
		leaf.addDistinct(*value)

	case LeafScalarArray:
		parts := splitValues(*value, delimiter)
		if len(parts) == 0 {
			return
		}
		parent := n.descend(p.Segments[:len(p.Segments)-1])
		leaf := parent.child(p.Leaf(), newArrayLeaf)
		for _, v := range parts {
			leaf.addDistinct(v)
		}

	case LeafObjectArray:
		parent := n.descend(p.Segments[:len(p.Segments)-1])
		leaf := parent.child(p.Leaf(), newObjectList)
		if len(leaf.objects) == 0 || leaf.lastRow != rowSeq {
			leaf.objects = append(leaf.objects, orderedmap.New[string, string]())
			leaf.lastRow = rowSeq
		}
		leaf.objects[len(leaf.objects)-1].Set(p.Subfield, *value)
	}
}

// descend walks the map chain named by segments, creating missing maps.
func (n *Node) descend(segments []string) *Node {
	cur := n
	for _, seg := range segments {
		cur = cur.child(seg, NewMap)
	}
	return cur
}

// addDistinct records v on a scalar or list leaf. A scalar becomes a list on
// the first distinct value; values already present are ignored.
func (n *Node) addDistinct(v string) {
	switch n.kind {
	case KindScalar:
		if n.scalar == v {
			return
		}
		n.kind = KindList
		n.list = []string{n.scalar, v}
		n.scalar = ""
	case KindList:
		if lo.Contains(n.list, v) {
			return
		}
		n.list = append(n.list, v)
	}
}

// splitValues splits a scalar-array cell; empty parts count as null.
func splitValues(v, delimiter string) []string {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return lo.Filter(strings.Split(v, delimiter), func(s string, _ int) bool {
		return s != ""
	})
}
