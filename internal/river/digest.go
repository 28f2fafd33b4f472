package river

import (
	"crypto/sha256"
	"fmt"
)

// DigestScope selects what a recorded digest is compared against.
type DigestScope int

const (
	// DigestByID compares a flush with the last forwarded flush of the same
	// identifier, whatever its operation type.
	DigestByID DigestScope = iota
	// DigestByKey compares only flushes sharing identifier and operation type,
	// so a change of operation type is always forwarded.
	DigestByKey
)

func (s DigestScope) String() string {
	if s == DigestByKey {
		return "key"
	}
	return "id"
}

// ParseDigestScope maps "id" and "key" to a scope. The empty string means id.
func ParseDigestScope(s string) (DigestScope, error) {
	switch s {
	case "", "id":
		return DigestByID, nil
	case "key":
		return DigestByKey, nil
	default:
		return DigestByID, fmt.Errorf("unknown digest scope %q", s)
	}
}

type digest [sha256.Size]byte

// digestGate remembers the digest of the last forwarded document per scope.
type digestGate struct {
	scope DigestScope
	seen  map[string]map[string]digest
}

func newDigestGate(scope DigestScope) *digestGate {
	return &digestGate{scope: scope, seen: make(map[string]map[string]digest)}
}

func (g *digestGate) slot(k Key) string {
	if g.scope == DigestByKey {
		return k.OpType
	}
	return ""
}

// check hashes doc and reports whether its flush should be suppressed.
func (g *digestGate) check(k Key, doc *Node) (digest, bool, error) {
	body, err := doc.MarshalJSON()
	if err != nil {
		return digest{}, false, fmt.Errorf("digest %s: %w", k, err)
	}
	d := digest(sha256.Sum256(body))
	prev, ok := g.seen[k.ID][g.slot(k)]
	return d, ok && prev == d, nil
}

// record stores d as the last forwarded digest for k.
func (g *digestGate) record(k Key, d digest) {
	m, ok := g.seen[k.ID]
	if !ok {
		m = make(map[string]digest)
		g.seen[k.ID] = m
	}
	m[g.slot(k)] = d
}

// forget drops everything recorded for id, e.g. after a delete.
func (g *digestGate) forget(id string) {
	delete(g.seen, id)
}
