package dataflow

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Context is threaded through graph construction and every Derive call.
// The zero value is ready to use, and a nil *Context is accepted everywhere
// and simply disables the strategies below.
//
// It memoizes derivatives per (node, variable) pair so shared
// subexpressions are derived once per pass, and it interns operator nodes
// by (operation, dependencies, key) so structurally equal nodes are built
// once.
type Context struct {
	derivatives map[derivationKey]Node
	interned    map[uint64][]internEntry
	stats       ContextStats
}

type derivationKey struct {
	node, variable *Base
}

type internEntry struct {
	op   string
	key  string
	deps []*Base
	node Node
}

// ContextStats counts what the context saved.
type ContextStats struct {
	Derivations    int
	DerivationHits int
	InternedNodes  int
	InternedReuses int
}

func NewContext() *Context {
	return &Context{}
}

func (c *Context) Stats() ContextStats {
	if c == nil {
		return ContextStats{}
	}
	return c.stats
}

// Derive returns n.Derive(c, variable), reusing a previous result for the
// same pair.
func (c *Context) Derive(n, variable Node) Node {
	if c == nil {
		return n.Derive(c, variable)
	}
	k := derivationKey{node: n.base(), variable: variable.base()}
	if d, ok := c.derivatives[k]; ok {
		c.stats.DerivationHits++
		return d
	}
	d := n.Derive(c, variable)
	if c.derivatives == nil {
		c.derivatives = map[derivationKey]Node{}
	}
	c.derivatives[k] = d
	c.stats.Derivations++
	return d
}

// Intern returns the node previously built for (op, deps, key) in c, or
// calls build and records its result. key carries the operation's extra
// constructor arguments. Leaves holding mutable state must not be interned.
func Intern[N Node](c *Context, op string, deps []Node, key string, build func() N) N {
	if c == nil {
		return build()
	}
	for _, dep := range deps {
		if isNil(dep) {
			// let build report the error
			return build()
		}
	}

	bases := make([]*Base, len(deps))
	for i, dep := range deps {
		bases[i] = dep.base()
	}
	h := internHash(op, key, bases)
	for _, e := range c.interned[h] {
		if e.op == op && e.key == key && slices.Equal(e.deps, bases) {
			c.stats.InternedReuses++
			return ConvertRef[N](e.node)
		}
	}

	n := build()
	if c.interned == nil {
		c.interned = map[uint64][]internEntry{}
	}
	c.interned[h] = append(c.interned[h], internEntry{op: op, key: key, deps: bases, node: n})
	c.stats.InternedNodes++
	return n
}

func internHash(op, key string, deps []*Base) uint64 {
	d := xxhash.New()
	d.WriteString(op)
	d.Write([]byte{0})
	d.WriteString(key)
	d.Write([]byte{0})
	buf := make([]byte, 0, 8*len(deps))
	for _, dep := range deps {
		buf = binary.LittleEndian.AppendUint64(buf, dep.id)
	}
	d.Write(buf)
	return d.Sum64()
}
