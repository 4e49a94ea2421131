// Package dataflow implements lazily evaluated, cached computation graphs with
// symbolic derivation.
package dataflow

import (
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync/atomic"
	"weak"

	mapset "github.com/deckarep/golang-set/v2"
)

// NumericalProperty is an optional hint a node may advertise about its value.
// It is only used for simplifications; a node that never reports any
// property is always correct.
type NumericalProperty uint8

const (
	Constant         NumericalProperty = iota // value never changes
	ConstantZero                              // zero for its type
	ConstantOne                               // one for its type
	ConstantIdentity                          // identity (matrices mostly; 1.0 counts as identity)
)

func (p NumericalProperty) String() string {
	switch p {
	case Constant:
		return "constant"
	case ConstantZero:
		return "zero"
	case ConstantOne:
		return "one"
	case ConstantIdentity:
		return "identity"
	default:
		return "unknown"
	}
}

// Node is a vertex of a dataflow graph.
//
// Concrete nodes embed Base (usually through Value[T]) and implement
// Compute. They are initialized once with Init or InitValue and are always
// handled through pointers.
//
// The dependency list is fixed at construction. Changing what a node
// computes means building a different node (see Rebuild and
// RebuildWithSubstitution).
//
// Two invariants hold at all times:
//  1. if a node is valid, all its transitive dependencies are valid;
//  2. if a node is invalid, all its transitive dependents are invalid.
type Node interface {
	ID() uint64
	IsValid() bool
	Dependencies() []Node
	Dependency(i int) Node
	NumDependencies() int
	DependentNodes() []Node

	// Description is the node pretty name, the Go type by default.
	Description() string
	// DebugInfo is free form detail used by graph exports.
	DebugInfo() string
	// HasNumericalProperty must be O(1) and non recursive.
	HasNumericalProperty(p NumericalProperty) bool

	// Derive returns a node computing d(this)/d(node), node being taken as
	// the variable. d(n)/d(n) is the identity of n's value type, even if n
	// is constant. Implementations derive dependencies through c.Derive.
	Derive(c *Context, node Node) Node
	// IsDerivable is a hint only: it may return false for nodes that Derive
	// would handle.
	IsDerivable(node Node) bool
	// Rebuild creates the same operation on another dependency list.
	Rebuild(deps []Node) Node

	// Compute sets the node value from its dependencies, which are
	// guaranteed valid. It is only called by RecomputeRecursively.
	Compute()
	RecomputeRecursively()
	InvalidateRecursively() int

	base() *Base
}

var lastNodeID atomic.Uint64

// Base holds the graph plumbing shared by every node.
type Base struct {
	self         Node
	id           uint64
	dependencies []Node
	// weak back references, kept in sync by Init and the GC cleanup
	dependents mapset.Set[weak.Pointer[Base]]
	valid      bool
}

type detachment struct {
	key  weak.Pointer[Base]
	deps []*Base
}

func detach(d detachment) {
	for _, dep := range d.deps {
		dep.dependents.Remove(d.key)
	}
}

// Init wires self into the graph: it records deps, registers self as a
// dependent of each of them and arranges for the registration to be dropped
// once self is garbage collected. The node starts invalid.
func Init(self Node, deps []Node) {
	b := self.base()
	for i, dep := range deps {
		if isNil(dep) || dep.base().self == nil {
			FailureEmptyDependency(self, i)
		}
	}

	b.self = self
	b.id = lastNodeID.Add(1)
	b.dependencies = slices.Clone(deps)
	b.dependents = mapset.NewSet[weak.Pointer[Base]]()
	b.valid = false

	if len(deps) == 0 {
		return
	}
	key := weak.Make(b)
	bases := make([]*Base, len(deps))
	for i, dep := range deps {
		bases[i] = dep.base()
		bases[i].dependents.Add(key)
	}
	runtime.AddCleanup(b, detach, detachment{key: key, deps: bases})
}

func isNil(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (b *Base) base() *Base { return b }

func (b *Base) ID() uint64 { return b.id }

func (b *Base) IsValid() bool { return b.valid }

// Dependencies returns a copy of the forward edges of b.
func (b *Base) Dependencies() []Node { return slices.Clone(b.dependencies) }

func (b *Base) Dependency(i int) Node { return b.dependencies[i] }

func (b *Base) NumDependencies() int { return len(b.dependencies) }

// DependentNodes returns the live nodes depending directly on b, by id.
func (b *Base) DependentNodes() []Node {
	if b.dependents == nil {
		return nil
	}
	var out []Node
	b.dependents.Each(func(key weak.Pointer[Base]) bool {
		if d := key.Value(); d != nil && d.self != nil {
			out = append(out, d.self)
		}
		return false
	})
	slices.SortFunc(out, func(x, y Node) int {
		return compareIDs(x.ID(), y.ID())
	})
	return out
}

func compareIDs(x, y uint64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (b *Base) Description() string { return TypeName(b.self) }

func (b *Base) DebugInfo() string { return "" }

func (b *Base) HasNumericalProperty(NumericalProperty) bool { return false }

func (b *Base) Derive(c *Context, node Node) Node {
	FailureUndefinedDerivative(b.self, node)
	return nil
}

func (b *Base) IsDerivable(Node) bool { return false }

func (b *Base) Rebuild([]Node) Node {
	panic(&UnsupportedRebuildError{NodeType: TypeName(b.self)})
}

// RecomputeRecursively brings the node up to date, recomputing invalid
// dependencies first. Not safe for concurrent use.
func (b *Base) RecomputeRecursively() {
	if b.valid {
		return
	}
	if b.self == nil {
		FailureComputeWasCalled(b)
	}
	for _, dep := range b.dependencies {
		dep.RecomputeRecursively()
	}
	b.self.Compute()
	b.valid = true
}

// InvalidateRecursively marks the node and its transitive dependents
// invalid. It stops at nodes that are already invalid, so the cost is
// bounded by the previously valid frontier. It returns how many nodes it
// invalidated. Leaves must call it before changing their value.
func (b *Base) InvalidateRecursively() int {
	if !b.valid {
		return 0
	}
	b.valid = false
	n := 1
	b.dependents.Each(func(key weak.Pointer[Base]) bool {
		if d := key.Value(); d != nil {
			n += d.InvalidateRecursively()
		}
		return false
	})
	return n
}

// Same reports whether a and b are the same node.
func Same(a, b Node) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	return a.base() == b.base()
}

// Describe returns the node description suffixed with its id.
func Describe(n Node) string {
	if isNil(n) {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%d", n.Description(), n.ID())
}
