package dataflow

import "reflect"

// Value is an abstract node holding a T. Concrete operators embed it and
// implement Compute by writing through AccessValueMutable.
//
// Access can be raw (no recomputation, the caller knows the node is valid)
// or through GetValue which recomputes first.
type Value[T any] struct {
	Base
	value T
}

// ValueNode is the typed view of a node holding a T, satisfied by every
// type embedding Value[T].
type ValueNode[T any] interface {
	Node
	GetValue() T
	AccessValueRaw() T
	AccessValueMutable() *T
	DeriveAsValue(c *Context, node Node) ValueNode[T]
	valueCell() *Value[T]
}

// InitValue sets the initial payload of self then wires it like Init.
func InitValue[T any](self ValueNode[T], deps []Node, initial T) {
	self.valueCell().value = initial
	Init(self, deps)
}

func (v *Value[T]) valueCell() *Value[T] { return v }

// GetValue recomputes the node if needed and returns its value.
// Not safe for concurrent use.
func (v *Value[T]) GetValue() T {
	if v.self == nil {
		FailureComputeWasCalled(v)
	}
	v.RecomputeRecursively()
	return v.value
}

// AccessValueRaw returns the value without recomputation.
func (v *Value[T]) AccessValueRaw() T { return v.value }

// AccessValueMutable is reserved to Compute implementations and leaves.
func (v *Value[T]) AccessValueMutable() *T { return &v.value }

// DeriveAsValue derives the node and converts the result to a T node, the
// common case since most operators keep their value type under derivation.
func (v *Value[T]) DeriveAsValue(c *Context, node Node) ValueNode[T] {
	return ConvertRef[ValueNode[T]](c.Derive(v.self, node))
}

// ConvertRef is the checked downcast used everywhere a generic node must be
// seen as a more specific type.
func ConvertRef[T any](n Node) T {
	v, ok := n.(T)
	if !ok {
		FailureNodeConversion(typeNameOf[T](), n)
	}
	return v
}

// AsValue converts n to a T node, failing if it does not hold a T.
func AsValue[T any](n Node) ValueNode[T] {
	return ConvertRef[ValueNode[T]](n)
}

// AccessValueRawCast reads the raw value of a node known to hold a T.
func AccessValueRawCast[T any](n Node) T {
	return AsValue[T](n).AccessValueRaw()
}

func typeNameOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// ValueTypeName is the name used in errors for a node holding a T.
func ValueTypeName[T any]() string {
	return typeNameOf[ValueNode[T]]()
}

// CheckDependencyCount fails if deps does not have exactly expected entries.
func CheckDependencyCount(node any, deps []Node, expected int) {
	if len(deps) != expected {
		FailureDependencyCountMismatch(node, expected, len(deps))
	}
}

// CheckDependenciesNotNull fails on the first nil dependency.
func CheckDependenciesNotNull(node any, deps []Node) {
	for i, dep := range deps {
		if isNil(dep) {
			FailureEmptyDependency(node, i)
		}
	}
}

// CheckNthDependencyIs fails if deps[index] is not an I.
func CheckNthDependencyIs[I any](node any, deps []Node, index int) {
	if _, ok := deps[index].(I); !ok {
		FailureDependencyTypeMismatch(node, index, typeNameOf[I](), deps[index])
	}
}

// CheckNthDependencyIsValue fails if deps[index] does not hold a T.
func CheckNthDependencyIsValue[T any](node any, deps []Node, index int) {
	if _, ok := deps[index].(ValueNode[T]); !ok {
		FailureDependencyTypeMismatch(node, index, ValueTypeName[T](), deps[index])
	}
}

// CheckDependencyRangeIsValue checks deps[start:end] all hold a T.
func CheckDependencyRangeIsValue[T any](node any, deps []Node, start, end int) {
	for i := start; i < end; i++ {
		CheckNthDependencyIsValue[T](node, deps, i)
	}
}
