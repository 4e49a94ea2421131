package dataflow

import (
	"errors"
	"fmt"
	"reflect"
)

// Every failure in this package is a programming error in graph
// construction. They are raised with panic using the error types below so
// callers at a tool boundary can turn them back into errors with Recover.

// NodeConversionError is raised when a node is not of the requested type.
type NodeConversionError struct {
	Requested string
	Actual    string
}

func (e *NodeConversionError) Error() string {
	return fmt.Sprintf("dataflow: cannot convert node of type %s to %s", e.Actual, e.Requested)
}

// DependencyCountError is raised when a node gets the wrong number of dependencies.
type DependencyCountError struct {
	NodeType string
	Expected int
	Given    int
}

func (e *DependencyCountError) Error() string {
	return fmt.Sprintf("dataflow: %s: expected %d dependencies, got %d", e.NodeType, e.Expected, e.Given)
}

// EmptyDependencyError is raised when a dependency slot holds a nil node.
type EmptyDependencyError struct {
	NodeType string
	Index    int
}

func (e *EmptyDependencyError) Error() string {
	return fmt.Sprintf("dataflow: %s: dependency %d is nil", e.NodeType, e.Index)
}

// DependencyTypeError is raised when a dependency is not of the expected type.
type DependencyTypeError struct {
	NodeType string
	Index    int
	Expected string
	Given    string
}

func (e *DependencyTypeError) Error() string {
	return fmt.Sprintf("dataflow: %s: dependency %d: expected %s, got %s", e.NodeType, e.Index, e.Expected, e.Given)
}

// UndefinedDerivativeError is raised by Derive on nodes that cannot be derived.
type UndefinedDerivativeError struct {
	NodeType string
	Variable string
}

func (e *UndefinedDerivativeError) Error() string {
	return fmt.Sprintf("dataflow: derivative of %s with respect to %s is undefined", e.NodeType, e.Variable)
}

// UnsupportedRebuildError is raised by Rebuild on nodes that do not implement it.
type UnsupportedRebuildError struct {
	NodeType string
}

func (e *UnsupportedRebuildError) Error() string {
	return fmt.Sprintf("dataflow: %s does not support rebuild", e.NodeType)
}

// ComputeCalledError is raised when a node is asked for a value it cannot
// compute, typically because it was never initialized.
type ComputeCalledError struct {
	NodeType string
}

func (e *ComputeCalledError) Error() string {
	return fmt.Sprintf("dataflow: compute called on %s", e.NodeType)
}

// FailureComputeWasCalled reports a node that cannot be computed, such as a
// zero value that never went through Init.
func FailureComputeWasCalled(node any) {
	panic(&ComputeCalledError{NodeType: TypeName(node)})
}

func FailureNodeConversion(requested string, node Node) {
	panic(&NodeConversionError{Requested: requested, Actual: TypeName(node)})
}

func FailureDependencyCountMismatch(node any, expected, given int) {
	panic(&DependencyCountError{NodeType: TypeName(node), Expected: expected, Given: given})
}

func FailureEmptyDependency(node any, index int) {
	panic(&EmptyDependencyError{NodeType: TypeName(node), Index: index})
}

func FailureDependencyTypeMismatch(node any, index int, expected string, given Node) {
	panic(&DependencyTypeError{
		NodeType: TypeName(node),
		Index:    index,
		Expected: expected,
		Given:    TypeName(given),
	})
}

func FailureUndefinedDerivative(node, variable Node) {
	panic(&UndefinedDerivativeError{NodeType: TypeName(node), Variable: Describe(variable)})
}

// TypeName returns the dynamic Go type of v in a readable form.
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

// Recover converts a panic raised by this package (or by node
// implementations raising an error value) into *err. Any other panic is
// re-raised. It must be called directly by defer:
//
//	defer dataflow.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	e, ok := r.(error)
	if !ok {
		panic(r)
	}
	var (
		conv  *NodeConversionError
		count *DependencyCountError
		empty *EmptyDependencyError
		typ   *DependencyTypeError
		deriv *UndefinedDerivativeError
		reb   *UnsupportedRebuildError
		comp  *ComputeCalledError
		fatal Fatal
	)
	switch {
	case errors.As(e, &conv), errors.As(e, &count), errors.As(e, &empty),
		errors.As(e, &typ), errors.As(e, &deriv), errors.As(e, &reb),
		errors.As(e, &comp), errors.As(e, &fatal):
		*err = e
	default:
		panic(r)
	}
}

// Fatal is implemented by error types defined outside this package that
// should be recoverable by Recover.
type Fatal interface {
	error
	DataflowFatal()
}
