package dataflow_test

import (
	"github.com/delaneyj/phylflow/dataflow"
)

type source struct {
	dataflow.Value[float64]
}

func newSource(v float64) *source {
	n := &source{}
	dataflow.InitValue[float64](n, nil, v)
	return n
}

func (n *source) Compute() {}

func (n *source) set(v float64) {
	n.InvalidateRecursively()
	*n.AccessValueMutable() = v
}

// sum counts its computations and has no derivative.
type sum struct {
	dataflow.Value[float64]
	calls int
}

func newSum(deps ...dataflow.Node) *sum {
	n := &sum{}
	dataflow.CheckDependenciesNotNull(n, deps)
	dataflow.CheckDependencyRangeIsValue[float64](n, deps, 0, len(deps))
	dataflow.InitValue[float64](n, deps, 0)
	return n
}

func (n *sum) Compute() {
	n.calls++
	total := 0.0
	for _, dep := range n.Dependencies() {
		total += dataflow.AccessValueRawCast[float64](dep)
	}
	*n.AccessValueMutable() = total
}

func (n *sum) Rebuild(deps []dataflow.Node) dataflow.Node {
	return newSum(deps...)
}

// label holds a string, to exercise type checks.
type label struct {
	dataflow.Value[string]
}

func newLabel(s string) *label {
	n := &label{}
	dataflow.InitValue(n, nil, s)
	return n
}

func (n *label) Compute() {}

func catch(f func()) (err error) {
	defer dataflow.Recover(&err)
	f()
	return nil
}
