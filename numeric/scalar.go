package numeric

import (
	"math"
	"strconv"

	"github.com/delaneyj/phylflow/dataflow"
)

// Scalar is any node holding a float64.
type Scalar = dataflow.ValueNode[float64]

// AsScalar is the checked conversion of a generic node to a Scalar.
func AsScalar(n dataflow.Node) Scalar {
	return dataflow.AsValue[float64](n)
}

// Constant is a float64 leaf.
type Constant struct {
	dataflow.Value[float64]
}

func NewConstant(v float64) *Constant {
	n := &Constant{}
	dataflow.InitValue[float64](n, nil, v)
	return n
}

func NewZero() *Constant { return NewConstant(0) }

func NewOne() *Constant { return NewConstant(1) }

func (n *Constant) Compute() {}

func (n *Constant) Description() string { return "Constant" }

func (n *Constant) DebugInfo() string {
	return "value=" + strconv.FormatFloat(n.AccessValueRaw(), 'g', -1, 64)
}

func (n *Constant) HasNumericalProperty(p dataflow.NumericalProperty) bool {
	v := n.AccessValueRaw()
	switch p {
	case dataflow.Constant:
		return true
	case dataflow.ConstantZero:
		return v == 0
	case dataflow.ConstantOne, dataflow.ConstantIdentity:
		return v == 1
	}
	return false
}

func (n *Constant) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	return leafDerivative(n, node)
}

func (n *Constant) IsDerivable(dataflow.Node) bool { return true }

func (n *Constant) Rebuild(deps []dataflow.Node) dataflow.Node {
	dataflow.CheckDependencyCount(n, deps, 0)
	return NewConstant(n.AccessValueRaw())
}

func leafDerivative(n, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	return NewZero()
}

// Parameter is a mutable float64 leaf. It is the usual derivation variable.
type Parameter struct {
	dataflow.Value[float64]
	name string
}

func NewParameter(name string, v float64) *Parameter {
	n := &Parameter{name: name}
	dataflow.InitValue[float64](n, nil, v)
	return n
}

func (n *Parameter) Name() string { return n.name }

// SetValue changes the parameter, invalidating every node depending on it
// before the new value is stored.
func (n *Parameter) SetValue(v float64) {
	n.InvalidateRecursively()
	*n.AccessValueMutable() = v
}

func (n *Parameter) Compute() {}

func (n *Parameter) Description() string { return "Parameter(" + n.name + ")" }

func (n *Parameter) DebugInfo() string {
	return "value=" + strconv.FormatFloat(n.AccessValueRaw(), 'g', -1, 64)
}

func (n *Parameter) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	return leafDerivative(n, node)
}

func (n *Parameter) IsDerivable(dataflow.Node) bool { return true }

// Rebuild returns the parameter itself: a leaf with identity cannot be
// duplicated without splitting its users.
func (n *Parameter) Rebuild(deps []dataflow.Node) dataflow.Node {
	dataflow.CheckDependencyCount(n, deps, 0)
	return n
}

// Add is the sum of any number of scalars. With no term it is 0.
type Add struct {
	dataflow.Value[float64]
	terms []Scalar
}

func NewAdd(c *dataflow.Context, deps ...dataflow.Node) *Add {
	return dataflow.Intern(c, "numeric.Add", deps, "", func() *Add {
		n := &Add{}
		dataflow.CheckDependenciesNotNull(n, deps)
		dataflow.CheckDependencyRangeIsValue[float64](n, deps, 0, len(deps))
		n.terms = make([]Scalar, len(deps))
		for i, dep := range deps {
			n.terms[i] = AsScalar(dep)
		}
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Add) Compute() {
	sum := 0.0
	for _, t := range n.terms {
		sum += t.AccessValueRaw()
	}
	*n.AccessValueMutable() = sum
}

func (n *Add) Description() string { return "Add" }

func (n *Add) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	ds := make([]Scalar, len(n.terms))
	for i, t := range n.terms {
		ds[i] = AsScalar(c.Derive(t, node))
	}
	return sumScalars(c, ds)
}

func (n *Add) IsDerivable(node dataflow.Node) bool {
	return allDerivable(n, node)
}

func (n *Add) Rebuild(deps []dataflow.Node) dataflow.Node {
	return NewAdd(nil, deps...)
}

// Mul is the product of two scalars.
type Mul struct {
	dataflow.Value[float64]
	x, y Scalar
}

func NewMul(c *dataflow.Context, deps ...dataflow.Node) *Mul {
	return dataflow.Intern(c, "numeric.Mul", deps, "", func() *Mul {
		n := &Mul{}
		checkScalarDeps(n, deps, 2)
		n.x, n.y = AsScalar(deps[0]), AsScalar(deps[1])
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Mul) Compute() {
	*n.AccessValueMutable() = n.x.AccessValueRaw() * n.y.AccessValueRaw()
}

func (n *Mul) Description() string { return "Mul" }

// d(xy) = dx.y + x.dy
func (n *Mul) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	dx := AsScalar(c.Derive(n.x, node))
	dy := AsScalar(c.Derive(n.y, node))
	return sumScalars(c, []Scalar{
		productScalars(c, dx, n.y),
		productScalars(c, n.x, dy),
	})
}

func (n *Mul) IsDerivable(node dataflow.Node) bool {
	return allDerivable(n, node)
}

func (n *Mul) Rebuild(deps []dataflow.Node) dataflow.Node {
	return NewMul(nil, deps...)
}

// Neg is the opposite of a scalar.
type Neg struct {
	dataflow.Value[float64]
	x Scalar
}

func NewNeg(c *dataflow.Context, deps ...dataflow.Node) *Neg {
	return dataflow.Intern(c, "numeric.Neg", deps, "", func() *Neg {
		n := &Neg{}
		checkScalarDeps(n, deps, 1)
		n.x = AsScalar(deps[0])
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Neg) Compute() { *n.AccessValueMutable() = -n.x.AccessValueRaw() }

func (n *Neg) Description() string { return "Neg" }

func (n *Neg) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	return negScalar(c, AsScalar(c.Derive(n.x, node)))
}

func (n *Neg) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *Neg) Rebuild(deps []dataflow.Node) dataflow.Node { return NewNeg(nil, deps...) }

// Exp is e^x.
type Exp struct {
	dataflow.Value[float64]
	x Scalar
}

func NewExp(c *dataflow.Context, deps ...dataflow.Node) *Exp {
	return dataflow.Intern(c, "numeric.Exp", deps, "", func() *Exp {
		n := &Exp{}
		checkScalarDeps(n, deps, 1)
		n.x = AsScalar(deps[0])
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Exp) Compute() { *n.AccessValueMutable() = math.Exp(n.x.AccessValueRaw()) }

func (n *Exp) Description() string { return "Exp" }

// d(e^x) = e^x.dx, reusing this node for e^x.
func (n *Exp) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	return productScalars(c, n, AsScalar(c.Derive(n.x, node)))
}

func (n *Exp) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *Exp) Rebuild(deps []dataflow.Node) dataflow.Node { return NewExp(nil, deps...) }

// Log is the natural logarithm.
type Log struct {
	dataflow.Value[float64]
	x Scalar
}

func NewLog(c *dataflow.Context, deps ...dataflow.Node) *Log {
	return dataflow.Intern(c, "numeric.Log", deps, "", func() *Log {
		n := &Log{}
		checkScalarDeps(n, deps, 1)
		n.x = AsScalar(deps[0])
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Log) Compute() { *n.AccessValueMutable() = math.Log(n.x.AccessValueRaw()) }

func (n *Log) Description() string { return "Log" }

// d(log x) = dx/x
func (n *Log) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	dx := AsScalar(c.Derive(n.x, node))
	if isZero(dx) {
		return dx
	}
	return productScalars(c, NewInverse(c, n.x), dx)
}

func (n *Log) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *Log) Rebuild(deps []dataflow.Node) dataflow.Node { return NewLog(nil, deps...) }

// Inverse is 1/x.
type Inverse struct {
	dataflow.Value[float64]
	x Scalar
}

func NewInverse(c *dataflow.Context, deps ...dataflow.Node) *Inverse {
	return dataflow.Intern(c, "numeric.Inverse", deps, "", func() *Inverse {
		n := &Inverse{}
		checkScalarDeps(n, deps, 1)
		n.x = AsScalar(deps[0])
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *Inverse) Compute() { *n.AccessValueMutable() = 1 / n.x.AccessValueRaw() }

func (n *Inverse) Description() string { return "Inverse" }

// d(1/x) = -(1/x)^2.dx
func (n *Inverse) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	dx := AsScalar(c.Derive(n.x, node))
	if isZero(dx) {
		return dx
	}
	return negScalar(c, productScalars(c, productScalars(c, n, n), dx))
}

func (n *Inverse) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *Inverse) Rebuild(deps []dataflow.Node) dataflow.Node { return NewInverse(nil, deps...) }

func checkScalarDeps(n any, deps []dataflow.Node, count int) {
	dataflow.CheckDependencyCount(n, deps, count)
	dataflow.CheckDependenciesNotNull(n, deps)
	dataflow.CheckDependencyRangeIsValue[float64](n, deps, 0, count)
}

func allDerivable(n, node dataflow.Node) bool {
	if dataflow.Same(n, node) {
		return true
	}
	for _, dep := range n.Dependencies() {
		if !dep.IsDerivable(node) {
			return false
		}
	}
	return true
}
