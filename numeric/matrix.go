package numeric

import (
	"fmt"

	"github.com/delaneyj/phylflow/dataflow"
	"gonum.org/v1/gonum/mat"
)

// Dimension is the fixed shape of a matrix node.
type Dimension struct {
	Rows, Cols int
}

func (d Dimension) Square() bool { return d.Rows == d.Cols }

func (d Dimension) String() string { return fmt.Sprintf("%dx%d", d.Rows, d.Cols) }

// Matrix is any node holding a *mat.Dense of a known dimension. The value
// returned by GetValue belongs to the node and must not be modified.
type Matrix interface {
	dataflow.ValueNode[*mat.Dense]
	Dimension() Dimension
}

// AsMatrix is the checked conversion of a generic node to a Matrix.
func AsMatrix(n dataflow.Node) Matrix {
	return dataflow.ConvertRef[Matrix](n)
}

type shape struct {
	dims Dimension
}

func (s *shape) Dimension() Dimension { return s.dims }

func (s *shape) DebugInfo() string { return "dims=" + s.dims.String() }

// DimensionMismatchError is raised when matrix dependencies do not fit.
type DimensionMismatchError struct {
	NodeType string
	Index    int
	Expected Dimension
	Given    Dimension
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("numeric: %s: dependency %d: expected dimension %s, got %s", e.NodeType, e.Index, e.Expected, e.Given)
}

func (e *DimensionMismatchError) DataflowFatal() {}

// EntryRangeError is raised when an entry lies outside its matrix.
type EntryRangeError struct {
	Row, Col int
	Dims     Dimension
}

func (e *EntryRangeError) Error() string {
	return fmt.Sprintf("numeric: entry (%d,%d) outside of %s matrix", e.Row, e.Col, e.Dims)
}

func (e *EntryRangeError) DataflowFatal() {}

func checkMatrixDeps(n any, deps []dataflow.Node, count int) []Matrix {
	dataflow.CheckDependencyCount(n, deps, count)
	dataflow.CheckDependenciesNotNull(n, deps)
	ms := make([]Matrix, len(deps))
	for i := range deps {
		dataflow.CheckNthDependencyIs[Matrix](n, deps, i)
		ms[i] = AsMatrix(deps[i])
	}
	return ms
}

func checkDimension(n any, index int, expected, given Dimension) {
	if expected != given {
		panic(&DimensionMismatchError{
			NodeType: dataflow.TypeName(n),
			Index:    index,
			Expected: expected,
			Given:    given,
		})
	}
}

// MatrixConstant is a matrix leaf. Zero and identity tags are computed once
// at construction.
type MatrixConstant struct {
	dataflow.Value[*mat.Dense]
	shape
	zero, identity bool
}

// NewMatrixConstant copies m into a new leaf.
func NewMatrixConstant(m mat.Matrix) *MatrixConstant {
	r, c := m.Dims()
	v := mat.DenseCopyOf(m)
	n := &MatrixConstant{shape: shape{dims: Dimension{Rows: r, Cols: c}}}
	n.zero, n.identity = true, true
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			x := v.At(i, j)
			if x != 0 {
				n.zero = false
			}
			if (i == j && x != 1) || (i != j && x != 0) {
				n.identity = false
			}
		}
	}
	dataflow.InitValue[*mat.Dense](n, nil, v)
	return n
}

func NewZeroMatrix(d Dimension) *MatrixConstant {
	return NewMatrixConstant(mat.NewDense(d.Rows, d.Cols, nil))
}

// NewIdentityMatrix has ones on the diagonal, also when d is not square.
func NewIdentityMatrix(d Dimension) *MatrixConstant {
	m := mat.NewDense(d.Rows, d.Cols, nil)
	for i := 0; i < min(d.Rows, d.Cols); i++ {
		m.Set(i, i, 1)
	}
	return NewMatrixConstant(m)
}

func (n *MatrixConstant) Compute() {}

func (n *MatrixConstant) Description() string { return "MatrixConstant" }

func (n *MatrixConstant) HasNumericalProperty(p dataflow.NumericalProperty) bool {
	switch p {
	case dataflow.Constant:
		return true
	case dataflow.ConstantZero:
		return n.zero
	case dataflow.ConstantOne, dataflow.ConstantIdentity:
		return n.identity
	}
	return false
}

func (n *MatrixConstant) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewIdentityMatrix(n.dims)
	}
	return NewZeroMatrix(n.dims)
}

func (n *MatrixConstant) IsDerivable(dataflow.Node) bool { return true }

func (n *MatrixConstant) Rebuild(deps []dataflow.Node) dataflow.Node {
	dataflow.CheckDependencyCount(n, deps, 0)
	return NewMatrixConstant(n.AccessValueRaw())
}

// MatrixAdd is the sum of one or more matrices of the same dimension.
type MatrixAdd struct {
	dataflow.Value[*mat.Dense]
	shape
	terms []Matrix
}

func NewMatrixAdd(c *dataflow.Context, deps ...dataflow.Node) *MatrixAdd {
	return dataflow.Intern(c, "numeric.MatrixAdd", deps, "", func() *MatrixAdd {
		n := &MatrixAdd{}
		if len(deps) == 0 {
			dataflow.FailureDependencyCountMismatch(n, 1, 0)
		}
		n.terms = checkMatrixDeps(n, deps, len(deps))
		n.dims = n.terms[0].Dimension()
		for i, t := range n.terms {
			checkDimension(n, i, n.dims, t.Dimension())
		}
		dataflow.InitValue(n, deps, mat.NewDense(n.dims.Rows, n.dims.Cols, nil))
		return n
	})
}

func (n *MatrixAdd) Compute() {
	dst := n.AccessValueRaw()
	dst.Copy(n.terms[0].AccessValueRaw())
	for _, t := range n.terms[1:] {
		dst.Add(dst, t.AccessValueRaw())
	}
}

func (n *MatrixAdd) Description() string { return "MatrixAdd" }

func (n *MatrixAdd) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewIdentityMatrix(n.dims)
	}
	ds := make([]Matrix, len(n.terms))
	for i, t := range n.terms {
		ds[i] = AsMatrix(c.Derive(t, node))
	}
	return sumMatrices(c, n.dims, ds)
}

func (n *MatrixAdd) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *MatrixAdd) Rebuild(deps []dataflow.Node) dataflow.Node { return NewMatrixAdd(nil, deps...) }

// MatrixProduct is the matrix product x.y.
type MatrixProduct struct {
	dataflow.Value[*mat.Dense]
	shape
	x, y Matrix
}

func NewMatrixProduct(c *dataflow.Context, deps ...dataflow.Node) *MatrixProduct {
	return dataflow.Intern(c, "numeric.MatrixProduct", deps, "", func() *MatrixProduct {
		n := &MatrixProduct{}
		ms := checkMatrixDeps(n, deps, 2)
		n.x, n.y = ms[0], ms[1]
		xd, yd := n.x.Dimension(), n.y.Dimension()
		checkDimension(n, 1, Dimension{Rows: xd.Cols, Cols: yd.Cols}, yd)
		n.dims = Dimension{Rows: xd.Rows, Cols: yd.Cols}
		dataflow.InitValue(n, deps, mat.NewDense(n.dims.Rows, n.dims.Cols, nil))
		return n
	})
}

func (n *MatrixProduct) Compute() {
	n.AccessValueRaw().Mul(n.x.AccessValueRaw(), n.y.AccessValueRaw())
}

func (n *MatrixProduct) Description() string { return "MatrixProduct" }

// d(xy) = dx.y + x.dy, keeping operand order.
func (n *MatrixProduct) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewIdentityMatrix(n.dims)
	}
	dx := AsMatrix(c.Derive(n.x, node))
	dy := AsMatrix(c.Derive(n.y, node))
	return sumMatrices(c, n.dims, []Matrix{
		productMatrices(c, dx, n.y),
		productMatrices(c, n.x, dy),
	})
}

func (n *MatrixProduct) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *MatrixProduct) Rebuild(deps []dataflow.Node) dataflow.Node {
	return NewMatrixProduct(nil, deps...)
}

// ScaleMatrix is s.m for a scalar s.
type ScaleMatrix struct {
	dataflow.Value[*mat.Dense]
	shape
	s Scalar
	m Matrix
}

func NewScaleMatrix(c *dataflow.Context, deps ...dataflow.Node) *ScaleMatrix {
	return dataflow.Intern(c, "numeric.ScaleMatrix", deps, "", func() *ScaleMatrix {
		n := &ScaleMatrix{}
		dataflow.CheckDependencyCount(n, deps, 2)
		dataflow.CheckDependenciesNotNull(n, deps)
		dataflow.CheckNthDependencyIsValue[float64](n, deps, 0)
		dataflow.CheckNthDependencyIs[Matrix](n, deps, 1)
		n.s, n.m = AsScalar(deps[0]), AsMatrix(deps[1])
		n.dims = n.m.Dimension()
		dataflow.InitValue(n, deps, mat.NewDense(n.dims.Rows, n.dims.Cols, nil))
		return n
	})
}

func (n *ScaleMatrix) Compute() {
	n.AccessValueRaw().Scale(n.s.AccessValueRaw(), n.m.AccessValueRaw())
}

func (n *ScaleMatrix) Description() string { return "ScaleMatrix" }

// d(s.m) = ds.m + s.dm
func (n *ScaleMatrix) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewIdentityMatrix(n.dims)
	}
	ds := AsScalar(c.Derive(n.s, node))
	dm := AsMatrix(c.Derive(n.m, node))
	return sumMatrices(c, n.dims, []Matrix{
		scaleMatrix(c, ds, n.m),
		scaleMatrix(c, n.s, dm),
	})
}

func (n *ScaleMatrix) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *ScaleMatrix) Rebuild(deps []dataflow.Node) dataflow.Node {
	return NewScaleMatrix(nil, deps...)
}

// Transpose is the transposed matrix.
type Transpose struct {
	dataflow.Value[*mat.Dense]
	shape
	m Matrix
}

func NewTranspose(c *dataflow.Context, deps ...dataflow.Node) *Transpose {
	return dataflow.Intern(c, "numeric.Transpose", deps, "", func() *Transpose {
		n := &Transpose{}
		n.m = checkMatrixDeps(n, deps, 1)[0]
		md := n.m.Dimension()
		n.dims = Dimension{Rows: md.Cols, Cols: md.Rows}
		dataflow.InitValue(n, deps, mat.NewDense(n.dims.Rows, n.dims.Cols, nil))
		return n
	})
}

func (n *Transpose) Compute() {
	n.AccessValueRaw().Copy(n.m.AccessValueRaw().T())
}

func (n *Transpose) Description() string { return "Transpose" }

func (n *Transpose) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewIdentityMatrix(n.dims)
	}
	dm := AsMatrix(c.Derive(n.m, node))
	switch {
	case isZero(dm):
		return NewZeroMatrix(n.dims)
	case isIdentity(dm) && dm.Dimension().Square():
		return dm
	}
	return NewTranspose(c, dm)
}

func (n *Transpose) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *Transpose) Rebuild(deps []dataflow.Node) dataflow.Node { return NewTranspose(nil, deps...) }

// MatrixEntry extracts the scalar at (row, col) of a matrix.
type MatrixEntry struct {
	dataflow.Value[float64]
	m        Matrix
	row, col int
}

func NewMatrixEntry(c *dataflow.Context, row, col int, deps ...dataflow.Node) *MatrixEntry {
	key := fmt.Sprintf("%d,%d", row, col)
	return dataflow.Intern(c, "numeric.MatrixEntry", deps, key, func() *MatrixEntry {
		n := &MatrixEntry{row: row, col: col}
		n.m = checkMatrixDeps(n, deps, 1)[0]
		d := n.m.Dimension()
		if row < 0 || col < 0 || row >= d.Rows || col >= d.Cols {
			panic(&EntryRangeError{Row: row, Col: col, Dims: d})
		}
		dataflow.InitValue[float64](n, deps, 0)
		return n
	})
}

func (n *MatrixEntry) Compute() {
	*n.AccessValueMutable() = n.m.AccessValueRaw().At(n.row, n.col)
}

func (n *MatrixEntry) Description() string {
	return fmt.Sprintf("MatrixEntry(%d,%d)", n.row, n.col)
}

func (n *MatrixEntry) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	if dataflow.Same(n, node) {
		return NewOne()
	}
	dm := AsMatrix(c.Derive(n.m, node))
	switch {
	case isZero(dm):
		return NewZero()
	case isIdentity(dm):
		if n.row == n.col {
			return NewOne()
		}
		return NewZero()
	}
	return NewMatrixEntry(c, n.row, n.col, dm)
}

func (n *MatrixEntry) IsDerivable(node dataflow.Node) bool { return allDerivable(n, node) }

func (n *MatrixEntry) Rebuild(deps []dataflow.Node) dataflow.Node {
	return NewMatrixEntry(nil, n.row, n.col, deps...)
}
