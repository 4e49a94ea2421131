package numeric_test

import (
	"testing"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func dense(r, c int, values ...float64) *mat.Dense {
	return mat.NewDense(r, c, values)
}

func assertMatrix(t *testing.T, expected *mat.Dense, actual numeric.Matrix) {
	t.Helper()
	got := actual.GetValue()
	assert.Truef(t, mat.EqualApprox(expected, got, 1e-12), "expected\n%v\ngot\n%v",
		mat.Formatted(expected), mat.Formatted(got))
}

func TestMatrixConstantTags(t *testing.T) {
	d := numeric.Dimension{Rows: 2, Cols: 2}

	zero := numeric.NewZeroMatrix(d)
	assert.True(t, zero.HasNumericalProperty(dataflow.ConstantZero))
	assert.False(t, zero.HasNumericalProperty(dataflow.ConstantIdentity))

	id := numeric.NewIdentityMatrix(d)
	assert.True(t, id.HasNumericalProperty(dataflow.ConstantIdentity))
	assert.True(t, id.HasNumericalProperty(dataflow.Constant))
	assert.False(t, id.HasNumericalProperty(dataflow.ConstantZero))

	m := numeric.NewMatrixConstant(dense(2, 3, 1, 2, 3, 4, 5, 6))
	assert.Equal(t, numeric.Dimension{Rows: 2, Cols: 3}, m.Dimension())
	assert.Equal(t, "dims=2x3", m.DebugInfo())
	assert.False(t, m.HasNumericalProperty(dataflow.ConstantZero))

	// the constant owns a copy of its input
	src := dense(1, 1, 4)
	c := numeric.NewMatrixConstant(src)
	src.Set(0, 0, 5)
	assert.Equal(t, 4.0, c.GetValue().At(0, 0))
}

func TestMatrixOperators(t *testing.T) {
	a := numeric.NewMatrixConstant(dense(2, 2, 1, 2, 3, 4))
	b := numeric.NewMatrixConstant(dense(2, 2, 0, 1, 1, 0))
	s := numeric.NewParameter("s", 2)

	p := numeric.NewMatrixProduct(nil, a, b)
	assertMatrix(t, dense(2, 2, 2, 1, 4, 3), p)

	sum := numeric.NewMatrixAdd(nil, a, b, a)
	assertMatrix(t, dense(2, 2, 2, 5, 7, 8), sum)

	tr := numeric.NewTranspose(nil, numeric.NewMatrixConstant(dense(2, 3, 1, 2, 3, 4, 5, 6)))
	assert.Equal(t, numeric.Dimension{Rows: 3, Cols: 2}, tr.Dimension())
	assertMatrix(t, dense(3, 2, 1, 4, 2, 5, 3, 6), tr)

	scaled := numeric.NewScaleMatrix(nil, s, p)
	assertMatrix(t, dense(2, 2, 4, 2, 8, 6), scaled)

	e := numeric.NewMatrixEntry(nil, 1, 0, scaled)
	assert.Equal(t, 8.0, e.GetValue())
	assert.Equal(t, "MatrixEntry(1,0)", e.Description())

	s.SetValue(-1)
	assert.False(t, scaled.IsValid())
	assert.False(t, e.IsValid())
	assert.True(t, p.IsValid())
	assert.Equal(t, -4.0, e.GetValue())
}

func TestMatrixConstructionFailures(t *testing.T) {
	a := numeric.NewMatrixConstant(dense(2, 2, 1, 2, 3, 4))
	col := numeric.NewMatrixConstant(dense(3, 1, 1, 2, 3))
	x := numeric.NewParameter("x", 1)

	t.Run("product dimensions", func(t *testing.T) {
		err := catch(func() { numeric.NewMatrixProduct(nil, col, a) })
		var dims *numeric.DimensionMismatchError
		require.ErrorAs(t, err, &dims)
		assert.Equal(t, 1, dims.Index)
		assert.Equal(t, numeric.Dimension{Rows: 1, Cols: 2}, dims.Expected)
		assert.Equal(t, numeric.Dimension{Rows: 2, Cols: 2}, dims.Given)
	})

	t.Run("sum dimensions", func(t *testing.T) {
		err := catch(func() { numeric.NewMatrixAdd(nil, a, col) })
		var dims *numeric.DimensionMismatchError
		require.ErrorAs(t, err, &dims)
		assert.Equal(t, 1, dims.Index)
		assert.Contains(t, dims.Error(), "expected dimension 2x2, got 3x1")
	})

	t.Run("empty sum", func(t *testing.T) {
		err := catch(func() { numeric.NewMatrixAdd(nil) })
		var count *dataflow.DependencyCountError
		require.ErrorAs(t, err, &count)
	})

	t.Run("scalar where a matrix is expected", func(t *testing.T) {
		err := catch(func() { numeric.NewScaleMatrix(nil, x, x) })
		var mismatch *dataflow.DependencyTypeError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 1, mismatch.Index)
		assert.Equal(t, "numeric.Matrix", mismatch.Expected)
		assert.Equal(t, "*numeric.Parameter", mismatch.Given)
	})

	t.Run("entry out of range", func(t *testing.T) {
		err := catch(func() { numeric.NewMatrixEntry(nil, 3, 0, col) })
		var rng *numeric.EntryRangeError
		require.ErrorAs(t, err, &rng)
		assert.Equal(t, numeric.Dimension{Rows: 3, Cols: 1}, rng.Dims)
	})
}

func TestMatrixDerivatives(t *testing.T) {
	a := numeric.NewMatrixConstant(dense(2, 2, 1, 2, 3, 4))
	s := numeric.NewParameter("s", 3)
	c := dataflow.NewContext()

	scaled := numeric.NewScaleMatrix(c, s, a)
	ds := numeric.AsMatrix(scaled.Derive(c, s))
	assertMatrix(t, dense(2, 2, 1, 2, 3, 4), ds)

	// d(s.A.A)/ds = A.A
	sq := numeric.NewMatrixProduct(c, scaled, a)
	assertMatrix(t, dense(2, 2, 7, 10, 15, 22), numeric.AsMatrix(sq.Derive(c, s)))

	e := numeric.NewMatrixEntry(c, 0, 1, numeric.NewTranspose(c, scaled))
	de := numeric.AsScalar(e.Derive(c, s))
	assert.Equal(t, 3.0, de.GetValue())

	sum := numeric.NewMatrixAdd(c, scaled, a)
	assertMatrix(t, dense(2, 2, 1, 2, 3, 4), numeric.AsMatrix(sum.Derive(c, s)))

	zero := numeric.AsMatrix(a.Derive(c, s))
	assert.True(t, zero.HasNumericalProperty(dataflow.ConstantZero))
	assert.Equal(t, a.Dimension(), zero.Dimension())

	t.Run("with respect to a matrix", func(t *testing.T) {
		tr := numeric.NewTranspose(c, a)
		d := numeric.AsMatrix(tr.Derive(c, a))
		assert.True(t, d.HasNumericalProperty(dataflow.ConstantIdentity))

		diag := numeric.NewMatrixEntry(c, 1, 1, a)
		off := numeric.NewMatrixEntry(c, 0, 1, a)
		assert.Equal(t, 1.0, numeric.AsScalar(diag.Derive(c, a)).GetValue())
		assert.Equal(t, 0.0, numeric.AsScalar(off.Derive(c, a)).GetValue())
	})
}

func TestMatrixDerivativeWithRespectToItself(t *testing.T) {
	a := numeric.NewMatrixConstant(dense(2, 3, 1, 2, 3, 4, 5, 6))
	b := numeric.NewMatrixConstant(dense(3, 2, 1, 0, 0, 1, 1, 1))
	s := numeric.NewParameter("s", 2)

	nodes := []numeric.Matrix{
		a,
		numeric.NewMatrixAdd(nil, a, a),
		numeric.NewMatrixProduct(nil, a, b),
		numeric.NewScaleMatrix(nil, s, a),
		numeric.NewTranspose(nil, a),
	}
	for _, n := range nodes {
		t.Run(n.Description(), func(t *testing.T) {
			d := numeric.AsMatrix(n.Derive(nil, n))
			assert.True(t, d.HasNumericalProperty(dataflow.ConstantIdentity))
			assert.Equal(t, n.Dimension(), d.Dimension())
		})
	}

	e := numeric.NewMatrixEntry(nil, 0, 0, a)
	assert.Equal(t, 1.0, e.DeriveAsValue(nil, e).GetValue())
}

func TestMatrixRebuild(t *testing.T) {
	a := numeric.NewMatrixConstant(dense(2, 2, 1, 2, 3, 4))
	s := numeric.NewParameter("s", 2)
	e := numeric.NewMatrixEntry(nil, 1, 1, numeric.NewScaleMatrix(nil, s, a))

	t2 := numeric.NewParameter("t", 10)
	r := dataflow.RebuildWithSubstitution(e, map[dataflow.Node]dataflow.Node{s: t2})
	assert.Equal(t, 40.0, numeric.AsScalar(r).GetValue())
	assert.Equal(t, 8.0, e.GetValue())
	assert.Equal(t, "MatrixEntry(1,1)", r.Description())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "2.5", numeric.Format(numeric.NewConstant(2.5)))
	assert.Equal(t, "3", numeric.Format(numeric.NewAdd(nil, numeric.NewOne(), numeric.NewConstant(2))))

	out := numeric.Format(numeric.NewMatrixConstant(dense(2, 2, 1, 2, 3, 4)))
	assert.Contains(t, out, "1  2")
	assert.Contains(t, out, "3  4")
}
