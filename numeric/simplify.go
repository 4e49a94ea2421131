package numeric

import "github.com/delaneyj/phylflow/dataflow"

// Builders used by Derive implementations. They rely on numerical
// property hints to avoid growing derivative graphs with x*0, x*1 and x+0.

func isZero(n dataflow.Node) bool {
	return n.HasNumericalProperty(dataflow.ConstantZero)
}

func isOne(n dataflow.Node) bool {
	return n.HasNumericalProperty(dataflow.ConstantOne)
}

func isIdentity(n dataflow.Node) bool {
	return n.HasNumericalProperty(dataflow.ConstantIdentity)
}

func sumScalars(c *dataflow.Context, terms []Scalar) Scalar {
	var kept []dataflow.Node
	for _, t := range terms {
		if !isZero(t) {
			kept = append(kept, t)
		}
	}
	switch len(kept) {
	case 0:
		return NewZero()
	case 1:
		return AsScalar(kept[0])
	}
	return NewAdd(c, kept...)
}

func productScalars(c *dataflow.Context, x, y Scalar) Scalar {
	switch {
	case isZero(x) || isZero(y):
		return NewZero()
	case isOne(x):
		return y
	case isOne(y):
		return x
	}
	return NewMul(c, x, y)
}

func negScalar(c *dataflow.Context, x Scalar) Scalar {
	if isZero(x) {
		return x
	}
	return NewNeg(c, x)
}

func sumMatrices(c *dataflow.Context, dims Dimension, terms []Matrix) Matrix {
	var kept []dataflow.Node
	for _, t := range terms {
		if !isZero(t) {
			kept = append(kept, t)
		}
	}
	switch len(kept) {
	case 0:
		return NewZeroMatrix(dims)
	case 1:
		return AsMatrix(kept[0])
	}
	return NewMatrixAdd(c, kept...)
}

func productMatrices(c *dataflow.Context, x, y Matrix) Matrix {
	dims := Dimension{Rows: x.Dimension().Rows, Cols: y.Dimension().Cols}
	switch {
	case isZero(x) || isZero(y):
		return NewZeroMatrix(dims)
	case isIdentity(x) && x.Dimension().Square():
		return y
	case isIdentity(y) && y.Dimension().Square():
		return x
	}
	return NewMatrixProduct(c, x, y)
}

func scaleMatrix(c *dataflow.Context, s Scalar, m Matrix) Matrix {
	switch {
	case isZero(s) || isZero(m):
		return NewZeroMatrix(m.Dimension())
	case isOne(s):
		return m
	}
	return NewScaleMatrix(c, s, m)
}
