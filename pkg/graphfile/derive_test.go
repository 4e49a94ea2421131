package graphfile

import (
	"testing"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// double keeps the default IsDerivable, which answers false, but knows its
// derivative with respect to its input.
type double struct {
	dataflow.Value[float64]
	x numeric.Scalar
}

func newDouble(x numeric.Scalar) *double {
	n := &double{x: x}
	dataflow.InitValue[float64](n, []dataflow.Node{x}, 0)
	return n
}

func (n *double) Compute() {
	*n.AccessValueMutable() = 2 * n.x.AccessValueRaw()
}

func (n *double) Derive(c *dataflow.Context, node dataflow.Node) dataflow.Node {
	return numeric.NewMul(c, numeric.NewConstant(2), c.Derive(n.x, node))
}

// opaque has neither a derivative nor a claim to one.
type opaque struct {
	dataflow.Value[float64]
}

func (n *opaque) Compute() {}

func TestDeriveDoesNotTrustIsDerivable(t *testing.T) {
	g, err := Parse([]byte(`parameter "x" { value = 2 }`), "custom.hcl")
	require.NoError(t, err)
	x, err := g.Node("x")
	require.NoError(t, err)

	d := newDouble(numeric.AsScalar(x))
	require.False(t, d.IsDerivable(x))
	g.add("double", d)

	dd, err := g.Derive("double", "x")
	require.NoError(t, err)
	assert.Equal(t, 2.0, numeric.AsScalar(dd).GetValue())

	o := &opaque{}
	dataflow.InitValue[float64](o, []dataflow.Node{x}, 0)
	g.add("opaque", o)

	_, err = g.Derive("opaque", "x")
	var undefined *dataflow.UndefinedDerivativeError
	require.ErrorAs(t, err, &undefined)
	assert.ErrorContains(t, err, `"opaque" cannot be derived with respect to "x"`)
}
