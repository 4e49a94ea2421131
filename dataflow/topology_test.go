package dataflow_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransitivelyDependentOn(t *testing.T) {
	/*
	   a   x
	   |
	   b
	   |
	   c
	*/
	a := newSource(1)
	x := newSource(1)
	b := newSum(a)
	c := newSum(b)

	assert.True(t, dataflow.IsTransitivelyDependentOn(a, c))
	assert.True(t, dataflow.IsTransitivelyDependentOn(b, c))
	assert.False(t, dataflow.IsTransitivelyDependentOn(c, a))
	assert.False(t, dataflow.IsTransitivelyDependentOn(c, c))
	assert.False(t, dataflow.IsTransitivelyDependentOn(x, c))
}

func TestRebuildWithSubstitution(t *testing.T) {
	/*
	   a   b
	   | / |
	   c   |
	    \  |
	      d
	*/
	a := newSource(1)
	b := newSource(2)
	c := newSum(a, b)
	d := newSum(c, b)
	require.Equal(t, 5.0, d.GetValue())

	t.Run("substituted leaf", func(t *testing.T) {
		a2 := newSource(10)
		r := dataflow.RebuildWithSubstitution(d, map[dataflow.Node]dataflow.Node{a: a2})

		assert.False(t, dataflow.Same(r, d))
		assert.False(t, dataflow.Same(r.Dependency(0), c))
		assert.True(t, dataflow.Same(r.Dependency(1), b))
		assert.True(t, dataflow.Same(r.Dependency(0).Dependency(0), a2))
		assert.Equal(t, 14.0, dataflow.AsValue[float64](r).GetValue())

		// the original graph is untouched
		assert.True(t, dataflow.Same(d.Dependency(0), c))
		assert.True(t, dataflow.Same(c.Dependency(0), a))
		assert.Equal(t, 5.0, d.GetValue())
	})

	t.Run("substituted inner node", func(t *testing.T) {
		c2 := newSource(100)
		r := dataflow.RebuildWithSubstitution(d, map[dataflow.Node]dataflow.Node{c: c2})
		assert.Equal(t, 102.0, dataflow.AsValue[float64](r).GetValue())
	})

	t.Run("nothing to substitute", func(t *testing.T) {
		r := dataflow.RebuildWithSubstitution(d, map[dataflow.Node]dataflow.Node{newSource(0): newSource(1)})
		assert.True(t, dataflow.Same(r, d))
	})

	t.Run("rebuild with same dependencies", func(t *testing.T) {
		r := d.Rebuild(d.Dependencies())
		assert.False(t, dataflow.Same(r, d))
		assert.Equal(t, d.GetValue(), dataflow.AsValue[float64](r).GetValue())
	})
}

func TestExportGraph(t *testing.T) {
	/*
	   a   b
	   | /
	   c
	   |
	   d
	*/
	a := newSource(1)
	b := newSource(2)
	c := newSum(a, b)
	d := newSum(c)
	c.GetValue()

	g := dataflow.ExportGraph([]dataflow.Node{c}, false)
	require.Len(t, g.Nodes, 3)
	assert.Equal(t, a.ID(), g.Nodes[0].ID)
	assert.Equal(t, b.ID(), g.Nodes[1].ID)
	assert.Equal(t, c.ID(), g.Nodes[2].ID)
	assert.True(t, g.Nodes[2].FromFrontier)
	assert.False(t, g.Nodes[0].FromFrontier)
	assert.Equal(t, 2, g.Nodes[2].Dependencies)
	assert.Equal(t, 1, g.Nodes[2].Dependents)
	assert.Equal(t, []dataflow.Edge{
		{From: c.ID(), To: a.ID(), Index: 0},
		{From: c.ID(), To: b.ID(), Index: 1},
	}, g.Edges)

	up := dataflow.ExportGraph([]dataflow.Node{a}, true)
	require.Len(t, up.Nodes, 4)
	assert.Equal(t, d.ID(), up.Nodes[3].ID)
	assert.False(t, up.Nodes[3].Valid)
}

func TestWriteGraphToDot(t *testing.T) {
	a := newSource(1)
	b := newSum(a)
	c := newSum(b)
	b.GetValue()

	var buf bytes.Buffer
	err := dataflow.WriteGraphToDot(&buf, []dataflow.Node{c}, dataflow.ShowDependencyIndex|dataflow.DetailedNodeInfo)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "digraph dataflow {")
	assert.Contains(t, out, fmt.Sprintf("n%d -> n%d [label=\"0\"];", c.ID(), b.ID()))
	assert.Contains(t, out, fmt.Sprintf("n%d -> n%d [label=\"0\"];", b.ID(), a.ID()))
	assert.Contains(t, out, fmt.Sprintf(`n%d [label="*dataflow_test.sum\n#%d invalid", style=dashed, penwidth=2];`, c.ID(), c.ID()))
	assert.Contains(t, out, fmt.Sprintf(`n%d [label="*dataflow_test.sum\n#%d valid"];`, b.ID(), b.ID()))

	buf.Reset()
	require.NoError(t, dataflow.WriteGraphToDot(&buf, []dataflow.Node{a}, dataflow.DotNone))
	assert.NotContains(t, buf.String(), "->")

	buf.Reset()
	require.NoError(t, dataflow.WriteGraphToDot(&buf, []dataflow.Node{a}, dataflow.FollowUpwardLinks))
	assert.Contains(t, buf.String(), fmt.Sprintf("n%d -> n%d;", c.ID(), b.ID()))

	path := filepath.Join(t.TempDir(), "graph.dot")
	require.NoError(t, dataflow.WriteGraphToDotFile(path, []dataflow.Node{c}, dataflow.DotNone))
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), fmt.Sprintf("n%d -> n%d;", c.ID(), b.ID()))
}

type brokenWriter struct{ writes int }

func (w *brokenWriter) Write([]byte) (int, error) {
	w.writes++
	return 0, errors.New("disk full")
}

func TestWriteGraphToDotReportsWriteErrors(t *testing.T) {
	a := newSource(1)
	b := newSum(a)

	w := &brokenWriter{}
	err := dataflow.WriteGraphToDot(w, []dataflow.Node{b}, dataflow.DetailedNodeInfo)
	assert.ErrorContains(t, err, "writing dot graph: disk full")
	assert.Equal(t, 1, w.writes)
}
