// Package graphfile loads numeric dataflow graphs from HCL files.
//
//	parameter "x" { value = 2 }
//	constant  "m" { value = [[1, 2], [3, 4]] }
//	node "z" {
//	  op     = "add"
//	  inputs = ["x", "y"]
//	}
//
// Names are shared by every block kind. Inputs may refer to blocks defined
// later in the file, but not in a cycle.
package graphfile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gonum.org/v1/gonum/mat"
)

type fileRoot struct {
	Parameters []*parameterBlock `hcl:"parameter,block"`
	Constants  []*constantBlock  `hcl:"constant,block"`
	Nodes      []*nodeBlock      `hcl:"node,block"`
}

type parameterBlock struct {
	Name  string  `hcl:"name,label"`
	Value float64 `hcl:"value"`
}

type constantBlock struct {
	Name  string    `hcl:"name,label"`
	Value cty.Value `hcl:"value"`
}

type nodeBlock struct {
	Name   string   `hcl:"name,label"`
	Op     string   `hcl:"op"`
	Inputs []string `hcl:"inputs,optional"`
	Row    *int     `hcl:"row,optional"`
	Col    *int     `hcl:"col,optional"`
}

// Graph is a loaded graph file. Operator nodes are interned in the graph's
// context, which is also used for every derivation.
type Graph struct {
	ctx    *dataflow.Context
	nodes  map[string]dataflow.Node
	params map[string]*numeric.Parameter
	names  map[uint64]string
	order  []string
}

// Load reads and parses the graph file at filename.
func Load(filename string) (*Graph, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return Parse(src, filename)
}

// Parse builds the graph described by src. filename is only used in
// diagnostics.
func Parse(src []byte, filename string) (*Graph, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse graph file %s: %w", filename, diags)
	}
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode graph file %s: %w", filename, diags)
	}

	l := &loader{
		g: &Graph{
			ctx:    dataflow.NewContext(),
			nodes:  map[string]dataflow.Node{},
			params: map[string]*numeric.Parameter{},
			names:  map[uint64]string{},
		},
		blocks:   map[string]*nodeBlock{},
		visiting: mapset.NewThreadUnsafeSet[string](),
	}
	declared := mapset.NewThreadUnsafeSet[string]()
	declare := func(name string) error {
		if !declared.Add(name) {
			return fmt.Errorf("%s: %q is defined more than once", filename, name)
		}
		return nil
	}

	for _, p := range root.Parameters {
		if err := declare(p.Name); err != nil {
			return nil, err
		}
		n := numeric.NewParameter(p.Name, p.Value)
		l.g.params[p.Name] = n
		l.g.add(p.Name, n)
	}
	for _, c := range root.Constants {
		if err := declare(c.Name); err != nil {
			return nil, err
		}
		n, err := constantNode(c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: constant %q: %w", filename, c.Name, err)
		}
		l.g.add(c.Name, n)
	}
	for _, b := range root.Nodes {
		if err := declare(b.Name); err != nil {
			return nil, err
		}
		l.blocks[b.Name] = b
	}
	for _, b := range root.Nodes {
		if _, err := l.resolve(b.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}
	return l.g, nil
}

type loader struct {
	g        *Graph
	blocks   map[string]*nodeBlock
	visiting mapset.Set[string]
}

func (l *loader) resolve(name string) (dataflow.Node, error) {
	if n, ok := l.g.nodes[name]; ok {
		return n, nil
	}
	b, ok := l.blocks[name]
	if !ok {
		return nil, fmt.Errorf("undefined name %q", name)
	}
	if !l.visiting.Add(name) {
		return nil, fmt.Errorf("cycle detected involving %q", name)
	}
	deps := make([]dataflow.Node, len(b.Inputs))
	for i, input := range b.Inputs {
		dep, err := l.resolve(input)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", name, err)
		}
		deps[i] = dep
	}
	l.visiting.Remove(name)

	n, err := buildNode(l.g.ctx, b, deps)
	if err != nil {
		return nil, fmt.Errorf("node %q: %w", name, err)
	}
	l.g.add(name, n)
	return n, nil
}

func (g *Graph) add(name string, n dataflow.Node) {
	g.nodes[name] = n
	g.order = append(g.order, name)
	if _, ok := g.names[n.ID()]; !ok {
		g.names[n.ID()] = name
	}
}

type builder func(c *dataflow.Context, b *nodeBlock, deps []dataflow.Node) dataflow.Node

var builders = map[string]builder{
	"add": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewAdd(c, deps...)
	},
	"mul": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewMul(c, deps...)
	},
	"neg": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewNeg(c, deps...)
	},
	"exp": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewExp(c, deps...)
	},
	"log": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewLog(c, deps...)
	},
	"inverse": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewInverse(c, deps...)
	},
	"madd": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewMatrixAdd(c, deps...)
	},
	"mmul": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewMatrixProduct(c, deps...)
	},
	"scale": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewScaleMatrix(c, deps...)
	},
	"transpose": func(c *dataflow.Context, _ *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewTranspose(c, deps...)
	},
	"entry": func(c *dataflow.Context, b *nodeBlock, deps []dataflow.Node) dataflow.Node {
		return numeric.NewMatrixEntry(c, *b.Row, *b.Col, deps...)
	},
}

// Ops lists the operations a node block may use.
func Ops() []string {
	ops := make([]string, 0, len(builders))
	for op := range builders {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

func buildNode(c *dataflow.Context, b *nodeBlock, deps []dataflow.Node) (n dataflow.Node, err error) {
	build, ok := builders[b.Op]
	if !ok {
		return nil, fmt.Errorf("unknown op %q, expected one of %s", b.Op, strings.Join(Ops(), ", "))
	}
	if b.Op == "entry" && (b.Row == nil || b.Col == nil) {
		return nil, errors.New("op entry requires row and col")
	}
	defer dataflow.Recover(&err)
	return build(c, b, deps), nil
}

// constantNode turns a number into a scalar constant and a list of equally
// sized lists of numbers into a matrix constant.
func constantNode(v cty.Value) (dataflow.Node, error) {
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, errors.New("value must be known")
	}
	if v.Type().Equals(cty.Number) {
		f, _ := v.AsBigFloat().Float64()
		return numeric.NewConstant(f), nil
	}
	if !isSequence(v.Type()) {
		return nil, fmt.Errorf("expected a number or a matrix, got %s", v.Type().FriendlyName())
	}

	var (
		data       []float64
		rows, cols int
	)
	for it := v.ElementIterator(); it.Next(); {
		_, row := it.Element()
		if row.IsNull() || !isSequence(row.Type()) {
			return nil, fmt.Errorf("row %d: expected a list of numbers", rows)
		}
		n := 0
		for rit := row.ElementIterator(); rit.Next(); n++ {
			_, x := rit.Element()
			if x.IsNull() || !x.Type().Equals(cty.Number) {
				return nil, fmt.Errorf("row %d, column %d: expected a number", rows, n)
			}
			f, _ := x.AsBigFloat().Float64()
			data = append(data, f)
		}
		if rows == 0 {
			cols = n
		} else if n != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", rows, n, cols)
		}
		rows++
	}
	if rows == 0 || cols == 0 {
		return nil, errors.New("matrix must not be empty")
	}
	return numeric.NewMatrixConstant(mat.NewDense(rows, cols, data)), nil
}

func isSequence(t cty.Type) bool {
	return t.IsTupleType() || t.IsListType()
}

// Context is the context the graph was built with.
func (g *Graph) Context() *dataflow.Context { return g.ctx }

// Names returns every defined name: leaves first, then nodes in the order
// they were built, which is a topological order.
func (g *Graph) Names() []string { return slices.Clone(g.order) }

// Parameters returns the sorted parameter names.
func (g *Graph) Parameters() []string {
	names := make([]string, 0, len(g.params))
	for name := range g.params {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Node returns the node defined under name.
func (g *Graph) Node(name string) (dataflow.Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("undefined name %q", name)
	}
	return n, nil
}

// Nodes resolves several names at once.
func (g *Graph) Nodes(names ...string) ([]dataflow.Node, error) {
	nodes := make([]dataflow.Node, len(names))
	for i, name := range names {
		n, err := g.Node(name)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

// NameOf returns the first name n was defined under, or "" if the node does
// not belong to the file.
func (g *Graph) NameOf(n dataflow.Node) string {
	return g.names[n.ID()]
}

// Set changes a parameter, invalidating everything that depends on it.
func (g *Graph) Set(name string, v float64) error {
	p, ok := g.params[name]
	if !ok {
		return fmt.Errorf("%q is not a parameter", name)
	}
	p.SetValue(v)
	return nil
}

// SetAssignment applies a "name=value" assignment.
func (g *Graph) SetAssignment(assignment string) error {
	name, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return fmt.Errorf("invalid assignment %q, expected name=value", assignment)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid value in assignment %q: %w", assignment, err)
	}
	return g.Set(strings.TrimSpace(name), v)
}

// Derive returns the derivative of the node named of with respect to the
// node named wrt, built in the graph's context. IsDerivable may answer false
// for nodes that do derive, so the derivation is always attempted.
func (g *Graph) Derive(of, wrt string) (dataflow.Node, error) {
	nodes, err := g.Nodes(of, wrt)
	if err != nil {
		return nil, err
	}
	d, err := derive(g.ctx, nodes[0], nodes[1])
	if err != nil {
		return nil, fmt.Errorf("%q cannot be derived with respect to %q: %w", of, wrt, err)
	}
	return d, nil
}

func derive(c *dataflow.Context, of, wrt dataflow.Node) (d dataflow.Node, err error) {
	defer dataflow.Recover(&err)
	return c.Derive(of, wrt), nil
}
