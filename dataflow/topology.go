package dataflow

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// IsTransitivelyDependentOn reports whether searched is reachable from
// node through dependency edges. A node is not its own dependency.
func IsTransitivelyDependentOn(searched, node Node) bool {
	target := searched.base()
	visited := mapset.NewThreadUnsafeSet[*Base]()
	stack := slices.Clone(node.base().dependencies)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := n.base()
		if b == target {
			return true
		}
		if !visited.Add(b) {
			continue
		}
		stack = append(stack, n.base().dependencies...)
	}
	return false
}

// RebuildWithSubstitution returns node with every occurrence of a key of
// substitutions replaced by its value. Only nodes that transitively depend
// on a substituted node are rebuilt; the rest of the graph is shared with
// the original, which is left untouched.
func RebuildWithSubstitution(node Node, substitutions map[Node]Node) Node {
	r := rebuilder{
		substitutions: make(map[*Base]Node, len(substitutions)),
		done:          map[*Base]Node{},
	}
	for from, to := range substitutions {
		r.substitutions[from.base()] = to
	}
	return r.rebuild(node)
}

type rebuilder struct {
	substitutions map[*Base]Node
	done          map[*Base]Node
}

func (r *rebuilder) rebuild(n Node) Node {
	b := n.base()
	if s, ok := r.substitutions[b]; ok {
		return s
	}
	if d, ok := r.done[b]; ok {
		return d
	}

	deps := n.base().dependencies
	var newDeps []Node
	for i, dep := range deps {
		nd := r.rebuild(dep)
		if newDeps == nil && !Same(nd, dep) {
			newDeps = make([]Node, len(deps))
			copy(newDeps, deps[:i])
		}
		if newDeps != nil {
			newDeps[i] = nd
		}
	}

	result := n
	if newDeps != nil {
		result = n.Rebuild(newDeps)
	}
	r.done[b] = result
	return result
}

// GraphExport is a flat view of part of a graph, suitable for rendering.
type GraphExport struct {
	Nodes []NodeInfo
	Edges []Edge
}

type NodeInfo struct {
	Node         Node
	ID           uint64
	Description  string
	DebugInfo    string
	Valid        bool
	Dependencies int
	Dependents   int
	Properties   []NumericalProperty
	FromFrontier bool
}

// Edge goes from a node to its Index-th dependency.
type Edge struct {
	From, To uint64
	Index    int
}

var allProperties = []NumericalProperty{Constant, ConstantZero, ConstantOne, ConstantIdentity}

// ExportGraph collects every node reachable from frontier through
// dependency edges, and through dependent edges as well if followUpward is
// set. Nodes are ordered by id and edges by (from, index).
func ExportGraph(frontier []Node, followUpward bool) *GraphExport {
	seen := map[*Base]bool{}
	start := mapset.NewThreadUnsafeSet[*Base]()
	var order []Node
	stack := make([]Node, 0, len(frontier))
	for _, n := range frontier {
		if isNil(n) {
			continue
		}
		start.Add(n.base())
		stack = append(stack, n)
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b := n.base()
		if seen[b] {
			continue
		}
		seen[b] = true
		order = append(order, n)
		stack = append(stack, n.base().dependencies...)
		if followUpward {
			stack = append(stack, n.DependentNodes()...)
		}
	}
	slices.SortFunc(order, func(x, y Node) int { return compareIDs(x.ID(), y.ID()) })

	g := &GraphExport{Nodes: make([]NodeInfo, 0, len(order))}
	for _, n := range order {
		info := NodeInfo{
			Node:         n,
			ID:           n.ID(),
			Description:  n.Description(),
			DebugInfo:    n.DebugInfo(),
			Valid:        n.IsValid(),
			Dependencies: n.NumDependencies(),
			Dependents:   len(n.DependentNodes()),
			FromFrontier: start.Contains(n.base()),
		}
		for _, p := range allProperties {
			if n.HasNumericalProperty(p) {
				info.Properties = append(info.Properties, p)
			}
		}
		g.Nodes = append(g.Nodes, info)
		for i, dep := range n.base().dependencies {
			g.Edges = append(g.Edges, Edge{From: n.ID(), To: dep.ID(), Index: i})
		}
	}
	return g
}
