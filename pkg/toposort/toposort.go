// Package toposort maintains the importer -> imported graph of a bundling
// run, orders it topologically and reports import cycles.
package toposort

import (
	"fmt"
	"strings"
)

// Graph is a directed graph over named nodes. Nodes keep their insertion order.
type Graph struct {
	symbols  *SymbolTable
	intGraph *IntGraph
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		symbols:  NewSymbolTable(),
		intGraph: NewIntGraph(),
	}
}

// AddNode inserts a node. It returns false if the node already exists.
func (g *Graph) AddNode(name string) bool {
	if _, exists := g.symbols.Lookup(name); exists {
		return false
	}

	return g.intGraph.AddNode(g.symbols.Intern(name))
}

// AddEdge inserts from -> to, creating missing nodes. It returns false if the
// edge already existed.
func (g *Graph) AddEdge(from, to string) bool {
	u := g.symbols.Intern(from)
	v := g.symbols.Intern(to)

	g.intGraph.AddNode(u)
	g.intGraph.AddNode(v)

	return g.intGraph.AddEdge(u, v)
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return g.symbols.Names()
}

// HasNode reports whether name is a node.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.symbols.Lookup(name)

	return ok
}

// Children returns the targets of from's outgoing edges in insertion order.
func (g *Graph) Children(from string) []string {
	u, ok := g.symbols.Lookup(from)
	if !ok {
		return nil
	}

	return g.names(g.intGraph.Children(u))
}

// Parents returns the sources of to's incoming edges in insertion order.
func (g *Graph) Parents(to string) []string {
	v, ok := g.symbols.Lookup(to)
	if !ok {
		return nil
	}

	var parents []string

	for u := range g.intGraph.Len() {
		for _, child := range g.intGraph.Children(u) {
			if child == v {
				parents = append(parents, g.symbols.Resolve(u))

				break
			}
		}
	}

	return parents
}

// Toposort orders the nodes so that every edge points forward. The boolean
// is false when the graph has a cycle.
func (g *Graph) Toposort() ([]string, bool) {
	ids, ok := g.intGraph.TopoSort()

	return g.names(ids), ok
}

// FindCycle returns a cycle through seed as a closed path
// (seed, ..., seed), or nil when seed is on no cycle.
func (g *Graph) FindCycle(seed string) []string {
	id, ok := g.symbols.Lookup(seed)
	if !ok {
		return nil
	}

	return g.names(g.intGraph.FindCycle(id))
}

// Cycle returns some cycle of the graph as a closed path, or nil when the
// graph is acyclic.
func (g *Graph) Cycle() []string {
	return g.names(g.intGraph.AnyCycle())
}

func (g *Graph) names(ids []int) []string {
	if ids == nil {
		return nil
	}

	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = g.symbols.Resolve(id)
	}

	return out
}

// Serialize renders the graph in Graphviz dot format. attrs, when non-nil,
// returns extra attributes for a node (e.g. `color=grey`); it may return "".
func (g *Graph) Serialize(name string, attrs func(node string) string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", name)

	for _, node := range g.Nodes() {
		extra := ""
		if attrs != nil {
			extra = attrs(node)
		}

		if extra == "" {
			fmt.Fprintf(&sb, "  %q\n", node)
		} else {
			fmt.Fprintf(&sb, "  %q [%s]\n", node, extra)
		}
	}

	for _, from := range g.Nodes() {
		for _, to := range g.Children(from) {
			fmt.Fprintf(&sb, "  %q -> %q\n", from, to)
		}
	}

	sb.WriteString("}\n")

	return sb.String()
}
