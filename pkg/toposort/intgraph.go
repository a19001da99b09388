package toposort

import "sort"

// IntGraph is a directed graph over dense integer IDs.
type IntGraph struct {
	// nodes[u] lists v for every edge u -> v, in insertion order.
	nodes    [][]int
	inDegree []int
}

// NewIntGraph creates an empty IntGraph.
func NewIntGraph() *IntGraph {
	return &IntGraph{}
}

// Len returns the number of node slots.
func (g *IntGraph) Len() int {
	return len(g.nodes)
}

// EnsureCapacity grows the graph to hold at least n nodes.
func (g *IntGraph) EnsureCapacity(n int) {
	if n <= len(g.nodes) {
		return
	}

	nodes := make([][]int, n)
	copy(nodes, g.nodes)
	g.nodes = nodes

	inDegree := make([]int, n)
	copy(inDegree, g.inDegree)
	g.inDegree = inDegree
}

// AddNode makes room for id. It returns false if id was already present.
func (g *IntGraph) AddNode(id int) bool {
	if id < len(g.nodes) {
		return false
	}

	g.EnsureCapacity(id + 1)

	return true
}

// AddEdge adds u -> v. It returns false if the edge already existed.
func (g *IntGraph) AddEdge(u, v int) bool {
	g.EnsureCapacity(max(u, v) + 1)

	for _, neighbor := range g.nodes[u] {
		if neighbor == v {
			return false
		}
	}

	g.nodes[u] = append(g.nodes[u], v)
	g.inDegree[v]++

	return true
}

// Children returns the targets of u's outgoing edges in insertion order.
func (g *IntGraph) Children(u int) []int {
	if u < 0 || u >= len(g.nodes) {
		return nil
	}

	out := make([]int, len(g.nodes[u]))
	copy(out, g.nodes[u])

	return out
}

// InDegree returns the number of edges into v.
func (g *IntGraph) InDegree(v int) int {
	if v < 0 || v >= len(g.inDegree) {
		return 0
	}

	return g.inDegree[v]
}

// TopoSort orders the nodes with Kahn's algorithm, always taking the lowest
// available ID next. The boolean is false when the graph has a cycle; the
// returned prefix then holds the nodes that could be ordered.
func (g *IntGraph) TopoSort() ([]int, bool) {
	n := len(g.nodes)

	inDegree := make([]int, n)
	copy(inDegree, g.inDegree)

	queue := make([]int, 0, n)

	for id := range n {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]int, 0, n)

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		result = append(result, u)

		for _, v := range g.nodes[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				insertSorted(&queue, v)
			}
		}
	}

	return result, len(result) == n
}

// FindCycle returns a shortest cycle through start as start, ..., start,
// or nil when start is on no cycle.
func (g *IntGraph) FindCycle(start int) []int {
	if start < 0 || start >= len(g.nodes) {
		return nil
	}

	parent := map[int]int{start: -1}
	queue := []int{start}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for _, v := range g.nodes[u] {
			if v == start {
				cycle := []int{start}
				for cur := u; cur != start; cur = parent[cur] {
					cycle = append(cycle, cur)
				}

				cycle = append(cycle, start)
				reverse(cycle)

				return cycle
			}

			if _, seen := parent[v]; !seen {
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}

	return nil
}

// AnyCycle returns the first cycle met by a depth-first search from the
// lowest IDs, as a closed path, or nil when the graph is acyclic.
func (g *IntGraph) AnyCycle() []int {
	const (
		white = iota
		grey
		black
	)

	color := make([]int, len(g.nodes))
	stack := make([]int, 0, len(g.nodes))

	var visit func(u int) []int

	visit = func(u int) []int {
		color[u] = grey
		stack = append(stack, u)

		for _, v := range g.nodes[u] {
			switch color[v] {
			case grey:
				idx := len(stack) - 1
				for stack[idx] != v {
					idx--
				}

				cycle := make([]int, 0, len(stack)-idx+1)
				cycle = append(cycle, stack[idx:]...)

				return append(cycle, v)
			case white:
				if cycle := visit(v); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[u] = black

		return nil
	}

	for id := range g.nodes {
		if color[id] != white {
			continue
		}

		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}

	return nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func insertSorted(s *[]int, v int) {
	i := sort.SearchInts(*s, v)
	*s = append(*s, 0)
	copy((*s)[i+1:], (*s)[i:])
	(*s)[i] = v
}
