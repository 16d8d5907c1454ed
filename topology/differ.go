package topology

import (
	"sort"

	"wsbr-console/models"
)

// Ops is the minimal set of mutations turning one Graph into another.
// Every list is sorted by ID.
type Ops struct {
	AddNodes    []models.DisplayNode `json:"addNodes"`
	UpdateNodes []models.DisplayNode `json:"updateNodes"`
	RemoveNodes []string             `json:"removeNodes"`
	AddEdges    []models.DisplayEdge `json:"addEdges"`
	UpdateEdges []models.DisplayEdge `json:"updateEdges"`
	RemoveEdges []string             `json:"removeEdges"`
}

// Empty reports whether applying ops would change nothing.
func (o Ops) Empty() bool {
	return len(o.AddNodes) == 0 && len(o.UpdateNodes) == 0 && len(o.RemoveNodes) == 0 &&
		len(o.AddEdges) == 0 && len(o.UpdateEdges) == 0 && len(o.RemoveEdges) == 0
}

// Count is the total number of operations.
func (o Ops) Count() int {
	return len(o.AddNodes) + len(o.UpdateNodes) + len(o.RemoveNodes) +
		len(o.AddEdges) + len(o.UpdateEdges) + len(o.RemoveEdges)
}

// Diff compares prev and next by ID. Nodes and edges are compared by value,
// so anything the renderer adds (positions) never shows up here.
func Diff(prev, next Graph) Ops {
	var ops Ops

	oldNodes := make(map[string]models.DisplayNode, len(prev.Nodes))
	for _, n := range prev.Nodes {
		oldNodes[n.ID] = n
	}
	newNodes := make(map[string]struct{}, len(next.Nodes))
	for _, n := range next.Nodes {
		newNodes[n.ID] = struct{}{}
		old, ok := oldNodes[n.ID]
		switch {
		case !ok:
			ops.AddNodes = append(ops.AddNodes, n)
		case old != n:
			ops.UpdateNodes = append(ops.UpdateNodes, n)
		}
	}
	for _, n := range prev.Nodes {
		if _, ok := newNodes[n.ID]; !ok {
			ops.RemoveNodes = append(ops.RemoveNodes, n.ID)
		}
	}

	oldEdges := make(map[string]models.DisplayEdge, len(prev.Edges))
	for _, e := range prev.Edges {
		oldEdges[e.ID] = e
	}
	newEdges := make(map[string]struct{}, len(next.Edges))
	for _, e := range next.Edges {
		newEdges[e.ID] = struct{}{}
		old, ok := oldEdges[e.ID]
		switch {
		case !ok:
			ops.AddEdges = append(ops.AddEdges, e)
		case old != e:
			ops.UpdateEdges = append(ops.UpdateEdges, e)
		}
	}
	for _, e := range prev.Edges {
		if _, ok := newEdges[e.ID]; !ok {
			ops.RemoveEdges = append(ops.RemoveEdges, e.ID)
		}
	}

	sortOps(&ops)
	return ops
}

func sortOps(ops *Ops) {
	sort.Slice(ops.AddNodes, func(i, j int) bool { return ops.AddNodes[i].ID < ops.AddNodes[j].ID })
	sort.Slice(ops.UpdateNodes, func(i, j int) bool { return ops.UpdateNodes[i].ID < ops.UpdateNodes[j].ID })
	sort.Strings(ops.RemoveNodes)
	sort.Slice(ops.AddEdges, func(i, j int) bool { return ops.AddEdges[i].ID < ops.AddEdges[j].ID })
	sort.Slice(ops.UpdateEdges, func(i, j int) bool { return ops.UpdateEdges[i].ID < ops.UpdateEdges[j].ID })
	sort.Strings(ops.RemoveEdges)
}

// Apply returns g with ops applied. g itself is left untouched.
func (g Graph) Apply(ops Ops) Graph {
	nodes := make(map[string]models.DisplayNode, len(g.Nodes)+len(ops.AddNodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	for _, id := range ops.RemoveNodes {
		delete(nodes, id)
	}
	for _, n := range ops.AddNodes {
		nodes[n.ID] = n
	}
	for _, n := range ops.UpdateNodes {
		nodes[n.ID] = n
	}

	edges := make(map[string]models.DisplayEdge, len(g.Edges)+len(ops.AddEdges))
	for _, e := range g.Edges {
		edges[e.ID] = e
	}
	for _, id := range ops.RemoveEdges {
		delete(edges, id)
	}
	for _, e := range ops.AddEdges {
		edges[e.ID] = e
	}
	for _, e := range ops.UpdateEdges {
		edges[e.ID] = e
	}

	out := Graph{
		Nodes: make([]models.DisplayNode, 0, len(nodes)),
		Edges: make([]models.DisplayEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		out.Nodes = append(out.Nodes, n)
	}
	for _, e := range edges {
		out.Edges = append(out.Edges, e)
	}
	sort.Slice(out.Nodes, func(i, j int) bool { return out.Nodes[i].ID < out.Nodes[j].ID })
	sort.Slice(out.Edges, func(i, j int) bool { return out.Edges[i].ID < out.Edges[j].ID })
	return out
}

// Sink is a live rendered graph that accepts per-node mutations.
type Sink interface {
	Reset(g Graph) error
	AddNode(n models.DisplayNode) error
	UpdateNode(n models.DisplayNode) error
	RemoveNode(id string) error
	AddEdge(e models.DisplayEdge) error
	UpdateEdge(e models.DisplayEdge) error
	RemoveEdge(id string) error
}

// Push replays ops on sink. Edges are removed before their endpoints and
// added after them.
func Push(sink Sink, ops Ops) error {
	for _, id := range ops.RemoveEdges {
		if err := sink.RemoveEdge(id); err != nil {
			return err
		}
	}
	for _, id := range ops.RemoveNodes {
		if err := sink.RemoveNode(id); err != nil {
			return err
		}
	}
	for _, n := range ops.AddNodes {
		if err := sink.AddNode(n); err != nil {
			return err
		}
	}
	for _, n := range ops.UpdateNodes {
		if err := sink.UpdateNode(n); err != nil {
			return err
		}
	}
	for _, e := range ops.AddEdges {
		if err := sink.AddEdge(e); err != nil {
			return err
		}
	}
	for _, e := range ops.UpdateEdges {
		if err := sink.UpdateEdge(e); err != nil {
			return err
		}
	}
	return nil
}
