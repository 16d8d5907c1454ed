package topology

import (
	"sort"

	"wsbr-console/models"
)

const (
	EdgeColor = "#0f62fe"
	EdgeWidth = 2
)

type roleStyle struct {
	color string
	shape string
	font  string
}

var roleStyles = map[models.Role]roleStyle{
	models.RoleBorderRouter: {color: "#d91e2a", shape: "box", font: "18px arial black"},
	models.RoleForwarding:   {color: "#00b970", shape: "ellipse", font: "14px arial black"},
	models.RoleLeaf:         {color: "#fad54c", shape: "ellipse", font: "14px arial black"},
}

// Graph is a render-facing node/edge set, both sorted by ID.
type Graph struct {
	Nodes []models.DisplayNode `json:"nodes"`
	Edges []models.DisplayEdge `json:"edges"`
}

// Node looks a node up by ID.
func (g Graph) Node(id string) (models.DisplayNode, bool) {
	i := sort.Search(len(g.Nodes), func(i int) bool { return g.Nodes[i].ID >= id })
	if i < len(g.Nodes) && g.Nodes[i].ID == id {
		return g.Nodes[i], true
	}
	return models.DisplayNode{}, false
}

// Children counts nodes whose parent is id.
func (g Graph) Children(id string) int {
	n := 0
	for _, node := range g.Nodes {
		if node.ParentID == id {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can't alias the reconciler's state.
func (g Graph) Clone() Graph {
	return Graph{
		Nodes: append([]models.DisplayNode{}, g.Nodes...),
		Edges: append([]models.DisplayEdge{}, g.Edges...),
	}
}

// Build projects the reachable part of a resolution into display nodes and edges.
func Build(res *Resolution) Graph {
	g := Graph{
		Nodes: make([]models.DisplayNode, 0, len(res.Nodes)),
		Edges: make([]models.DisplayEdge, 0, len(res.Nodes)),
	}
	for _, n := range res.Nodes {
		if !n.Reachable {
			continue
		}
		style := roleStyles[n.Role]
		id := n.Address.Key()
		dn := models.DisplayNode{
			ID:       id,
			Label:    Label(n.Address),
			Role:     n.Role,
			RoleName: n.Role.String(),
			Color:    style.color,
			Shape:    style.shape,
			Font:     style.font,
			Address:  FormatAddress(n.Address),
			Level:    n.Level,
		}
		if len(n.IPv6) == 16 {
			dn.Address = FormatAddress(n.IPv6)
		}
		if n.Role != models.RoleBorderRouter && n.Parent != nil {
			dn.ParentID = n.Parent.Key()
			dn.ParentAddress = FormatAddress(n.Parent)
			g.Edges = append(g.Edges, models.DisplayEdge{
				ID:     id,
				From:   id,
				To:     dn.ParentID,
				Dashes: n.Role == models.RoleLeaf,
				Width:  EdgeWidth,
				Color:  EdgeColor,
			})
		}
		g.Nodes = append(g.Nodes, dn)
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })
	return g
}
