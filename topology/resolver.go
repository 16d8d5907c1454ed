package topology

import (
	"wsbr-console/models"
)

// Resolution is the result of resolving a snapshot against its border router.
type Resolution struct {
	Root        models.Address // nil when no unique border router exists
	Nodes       []models.ResolvedNode
	Unreachable int
}

// Reachable returns the reachable nodes in snapshot order.
func (r *Resolution) Reachable() []models.ResolvedNode {
	out := make([]models.ResolvedNode, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		if n.Reachable {
			out = append(out, n)
		}
	}
	return out
}

// FindBorderRouter returns the only record without parents that is not a leaf.
// Zero or several candidates mean the snapshot has no usable root.
func FindBorderRouter(snap *Snapshot) (*models.RawNodeRecord, bool) {
	var root *models.RawNodeRecord
	for _, rec := range snap.Records {
		if len(rec.Parents) != 0 || rec.IsLeaf {
			continue
		}
		if root != nil {
			return nil, false
		}
		root = rec
	}
	return root, root != nil
}

// Resolve walks every record's parent chain up to the border router.
// Only the first parent entry of a record is followed.
func Resolve(snap *Snapshot) *Resolution {
	res := &Resolution{Nodes: make([]models.ResolvedNode, 0, len(snap.Records))}

	root, ok := FindBorderRouter(snap)
	if ok {
		res.Root = root.Address
	}

	for _, rec := range snap.Records {
		node := models.ResolvedNode{
			Address: rec.Address,
			Role:    roleOf(rec, root),
			Parent:  rec.Parent(),
			IPv6:    rec.IPv6,
		}
		if root != nil {
			node.Level, node.Reachable = walkToRoot(snap, rec, root, make(map[string]struct{}))
		}
		if !node.Reachable {
			res.Unreachable++
		}
		res.Nodes = append(res.Nodes, node)
	}
	return res
}

// walkToRoot reports whether rec's parent chain ends at root, and the hop
// count on the way back. visited is private to one walk.
func walkToRoot(snap *Snapshot, rec, root *models.RawNodeRecord, visited map[string]struct{}) (int, bool) {
	key := rec.Address.Key()
	if _, seen := visited[key]; seen {
		return 0, false
	}
	visited[key] = struct{}{}

	parent := rec.Parent()
	if parent == nil {
		return 0, rec == root
	}
	next, ok := snap.Index[parent.Key()]
	if !ok {
		return 0, false
	}
	level, ok := walkToRoot(snap, next, root, visited)
	if !ok {
		return 0, false
	}
	return level + 1, true
}

func roleOf(rec, root *models.RawNodeRecord) models.Role {
	switch {
	case rec == root:
		return models.RoleBorderRouter
	case rec.IsLeaf:
		return models.RoleLeaf
	default:
		return models.RoleForwarding
	}
}
