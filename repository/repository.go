package repository

import (
	"encoding/json"
	"errors"
	"sort"

	"wsbr-console/db"
	"wsbr-console/models"
	"wsbr-console/topology"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	nodePrefix     = "node:"
	edgePrefix     = "edge:"
	positionPrefix = "pos:"
	autoFitKey     = "view:autofit"
)

// ErrNodeNotFound is returned when a node is not part of the rendered graph
var ErrNodeNotFound = errors.New("node not found")

// GraphRepositoryInterface is the live rendered topology: the reconciler
// mutates it through topology.Sink and the API reads it back
type GraphRepositoryInterface interface {
	topology.Sink
	GetGraph() (topology.Graph, error)
	GetNode(id string) (*models.DisplayNode, error)
	SetPosition(id string, pos models.Position) error
	GetPositions() (map[string]models.Position, error)
	SetAutoFit(enabled bool) error
	GetAutoFit() (bool, error)
}

// GraphRepository implements GraphRepositoryInterface using LevelDB as the storage backend
type GraphRepository struct {
	db *db.LevelDB
}

// NewGraphRepository creates and returns a new GraphRepository instance
func NewGraphRepository(db *db.LevelDB) *GraphRepository {
	return &GraphRepository{db: db}
}

// Reset replaces the whole graph in one batch. Positions of nodes that
// survive the reset are kept.
func (r *GraphRepository) Reset(g topology.Graph) error {
	keep := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		keep[n.ID] = struct{}{}
	}

	batch := new(leveldb.Batch)
	for _, prefix := range []string{nodePrefix, edgePrefix} {
		if err := r.deletePrefix(batch, prefix, nil); err != nil {
			return err
		}
	}
	if err := r.deletePrefix(batch, positionPrefix, keep); err != nil {
		return err
	}

	for _, n := range g.Nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		batch.Put([]byte(nodePrefix+n.ID), data)
	}
	for _, e := range g.Edges {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		batch.Put([]byte(edgePrefix+e.ID), data)
	}
	return r.db.Write(batch)
}

func (r *GraphRepository) deletePrefix(batch *leveldb.Batch, prefix string, keep map[string]struct{}) error {
	iter := r.db.NewIterator([]byte(prefix))
	defer iter.Release()
	for iter.Next() {
		id := string(iter.Key()[len(prefix):])
		if _, ok := keep[id]; ok {
			continue
		}
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	return iter.Error()
}

// AddNode stores a new node
func (r *GraphRepository) AddNode(n models.DisplayNode) error {
	return r.putJSON(nodePrefix+n.ID, n)
}

// UpdateNode overwrites the node's display attributes; its position is untouched
func (r *GraphRepository) UpdateNode(n models.DisplayNode) error {
	return r.putJSON(nodePrefix+n.ID, n)
}

// RemoveNode deletes a node together with its position
func (r *GraphRepository) RemoveNode(id string) error {
	batch := new(leveldb.Batch)
	batch.Delete([]byte(nodePrefix + id))
	batch.Delete([]byte(positionPrefix + id))
	return r.db.Write(batch)
}

// AddEdge stores a new edge
func (r *GraphRepository) AddEdge(e models.DisplayEdge) error {
	return r.putJSON(edgePrefix+e.ID, e)
}

// UpdateEdge overwrites an edge
func (r *GraphRepository) UpdateEdge(e models.DisplayEdge) error {
	return r.putJSON(edgePrefix+e.ID, e)
}

// RemoveEdge deletes an edge
func (r *GraphRepository) RemoveEdge(id string) error {
	return r.db.Delete([]byte(edgePrefix + id))
}

// GetGraph retrieves all nodes and edges, sorted by ID
func (r *GraphRepository) GetGraph() (topology.Graph, error) {
	g := topology.Graph{
		Nodes: []models.DisplayNode{},
		Edges: []models.DisplayEdge{},
	}

	iter := r.db.NewIterator([]byte(nodePrefix))
	for iter.Next() {
		var n models.DisplayNode
		if err := json.Unmarshal(iter.Value(), &n); err != nil {
			iter.Release()
			return g, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return g, err
	}

	iter = r.db.NewIterator([]byte(edgePrefix))
	defer iter.Release()
	for iter.Next() {
		var e models.DisplayEdge
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return g, err
		}
		g.Edges = append(g.Edges, e)
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	sort.Slice(g.Edges, func(i, j int) bool { return g.Edges[i].ID < g.Edges[j].ID })
	return g, iter.Error()
}

// GetNode retrieves a single rendered node by its ID
func (r *GraphRepository) GetNode(id string) (*models.DisplayNode, error) {
	data, err := r.db.Get([]byte(nodePrefix + id))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil {
		return nil, err
	}
	var n models.DisplayNode
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// SetPosition records where the user dropped a node
func (r *GraphRepository) SetPosition(id string, pos models.Position) error {
	if _, err := r.GetNode(id); err != nil {
		return err
	}
	return r.putJSON(positionPrefix+id, pos)
}

// GetPositions retrieves all user-set positions keyed by node ID
func (r *GraphRepository) GetPositions() (map[string]models.Position, error) {
	iter := r.db.NewIterator([]byte(positionPrefix))
	defer iter.Release()

	positions := make(map[string]models.Position)
	for iter.Next() {
		var pos models.Position
		if err := json.Unmarshal(iter.Value(), &pos); err != nil {
			return nil, err
		}
		positions[string(iter.Key()[len(positionPrefix):])] = pos
	}
	return positions, iter.Error()
}

// SetAutoFit stores whether the view should follow the graph
func (r *GraphRepository) SetAutoFit(enabled bool) error {
	return r.putJSON(autoFitKey, enabled)
}

// GetAutoFit defaults to true until the user touches the view
func (r *GraphRepository) GetAutoFit() (bool, error) {
	data, err := r.db.Get([]byte(autoFitKey))
	if errors.Is(err, db.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (r *GraphRepository) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.db.Put([]byte(key), data)
}
