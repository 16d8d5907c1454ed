package topology

import (
	"fmt"
	"sync"

	"wsbr-console/logger"
	"wsbr-console/models"

	"go.uber.org/zap"
)

// Format selects which daemon property carries the routing table.
type Format string

const (
	FormatFlat   Format = "flat"   // RoutingGraph tuples
	FormatNested Format = "nested" // Nodes property bags
)

// RoutingGraph extracts the flat routing table from a property bag,
// adapting the nested encoding when needed.
func RoutingGraph(props models.Properties, format Format) (any, error) {
	switch format {
	case FormatNested:
		return AdaptNodeBags(props[models.PropNodes])
	case FormatFlat, "":
		return props[models.PropRoutingGraph], nil
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
}

// Reconciler keeps the last rendered graph and brings a Sink up to date
// with each new snapshot.
type Reconciler struct {
	sink   Sink
	format Format

	mux    sync.Mutex
	prev   Graph
	primed bool
}

func NewReconciler(sink Sink, format Format) *Reconciler {
	return &Reconciler{sink: sink, format: format, prev: Graph{}}
}

// Reconcile runs decode, resolve, build and diff on props and applies the
// result to the sink. The first call after Reset hands the sink a full graph.
func (r *Reconciler) Reconcile(props models.Properties) (Ops, error) {
	raw, err := RoutingGraph(props, r.format)
	if err != nil {
		return Ops{}, err
	}
	snap, err := Decode(raw)
	if err != nil {
		return Ops{}, err
	}

	res := Resolve(snap)
	if res.Root == nil && len(snap.Records) > 0 {
		logger.Logger.Debug("No unique border router in snapshot", zap.Int("records", len(snap.Records)))
	}
	if res.Unreachable > 0 {
		logger.Logger.Debug("Excluded unreachable nodes", zap.Int("unreachable", res.Unreachable))
	}
	next := Build(res)

	r.mux.Lock()
	defer r.mux.Unlock()

	ops := Diff(r.prev, next)
	if !r.primed {
		if err := r.sink.Reset(next); err != nil {
			return Ops{}, fmt.Errorf("reset sink: %w", err)
		}
		r.primed = true
	} else if !ops.Empty() {
		if err := Push(r.sink, ops); err != nil {
			// the sink is in an unknown state; resend everything next time
			r.primed = false
			return Ops{}, fmt.Errorf("push ops: %w", err)
		}
	}
	r.prev = next

	logger.Logger.Debug("Topology reconciled",
		zap.Int("nodes", len(next.Nodes)),
		zap.Int("edges", len(next.Edges)),
		zap.Int("ops", ops.Count()))
	return ops, nil
}

// Reset clears the sink and forgets the previous graph.
func (r *Reconciler) Reset() error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.prev = Graph{}
	r.primed = false
	return r.sink.Reset(Graph{})
}

// Graph returns a copy of the last applied graph.
func (r *Reconciler) Graph() Graph {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.prev.Clone()
}
