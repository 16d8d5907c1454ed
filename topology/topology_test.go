package topology_test

import (
	"encoding/base64"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"wsbr-console/logger"
	"wsbr-console/models"
	"wsbr-console/topology"
)

func init() {
	logger.Logger = zap.NewNop()
}

func addr(last byte) models.Address {
	return models.Address{0x00, 0x0d, 0x6f, 0x00, 0x00, 0x00, 0x00, last}
}

func b64(a models.Address) string {
	return base64.StdEncoding.EncodeToString(a)
}

// rec builds one RoutingGraph tuple the way the daemon encodes it
func rec(a models.Address, leaf bool, parents ...models.Address) []any {
	ps := []any{}
	for _, p := range parents {
		ps = append(ps, b64(p))
	}
	return []any{b64(a), leaf, ps}
}

func snapshot(t *testing.T, recs ...[]any) *topology.Snapshot {
	t.Helper()
	raw := make([]any, 0, len(recs))
	for _, r := range recs {
		raw = append(raw, r)
	}
	snap, err := topology.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return snap
}

func build(t *testing.T, recs ...[]any) topology.Graph {
	t.Helper()
	return topology.Build(topology.Resolve(snapshot(t, recs...)))
}

var (
	A = addr(0xa)
	B = addr(0xb)
	C = addr(0xc)
	D = addr(0xd)
	X = addr(0xee)
)

func TestDecode_NotAnArray(t *testing.T) {
	for _, raw := range []any{nil, "nope", 3.0, map[string]any{}} {
		if _, err := topology.Decode(raw); !errors.Is(err, topology.ErrInvalidSnapshot) {
			t.Fatalf("Decode(%v): expected ErrInvalidSnapshot, got %v", raw, err)
		}
	}
	if _, err := topology.DecodeJSON([]byte("{broken")); !errors.Is(err, topology.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for bad JSON, got %v", err)
	}
}

func TestDecode_SkipsInconsistentRecords(t *testing.T) {
	raw := []any{
		rec(A, false),
		[]any{b64(B)},                     // no isLeaf yet
		[]any{b64(C), nil, []any{}},       // isLeaf undefined
		[]any{"!!not base64", false, nil}, // bad address
		"garbage",
		rec(D, true, A),
		rec(A, true, D), // duplicate, first one wins
	}
	snap, err := topology.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap.Records))
	}
	if !snap.Records[0].Address.Equal(A) || snap.Records[0].IsLeaf {
		t.Fatalf("unexpected first record %+v", snap.Records[0])
	}
	if got := snap.Index[D.Key()]; got == nil || !got.Parent().Equal(A) {
		t.Fatalf("expected D indexed with parent A, got %+v", got)
	}
}

func TestDecode_BadParentListDropsOnlyThatRecord(t *testing.T) {
	healthy := [][]any{rec(A, false), rec(B, false, A), rec(C, true, B)}
	broken := map[string][]any{
		"garbage parent":   {b64(D), false, []any{"!!garbage"}},
		"no parents field": {b64(D), false},
		"parents not list": {b64(D), false, "x"},
		"one bad parent":   {b64(D), false, []any{b64(A), 7.0}},
		"bad ipv6":         {b64(D), false, []any{b64(A)}, "!!"},
	}
	for name, bad := range broken {
		g := build(t, append(healthy, bad)...)
		if len(g.Nodes) != 3 || len(g.Edges) != 2 {
			t.Fatalf("%s: expected the healthy tree to survive, got %d nodes %d edges", name, len(g.Nodes), len(g.Edges))
		}
		if _, ok := g.Node(D.Key()); ok {
			t.Fatalf("%s: broken record must not be displayed", name)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	data := []byte(`[["` + b64(A) + `", false, []], ["` + b64(B) + `", true, ["` + b64(A) + `"]]]`)
	snap, err := topology.DecodeJSON(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Records) != 2 || !snap.Records[1].IsLeaf {
		t.Fatalf("unexpected snapshot %+v", snap.Records)
	}
}

func TestResolve_Chain(t *testing.T) {
	res := topology.Resolve(snapshot(t,
		rec(A, false),
		rec(B, false, A),
		rec(C, true, B),
	))
	if !res.Root.Equal(A) {
		t.Fatalf("expected root A, got %x", res.Root)
	}

	want := []struct {
		role   models.Role
		level  int
		parent models.Address
	}{
		{models.RoleBorderRouter, 0, nil},
		{models.RoleForwarding, 1, A},
		{models.RoleLeaf, 2, B},
	}
	for i, w := range want {
		n := res.Nodes[i]
		if !n.Reachable || n.Role != w.role || n.Level != w.level || !n.Parent.Equal(w.parent) {
			t.Fatalf("node %d: got %+v, want %+v", i, n, w)
		}
	}
}

func TestResolve_BorderRouterAnyPosition(t *testing.T) {
	res := topology.Resolve(snapshot(t,
		rec(C, true, B),
		rec(B, false, A),
		rec(A, false),
	))
	if !res.Root.Equal(A) {
		t.Fatalf("expected root A, got %x", res.Root)
	}
	if res.Nodes[2].Role != models.RoleBorderRouter || res.Nodes[2].Level != 0 {
		t.Fatalf("unexpected root node %+v", res.Nodes[2])
	}
	if res.Nodes[0].Level != 2 {
		t.Fatalf("expected C at level 2, got %d", res.Nodes[0].Level)
	}
}

func TestResolve_NoUniqueBorderRouter(t *testing.T) {
	cases := map[string][][]any{
		"none":     {rec(B, false, A), rec(C, true, B)},
		"two":      {rec(A, false), rec(B, false), rec(C, true, A)},
		"leafOnly": {rec(A, true), rec(B, true, A)},
	}
	for name, recs := range cases {
		t.Run(name, func(t *testing.T) {
			res := topology.Resolve(snapshot(t, recs...))
			if res.Root != nil {
				t.Fatalf("expected no root, got %x", res.Root)
			}
			if got := res.Reachable(); len(got) != 0 {
				t.Fatalf("expected nothing reachable, got %d", len(got))
			}
			if res.Unreachable != len(recs) {
				t.Fatalf("expected %d unreachable, got %d", len(recs), res.Unreachable)
			}
		})
	}
}

func TestResolve_Cycle(t *testing.T) {
	res := topology.Resolve(snapshot(t,
		rec(A, false),
		rec(B, false, C),
		rec(C, false, B),
		rec(D, true, C),
	))
	for _, n := range res.Nodes[1:] {
		if n.Reachable {
			t.Fatalf("expected %x unreachable", n.Address)
		}
	}
	g := topology.Build(res)
	if len(g.Nodes) != 1 || len(g.Edges) != 0 {
		t.Fatalf("expected only the border router, got %d nodes %d edges", len(g.Nodes), len(g.Edges))
	}
}

func TestResolve_SelfLoop(t *testing.T) {
	res := topology.Resolve(snapshot(t, rec(A, false), rec(B, false, B)))
	if res.Nodes[1].Reachable {
		t.Fatalf("self-parented node must be unreachable")
	}
}

func TestResolve_FirstParentWins(t *testing.T) {
	res := topology.Resolve(snapshot(t,
		rec(A, false),
		rec(B, false, A),
		rec(C, false, B, A),
	))
	c := res.Nodes[2]
	if !c.Parent.Equal(B) || c.Level != 2 {
		t.Fatalf("expected parent B level 2, got %+v", c)
	}
}

func TestBuild_Scenario(t *testing.T) {
	g := build(t, rec(A, false), rec(B, false, A), rec(C, true, B))
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("expected 3 nodes 2 edges, got %d/%d", len(g.Nodes), len(g.Edges))
	}

	br, _ := g.Node(A.Key())
	if br.Role != models.RoleBorderRouter || br.Shape != "box" || br.Color != "#d91e2a" || br.ParentID != "" {
		t.Fatalf("unexpected border router %+v", br)
	}
	leaf, _ := g.Node(C.Key())
	if leaf.Role != models.RoleLeaf || leaf.Level != 2 || leaf.ParentID != B.Key() || leaf.Label != "000c" {
		t.Fatalf("unexpected leaf %+v", leaf)
	}
	if leaf.Address != "00:0d:6f:00:00:00:00:0c" {
		t.Fatalf("unexpected address form %q", leaf.Address)
	}

	edges := map[string]models.DisplayEdge{}
	for _, e := range g.Edges {
		edges[e.From] = e
	}
	if e := edges[B.Key()]; e.To != A.Key() || e.Dashes {
		t.Fatalf("unexpected edge B %+v", e)
	}
	if e := edges[C.Key()]; e.To != B.Key() || !e.Dashes || e.Width != topology.EdgeWidth {
		t.Fatalf("unexpected edge C %+v", e)
	}
	if g.Children(B.Key()) != 1 || g.Children(A.Key()) != 1 {
		t.Fatalf("unexpected child counts")
	}
}

func TestBuild_MissingParent(t *testing.T) {
	g := build(t, rec(A, false), rec(B, false, X))
	if len(g.Nodes) != 1 || len(g.Edges) != 0 || g.Nodes[0].ID != A.Key() {
		t.Fatalf("expected only A, got %+v", g)
	}
}

func TestBuild_Empty(t *testing.T) {
	g := build(t)
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Fatalf("expected empty graph, got %+v", g)
	}
}

func TestFormatAddress_IPv6(t *testing.T) {
	a := models.Address{0xfd, 0x12, 0, 0, 0, 0, 0, 0, 0x02, 0x0d, 0x6f, 0, 0, 0, 0, 0x01}
	if got := topology.FormatAddress(a); got != "fd12::20d:6f00:0:1" {
		t.Fatalf("unexpected IPv6 form %q", got)
	}
	if got := topology.FormatHexKey([]byte{0xab, 0x01}); got != "AB:01" {
		t.Fatalf("unexpected key form %q", got)
	}
}

func TestAdaptNodeBags(t *testing.T) {
	ipv6B := models.Address{0xfd, 0, 0, 0, 0, 0, 0, 0, 0x02, 0x0d, 0x6f, 0, 0, 0, 0, 0x0b}
	nested := []any{
		[]any{b64(A), map[string]any{"is_border_router": map[string]any{"v": true}}},
		[]any{b64(B), map[string]any{
			"parent": map[string]any{"v": b64(A)},
			"ipv6":   map[string]any{"v": []any{"x", b64(ipv6B)}},
		}},
		[]any{b64(C), map[string]any{"parent": map[string]any{"v": b64(B)}, "node_role": map[string]any{"v": 2.0}}},
		[]any{b64(D), map[string]any{}}, // not yet populated
	}
	flat, err := topology.AdaptNodeBags(nested)
	if err != nil {
		t.Fatalf("adapt: %v", err)
	}
	snap, err := topology.Decode(flat)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	g := topology.Build(topology.Resolve(snap))
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Fatalf("expected 3 nodes 2 edges, got %d/%d", len(g.Nodes), len(g.Edges))
	}
	c, _ := g.Node(C.Key())
	if c.Role != models.RoleLeaf {
		t.Fatalf("expected C to be a leaf, got %v", c.Role)
	}
	b, ok := g.Node(B.Key())
	if !ok || b.Address != "fd00::20d:6f00:0:b" {
		t.Fatalf("expected B shown by its IPv6 address, got %+v", b)
	}
	if b.ParentAddress != "00:0d:6f:00:00:00:00:0a" || c.Address != "00:0d:6f:00:00:00:00:0c" {
		t.Fatalf("EUI-64 forms must be kept where no IPv6 is known, got %+v / %+v", b, c)
	}

	if _, err := topology.AdaptNodeBags("x"); !errors.Is(err, topology.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
	}
}

func TestDiff_Idempotent(t *testing.T) {
	g := build(t, rec(A, false), rec(B, false, A), rec(C, true, B))
	if ops := topology.Diff(g, g); !ops.Empty() {
		t.Fatalf("expected no ops, got %+v", ops)
	}
	again := build(t, rec(A, false), rec(B, false, A), rec(C, true, B))
	if ops := topology.Diff(g, again); !ops.Empty() {
		t.Fatalf("expected no ops for an identical rebuild, got %+v", ops)
	}
}

func TestDiff_ParentChangeIsMinimal(t *testing.T) {
	prev := build(t, rec(A, false), rec(B, false, A), rec(C, false, A), rec(D, true, B))
	next := build(t, rec(A, false), rec(B, false, A), rec(C, false, A), rec(D, true, C))

	ops := topology.Diff(prev, next)
	if len(ops.UpdateNodes) != 1 || ops.UpdateNodes[0].ID != D.Key() {
		t.Fatalf("expected a single update for D, got %+v", ops.UpdateNodes)
	}
	if len(ops.UpdateEdges) != 1 || ops.UpdateEdges[0].To != C.Key() {
		t.Fatalf("expected a single edge update to C, got %+v", ops.UpdateEdges)
	}
	if ops.Count() != 2 {
		t.Fatalf("expected 2 ops total, got %d", ops.Count())
	}
}

func TestDiff_AddAndRemove(t *testing.T) {
	prev := build(t, rec(A, false), rec(B, false, A))
	next := build(t, rec(A, false), rec(C, true, A))

	ops := topology.Diff(prev, next)
	if len(ops.AddNodes) != 1 || ops.AddNodes[0].ID != C.Key() {
		t.Fatalf("unexpected adds %+v", ops.AddNodes)
	}
	if !reflect.DeepEqual(ops.RemoveNodes, []string{B.Key()}) || !reflect.DeepEqual(ops.RemoveEdges, []string{B.Key()}) {
		t.Fatalf("unexpected removes %+v / %+v", ops.RemoveNodes, ops.RemoveEdges)
	}
	if len(ops.UpdateNodes) != 0 {
		t.Fatalf("A must not be touched, got %+v", ops.UpdateNodes)
	}
}

func TestDiff_EmptySnapshotRemovesEverything(t *testing.T) {
	prev := build(t, rec(A, false), rec(B, false, A), rec(C, true, B))
	ops := topology.Diff(prev, build(t))
	if len(ops.RemoveNodes) != 3 || len(ops.RemoveEdges) != 2 {
		t.Fatalf("expected 3 node and 2 edge removals, got %+v", ops)
	}
	if len(ops.AddNodes)+len(ops.UpdateNodes)+len(ops.AddEdges)+len(ops.UpdateEdges) != 0 {
		t.Fatalf("unexpected non-removal ops %+v", ops)
	}
}

func TestDiff_ApplyConverges(t *testing.T) {
	prev := build(t, rec(A, false), rec(B, false, A), rec(C, true, B))
	next := build(t, rec(A, false), rec(C, true, A), rec(D, false, C))

	ops := topology.Diff(prev, next)
	applied := prev.Apply(ops)
	if !reflect.DeepEqual(applied, next) {
		t.Fatalf("apply mismatch:\n got %+v\nwant %+v", applied, next)
	}
	if again := topology.Diff(applied, next); !again.Empty() {
		t.Fatalf("expected no ops after apply, got %+v", again)
	}
	if !reflect.DeepEqual(topology.Diff(prev, next), ops) {
		t.Fatalf("diff is not deterministic")
	}
}
