package topology

import (
	"fmt"
)

// Node roles as published in the nested Nodes property.
const (
	nestedRoleBorderRouter = 0
	nestedRoleLeaf         = 2
)

// AdaptNodeBags converts the nested "Nodes" encoding, where every node is an
// [address, {property: variant}] pair, into the flat RoutingGraph encoding
// accepted by Decode. Entries without is_border_router or parent are dropped,
// as the daemon has not finished populating them.
func AdaptNodeBags(raw any) (any, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: nodes: expected array, got %T", ErrInvalidSnapshot, raw)
	}

	out := make([]any, 0, len(entries))
	for _, entry := range entries {
		pair, ok := entry.([]any)
		if !ok || len(pair) < 2 {
			continue
		}
		props, ok := pair[1].(map[string]any)
		if !ok {
			continue
		}

		ipv6 := nestedIPv6(props["ipv6"])
		role, hasRole := variantNumber(props["node_role"])
		if _, isBR := props["is_border_router"]; isBR || (hasRole && role == nestedRoleBorderRouter) {
			out = append(out, []any{pair[0], false, []any{}, ipv6})
			continue
		}
		parent, ok := variant(props["parent"])
		if !ok {
			continue
		}
		isLeaf := hasRole && role == nestedRoleLeaf
		out = append(out, []any{pair[0], isLeaf, []any{parent}, ipv6})
	}
	return out, nil
}

// nestedIPv6 picks the global address out of the ipv6 variant, a
// [link-local, global] pair. It returns nil when there is none.
func nestedIPv6(v any) any {
	inner, ok := variant(v)
	if !ok {
		return nil
	}
	addrs, ok := inner.([]any)
	if !ok || len(addrs) < 2 {
		return nil
	}
	return addrs[1]
}

// variant unwraps D-Bus style {"t": sig, "v": value} objects.
func variant(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		inner, ok := m["v"]
		return inner, ok && inner != nil
	}
	return v, true
}

func variantNumber(v any) (int, bool) {
	inner, ok := variant(v)
	if !ok {
		return 0, false
	}
	switch n := inner.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
