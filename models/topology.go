package models

import (
	"bytes"
	"encoding/hex"
)

// Address is a binary mesh node address (EUI-64 or IPv6).
type Address []byte

// Key returns the lower-case hex form used as node ID.
func (a Address) Key() string {
	return hex.EncodeToString(a)
}

// Equal reports whether both addresses hold the same bytes
func (a Address) Equal(b Address) bool {
	return bytes.Equal(a, b)
}

// Role of a node in the mesh tree
type Role int

const (
	RoleBorderRouter Role = iota
	RoleForwarding        // FFN
	RoleLeaf              // LFN
)

var roleNames = [...]string{"Border Router", "FFN", "LFN"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "Unknown"
	}
	return roleNames[r]
}

// RawNodeRecord is one entry of the routing table snapshot published by the daemon.
type RawNodeRecord struct {
	Address Address   // node address
	IsLeaf  bool      // true for low-power end devices
	Parents []Address // 0 or 1 entries in practice
	IPv6    Address   // optional, when the node ID is an EUI-64
}

// Parent returns the first parent entry, or nil when the record has none.
func (r *RawNodeRecord) Parent() Address {
	if len(r.Parents) == 0 {
		return nil
	}
	return r.Parents[0]
}

// ResolvedNode is a record after reachability resolution.
type ResolvedNode struct {
	Address   Address
	Role      Role
	Parent    Address // nil for the border router
	IPv6      Address // nil unless the snapshot carried one
	Level     int     // hop count to the border router
	Reachable bool
}

type DisplayNode struct {
	ID            string `json:"id"`                      // hex address
	Label         string `json:"label"`                   // last 4 hex digits
	Role          Role   `json:"nodeRole"`                // numeric role
	RoleName      string `json:"roleName"`                // human readable role
	Color         string `json:"color"`                   // fill color by role
	Shape         string `json:"shape"`                   // box for the border router
	Font          string `json:"font"`                    // label font
	Address       string `json:"address"`                 // IPv6 or EUI-64 form
	ParentID      string `json:"parentId,omitempty"`      // hex address of the parent
	ParentAddress string `json:"parentAddress,omitempty"` // IPv6 or EUI-64 form of the parent
	Level         int    `json:"level"`                   // hop level
}

type DisplayEdge struct {
	ID     string `json:"id"`     // same as the child node ID
	From   string `json:"from"`   // child
	To     string `json:"to"`     // parent
	Dashes bool   `json:"dashes"` // leaf links are dashed
	Width  int    `json:"width"`
	Color  string `json:"color"`
}

// Position is user view state kept next to a rendered node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
