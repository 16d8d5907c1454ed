package topology

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"wsbr-console/logger"
	"wsbr-console/models"

	"go.uber.org/zap"
)

// ErrInvalidSnapshot is returned when the routing graph is not an array at all.
var ErrInvalidSnapshot = errors.New("invalid routing snapshot")

// Snapshot is a decoded routing table: records in daemon order plus an index by node key.
type Snapshot struct {
	Records []*models.RawNodeRecord
	Index   map[string]*models.RawNodeRecord
}

// DecodeJSON decodes a routing graph encoded as JSON.
func DecodeJSON(data []byte) (*Snapshot, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return Decode(raw)
}

// Decode turns the daemon's RoutingGraph value, an array of
// [address, isLeaf, [parents...]] tuples with base64 addresses, into a Snapshot.
// A fourth tuple field, when present, is the node's IPv6 address.
// Entries that are not yet consistent are skipped rather than reported.
func Decode(raw any) (*Snapshot, error) {
	entries, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, fmt.Errorf("%w: missing", ErrInvalidSnapshot)
		}
		return nil, fmt.Errorf("%w: expected array, got %T", ErrInvalidSnapshot, raw)
	}

	snap := &Snapshot{
		Records: make([]*models.RawNodeRecord, 0, len(entries)),
		Index:   make(map[string]*models.RawNodeRecord, len(entries)),
	}
	skipped := 0
	for _, entry := range entries {
		rec, ok := decodeRecord(entry)
		if !ok {
			skipped++
			continue
		}
		key := rec.Address.Key()
		if _, dup := snap.Index[key]; dup {
			skipped++
			continue
		}
		snap.Records = append(snap.Records, rec)
		snap.Index[key] = rec
	}

	if skipped > 0 {
		logger.Logger.Debug("Skipped routing graph entries",
			zap.Int("skipped", skipped), zap.Int("total", len(entries)))
	}
	return snap, nil
}

func decodeRecord(entry any) (*models.RawNodeRecord, bool) {
	fields, ok := entry.([]any)
	if !ok || len(fields) < 2 {
		return nil, false
	}
	addr, ok := decodeAddress(fields[0])
	if !ok {
		return nil, false
	}
	isLeaf, ok := fields[1].(bool)
	if !ok {
		return nil, false
	}

	// a record without a usable parent list would pass for a border router
	if len(fields) < 3 {
		return nil, false
	}
	parents, ok := fields[2].([]any)
	if !ok {
		return nil, false
	}

	rec := &models.RawNodeRecord{Address: addr, IsLeaf: isLeaf}
	for _, p := range parents {
		pa, ok := decodeAddress(p)
		if !ok {
			return nil, false
		}
		rec.Parents = append(rec.Parents, pa)
	}

	// optional IPv6 identifier, only carried by adapted nested snapshots
	if len(fields) > 3 && fields[3] != nil {
		ipv6, ok := decodeAddress(fields[3])
		if !ok || len(ipv6) != 16 {
			return nil, false
		}
		rec.IPv6 = ipv6
	}
	return rec, true
}

// decodeAddress accepts base64 strings, as sent over D-Bus JSON, and raw byte slices.
func decodeAddress(v any) (models.Address, bool) {
	switch a := v.(type) {
	case string:
		b, err := base64.StdEncoding.DecodeString(a)
		if err != nil || len(b) == 0 {
			return nil, false
		}
		return models.Address(b), true
	case []byte:
		if len(a) == 0 {
			return nil, false
		}
		return models.Address(append([]byte(nil), a...)), true
	default:
		return nil, false
	}
}
