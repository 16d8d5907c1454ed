package topology

import (
	"encoding/hex"
	"net/netip"
	"strings"

	"wsbr-console/models"
)

const labelLength = 4

// Label is the short tag drawn on a node: the last hex digits of its address.
func Label(addr models.Address) string {
	h := addr.Key()
	if len(h) <= labelLength {
		return h
	}
	return h[len(h)-labelLength:]
}

// FormatAddress renders 16-byte addresses as compressed IPv6 and anything
// else as colon-separated octets (EUI-64 style).
func FormatAddress(addr models.Address) string {
	if len(addr) == 16 {
		return netip.AddrFrom16([16]byte(addr)).String()
	}
	return FormatEUI64(addr)
}

// FormatEUI64 renders bytes as "aa:bb:cc:...".
func FormatEUI64(addr models.Address) string {
	h := hex.EncodeToString(addr)
	var b strings.Builder
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(h[i : i+2])
	}
	return b.String()
}

// FormatHexKey renders a colon-separated upper-case hex dump, the way key
// material is shown on the dashboard.
func FormatHexKey(b []byte) string {
	return strings.ToUpper(FormatEUI64(b))
}
