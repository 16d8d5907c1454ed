package models

import "strings"

// ActiveState is the systemd-style tri-state of a service.
type ActiveState int

const (
	ActiveUnknown ActiveState = iota
	ActiveActive
	ActiveInactive
)

func (s ActiveState) String() string {
	switch s {
	case ActiveActive:
		return "active"
	case ActiveInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// ParseActiveState maps the output of `systemctl show -p ActiveState --value`.
func ParseActiveState(s string) ActiveState {
	switch strings.TrimSpace(s) {
	case "active":
		return ActiveActive
	case "inactive":
		return ActiveInactive
	default:
		return ActiveUnknown
	}
}

type ServiceStatus struct {
	Service   string      `json:"service"`
	Installed bool        `json:"installed"`
	Active    ActiveState `json:"-"`
	State     string      `json:"state"` // Active rendered as text
}

// NewServiceStatus fills State from the active tri-state.
func NewServiceStatus(service string, installed bool, active ActiveState) ServiceStatus {
	return ServiceStatus{
		Service:   service,
		Installed: installed,
		Active:    active,
		State:     active.String(),
	}
}
