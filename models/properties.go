package models

// Property names published by the border router daemon.
const (
	PropRoutingGraph = "RoutingGraph"
	PropNodes        = "Nodes"
	PropWisunMode    = "WisunMode" // readiness sentinel
	PropNetworkName  = "WisunNetworkName"
	PropDomain       = "WisunDomain"
	PropPanID        = "WisunPanId"
	PropSize         = "WisunSize"
	PropClass        = "WisunClass"
	PropChanPlanID   = "WisunChanPlanId"
	PropPhyModeID    = "WisunPhyModeId"
	PropGaks         = "Gaks"
	PropGtks         = "Gtks"
)

// Properties is the daemon property bag as decoded from JSON.
type Properties map[string]any

// Ready reports whether the daemon has populated its properties.
func (p Properties) Ready() bool {
	if p == nil {
		return false
	}
	v, ok := p[PropWisunMode]
	return ok && v != nil
}
