package routers

import (
	"wsbr-console/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes for the console
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Rendered mesh topology with positions and auto fit state
	r.HandleFunc("/topology", h.GetTopology).Methods("GET")

	// Details panel for one node: role, addresses, parent, children, hop level
	r.HandleFunc("/topology/nodes/{id}", h.GetNode).Methods("GET")

	// Stores a user-dragged position and turns auto fit off
	r.HandleFunc("/topology/nodes/{id}/position", h.SetNodePosition).Methods("PUT")

	r.HandleFunc("/topology/autofit", h.SetAutoFit).Methods("PUT")

	// Installed/active state of a border router service
	r.HandleFunc("/services/{name}/status", h.GetServiceStatus).Methods("GET")

	// Makes a service the topology target
	r.HandleFunc("/services/{name}/select", h.SelectService).Methods("POST")

	r.HandleFunc("/selection", h.ClearSelection).Methods("DELETE")

	r.HandleFunc("/scheduler", h.GetScheduler).Methods("GET")

	// Dashboard data read from the selected daemon
	r.HandleFunc("/config", h.GetActiveConfig).Methods("GET")
	r.HandleFunc("/keys", h.GetKeys).Methods("GET")
}
