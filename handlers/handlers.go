package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"wsbr-console/dashboard"
	"wsbr-console/logger"
	"wsbr-console/models"
	"wsbr-console/repository"
	"wsbr-console/scheduler"
	"wsbr-console/source"
	"wsbr-console/topology"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	sourceTimeout = 5 * time.Second
	eui64Length   = 8
)

// Controller is the part of the scheduler the API drives
type Controller interface {
	Select(service string, active models.ActiveState)
	Status() scheduler.Status
}

// Handler contains the HTTP handlers for the console API endpoints
type Handler struct {
	Repo      repository.GraphRepositoryInterface
	Scheduler Controller
	Services  source.StatusSource
	Connector source.Connector
}

// NewHandler creates and returns a new Handler instance
func NewHandler(repo repository.GraphRepositoryInterface, sched Controller, services source.StatusSource, connector source.Connector) *Handler {
	return &Handler{Repo: repo, Scheduler: sched, Services: services, Connector: connector}
}

// NodeDetails is what the details panel shows for a selected node
type NodeDetails struct {
	models.DisplayNode
	EUI64    string           `json:"eui64,omitempty"` // only for EUI-64 node IDs
	Children int              `json:"children"`
	Position *models.Position `json:"position,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetTopology handles GET requests for the rendered graph
func (h *Handler) GetTopology(w http.ResponseWriter, r *http.Request) {
	graph, err := h.Repo.GetGraph()
	if err != nil {
		logger.Logger.Error("Failed to read topology", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	positions, err := h.Repo.GetPositions()
	if err != nil {
		logger.Logger.Error("Failed to read positions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	autoFit, err := h.Repo.GetAutoFit()
	if err != nil {
		logger.Logger.Error("Failed to read auto fit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// the border router is not counted as a node
	count := len(graph.Nodes)
	if count > 0 {
		count--
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"nodes":     graph.Nodes,
		"edges":     graph.Edges,
		"positions": positions,
		"nodeCount": count,
		"autoFit":   autoFit,
		"scheduler": h.Scheduler.Status(),
	})
}

// GetNode handles GET requests for a single node's details
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	node, err := h.Repo.GetNode(id)
	if errors.Is(err, repository.ErrNodeNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Logger.Error("Failed to read node", zap.String("node_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	graph, err := h.Repo.GetGraph()
	if err != nil {
		logger.Logger.Error("Failed to read topology", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	positions, err := h.Repo.GetPositions()
	if err != nil {
		logger.Logger.Error("Failed to read positions", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	addr, err := hex.DecodeString(node.ID)
	if err != nil {
		logger.Logger.Error("Stored node has a malformed ID", zap.String("node_id", node.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	details := NodeDetails{
		DisplayNode: *node,
		Children:    graph.Children(node.ID),
	}
	if len(addr) == eui64Length {
		details.EUI64 = topology.FormatEUI64(addr)
	}
	if pos, ok := positions[node.ID]; ok {
		details.Position = &pos
	}
	writeJSON(w, http.StatusOK, details)
}

// SetNodePosition handles PUT requests sent when the user drags a node.
// Dragging turns auto fit off.
func (h *Handler) SetNodePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var pos models.Position
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		logger.Logger.Error("Failed to decode position", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	err := h.Repo.SetPosition(id, pos)
	if errors.Is(err, repository.ErrNodeNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Logger.Error("Failed to store position", zap.String("node_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.Repo.SetAutoFit(false); err != nil {
		logger.Logger.Warn("Failed to disable auto fit", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"position": pos,
		"autoFit":  false,
	})
}

// SetAutoFit handles PUT requests toggling auto fit
func (h *Handler) SetAutoFit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.Repo.SetAutoFit(*body.Enabled); err != nil {
		logger.Logger.Error("Failed to store auto fit", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoFit": *body.Enabled})
}

// GetServiceStatus handles GET requests for a service's installed/active state
func (h *Handler) GetServiceStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	status, err := h.Services.Status(r.Context(), name)
	if err != nil {
		logger.Logger.Error("Failed to get service status", zap.String("service", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SelectService handles POST requests that make a service the topology target
func (h *Handler) SelectService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	status, err := h.Services.Status(r.Context(), name)
	if err != nil {
		logger.Logger.Error("Failed to get service status", zap.String("service", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !status.Installed {
		writeError(w, http.StatusNotFound, "service "+name+" is not installed")
		return
	}

	h.Scheduler.Select(name, status.Active)
	logger.Logger.Info("Selected service", zap.String("service", name), zap.String("state", status.State))

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Service selected",
		"status":  status,
	})
}

// ClearSelection handles DELETE requests that drop the current target
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.Select("", models.ActiveUnknown)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Selection cleared"})
}

// GetScheduler handles GET requests for the scheduler state
func (h *Handler) GetScheduler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Status())
}

// GetActiveConfig handles GET requests for the running network configuration
func (h *Handler) GetActiveConfig(w http.ResponseWriter, r *http.Request) {
	props, ok := h.selectedProperties(w, r)
	if !ok {
		return
	}
	cfg, err := dashboard.Config(props)
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetKeys handles GET requests for the GTK/GAK key material
func (h *Handler) GetKeys(w http.ResponseWriter, r *http.Request) {
	props, ok := h.selectedProperties(w, r)
	if !ok {
		return
	}
	keys, err := dashboard.KeyMaterial(props)
	if err != nil {
		h.writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *Handler) selectedProperties(w http.ResponseWriter, r *http.Request) (models.Properties, bool) {
	service := h.Scheduler.Status().Service
	if service == "" {
		writeError(w, http.StatusConflict, "no service selected")
		return nil, false
	}
	src, err := h.Connector.Connect(service)
	if err != nil {
		h.writeSourceError(w, err)
		return nil, false
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(r.Context(), sourceTimeout)
	defer cancel()
	props, err := src.Properties(ctx)
	if err != nil {
		h.writeSourceError(w, err)
		return nil, false
	}
	return props, true
}

func (h *Handler) writeSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, source.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, source.ErrUnknownService):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		logger.Logger.Error("Could not read daemon properties", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
