package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/tuya-fusion-core/internal/auth"
	"github.com/nerrad567/tuya-fusion-core/internal/point"
	"github.com/nerrad567/tuya-fusion-core/internal/registry"
)

// handleListDevices returns all merged devices, with optional query
// filters.
//
// Query parameters:
//   - category: filter by device category (zndb, kg, cz, ...)
//   - online: filter by online state (true/false)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	online := r.URL.Query().Get("online")

	devices := make([]*point.Device, 0)
	for _, dev := range s.registry.SnapshotMap() {
		if category != "" && dev.Category != category {
			continue
		}
		if online == "true" && !dev.Online {
			continue
		}
		if online == "false" && dev.Online {
			continue
		}
		devices = append(devices, dev)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single merged device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.registry.Snapshot(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleGetDeviceStatus returns just the status container of a device.
func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.registry.Snapshot(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": dev.ID,
		"online":    dev.Online,
		"status":    dev.Status,
	})
}

// commandsRequest is the request body for POST /devices/{id}/commands.
type commandsRequest struct {
	Commands []registry.Command `json:"commands"`
}

// handleSendCommands routes a command batch through the registry's
// strategy tables to the appropriate source account.
func (s *Server) handleSendCommands(w http.ResponseWriter, r *http.Request) {
	if claims := callerClaims(r); claims != nil && claims.Role == auth.RoleViewer {
		writeForbidden(w, "viewer tokens cannot send commands")
		return
	}

	id := chi.URLParam(r, "id")

	var req commandsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Commands) == 0 {
		writeBadRequest(w, "commands must not be empty")
		return
	}

	if err := s.registry.SendCommand(r.Context(), id, req.Commands); err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("command dispatch failed", "device_id", id, "error", err)
		writeInternalError(w, "command dispatch failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"accepted":  len(req.Commands),
	})
}

// handleHealth reports service liveness. No auth required.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"devices": len(s.registry.DeviceMap()),
	})
}
