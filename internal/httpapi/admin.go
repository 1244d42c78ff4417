package httpapi

import (
	"net/http"
	"strings"

	"qms/waitlist-service/internal/events"
	"qms/waitlist-service/internal/models"
	"qms/waitlist-service/internal/queue"
	"qms/waitlist-service/internal/store"
)

type positionRequest struct {
	Position *int `json:"position"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type clearResponse struct {
	Message string `json:"message"`
	Removed int64  `json:"removed"`
}

func (h *Handler) adminRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/queue", h.handleAdminList)
	mux.HandleFunc("/api/admin/queue/clear", h.handleAdminClear)
	mux.HandleFunc("/api/admin/queue/{id}", h.handleAdminDelete)
	mux.HandleFunc("/api/admin/queue/{id}/position", h.handleAdminPosition)
	mux.HandleFunc("/api/admin/queue/{id}/status", h.handleAdminStatus)
	mux.HandleFunc("/api/admin/", h.handleNotFound)
	return mux
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	entries, err := h.store.ListAll(r.Context())
	if err != nil {
		h.fail(w, "admin list", err, "Failed to get queue")
		return
	}

	positions := make(map[string]int, len(entries))
	for _, entry := range queue.Rank(entries) {
		positions[entry.ID] = entry.Position
	}
	result := make([]models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		entry.Position = positions[entry.ID]
		result = append(result, entry)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAdminPosition(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	var req positionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Position == nil || *req.Position < 1 {
		writeError(w, http.StatusBadRequest, "invalid_request", "position must be a positive integer")
		return
	}

	if _, err := h.store.MoveToPosition(r.Context(), entryID, *req.Position); err != nil {
		h.fail(w, "admin position", err, "Failed to update position")
		return
	}
	h.publish(r.Context(), events.TypeMoved, entryID)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Position updated"})
}

func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Status = strings.TrimSpace(req.Status)
	if !store.KnownStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "status must be one of active, checked_in, completed, removed")
		return
	}

	if _, err := h.store.UpdateStatus(r.Context(), entryID, req.Status, h.now().UTC()); err != nil {
		h.fail(w, "admin status", err, "Failed to update status")
		return
	}
	h.publish(r.Context(), events.TypeStatusChanged, entryID)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Status updated"})
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodDelete) {
		return
	}
	entryID, ok := entryIDFromPath(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteEntry(r.Context(), entryID); err != nil {
		h.fail(w, "admin delete", err, "Failed to remove entry")
		return
	}
	h.publish(r.Context(), events.TypeRemoved, entryID)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Entry removed"})
}

func (h *Handler) handleAdminClear(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	removed, err := h.store.ClearQueue(r.Context())
	if err != nil {
		h.fail(w, "admin clear", err, "Failed to clear queue")
		return
	}
	h.publish(r.Context(), events.TypeCleared, "")
	writeJSON(w, http.StatusOK, clearResponse{Message: "Queue cleared", Removed: removed})
}
