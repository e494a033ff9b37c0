package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/service"
)

// ActivityHandler serves the signed-in user's saved activities. All routes sit
// behind RequireAuth.
type ActivityHandler struct {
	activities *service.ActivityService
	logger     *slog.Logger
}

func NewActivityHandler(activities *service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, logger: logger}
}

// HandleList is GET /saved-activities.
func (h *ActivityHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	activities, err := h.activities.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"activities": activities})
}

// HandleSave is POST /save-activity with a SavedActivity body. Saving a title that
// is already saved succeeds.
func (h *ActivityHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var a model.SavedActivity
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, err)
		return
	}
	if err := h.activities.Save(r.Context(), id, a); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type removeActivityRequest struct {
	Title string `json:"title"`
}

// HandleRemove is POST /remove-activity {"title"}. Removing a title that is not
// saved succeeds.
func (h *ActivityHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req removeActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.activities.Remove(r.Context(), id, req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
