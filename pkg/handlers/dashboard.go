package handlers

import (
	"net/http"

	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GET /api/dashboard
func (h *DashboardHandler) Participant(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	d, err := h.dashboard.Participant(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, d)
}

// GET /api/profiles/{id}
func (h *DashboardHandler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.dashboard.PublicProfile(r.Context(), chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"profile": p})
}
