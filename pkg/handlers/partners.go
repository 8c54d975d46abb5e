package handlers

import (
	"net/http"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type PartnersHandler struct {
	partners *services.PartnerService
}

func NewPartnersHandler(partners *services.PartnerService) *PartnersHandler {
	return &PartnersHandler{partners: partners}
}

// POST /api/partners/apply
func (h *PartnersHandler) Apply(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.ApplyInput
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	org, err := h.partners.Apply(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/partners/{id}
func (h *PartnersHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	org, err := h.partners.Get(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// GET /api/admin/partners?status=
func (h *PartnersHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	status := models.PartnerStatus(utils.GetQueryParam(r, "status", ""))
	orgs, err := h.partners.List(r.Context(), actor, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// POST /api/admin/partners/{id}/status
func (h *PartnersHandler) AdminSetStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Status models.PartnerStatus `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Status == "" {
		utils.WriteBadRequestResponse(w, "Status required")
		return
	}
	org, err := h.partners.Transition(r.Context(), actor, chiRoute.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}
