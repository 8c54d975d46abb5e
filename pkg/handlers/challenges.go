package handlers

import (
	"net/http"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type ChallengesHandler struct {
	challenges *services.ChallengeService
}

func NewChallengesHandler(challenges *services.ChallengeService) *ChallengesHandler {
	return &ChallengesHandler{challenges: challenges}
}

// GET /api/challenges?status=
func (h *ChallengesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ChallengeStatus(utils.GetQueryParam(r, "status", ""))
	list, err := h.challenges.List(r.Context(), status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"challenges": list})
}

// POST /api/challenges
func (h *ChallengesHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.CreateChallengeInput
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	c, err := h.challenges.Create(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"challenge": c})
}

// GET /api/challenges/{id}
func (h *ChallengesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.challenges.Get(r.Context(), chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"challenge": c})
}

// POST /api/challenges/{id}/join
func (h *ChallengesHandler) Join(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	tracking, err := h.challenges.Join(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"tracking": tracking})
}
