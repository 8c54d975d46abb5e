package handlers

import (
	"net/http"
	"strings"

	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type TeamsHandler struct {
	teams *services.TeamService
}

func NewTeamsHandler(teams *services.TeamService) *TeamsHandler {
	return &TeamsHandler{teams: teams}
}

// POST /api/teams
func (h *TeamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.CreateTeamInput
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	t, err := h.teams.Create(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"team": t})
}

// GET /api/teams/{id}
func (h *TeamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	t, err := h.teams.Get(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"team": t})
}

// POST /api/teams/{id}/invitations
func (h *TeamsHandler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		utils.WriteBadRequestResponse(w, "Email required")
		return
	}
	inv, err := h.teams.Invite(r.Context(), actor, chiRoute.URLParam(r, "id"), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"invitation": inv})
}

// GET /api/invitations/my
func (h *TeamsHandler) MyInvitations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	invs, err := h.teams.ListMyInvitations(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitations": invs})
}

type invitationTokenRequest struct {
	Token string `json:"token"`
}

// POST /api/invitations/accept
func (h *TeamsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req invitationTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Token == "" {
		utils.WriteBadRequestResponse(w, "Token required")
		return
	}
	t, err := h.teams.Accept(r.Context(), actor, req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"team": t})
}

// POST /api/invitations/decline
func (h *TeamsHandler) Decline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req invitationTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Token == "" {
		utils.WriteBadRequestResponse(w, "Token required")
		return
	}
	inv, err := h.teams.Decline(r.Context(), actor, req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"invitation": inv})
}
