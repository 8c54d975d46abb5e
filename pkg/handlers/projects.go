package handlers

import (
	"net/http"

	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	"github.com/charmbracelet/log"
	chiRoute "github.com/go-chi/chi/v5"
)

type ProjectsHandler struct {
	projects *services.ProjectService
}

func NewProjectsHandler(projects *services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// GET /api/projects
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.projects.ListProjects(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": list})
}

// POST /api/projects
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req services.CreateProjectInput
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid body")
		return
	}
	p, err := h.projects.CreateProject(r.Context(), actor, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"project": p})
}

// GET /api/projects/{id}
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := h.projects.GetProject(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": p})
}

// POST /api/projects/{id}/start
func (h *ProjectsHandler) Start(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := h.projects.StartProject(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"project": p})
}

// POST /api/projects/{id}/submit
// 提交已落库后，计数器更新失败只体现在 pending 字段里
func (h *ProjectsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	res, err := h.projects.Submit(r.Context(), actor, chiRoute.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if res.Partial != nil {
		log.FromContext(r.Context()).Warn("submission committed with pending steps", "project", res.Project.ID, "err", res.Partial)
	}
	utils.WriteSuccessResponse(w, res)
}
