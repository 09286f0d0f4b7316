package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/pkg/response"
)

type ProjectHandler struct {
	projects *services.ProjectService
}

func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type CreateProjectRequest struct {
	Name        string                `json:"name" binding:"required,max=100"`
	Description string                `json:"description"`
	Status      models.ProjectStatus  `json:"status"`
	StartDate   *int64                `json:"start_date"`
	EndDate     *int64                `json:"end_date"`
	Members     []services.MemberSpec `json:"members" binding:"dive"`
}

type UpdateProjectRequest struct {
	Name        *string               `json:"name" binding:"omitempty,max=100"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	StartDate   *int64                `json:"start_date"`
	EndDate     *int64                `json:"end_date"`
}

// List GET /api/projects?status=&cursor=&limit=
func (h *ProjectHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.projects.List(c.Request.Context(), services.ListProjectsParams{
		ActorID: middleware.GetUserID(c),
		Status:  models.ProjectStatus(c.Query("status")),
		Page:    q,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, page.Items, page.NextCursor)
}

// GetByID returns a project with its current team.
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detail, err := h.projects.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, detail)
}

// Create inserts a project with its initial team.
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	detail, err := h.projects.Create(c.Request.Context(), services.CreateProjectParams{
		ActorID:     middleware.GetUserID(c),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Members:     req.Members,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update PATCH /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	project, err := h.projects.Update(c.Request.Context(), services.UpdateProjectParams{
		ActorID:     middleware.GetUserID(c),
		ProjectID:   id,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.projects.Delete(c.Request.Context(), services.DeleteProjectParams{ActorID: middleware.GetUserID(c), ProjectID: id}); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
