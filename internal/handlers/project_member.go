package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/pkg/response"
)

// ProjectMemberHandler serves the team endpoints of one project.
type ProjectMemberHandler struct {
	members *services.MemberService
}

func NewProjectMemberHandler(members *services.MemberService) *ProjectMemberHandler {
	return &ProjectMemberHandler{members: members}
}

type UpdateMemberRequest struct {
	Role     *models.MemberRole `json:"role" binding:"omitempty,oneof=leader member"`
	Position *string            `json:"position" binding:"omitempty,max=50"`
}

// List returns the current team of a project.
// GET /api/projects/:id/members
func (h *ProjectMemberHandler) List(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.members.List(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// History returns every membership interval of a project.
// GET /api/projects/:id/members/history
func (h *ProjectMemberHandler) History(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	rows, err := h.members.Intervals(c.Request.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// Add opens a membership. An already open one is returned with 200.
// POST /api/projects/:id/members
func (h *ProjectMemberHandler) Add(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req services.MemberSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, created, err := h.members.Add(c.Request.Context(), services.AddMemberParams{
		ActorID:   middleware.GetUserID(c),
		ProjectID: projectID,
		UserID:    req.UserID,
		Role:      req.Role,
		Position:  req.Position,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, m)
		return
	}
	response.Success(c, m)
}

// Update changes a member's role or position.
// PATCH /api/projects/:id/members/:userId
func (h *ProjectMemberHandler) Update(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	m, err := h.members.Change(c.Request.Context(), services.ChangeMemberParams{
		ActorID:   middleware.GetUserID(c),
		ProjectID: projectID,
		UserID:    userID,
		Role:      req.Role,
		Position:  req.Position,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}

// Remove closes a member's open interval.
// DELETE /api/projects/:id/members/:userId
func (h *ProjectMemberHandler) Remove(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	m, err := h.members.Remove(c.Request.Context(), services.RemoveMemberParams{
		ActorID:   middleware.GetUserID(c),
		ProjectID: projectID,
		UserID:    userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}
