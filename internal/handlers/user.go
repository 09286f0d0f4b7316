package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/pkg/response"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type MeResponse struct {
	*models.User
	Permissions []services.Operation `json:"permissions"`
}

type ApproveRequest struct {
	Qualification models.Qualification `json:"qualification" binding:"required"`
}

type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

// Me returns the caller with the operations they may perform.
// GET /api/users/me
func (h *UserHandler) Me(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	user, err := h.users.Get(c.Request.Context(), actorID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	caller, err := h.users.Caller(c.Request.Context(), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, MeResponse{User: user, Permissions: caller.Permitted()})
}

// UpdateMe edits the caller's profile.
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req services.ProfileFields
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), services.UpdateProfileParams{
		ActorID: middleware.GetUserID(c),
		Profile: req,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// MyHistory GET /api/users/me/history
func (h *UserHandler) MyHistory(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	h.history(c, actorID, actorID)
}

// MyProjects GET /api/users/me/projects
func (h *UserHandler) MyProjects(c *gin.Context) {
	rows, err := h.users.Projects(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// List GET /api/users?qualification=&cursor=&limit=
func (h *UserHandler) List(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.users.List(c.Request.Context(), services.ListUsersParams{
		ActorID:       middleware.GetUserID(c),
		Qualification: models.Qualification(c.Query("qualification")),
		Page:          q,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, page.Items, page.NextCursor)
}

// ListPending GET /api/users/pending
func (h *UserHandler) ListPending(c *gin.Context) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.users.ListPending(c.Request.Context(), middleware.GetUserID(c), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, page.Items, page.NextCursor)
}

// Get GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	user, err := h.users.Get(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// Approve sets a user's qualification.
// POST /api/users/:id/approve
func (h *UserHandler) Approve(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.Approve(c.Request.Context(), services.ApproveParams{
		ActorID: middleware.GetUserID(c),
		UserID:  id,
		Target:  req.Qualification,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// SetAdmin grants or revokes the admin flag.
// POST /api/users/:id/admin
func (h *UserHandler) SetAdmin(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SetAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	user, err := h.users.SetAdmin(c.Request.Context(), services.SetAdminParams{
		ActorID: middleware.GetUserID(c),
		UserID:  id,
		Granted: *req.IsAdmin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// Delete DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	err := h.users.Delete(c.Request.Context(), services.DeleteUserParams{ActorID: middleware.GetUserID(c), UserID: id})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// History GET /api/users/:id/history
func (h *UserHandler) History(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.history(c, middleware.GetUserID(c), id)
}

func (h *UserHandler) history(c *gin.Context, actorID, userID uint) {
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	page, err := h.users.History(c.Request.Context(), services.UserHistoryParams{ActorID: actorID, UserID: userID, Page: q})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, page.Items, page.NextCursor)
}
