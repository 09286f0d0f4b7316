package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/models"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/internal/utils"
	"github.com/waffice/backend/pkg/response"
)

type AuthHandler struct {
	users       *services.UserService
	tokens      *utils.TokenManager
	expireHours int
}

func NewAuthHandler(users *services.UserService, tokens *utils.TokenManager, expireHours int) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, expireHours: expireHours}
}

// SignupRequest carries the signup token minted after the OAuth exchange
// plus the profile the user filled in.
type SignupRequest struct {
	SignupToken string                 `json:"signup_token" binding:"required"`
	Name        string                 `json:"name" binding:"max=100"`
	Profile     services.ProfileFields `json:"profile"`
}

type SignupResponse struct {
	User    *models.User `json:"user"`
	Token   string       `json:"token"`
	Created bool         `json:"created"`
}

// Signup registers or re-identifies a user and issues a session token.
// Repeating it is safe: the existing user is returned with 200.
// POST /api/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	claims, err := h.tokens.ParseSignupToken(req.SignupToken)
	if err != nil {
		response.Unauthorized(c, "invalid or expired signup token")
		return
	}

	params := services.SignupParams{Email: claims.Email, Name: req.Name, Profile: req.Profile}
	if params.Name == "" {
		params.Name = claims.Name
	}
	if claims.Subject != "" {
		sub := claims.Subject
		params.ExternalID = &sub
	}

	user, created, err := h.users.Signup(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, h.expireHours)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, response.Response{OK: true, Data: SignupResponse{User: user, Token: token, Created: created}})
}
