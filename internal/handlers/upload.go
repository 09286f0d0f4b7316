package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/middleware"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/pkg/response"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

type PresignRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"max=100"`
}

// Presign POST /api/uploads/presign
func (h *UploadHandler) Presign(c *gin.Context) {
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	upload, err := h.uploads.Presign(c.Request.Context(), services.PresignParams{
		ActorID:     middleware.GetUserID(c),
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, upload)
}
