package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/logger"
)

// Response is the envelope every endpoint answers with. Error holds a
// stable code from pkg/apperrors; Message is for humans.
type Response struct {
	OK      bool        `json:"ok"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// CursorPage is the data shape of cursor-paginated listings.
type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor *int64      `json:"next_cursor,omitempty"`
}

// Success sends a 200 OK response with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{OK: true, Data: data})
}

// Created sends a 201 Created response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{OK: true, Data: data})
}

// Page sends one page of a cursor listing.
func Page(c *gin.Context, items interface{}, next *int64) {
	Success(c, CursorPage{Items: items, NextCursor: next})
}

// Error sends an error response. An *apperrors.AppError anywhere in the
// chain supplies status, code and message; anything else is logged and
// reported as INTERNAL_ERROR without detail.
func Error(c *gin.Context, err error) {
	appErr, ok := apperrors.From(err)
	if !ok {
		logger.Error().
			Err(err).
			Str("request_id", logger.RequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, Response{
		OK:      false,
		Error:   appErr.Code,
		Message: appErr.Message,
	})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, apperrors.NewBadRequest(msg))
}

func Unauthorized(c *gin.Context, msg string) {
	Error(c, apperrors.ErrUnauthorized.WithMessage(msg))
}

func Forbidden(c *gin.Context, msg string) {
	Error(c, apperrors.NewForbidden(msg))
}

func NotFound(c *gin.Context, msg string) {
	Error(c, apperrors.NewNotFound(msg))
}
