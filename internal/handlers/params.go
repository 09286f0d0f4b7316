package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/services"
	"github.com/waffice/backend/pkg/response"
)

// paramID reads a positive numeric path parameter. On failure the
// response has already been written.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// pageQuery binds ?cursor=&limit= from the query string.
func pageQuery(c *gin.Context) (services.PageQuery, bool) {
	var q services.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "invalid cursor or limit")
		return q, false
	}
	return q, true
}
