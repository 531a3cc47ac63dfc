package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	builder      *Builder
	defaultLimit int
}

func NewHandler(builder *Builder, defaultLimit int) *Handler {
	return &Handler{builder: builder, defaultLimit: defaultLimit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leaderboard", h.GetLeaderboard)
}

// GetLeaderboard 返回排行榜，limit 参数控制条数
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			apperr.Respond(c, apperr.Validation("limit 必须是正整数: %q", raw))
			return
		}
		limit = n
	}

	entries, err := h.builder.Build(c.Request.Context())
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, Limit(entries, limit))
}
