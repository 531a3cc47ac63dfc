package rating

import (
	"encoding/json"
	"net/http"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

// RateRequest 定义了评分请求体的JSON结构
type RateRequest struct {
	UserID string      `json:"userId" binding:"required"`
	Rating json.Number `json:"rating" binding:"required"`
}

// RateResponse 只返回聚合结果，不暴露其他用户的评分
type RateResponse struct {
	ParkID  string  `json:"parkId"`
	Average float64 `json:"average"`
	Count   int64   `json:"ratingCount"`
}

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/parks/:id/ratings", h.RatePark)
}

// RatePark 处理评分请求
func (h *Handler) RatePark(c *gin.Context) {
	var body RateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	value, err := ParseRating(body.Rating.String())
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	parkID := c.Param("id")
	agg, err := h.agg.Rate(c.Request.Context(), parkID, body.UserID, value)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, RateResponse{ParkID: parkID, Average: agg.Average, Count: agg.Count})
}
