package challenge

import (
	"encoding/json"
	"net/http"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/gin-gonic/gin"
)

// SubmitRequest 定义了成绩提交的JSON结构
type SubmitRequest struct {
	UserID        string      `json:"userId" binding:"required"`
	DisplayName   string      `json:"displayName"`
	ChallengeType string      `json:"challengeType" binding:"required"`
	Score         json.Number `json:"score" binding:"required"`
}

type Handler struct {
	tracker *Tracker
}

func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/parks/:id/records", h.SubmitRecord)
	rg.GET("/parks/:id/records", h.ListRecords)
}

// ListRecords 返回公园的成绩记录
func (h *Handler) ListRecords(c *gin.Context) {
	records, err := h.tracker.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// SubmitRecord 处理成绩提交，未刷新纪录时同样返回201，因为记录已写入日志
func (h *Handler) SubmitRecord(c *gin.Context) {
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	score, err := ParseScore(body.Score.String())
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	result, err := h.tracker.Submit(c.Request.Context(), Submission{
		ParkID:        c.Param("id"),
		ChallengeType: park.ChallengeType(body.ChallengeType),
		UserID:        body.UserID,
		DisplayName:   body.DisplayName,
		Score:         score,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
