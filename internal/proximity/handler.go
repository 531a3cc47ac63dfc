package proximity

import (
	"io"
	"net/http"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	"github.com/gin-gonic/gin"
)

// StartRequest 定义了创建会话的JSON结构
type StartRequest struct {
	UserID      string `json:"userId" binding:"required"`
	DisplayName string `json:"displayName"`
}

type StartResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// SampleRequest 定义了位置上报的JSON结构
type SampleRequest struct {
	Token string   `json:"token" binding:"required"`
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
}

type SampleResponse struct {
	Events []Event `json:"events"`
}

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.POST("/:id/locations", h.PostLocation)
		sessions.GET("/:id/events", h.StreamEvents)
		sessions.DELETE("/:id", h.EndSession)
	}
}

func (h *Handler) StartSession(c *gin.Context) {
	var body StartRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	s, tok, err := h.manager.Start(c.Request.Context(), Subject{UserID: body.UserID, DisplayName: body.DisplayName})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, StartResponse{SessionID: s.ID(), Token: tok})
}

func (h *Handler) PostLocation(c *gin.Context) {
	var body SampleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	s, err := h.manager.Lookup(c.Param("id"), body.Token)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	events, err := s.HandleSample(c.Request.Context(), geo.Coordinates{Lat: *body.Lat, Lng: *body.Lng})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	c.JSON(http.StatusOK, SampleResponse{Events: events})
}

// StreamEvents 以SSE推送会话的提醒，会话结束或客户端断开时返回
func (h *Handler) StreamEvents(c *gin.Context) {
	s, err := h.manager.Lookup(c.Param("id"), c.Query("token"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	feed := s.Feed().C()
	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-feed:
			if !ok {
				return false
			}
			c.SSEvent(n.Category, n)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) EndSession(c *gin.Context) {
	if err := h.manager.End(c.Param("id"), c.Query("token")); err != nil {
		apperr.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
