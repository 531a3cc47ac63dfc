package user

import (
	"net/http"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	"github.com/gin-gonic/gin"
)

// LocationRequest 定义了位置上报的JSON结构
type LocationRequest struct {
	DisplayName string   `json:"displayName"`
	Lat         *float64 `json:"lat" binding:"required"`
	Lng         *float64 `json:"lng" binding:"required"`
}

type Handler struct {
	service   *Service
	locations *LocationStore
}

func NewHandler(service *Service, locations *LocationStore) *Handler {
	return &Handler{service: service, locations: locations}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	users := rg.Group("/users/:id")
	{
		users.PUT("", h.UpdateProfile)
		users.GET("/profile", h.GetProfile)
		users.PUT("/location", h.UpdateLocation)
	}
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var body ProfileInput
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	u, err := h.service.UpdateProfile(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateLocation 保存用户的最新位置，邻近匹配会从位置流中看到它
func (h *Handler) UpdateLocation(c *gin.Context) {
	var body LocationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}
	sample, err := h.locations.Update(c.Request.Context(), LocationSample{
		UserID:      c.Param("id"),
		DisplayName: body.DisplayName,
		Location:    geo.Coordinates{Lat: *body.Lat, Lng: *body.Lng},
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sample)
}
