package park

import (
	"net/http"
	"strconv"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	"github.com/gin-gonic/gin"
)

// CreateParkRequest 定义了创建公园请求体的JSON结构
type CreateParkRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Lat         *float64 `json:"lat" binding:"required"`
	Lng         *float64 `json:"lng" binding:"required"`
	CreatedBy   string   `json:"createdBy" binding:"required"`
}

// PublicRating 是对外展示的评分聚合，不包含每个用户的评分
type PublicRating struct {
	Average float64 `json:"average"`
	Count   int64   `json:"ratingCount"`
}

// ParkResponse 是公园的对外视图: 评分只保留聚合，并附带到查询位置的距离
type ParkResponse struct {
	Park
	Rating         PublicRating `json:"rating"`
	DistanceMeters *float64     `json:"distanceMeters,omitempty"`
}

func NewParkResponse(p Park) ParkResponse {
	return ParkResponse{
		Park:   p,
		Rating: PublicRating{Average: p.Rating.Average, Count: p.Rating.Count},
	}
}

// NewParkResponses 把公园列表转换为对外视图，空列表返回空切片
func NewParkResponses(parks []Park) []ParkResponse {
	resp := make([]ParkResponse, len(parks))
	for i, p := range parks {
		resp[i] = NewParkResponse(p)
	}
	return resp
}

// Handler 提供公园相关的HTTP接口
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/parks", h.CreatePark)
	rg.GET("/parks", h.ListParks)
	rg.GET("/parks/:id", h.GetPark)
}

// CreatePark 处理创建公园的请求
func (h *Handler) CreatePark(c *gin.Context) {
	var body CreateParkRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apperr.Respond(c, apperr.Wrap(apperr.CodeValidation, "请求格式错误", err))
		return
	}

	created, err := h.svc.Create(c.Request.Context(), NewPark{
		Name:        body.Name,
		Description: body.Description,
		Lat:         *body.Lat,
		Lng:         *body.Lng,
		CreatedBy:   body.CreatedBy,
	})
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewParkResponse(created))
}

// GetPark 返回单个公园
func (h *Handler) GetPark(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, NewParkResponse(p))
}

// ListParks 支持 lat/lng/maxDistance/minRating/sort 查询参数
func (h *Handler) ListParks(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	parks, err := h.svc.Query(c.Request.Context(), q)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	resp := NewParkResponses(parks)
	if q.Origin != nil {
		for i := range resp {
			d := geo.Distance(*q.Origin, resp[i].Location)
			resp[i].DistanceMeters = &d
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseFloatParam(c *gin.Context, name string) (float64, bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, apperr.Validation("参数 %s 不是合法的数字: %q", name, raw)
	}
	return v, true, nil
}

func parseQuery(c *gin.Context) (Query, error) {
	var q Query

	lat, hasLat, err := parseFloatParam(c, "lat")
	if err != nil {
		return q, err
	}
	lng, hasLng, err := parseFloatParam(c, "lng")
	if err != nil {
		return q, err
	}
	if hasLat != hasLng {
		return q, apperr.Validation("参数 lat 和 lng 必须同时提供")
	}
	if hasLat {
		q.Origin = &geo.Coordinates{Lat: lat, Lng: lng}
	}

	if q.MaxDistance, _, err = parseFloatParam(c, "maxDistance"); err != nil {
		return q, err
	}
	if q.MinRating, _, err = parseFloatParam(c, "minRating"); err != nil {
		return q, err
	}
	q.Sort = SortOrder(c.Query("sort"))
	return q, nil
}
