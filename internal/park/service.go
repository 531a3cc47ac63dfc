package park

import (
	"context"
	"strings"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
)

// geohashPrecision 7 位约等于 150m x 150m 的格子
const geohashPrecision = 7

// NewPark 是创建公园的输入
type NewPark struct {
	Name        string  `validate:"required,max=120"`
	Description string  `validate:"max=2000"`
	Lat         float64 `validate:"gte=-90,lte=90"`
	Lng         float64 `validate:"gte=-180,lte=180"`
	CreatedBy   string  `validate:"required"`
}

// Service 提供公园的创建和查询
type Service struct {
	repo     *Repository
	validate *validator.Validate
	now      func() time.Time
}

func NewService(repo *Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Create 校验输入并创建一个带默认挑战项目和空评分的公园
func (s *Service) Create(ctx context.Context, in NewPark) (Park, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if err := s.validate.Struct(in); err != nil {
		return Park{}, apperr.Wrap(apperr.CodeValidation, "公园信息不合法", err)
	}
	location := geo.Coordinates{Lat: in.Lat, Lng: in.Lng}
	if err := location.Validate(); err != nil {
		return Park{}, apperr.Wrap(apperr.CodeValidation, "公园坐标不合法", err)
	}

	p := Park{
		Name:        in.Name,
		Slug:        slug.Make(in.Name),
		Description: in.Description,
		Location:    location,
		Geohash:     geo.Geohash(location, geohashPrecision),
		Rating:      RatingAggregate{PerUser: map[string]int{}},
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.now().UTC(),
		Challenges:  NewChallengeMap(),
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Park{}, err
	}
	logger.Info("公园已创建: %s (%s)", created.Name, created.ID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id string) (Park, error) {
	if strings.TrimSpace(id) == "" {
		return Park{}, apperr.Validation("公园ID不能为空")
	}
	return s.repo.Get(ctx, id)
}

// Query 返回经过筛选和排序的公园列表
func (s *Service) Query(ctx context.Context, q Query) ([]Park, error) {
	if q.Origin != nil {
		if err := q.Origin.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.CodeValidation, "定位坐标不合法", err)
		}
	}
	switch q.Sort {
	case SortNone, SortDistance, SortRating:
	default:
		return nil, apperr.Validation("未知的排序方式: %s", q.Sort)
	}

	parks, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(parks, q), nil
}

// ListByCreator 返回某个用户创建的公园
func (s *Service) ListByCreator(ctx context.Context, userID string) ([]Park, error) {
	return s.repo.ListByCreator(ctx, userID)
}
