package user

import (
	"context"
	"strings"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/record"
	"github.com/go-playground/validator/v10"
)

// ProfileInput 是用户可以修改的资料字段
type ProfileInput struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	PhotoURL    string `json:"photoUrl" validate:"omitempty,url"`
}

// Profile 是个人主页需要的全部数据
type Profile struct {
	User    User                `json:"user"`
	Parks   []park.ParkResponse `json:"parks"`
	Records []record.Record     `json:"records"`
}

type parkLister interface {
	ListByCreator(ctx context.Context, userID string) ([]park.Park, error)
}

type recordLister interface {
	ByUser(ctx context.Context, userID string) ([]record.Record, error)
}

type Service struct {
	users    *Repository
	parks    parkLister
	records  recordLister
	validate *validator.Validate
}

func NewService(users *Repository, parks parkLister, records recordLister) *Service {
	return &Service{users: users, parks: parks, records: records, validate: validator.New()}
}

// UpdateProfile 校验并保存用户资料
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, apperr.Validation("用户ID不能为空")
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.TrimSpace(in.Email)
	in.PhotoURL = strings.TrimSpace(in.PhotoURL)
	if err := s.validate.Struct(in); err != nil {
		return User{}, apperr.Wrap(apperr.CodeValidation, "用户资料无效", err)
	}
	return s.users.Upsert(ctx, User{ID: userID, DisplayName: in.DisplayName, Email: in.Email, PhotoURL: in.PhotoURL})
}

// Profile 返回用户资料、其创建的公园和其成绩记录 (从新到旧)
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	parks, err := s.parks.ListByCreator(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	records, err := s.records.ByUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if records == nil {
		records = []record.Record{}
	}
	return Profile{User: u, Parks: park.NewParkResponses(parks), Records: records}, nil
}
