package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 负责用户资料表的读写
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate 负责自动迁移users表结构
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("无法迁移users表: %w", err)
	}
	return nil
}

// Upsert 创建或更新用户资料，不会覆盖积分
func (r *Repository) Upsert(ctx context.Context, u User) (User, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "email", "photo_url", "updated_at"}),
	}).Create(&u).Error
	if err != nil {
		return User{}, fmt.Errorf("无法保存用户 %s: %w", u.ID, err)
	}
	return r.Get(ctx, u.ID)
}

func (r *Repository) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, apperr.NotFound("用户 %s 不存在", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("无法读取用户 %s: %w", id, err)
	}
	return u, nil
}

// DisplayNames 返回所有设置了显示名的用户，键为用户ID
func (r *Repository) DisplayNames(ctx context.Context) (map[string]string, error) {
	var users []User
	err := r.db.WithContext(ctx).Select("id", "display_name").Where("display_name <> ''").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取用户显示名: %w", err)
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}
