package record

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"gorm.io/gorm"
)

// Repository 是成绩记录的追加日志
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate 负责初始化record模块的数据库部分
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("无法迁移records表: %w", err)
	}
	return nil
}

// Append 追加一条记录，锁竞争时短暂重试
func (r *Repository) Append(ctx context.Context, rec Record) (Record, error) {
	rec.ID = 0
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	const maxRetry = 3
	const delay = 50 * time.Millisecond
	var err error
	for i := 0; i < maxRetry; i++ {
		attempt := rec
		err = r.db.WithContext(ctx).Create(&attempt).Error
		if err == nil {
			return attempt, nil
		}
		if !database.IsRetryableError(err) {
			break
		}
		select {
		case <-ctx.Done():
			return Record{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return Record{}, fmt.Errorf("无法写入成绩记录: %w", err)
}

// All 按写入顺序返回全部记录
func (r *Repository) All(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("无法读取成绩记录: %w", err)
	}
	return records, nil
}

// ByUser 返回某个用户的记录，按时间从新到旧
func (r *Repository) ByUser(ctx context.Context, userID string) ([]Record, error) {
	var records []Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取用户 %s 的成绩记录: %w", userID, err)
	}
	return records, nil
}

// ByPark 按写入顺序返回某个公园的记录
func (r *Repository) ByPark(ctx context.Context, parkID string) ([]Record, error) {
	var records []Record
	err := r.db.WithContext(ctx).Where("park_id = ?", parkID).Order("id ASC").Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("无法读取公园 %s 的成绩记录: %w", parkID, err)
	}
	return records, nil
}
