package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/internal/platform/metadata"
	"github.com/SlpAus/workout-parks-backend/pkg/lifecycle"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service 把文档存储中的公园聚合快照到关系数据库，并在存储为空时从快照恢复
type Service struct {
	db     *gorm.DB
	store  docstore.Store
	status *database.Status
	now    func() time.Time

	mu sync.Mutex // 快照与恢复互斥
}

func NewService(db *gorm.DB, store docstore.Store, status *database.Status) *Service {
	return &Service{db: db, store: store, status: status, now: time.Now}
}

// Migrate 负责迁移快照表
func (s *Service) Migrate() error {
	if err := s.db.AutoMigrate(&park.Snapshot{}); err != nil {
		return fmt.Errorf("无法迁移park_snapshots表: %w", err)
	}
	return nil
}

// StartScheduler 使用gocron定期执行快照，句柄取消时停止调度器
func (s *Service) StartScheduler(handle *lifecycle.Handle, interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		handle.Close()
		return fmt.Errorf("无法创建备份调度器: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if s.status != nil && !s.status.IsHealthy() {
				logger.Warn("备份调度器: 检测到文档存储不可用，跳过本次备份")
				return
			}
			n, err := s.CreateSnapshot(handle.Ctx())
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					logger.Error("备份调度器: 执行快照备份失败: %v", err)
				}
				return
			}
			logger.Success("备份调度器: 已备份 %d 个公园", n)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		handle.Close()
		return fmt.Errorf("无法注册备份任务: %w", err)
	}

	sched.Start()
	logger.Info("公园数据备份调度器已启动，间隔 %v", interval)

	go func() {
		defer handle.Close()
		<-handle.Done()
		if err := sched.Shutdown(); err != nil {
			logger.Warn("备份调度器关闭时出错: %v", err)
		}
		logger.Info("备份调度器已停止")
	}()
	return nil
}

// CreateSnapshot 执行一次快照，返回写入的公园数量。
// 每个公园文档连同版本号整体写入，元数据在同一个数据库事务中更新。
func (s *Service) CreateSnapshot(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. 读取所有公园文档
	q, err := s.store.List(ctx, docstore.Query{Collection: park.Collection})
	if err != nil {
		return 0, fmt.Errorf("无法读取公园文档: %w", err)
	}

	// 2. 准备将写入数据库的行
	snapshotAt := s.now().UTC()
	rows := make([]park.Snapshot, 0, len(q.Docs))
	for _, doc := range q.Docs {
		p, err := park.Decode(doc)
		if err != nil {
			return 0, fmt.Errorf("备份警告: 解析公园 %s 失败: %w", doc.Path.ID, err)
		}
		rows = append(rows, park.Snapshot{
			ParkID:     p.ID,
			Name:       p.Name,
			Geohash:    p.Geohash,
			CreatedBy:  p.CreatedBy,
			Version:    doc.Version,
			Payload:    string(doc.Data),
			SnapshotAt: snapshotAt,
		})
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	// 3. 持久化，锁竞争时重试
	const maxRetry = 3
	const delay = 50 * time.Millisecond
	for i := 0; i < maxRetry; i++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// a. 以 park_id 为冲突依据执行 UPSERT
			if len(rows) > 0 {
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "park_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"name", "geohash", "created_by", "version", "payload", "snapshot_at"}),
				}).Create(&rows).Error
				if err != nil {
					return fmt.Errorf("批量写入公园快照失败: %w", err)
				}
			}

			// b. 更新元数据
			if err := metadata.SetLastSnapshotAt(tx, snapshotAt); err != nil {
				return fmt.Errorf("更新元数据 LastSnapshotAt 失败: %w", err)
			}
			if err := metadata.SetSnapshotParkCount(tx, len(rows)); err != nil {
				return fmt.Errorf("更新元数据 SnapshotParkCount 失败: %w", err)
			}
			return nil
		})
		if err == nil || !database.IsRetryableError(err) {
			break
		}
		time.Sleep(delay)
	}
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// Restore 在文档存储中没有任何公园时，用最近的快照预热存储，返回恢复的公园数量。
// 存储中已有公园时什么也不做，避免用旧快照覆盖新数据。
func (s *Service) Restore(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.store.List(ctx, docstore.Query{Collection: park.Collection})
	if err != nil {
		return 0, fmt.Errorf("无法读取公园文档: %w", err)
	}
	if len(q.Docs) > 0 {
		return 0, nil
	}

	var rows []park.Snapshot
	if err := s.db.WithContext(ctx).Order("park_id ASC").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("无法读取公园快照: %w", err)
	}

	restored := 0
	for _, row := range rows {
		if !json.Valid([]byte(row.Payload)) {
			logger.Warn("恢复警告: 公园 %s 的快照已损坏，已跳过", row.ParkID)
			continue
		}
		if err := s.store.Set(ctx, park.Path(row.ParkID), json.RawMessage(row.Payload)); err != nil {
			return restored, fmt.Errorf("无法恢复公园 %s: %w", row.ParkID, err)
		}
		restored++
	}
	return restored, nil
}
