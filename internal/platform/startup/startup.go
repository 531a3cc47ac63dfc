package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/workout-parks-backend/internal/challenge"
	"github.com/SlpAus/workout-parks-backend/internal/platform/backup"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/internal/platform/metadata"
	"github.com/SlpAus/workout-parks-backend/internal/rating"
	"github.com/SlpAus/workout-parks-backend/internal/record"
	"github.com/SlpAus/workout-parks-backend/internal/user"
	"gorm.io/gorm"
)

// Modules 是启动和重建过程需要的所有模块
type Modules struct {
	DB      *gorm.DB
	Records *record.Repository
	Users   *user.Repository
	Backup  *backup.Service
	Tracker *challenge.Tracker
	Ratings *rating.Aggregator
}

// InitializeApplication 是应用启动时执行的总入口: 迁移所有表，然后预热文档存储
func InitializeApplication(ctx context.Context, m Modules) error {
	logger.Info("开始应用初始化...")

	if err := metadata.Migrate(m.DB); err != nil {
		return err
	}
	if err := m.Records.Migrate(); err != nil {
		return err
	}
	if err := m.Users.Migrate(); err != nil {
		return err
	}
	if err := m.Backup.Migrate(); err != nil {
		return err
	}
	logger.Success("数据库表迁移成功")

	if err := warmup(ctx, m); err != nil {
		return err
	}
	logger.Success("应用初始化完成！")
	return nil
}

// warmup 从快照恢复公园，再用成绩日志和评分明细修复聚合
func warmup(ctx context.Context, m Modules) error {
	restored, err := m.Backup.Restore(ctx)
	if err != nil {
		return fmt.Errorf("从快照恢复公园失败: %w", err)
	}
	if restored > 0 {
		logger.Info("已从快照恢复 %d 个公园", restored)
	}

	fixed, err := m.Tracker.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("重建最好成绩失败: %w", err)
	}
	if fixed > 0 {
		logger.Warn("已根据成绩日志修复 %d 个公园的最好成绩", fixed)
	}

	drifted, err := m.Ratings.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("校验评分聚合失败: %w", err)
	}
	if drifted > 0 {
		logger.Warn("已修复 %d 个公园的评分聚合", drifted)
	}
	return nil
}

// RebuildStore 在运行时重建文档存储，供健康检查在Redis重启后调用
func RebuildStore(m Modules) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Info("开始重建文档存储...")
		if err := warmup(ctx, m); err != nil {
			return err
		}

		// 重建完成后立刻做一次快照
		if _, err := m.Backup.CreateSnapshot(ctx); err != nil {
			logger.Warn("重建后的快照创建失败: %v", err)
		}
		return nil
	}
}
