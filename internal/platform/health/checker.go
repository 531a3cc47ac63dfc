package health

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/database"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCheckInterval = 5 * time.Second
	pingTimeout          = 2 * time.Second
)

var runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)

// InfoReader 是读取Redis服务器信息所需的最小接口，*redis.Client 满足它
type InfoReader interface {
	Info(ctx context.Context, section ...string) *redis.StringCmd
}

// RebuildFunc 在检测到Redis重启后重建文档存储中的数据
type RebuildFunc func(ctx context.Context) error

// Checker 通过 run_id 检测Redis的断连和重启。
// 重启意味着文档存储的数据已经丢失，必须重建成功后才重新标记为可用。
type Checker struct {
	rdb      InfoReader
	status   *database.Status
	rebuild  RebuildFunc
	interval time.Duration
}

func NewChecker(rdb InfoReader, status *database.Status, rebuild RebuildFunc) *Checker {
	return &Checker{rdb: rdb, status: status, rebuild: rebuild, interval: DefaultCheckInterval}
}

// ParseRunID 从 INFO server 的输出中提取 run_id
func ParseRunID(info string) (string, error) {
	matches := runIDPattern.FindStringSubmatch(info)
	if len(matches) < 2 {
		return "", fmt.Errorf("无法在Redis INFO中找到run_id")
	}
	return matches[1], nil
}

func (c *Checker) runID(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	info, err := c.rdb.Info(ctx, "server").Result()
	if err != nil {
		return "", err
	}
	return ParseRunID(info)
}

// Initialize 在应用启动时执行一次，获取并设置初始的run_id。
func (c *Checker) Initialize(ctx context.Context) error {
	runID, err := c.runID(ctx)
	if err != nil {
		return fmt.Errorf("无法在启动时获取Redis Run ID，请检查Redis服务: %w", err)
	}
	c.status.SetInitialRunID(runID)
	logger.Info("获取初始Redis Run ID成功: %s", runID)
	return nil
}

// rebuildAtomically 重建数据，并确认重建期间Redis没有再次重启
func (c *Checker) rebuildAtomically(ctx context.Context, idBeforeRebuild string) bool {
	logger.Warn("健康检查: 检测到Redis重启，正在重建文档存储...")
	if err := c.rebuild(ctx); err != nil {
		logger.Error("健康检查错误: 重建失败: %v", err)
		return false
	}

	idAfterRebuild, err := c.runID(ctx)
	if err != nil {
		logger.Error("健康检查错误: 重建后无法连接到Redis，重建无效")
		return false
	}
	if idBeforeRebuild != idAfterRebuild {
		logger.Error("健康检查错误: 重建期间检测到Redis再次重启 (run_id: %s -> %s)，重建无效", idBeforeRebuild, idAfterRebuild)
		return false
	}

	logger.Success("健康检查: 重建成功并通过原子性校验")
	return true
}

// PerformCheck 执行一次完整的健康检查和可能的修复操作。
func (c *Checker) PerformCheck(ctx context.Context) {
	currentRunID, err := c.runID(ctx)
	if err != nil {
		c.status.Update(false, "")
		return
	}

	if currentRunID == c.status.LastKnownRunID() {
		c.status.Update(true, currentRunID)
		return
	}

	// 先标记为不可用，重建期间拒绝请求
	c.status.Update(false, "")
	if c.rebuildAtomically(ctx, currentRunID) {
		c.status.Update(true, currentRunID)
	}
}

// Run 定期执行健康检查，直到句柄被取消。
func (c *Checker) Run(h *lifecycle.Handle) {
	defer h.Close()
	logger.Info("Redis健康检查器已启动")
	h.Every(c.interval, c.PerformCheck)
}
