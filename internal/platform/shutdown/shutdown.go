package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/pkg/lifecycle"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 30 * time.Second
	forcefulTimeout = 1 * time.Second
	snapshotTimeout = 30 * time.Second
)

// SessionCloser 结束所有长连接会话
type SessionCloser interface {
	CloseAll()
}

// Snapshotter 执行最终快照
type Snapshotter interface {
	CreateSnapshot(ctx context.Context) (int, error)
}

// Coordinator 负责编排应用程序的优雅停机流程。
// 它接收外部创建的生命周期管理器，并使用它们来协调停机。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager

	sessions SessionCloser
	snapshot Snapshotter
}

// NewCoordinator 创建一个新的停机协调器，sessions 和 snapshot 可以为nil。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager, sessions SessionCloser, snapshot Snapshotter) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
		sessions:        sessions,
		snapshot:        snapshot,
	}
}

// ListenForSignalsAndShutdown 启动信号监听并阻塞，直到停机流程完成。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("收到关闭信号，开始优雅停机...")
	c.Shutdown(server)
}

// Shutdown 执行完整的停机流程。
func (c *Coordinator) Shutdown(server *http.Server) {
	// 先结束邻近会话，SSE连接随之返回，否则HTTP服务器会一直等待它们
	if c.sessions != nil {
		c.sessions.CloseAll()
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Gin服务器关闭错误: %v", err)
		} else {
			logger.Info("Gin服务器已关闭")
		}
	}

	// --- 阶段一: 优雅停机 ---
	logger.Info("第一阶段停机：等待最多 %v 以完成任务...", gracefulTimeout)
	c.GracefulManager.Shutdown()

	remainingServices := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remainingServices) == 0 {
		logger.Success("所有服务已在第一阶段优雅关闭")
	} else {
		// --- 阶段二: 强制停机 ---
		logger.Warn("第一阶段超时，仍在运行: %v。发送第二停机信号 (最多等待 %v)...", remainingServices, forcefulTimeout)
		c.ForcefulManager.Shutdown()
		c.ForcefulManager.WaitWithTimeout(forcefulTimeout)
	}

	// --- 最终步骤 ---
	if c.snapshot != nil {
		logger.Info("正在执行最终快照...")
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()
		if n, err := c.snapshot.CreateSnapshot(ctx); err != nil {
			logger.Error("最终快照失败: %v", err)
		} else {
			logger.Success("最终快照成功，共 %d 个公园", n)
		}
	}

	logger.Success("优雅停机完成")
}
