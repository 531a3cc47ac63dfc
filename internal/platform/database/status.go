package database

import (
	"sync"

	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
)

// Status 负责线程安全地管理和提供文档存储后端的健康状态。
// 内存存储永远健康，Redis 存储由 health 模块定期更新。
type Status struct {
	mu             sync.RWMutex
	healthy        bool
	lastKnownRunID string
}

// NewStatus 创建一个状态管理器，默认启动时是健康的
func NewStatus() *Status {
	return &Status{healthy: true}
}

// IsHealthy 返回当前存储后端的健康状态。
func (s *Status) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// SetInitialRunID 在应用启动时调用，用于设置初始的Redis run_id。
func (s *Status) SetInitialRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownRunID = runID
}

// Update 用于线程安全地更新健康状态。
func (s *Status) Update(healthy bool, newRunID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 只有当状态发生变化时才打印日志
	if s.healthy != healthy {
		s.healthy = healthy
		if healthy {
			logger.Success("健康检查: 存储服务状态已更新为 [可用]")
		} else {
			logger.Warn("健康检查警告: 存储服务状态已更新为 [不可用]")
		}
	}

	// 只有在健康状态下，才更新已知的run_id
	if healthy {
		s.lastKnownRunID = newRunID
	}
}

// LastKnownRunID 用于线程安全地获取已知的run_id。
func (s *Status) LastKnownRunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastKnownRunID
}
