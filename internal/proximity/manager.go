package proximity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/pkg/lifecycle"
	"github.com/SlpAus/workout-parks-backend/pkg/token"
	"github.com/google/uuid"
)

// ErrInvalidToken 表示会话令牌与会话不匹配
var ErrInvalidToken = apperr.New(apperr.CodeForbidden, "会话令牌无效")

// DefaultSessionTTL 是会话在没有样本时的最长存活时间
const DefaultSessionTTL = 30 * time.Minute

// evictInterval 是清理过期会话的间隔
const evictInterval = time.Minute

type Options struct {
	ThresholdMeters float64
	SessionTTL      time.Duration
	FeedSize        int
}

// Manager 持有所有活动的邻近会话，会话之间互不共享状态
type Manager struct {
	parks     ParkSource
	locations LocationSource
	signer    *token.Signer
	notifier  Notifier
	opts      Options
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(parks ParkSource, locations LocationSource, signer *token.Signer, notifier Notifier, opts Options) *Manager {
	if opts.ThresholdMeters <= 0 {
		opts.ThresholdMeters = DefaultThresholdMeters
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Manager{
		parks:     parks,
		locations: locations,
		signer:    signer,
		notifier:  notifier,
		opts:      opts,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Start 为主体创建一个新会话，返回会话和它的令牌
func (m *Manager) Start(ctx context.Context, subject Subject) (*Session, string, error) {
	subject.UserID = strings.TrimSpace(subject.UserID)
	subject.DisplayName = strings.TrimSpace(subject.DisplayName)
	if subject.UserID == "" {
		return nil, "", apperr.Validation("用户ID不能为空")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("无法生成会话ID: %w", err)
	}
	tok, err := m.signer.Sign(token.Payload{SessionID: id.String(), UserID: subject.UserID})
	if err != nil {
		return nil, "", err
	}

	s, err := newSession(ctx, id.String(), subject, sessionDeps{
		parks:     m.parks,
		locations: m.locations,
		notifier:  m.notifier,
		threshold: m.opts.ThresholdMeters,
		feedSize:  m.opts.FeedSize,
		now:       m.now,
	})
	if err != nil {
		return nil, "", apperr.Wrap(apperr.CodeUnavailable, "无法创建邻近会话", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	logger.Info("邻近会话 %s 已创建 (用户 %s)", s.ID(), subject.UserID)
	return s, tok, nil
}

// Lookup 校验令牌并返回会话
func (m *Manager) Lookup(id, tok string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("邻近会话 %s 不存在", id)
	}
	if !m.signer.Verify(token.Payload{SessionID: id, UserID: s.Subject().UserID}, tok) {
		return nil, ErrInvalidToken
	}
	return s, nil
}

// End 结束并移除一个会话
func (m *Manager) End(id, tok string) error {
	s, err := m.Lookup(id, tok)
	if err != nil {
		return err
	}
	m.remove(s)
	return nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if m.sessions[s.ID()] == s {
		delete(m.sessions, s.ID())
	}
	m.mu.Unlock()
	s.Close()
	logger.Info("邻近会话 %s 已结束", s.ID())
}

// Len 返回活动会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict 移除空闲超时或已经因错误结束的会话，返回移除的数量
func (m *Manager) Evict() int {
	now := m.now()
	var stale []*Session
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Closed() || now.Sub(s.LastSeen()) > m.opts.SessionTTL {
			stale = append(stale, s)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.remove(s)
	}
	return len(stale)
}

// CloseAll 结束所有会话，用于停机
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	if len(all) > 0 {
		logger.Info("已关闭 %d 个邻近会话", len(all))
	}
}

// Run 定期清理过期会话，直到句柄被取消
func (m *Manager) Run(h *lifecycle.Handle) {
	defer h.Close()
	h.Every(evictInterval, func(context.Context) {
		if n := m.Evict(); n > 0 {
			logger.Info("已清理 %d 个过期的邻近会话", n)
		}
	})
}
