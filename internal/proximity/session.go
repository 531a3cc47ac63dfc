package proximity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/park"
	"github.com/SlpAus/workout-parks-backend/internal/platform/apperr"
	"github.com/SlpAus/workout-parks-backend/internal/platform/docstore"
	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/SlpAus/workout-parks-backend/internal/user"
	"github.com/SlpAus/workout-parks-backend/pkg/geo"
)

// ErrSessionClosed 表示会话已经结束
var ErrSessionClosed = apperr.New(apperr.CodeNotFound, "邻近会话已结束")

// ParkSource 提供公园集合的实时流
type ParkSource interface {
	Watch(ctx context.Context) (*docstore.Subscription, error)
}

// LocationSource 提供用户位置集合的实时流，并保存主体自己的位置
type LocationSource interface {
	Watch(ctx context.Context) (*docstore.Subscription, error)
	Update(ctx context.Context, sample user.LocationSample) (user.LocationSample, error)
}

// Subject 是会话所属的用户
type Subject struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Session 是一个用户的邻近匹配会话。
// 它订阅公园和用户位置两个集合来维护目标缓存，结束时取消两个订阅并丢弃匹配状态。
type Session struct {
	id       string
	subject  Subject
	matcher  *Matcher
	notifier Notifier
	feed     *Feed
	writer   LocationSource
	now      func() time.Time

	// sampleMu 保证样本按到达顺序逐个处理
	sampleMu sync.Mutex

	mu       sync.Mutex
	parks    []Target
	users    []Target
	closed   bool
	err      error
	lastSeen time.Time

	cancel context.CancelFunc
	subs   []*docstore.Subscription
	wg     sync.WaitGroup
	done   chan struct{}
}

type sessionDeps struct {
	parks     ParkSource
	locations LocationSource
	notifier  Notifier
	threshold float64
	feedSize  int
	now       func() time.Time
}

func parkTargets(q docstore.QuerySnapshot) ([]Target, error) {
	parks, err := park.DecodeAll(q)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(parks))
	for _, p := range parks {
		targets = append(targets, Target{Kind: KindPark, ID: p.ID, Name: p.Name, Location: p.Location})
	}
	return targets, nil
}

func userTargets(q docstore.QuerySnapshot) ([]Target, error) {
	samples, err := user.DecodeSamples(q)
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(samples))
	for _, s := range samples {
		name := s.DisplayName
		if name == "" {
			name = s.UserID
		}
		targets = append(targets, Target{Kind: KindUser, ID: s.UserID, Name: name, Location: s.Location})
	}
	return targets, nil
}

func newSession(ctx context.Context, id string, subject Subject, deps sessionDeps) (*Session, error) {
	feed := NewFeed(deps.feedSize)
	s := &Session{
		id:       id,
		subject:  subject,
		matcher:  NewMatcher(subject.UserID, deps.threshold),
		notifier: Fanout{deps.notifier, feed},
		feed:     feed,
		writer:   deps.locations,
		now:      deps.now,
		lastSeen: deps.now(),
		done:     make(chan struct{}),
	}

	// 订阅的生命周期属于会话，而不是创建它的请求
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	// 1. 订阅公园
	if err := s.follow(streamCtx, deps.parks.Watch, func(q docstore.QuerySnapshot) error {
		targets, err := parkTargets(q)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.parks = targets
		s.mu.Unlock()
		return nil
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("无法订阅公园: %w", err)
	}

	// 2. 订阅用户位置
	if err := s.follow(streamCtx, deps.locations.Watch, func(q docstore.QuerySnapshot) error {
		targets, err := userTargets(q)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.users = targets
		s.mu.Unlock()
		return nil
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("无法订阅用户位置: %w", err)
	}
	return s, nil
}

// follow 同步应用初始快照，之后在后台持续刷新缓存
func (s *Session) follow(ctx context.Context, watch func(context.Context) (*docstore.Subscription, error), apply func(docstore.QuerySnapshot) error) error {
	sub, err := watch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrSessionClosed
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	initial, ok := <-sub.C()
	if !ok {
		if err := sub.Err(); err != nil {
			return err
		}
		return ErrSessionClosed
	}
	if err := apply(initial); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for snap := range sub.C() {
			if err := apply(snap); err != nil {
				logger.Warn("邻近会话 %s: 无法解码快照: %v", s.id, err)
			}
		}
		if err := sub.Err(); err != nil {
			logger.Error("邻近会话 %s: 数据流中断: %v", s.id, err)
			s.finish(err)
		}
	}()
	return nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Subject() Subject { return s.subject }

// Feed 返回会话的提醒缓冲区
func (s *Session) Feed() *Feed { return s.feed }

// Done 在会话结束时关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Err 返回导致会话结束的数据流错误；正常关闭时为nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// HandleSample 处理主体的一个位置样本，返回新进入附近的目标并投递提醒
func (s *Session) HandleSample(ctx context.Context, loc geo.Coordinates) ([]Event, error) {
	if err := loc.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "位置无效", err)
	}

	s.sampleMu.Lock()
	defer s.sampleMu.Unlock()

	// 1. 取出目标缓存的当前视图
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeUnavailable, "邻近会话因数据流中断而结束", err)
		}
		return nil, ErrSessionClosed
	}
	now := s.now()
	s.lastSeen = now
	targets := make([]Target, 0, len(s.parks)+len(s.users))
	targets = append(targets, s.parks...)
	targets = append(targets, s.users...)
	s.mu.Unlock()

	// 2. 匹配
	events, err := s.matcher.Observe(loc, targets)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "位置无效", err)
	}

	// 3. 保存主体的最新位置，其他用户的会话会从位置流中看到它
	if s.Closed() {
		return nil, ErrSessionClosed
	}
	if _, err := s.writer.Update(ctx, user.LocationSample{
		UserID:      s.subject.UserID,
		DisplayName: s.subject.DisplayName,
		Location:    loc,
		Timestamp:   now.UTC(),
	}); err != nil {
		logger.Warn("邻近会话 %s: 无法保存位置: %v", s.id, err)
	}

	// 4. 投递提醒
	if s.Closed() {
		return nil, ErrSessionClosed
	}
	for _, e := range events {
		s.notifier.Notify(ctx, NewNotification(e, now))
	}
	return events, nil
}

// finish 结束会话，可以从任意Goroutine调用
func (s *Session) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.cancel()
	s.feed.Close()
	close(s.done)
}

// Close 取消两个订阅，并等待正在处理的样本和后台刷新退出，返回后会话不再产生任何写入或提醒
func (s *Session) Close() {
	s.finish(nil)
	s.sampleMu.Lock()
	s.sampleMu.Unlock()
	s.wg.Wait()
}
