package proximity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/SlpAus/workout-parks-backend/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

const (
	CategoryParkNearby = "park-nearby"
	CategoryUserNearby = "user-nearby"
)

// notificationChannelPrefix 是Redis通知频道的前缀，频道名为 notifications:<subjectId>
const notificationChannelPrefix = "notifications:"

// Notification 是发给主体的一条提醒
type Notification struct {
	Category       string    `json:"category"`
	SubjectID      string    `json:"subjectId"`
	TargetID       string    `json:"targetId"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	DistanceMeters float64   `json:"distanceMeters"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewNotification 把邻近事件转换为提醒
func NewNotification(e Event, now time.Time) Notification {
	n := Notification{
		SubjectID:      e.SubjectID,
		TargetID:       e.Target.ID,
		DistanceMeters: e.DistanceMeters,
		Timestamp:      now.UTC(),
	}
	switch e.Target.Kind {
	case KindPark:
		n.Category = CategoryParkNearby
		n.Title = "附近有公园"
		n.Message = fmt.Sprintf("你已到达公园 %s 附近", e.Target.Name)
	default:
		n.Category = CategoryUserNearby
		n.Title = "附近有用户"
		n.Message = fmt.Sprintf("用户 %s 就在你附近", e.Target.Name)
	}
	return n
}

// Notifier 是提醒的投递渠道，投递失败不影响匹配
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier 把提醒写入日志
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) {
	logger.Info("邻近提醒 [%s] -> %s: %s (%.0f 米)", n.Category, n.SubjectID, n.Message, n.DistanceMeters)
}

// RedisNotifier 把提醒以JSON形式发布到主体的Redis频道
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// ChannelFor 返回主体的通知频道名
func ChannelFor(subjectID string) string {
	return notificationChannelPrefix + subjectID
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Error("无法编码邻近提醒: %v", err)
		return
	}
	if err := r.rdb.Publish(ctx, ChannelFor(n.SubjectID), payload).Err(); err != nil {
		logger.Warn("发布邻近提醒到Redis失败: %v", err)
	}
}

// Fanout 把提醒依次交给多个渠道
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) {
	for _, notifier := range f {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

// DefaultFeedSize 是会话提醒缓冲区的默认容量
const DefaultFeedSize = 16

// Feed 是单个会话的提醒缓冲区，供SSE接口读取。缓冲区满时丢弃新提醒。
type Feed struct {
	mu     sync.Mutex
	ch     chan Notification
	closed bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{ch: make(chan Notification, size)}
}

func (f *Feed) Notify(_ context.Context, n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- n:
	default:
		logger.Warn("会话提醒缓冲区已满，丢弃提醒: %s", n.Message)
	}
}

// C 返回提醒通道，会话结束后关闭
func (f *Feed) C() <-chan Notification {
	return f.ch
}

func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}
