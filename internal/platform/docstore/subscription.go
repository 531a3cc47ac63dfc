package docstore

import (
	"sync"
)

// Subscription 是一个查询流的订阅句柄。
// 快照通过 C() 推送；尚未被读取的旧快照会被新快照替换。
// Unsubscribe 返回后不会再有任何快照被推送，通道随即关闭。
type Subscription struct {
	mu     sync.Mutex
	ch     chan QuerySnapshot
	done   chan struct{}
	closed bool
	err    error

	release     func()
	releaseOnce sync.Once
}

func newSubscription(release func()) *Subscription {
	return &Subscription{
		ch:      make(chan QuerySnapshot, 1),
		done:    make(chan struct{}),
		release: release,
	}
}

// C 返回快照通道。通道关闭表示订阅已结束，此时可通过 Err 查看原因。
func (s *Subscription) C() <-chan QuerySnapshot {
	return s.ch
}

// Done 在订阅结束时关闭
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err 返回导致订阅终止的错误；主动取消订阅时为nil
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// deliver 推送一份快照，订阅已结束时返回false
func (s *Subscription) deliver(snap QuerySnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	// 缓冲区容量为1，且只有持锁者会写入，清空后发送不会阻塞
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
	return true
}

// Unsubscribe 取消订阅，可重复调用
func (s *Subscription) Unsubscribe() {
	s.finish(nil)
}

// fail 以终止错误结束订阅，不会自动重新订阅
func (s *Subscription) fail(err error) {
	s.finish(err)
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	if err == nil {
		// 主动取消时丢弃未读取的快照
		select {
		case <-s.ch:
		default:
		}
	}
	close(s.ch)
	close(s.done)
	s.mu.Unlock()

	if s.release != nil {
		s.releaseOnce.Do(s.release)
	}
}
