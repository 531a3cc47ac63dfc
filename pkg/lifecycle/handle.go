package lifecycle

import (
	"context"
	"time"
)

// Handle 由 Manager 分发给一个后台服务。
type Handle struct {
	ctx context.Context
	// Close 通知Manager服务已经退出，可以重复调用，通常在服务的Goroutine中 defer 调用。
	Close func()
}

// Ctx 在停机时被取消
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Every 每隔 interval 执行一次 task，直到句柄被取消后返回。
// task 串行执行，耗时超过 interval 时跳过错过的周期；传入的上下文在停机时取消。
func (h *Handle) Every(interval time.Duration, task func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
		}
		// 停机信号和定时器同时就绪时不再执行
		if h.ctx.Err() != nil {
			return
		}
		task(h.ctx)
	}
}
