package server

import (
	"sync/atomic"
)

// WorldMetrics 记录世界运行期的关键指标（用于监控与调试）
type WorldMetrics struct {
	TickCount      int64 // 统计的 Tick 次数
	TicksIdle      int64 // 无人移动而跳过广播的 Tick 数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
	InputsAccepted int64 // 通过限流并被处理的消息数
	InputsDropped  int64 // 因事件队列满被丢弃的消息数
	RateLimited    int64 // 被限流拒绝的消息数
	Rejected       int64 // 校验失败被拒绝的消息数
	Joined         int64
	Left           int64
	Evicted        int64 // 超时驱逐
	Kicked         int64 // 因限流踢出
	FramesDropped  int64 // 因发送队列满丢弃的出站帧
}

func (m *WorldMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *WorldMetrics) IncInputDropped() { atomic.AddInt64(&m.InputsDropped, 1) }
func (m *WorldMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *WorldMetrics) IncRejected() { atomic.AddInt64(&m.Rejected, 1) }
func (m *WorldMetrics) IncJoined() { atomic.AddInt64(&m.Joined, 1) }
func (m *WorldMetrics) IncLeft() { atomic.AddInt64(&m.Left, 1) }
func (m *WorldMetrics) IncEvicted() { atomic.AddInt64(&m.Evicted, 1) }
func (m *WorldMetrics) IncKicked() { atomic.AddInt64(&m.Kicked, 1) }
func (m *WorldMetrics) IncIdleTick() { atomic.AddInt64(&m.TicksIdle, 1) }
func (m *WorldMetrics) AddFramesDropped(n int) {
	if n > 0 {
		atomic.AddInt64(&m.FramesDropped, int64(n))
	}
}
func (m *WorldMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *WorldMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"ticks_idle":      atomic.LoadInt64(&m.TicksIdle),
		"avg_tick_ms":     avgMs,
		"inputs_accepted": atomic.LoadInt64(&m.InputsAccepted),
		"inputs_dropped":  atomic.LoadInt64(&m.InputsDropped),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"rejected":        atomic.LoadInt64(&m.Rejected),
		"joined":          atomic.LoadInt64(&m.Joined),
		"left":            atomic.LoadInt64(&m.Left),
		"evicted":         atomic.LoadInt64(&m.Evicted),
		"kicked":          atomic.LoadInt64(&m.Kicked),
		"frames_dropped":  atomic.LoadInt64(&m.FramesDropped),
	}
}
