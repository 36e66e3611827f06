package server

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// RateLimiter 每连接固定窗口计数器（1 秒窗口）
//
// 并非真正的滑动窗口：跨窗口边界的突发最多可达名义速率的 2 倍，这是接受的近似。
type RateLimiter struct {
	mu          deadlock.Mutex
	max         int
	window      time.Duration
	count       int
	rejected    int
	windowStart time.Time
}

func NewRateLimiter(maxPerWindow int, window time.Duration, now time.Time) *RateLimiter {
	if maxPerWindow <= 0 {
		maxPerWindow = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{max: maxPerWindow, window: window, windowStart: now}
}

// Allow 计入一条消息并判断是否放行；
// rejected 为本窗口内（含本条）已被拒绝的条数，放行时为 0
func (rl *RateLimiter) Allow(now time.Time) (ok bool, rejected int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.windowStart) >= rl.window {
		rl.count = 0
		rl.rejected = 0
		rl.windowStart = now
	}
	rl.count++
	if rl.count > rl.max {
		rl.rejected++
		return false, rl.rejected
	}
	return true, 0
}

// Count 当前窗口已计入的消息数
func (rl *RateLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.count
}
