package server

import (
	"context"
	"time"
)

// Tick 一帧：处理输入 → 推进移动 → 广播结果
// 用实际经过的时间积分，调度抖动会在下一帧自动修正
func (w *World) Tick() {
	start := time.Now()
	now := w.now()
	elapsed := now.Sub(w.lastTick)
	if elapsed < 0 {
		elapsed = 0
	}
	w.lastTick = now

	w.ProcessInputs()
	if w.integrate(elapsed) {
		w.broadcastSnapshot(false)
	} else {
		w.metrics.IncIdleTick()
	}
	if w.dirty {
		w.publishStatus()
	}
	w.metrics.AddTick(time.Since(start).Nanoseconds())
}

// Run 世界主循环（单协程推进世界），ctx 取消后关闭所有连接并返回
func (w *World) Run(ctx context.Context) error {
	tick := time.NewTicker(w.cfg.TickInterval())
	defer tick.Stop()
	sweep := time.NewTicker(w.cfg.LivenessTimeout)
	defer sweep.Stop()

	defer w.stop()
	defer w.shutdown()

	w.lastTick = w.now()
	Log.Infow("world running", "tickRateHz", w.cfg.TickRateHz, "livenessTimeout", w.cfg.LivenessTimeout,
		"channels", w.cfg.ChannelSpec())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			w.Tick()
		case <-sweep.C:
			w.Sweep()
		}
	}
}
