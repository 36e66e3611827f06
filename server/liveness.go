package server

// Sweep 驱逐超过存活超时未 ping 的会话（幽灵），返回驱逐数
// 没有存活时间戳的会话直接视为超时
func (w *World) Sweep() int {
	now := w.now()
	var ghosts []*Session
	for _, id := range w.sessions.IDs() {
		s := w.sessions.Get(id)
		if s.LastLivenessAt.IsZero() || now.Sub(s.LastLivenessAt) > w.cfg.LivenessTimeout {
			ghosts = append(ghosts, s)
		}
	}
	for _, s := range ghosts {
		Log.Infow("evicting ghost", "id", s.ID, "idle", now.Sub(s.LastLivenessAt))
		w.remove(s, "was kicked", true)
		w.metrics.IncEvicted()
	}
	if w.dirty {
		w.publishStatus()
	}
	return len(ghosts)
}
