package server

import (
	"math"
	"time"
)

// Zone 轴对齐矩形区域，仅用于给位置打展示标签
type Zone struct {
	Name string
	Min  Vec2
	Max  Vec2
}

// DefaultZones 固定区域表，按顺序匹配，先命中者生效
var DefaultZones = []Zone{
	{Name: "plaza", Min: Vec2{X: -3, Y: -3}, Max: Vec2{X: 3, Y: 3}},
	{Name: "north-wing", Min: Vec2{X: -15, Y: 3}, Max: Vec2{X: 15, Y: 15}},
	{Name: "south-wing", Min: Vec2{X: -15, Y: -15}, Max: Vec2{X: 15, Y: -3}},
}

// Contains 边界含端点
func (z Zone) Contains(p Vec2) bool {
	return p.X >= z.Min.X && p.X <= z.Max.X && p.Y >= z.Min.Y && p.Y <= z.Max.Y
}

// ZoneAt 返回第一个包含 p 的区域名，都不包含返回空串
func ZoneAt(p Vec2, zones []Zone) string {
	for _, z := range zones {
		if z.Contains(p) {
			return z.Name
		}
	}
	return ""
}

// Step 沿直线以 maxSpeed 向目标推进 elapsed 时长；
// 剩余距离不超过本步长时直接贴到目标，避免越过后来回振荡
func Step(cur, target Vec2, maxSpeed float64, elapsed time.Duration) (next Vec2, moving bool) {
	dx := target.X - cur.X
	dy := target.Y - cur.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return cur, false
	}
	s := maxSpeed * float64(elapsed) / float64(time.Second)
	if d <= s {
		return target, false
	}
	if s <= 0 {
		return cur, true
	}
	ratio := s / d
	next = Vec2{X: cur.X + dx*ratio, Y: cur.Y + dy*ratio}
	return next, next != target
}

// integrate 推进所有移动中的会话，返回本次是否有会话移动
func (w *World) integrate(elapsed time.Duration) bool {
	moved := false
	for _, s := range w.sessions.sessions {
		if !s.Moving {
			continue
		}
		s.Position, s.Moving = Step(s.Position, s.Target, s.MaxSpeed, elapsed)
		s.Zone = ZoneAt(s.Position, w.zones)
		moved = true
	}
	return moved
}
