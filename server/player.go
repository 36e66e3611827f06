package server

import "time"

// SessionID 会话对外句柄（固定长度随机串，仅在同时在线的会话间唯一）
type SessionID string

// ConnID 连接在进程内的标识，用于从连接查到会话
type ConnID uint64

// Vec2 世界坐标
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Conn 会话的发送端抽象：非阻塞入队、是否仍打开、强制关闭
type Conn interface {
	Enqueue(b []byte) bool
	IsOpen() bool
	Close()
}

// Session 一个在线连接对应的服务端权威状态
// 只由 World 的 Tick 协程读写
type Session struct {
	ID          SessionID
	Conn        ConnID
	DisplayName string

	Position Vec2
	Target   Vec2
	Moving   bool
	MaxSpeed float64 // 每秒移动的世界单位
	Zone     string  // 展示用区域标签，不参与移动计算

	Color   int
	Channel string // 为空表示不在任何频道

	LastLivenessAt time.Time

	out     Conn
	limiter *RateLimiter
}

// Name 展示名，未设置时回退为 ID
func (s *Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return string(s.ID)
}

// send 向该会话投递一帧，连接已关闭则跳过
func (s *Session) send(b []byte) bool {
	if s.out == nil || !s.out.IsOpen() {
		return false
	}
	return s.out.Enqueue(b)
}
