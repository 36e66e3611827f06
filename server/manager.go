package server

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// idAlphabet 会话 ID 的字符集
const idAlphabet = "ABCDEFG12345"

// SessionRegistry 连接表：按 SessionID 与 ConnID 双索引，并提供广播原语
type SessionRegistry struct {
	sessions map[SessionID]*Session
	byConn   map[ConnID]*Session
	idLength int
	rng      *rand.Rand
}

func NewSessionRegistry(idLength int, rng *rand.Rand) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[SessionID]*Session),
		byConn:   make(map[ConnID]*Session),
		idLength: idLength,
		rng:      rng,
	}
}

// idSpace 可用 ID 总数（超过 1<<40 视为无限）
func (r *SessionRegistry) idSpace() int {
	n := 1
	for i := 0; i < r.idLength; i++ {
		n *= len(idAlphabet)
		if n > 1<<40 {
			return 1 << 40
		}
	}
	return n
}

// newID 拒绝采样：反复随机直到不与在线会话冲突
func (r *SessionRegistry) newID() (SessionID, error) {
	if len(r.sessions) >= r.idSpace() {
		return "", ErrIDSpaceExhausted
	}
	buf := make([]byte, r.idLength)
	for {
		for i := range buf {
			buf[i] = idAlphabet[r.rng.IntN(len(idAlphabet))]
		}
		id := SessionID(buf)
		if _, taken := r.sessions[id]; !taken {
			return id, nil
		}
	}
}

// Register 分配 ID 并登记会话
func (r *SessionRegistry) Register(s *Session) error {
	if _, dup := r.byConn[s.Conn]; dup {
		return fmt.Errorf("register conn %d: already registered", s.Conn)
	}
	id, err := r.newID()
	if err != nil {
		return fmt.Errorf("register conn %d: %w", s.Conn, err)
	}
	s.ID = id
	r.sessions[id] = s
	r.byConn[s.Conn] = s
	return nil
}

// Unregister 移除会话；不存在时为 no-op（驱逐与主动断开可能先后到达）
func (r *SessionRegistry) Unregister(id SessionID) (*Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	delete(r.byConn, s.Conn)
	return s, true
}

// Get 按 ID 查会话
func (r *SessionRegistry) Get(id SessionID) *Session {
	return r.sessions[id]
}

// ByConn 按连接查会话
func (r *SessionRegistry) ByConn(c ConnID) *Session {
	return r.byConn[c]
}

func (r *SessionRegistry) Len() int {
	return len(r.sessions)
}

// IDs 在线会话 ID（有序）
func (r *SessionRegistry) IDs() []SessionID {
	ids := make([]SessionID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Broadcast 向满足 pred 的会话投递 payload，pred 为 nil 表示全部；
// 连接未打开的会话跳过。返回成功入队数与因队列满丢弃数
func (r *SessionRegistry) Broadcast(pred func(*Session) bool, payload []byte) (sent, dropped int) {
	for _, s := range r.sessions {
		if pred != nil && !pred(s) {
			continue
		}
		if s.out == nil || !s.out.IsOpen() {
			continue
		}
		if s.out.Enqueue(payload) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

// inChannel 广播谓词：频道成员
func inChannel(name string) func(*Session) bool {
	return func(s *Session) bool { return s.Channel == name }
}
