package server

import (
	"fmt"
	"sort"
)

// Channel 固定容量的聊天频道，成员互斥（一个会话同时只在一个频道）
type Channel struct {
	Name     string
	Capacity int
	members  map[SessionID]struct{}
}

// ChannelStatus 频道占用情况（供管理接口输出）
type ChannelStatus struct {
	Members  int `json:"members"`
	Capacity int `json:"capacity"`
}

// ChannelRegistry 预配置的频道表，运行期不增不减
// 与会话一样只由 World 的 Tick 协程访问
type ChannelRegistry struct {
	channels map[string]*Channel
}

func NewChannelRegistry(defs map[string]int) *ChannelRegistry {
	r := &ChannelRegistry{channels: make(map[string]*Channel, len(defs))}
	for name, capacity := range defs {
		r.channels[name] = &Channel{
			Name:     name,
			Capacity: capacity,
			members:  make(map[SessionID]struct{}, capacity),
		}
	}
	return r
}

// Join 加入频道；必须先离开当前频道，不做隐式切换
func (r *ChannelRegistry) Join(s *Session, name string) error {
	ch, ok := r.channels[name]
	if !ok {
		return fmt.Errorf("join %q: %w", name, ErrUnknownChannel)
	}
	if len(ch.members) >= ch.Capacity {
		return fmt.Errorf("join %q: %w", name, ErrChannelFull)
	}
	if s.Channel != "" {
		return fmt.Errorf("join %q while in %q: %w", name, s.Channel, ErrAlreadyInChannel)
	}
	ch.members[s.ID] = struct{}{}
	s.Channel = name
	r.assertConsistent(s)
	return nil
}

// Leave 离开当前频道；不在频道时为 no-op，返回原频道名
func (r *ChannelRegistry) Leave(s *Session) (former string, left bool) {
	if s.Channel == "" {
		return "", false
	}
	former = s.Channel
	ch, ok := r.channels[former]
	if !ok {
		panic(fmt.Sprintf("session %s references unknown channel %q", s.ID, former))
	}
	if _, in := ch.members[s.ID]; !in {
		panic(fmt.Sprintf("session %s claims channel %q but is not a member", s.ID, former))
	}
	delete(ch.members, s.ID)
	s.Channel = ""
	r.assertConsistent(s)
	return former, true
}

// IsMember 会话是否在该频道
func (r *ChannelRegistry) IsMember(name string, id SessionID) bool {
	ch, ok := r.channels[name]
	if !ok {
		return false
	}
	_, in := ch.members[id]
	return in
}

// Has 频道名是否已配置
func (r *ChannelRegistry) Has(name string) bool {
	_, ok := r.channels[name]
	return ok
}

// Members 频道当前成员（有序，便于测试与日志）
func (r *ChannelRegistry) Members(name string) []SessionID {
	ch, ok := r.channels[name]
	if !ok {
		return nil
	}
	ids := make([]SessionID, 0, len(ch.members))
	for id := range ch.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Occupancy 所有频道的人数/容量
func (r *ChannelRegistry) Occupancy() map[string]ChannelStatus {
	out := make(map[string]ChannelStatus, len(r.channels))
	for name, ch := range r.channels {
		out[name] = ChannelStatus{Members: len(ch.members), Capacity: ch.Capacity}
	}
	return out
}

// assertConsistent 频道成员集合与会话 Channel 字段必须双向一致，否则属于程序错误
func (r *ChannelRegistry) assertConsistent(s *Session) {
	for name, ch := range r.channels {
		_, in := ch.members[s.ID]
		if in != (s.Channel == name) {
			panic(fmt.Sprintf("channel %q membership of %s inconsistent with session channel %q", name, s.ID, s.Channel))
		}
		if len(ch.members) > ch.Capacity {
			panic(fmt.Sprintf("channel %q over capacity: %d > %d", name, len(ch.members), ch.Capacity))
		}
	}
}
