package server

import "bytes"

// PositionEntry 广播给客户端的单个会话可见状态
type PositionEntry struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Color       int     `json:"color"`
	DisplayName string  `json:"displayName"`
	Zone        string  `json:"zone,omitempty"`
	Self        bool    `json:"self,omitempty"`
}

// PlayerPositionsMessage 仅用于描述/解码 playerPositions 帧的形状；
// 发送端由 Snapshot 直接拼接字节
type PlayerPositionsMessage struct {
	Type      string                      `json:"type"`
	Positions map[SessionID]PositionEntry `json:"positions"`
	Refresh   bool                        `json:"refresh,omitempty"`
}

// Snapshot 一次 Tick 的全量状态：每个会话的条目只序列化一次（普通/自身两份），
// 各接收方只在拼接时替换自己的那一条
type Snapshot struct {
	keys    [][]byte
	plain   [][]byte
	self    [][]byte
	index   map[SessionID]int
	refresh bool
	size    int
}

var (
	positionsPrefix = []byte(`{"type":"` + OutPlayerPositions + `","positions":{`)
	refreshSuffix   = []byte(`},"refresh":true}`)
	plainSuffix     = []byte(`}}`)
)

func buildSnapshot(reg *SessionRegistry, refresh bool) *Snapshot {
	ids := reg.IDs()
	sn := &Snapshot{
		keys:    make([][]byte, len(ids)),
		plain:   make([][]byte, len(ids)),
		self:    make([][]byte, len(ids)),
		index:   make(map[SessionID]int, len(ids)),
		refresh: refresh,
	}
	for i, id := range ids {
		s := reg.Get(id)
		entry := PositionEntry{
			X:           s.Position.X,
			Y:           s.Position.Y,
			Color:       s.Color,
			DisplayName: s.Name(),
			Zone:        s.Zone,
		}
		sn.keys[i] = append(mustEncode(string(id)), ':')
		sn.plain[i] = mustEncode(entry)
		entry.Self = true
		sn.self[i] = mustEncode(entry)
		sn.index[id] = i
		sn.size += len(sn.keys[i]) + len(sn.plain[i]) + 1
	}
	return sn
}

// For 生成发给 recipient 的帧，只有 recipient 自己的条目带 self
func (sn *Snapshot) For(recipient SessionID) []byte {
	var buf bytes.Buffer
	buf.Grow(len(positionsPrefix) + sn.size + len(refreshSuffix) + len(`,"self":true`))
	buf.Write(positionsPrefix)
	mine, ok := sn.index[recipient]
	for i := range sn.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(sn.keys[i])
		if ok && i == mine {
			buf.Write(sn.self[i])
		} else {
			buf.Write(sn.plain[i])
		}
	}
	if sn.refresh {
		buf.Write(refreshSuffix)
	} else {
		buf.Write(plainSuffix)
	}
	return buf.Bytes()
}
