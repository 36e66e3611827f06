package server

import (
	"encoding/json"
	"fmt"
)

// MessageType 入站消息类型（封闭集合）
type MessageType string

const (
	MsgMove      MessageType = "move"
	MsgJoinChan  MessageType = "join-chan"
	MsgLeaveChan MessageType = "leave-chan"
	MsgPing      MessageType = "ping"
	MsgSetName   MessageType = "set_name"
	MsgChat      MessageType = "chat"
)

// 出站消息类型
const (
	OutLogs            = "logs"
	OutUserList        = "ulist-update"
	OutPlayerPositions = "playerPositions"
	OutError           = "error"
)

// TargetPos 移动目标；指针用于区分缺失字段
type TargetPos struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// InputMessage 入站 JSON 消息（WebSocket 文本帧）
// 示例：{"type":"move","targetPos":{"x":1,"y":2}}
type InputMessage struct {
	Type      MessageType `json:"type"`
	TargetPos *TargetPos  `json:"targetPos,omitempty"`
	Chan      *string     `json:"chan,omitempty"`
	Username  *string     `json:"username,omitempty"`
	Q         *string     `json:"q,omitempty"`
}

// ParseInput 先读 type，再只解码该类型用到的字段；其余字段不论取值都忽略
// 未知类型按非法消息处理，不当作聊天
func ParseInput(payload []byte) (InputMessage, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return InputMessage{}, fmt.Errorf("decode: %v: %w", err, ErrInvalidPayload)
	}
	im := InputMessage{Type: head.Type}
	var fields any
	switch head.Type {
	case MsgPing, MsgLeaveChan:
		return im, nil
	case MsgMove:
		fields = &struct {
			TargetPos **TargetPos `json:"targetPos"`
		}{&im.TargetPos}
	case MsgJoinChan:
		fields = &struct {
			Chan **string `json:"chan"`
		}{&im.Chan}
	case MsgSetName:
		fields = &struct {
			Username **string `json:"username"`
		}{&im.Username}
	case MsgChat:
		fields = &struct {
			Chan **string `json:"chan"`
			Q    **string `json:"q"`
		}{&im.Chan, &im.Q}
	case "":
		return InputMessage{}, fmt.Errorf("missing type: %w", ErrInvalidPayload)
	default:
		return InputMessage{}, fmt.Errorf("unknown type %q: %w", head.Type, ErrInvalidPayload)
	}
	if err := json.Unmarshal(payload, fields); err != nil {
		return InputMessage{}, fmt.Errorf("decode %s: %v: %w", head.Type, err, ErrInvalidPayload)
	}
	return im, nil
}

// LogsMessage 人类可读的事件行
type LogsMessage struct {
	Type    string `json:"type"`
	LogText string `json:"logText"`
}

// UserListMessage 在线会话 ID 列表
type UserListMessage struct {
	Type  string      `json:"type"`
	UList []SessionID `json:"ulist"`
}

func logsFrame(text string) []byte {
	return mustEncode(LogsMessage{Type: OutLogs, LogText: text})
}

func errorFrame(text string) []byte {
	return mustEncode(LogsMessage{Type: OutError, LogText: text})
}

func userListFrame(ids []SessionID) []byte {
	return mustEncode(UserListMessage{Type: OutUserList, UList: ids})
}

// mustEncode 出站结构体均为本包定义的可序列化类型，失败即程序错误
func mustEncode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode %T: %v", v, err))
	}
	return b
}
