package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// handleInput 解析并执行一条消息；所有校验在修改状态之前完成
func (w *World) handleInput(s *Session, payload []byte) {
	err := w.dispatch(s, payload)
	if err == nil {
		w.metrics.IncAccepted()
		return
	}
	w.metrics.IncRejected()
	Log.Debugw("message rejected", "id", s.ID, "err", err)
	if echoToSender(err) {
		s.send(errorFrame(err.Error()))
	}
}

func (w *World) dispatch(s *Session, payload []byte) error {
	im, err := ParseInput(payload)
	if err != nil {
		return err
	}
	switch im.Type {
	case MsgMove:
		return w.handleMove(s, im)
	case MsgJoinChan:
		return w.handleJoinChan(s, im)
	case MsgLeaveChan:
		return w.handleLeaveChan(s)
	case MsgPing:
		s.LastLivenessAt = w.now()
		return nil
	case MsgSetName:
		return w.handleSetName(s, im)
	case MsgChat:
		return w.handleChat(s, im)
	}
	return fmt.Errorf("unhandled type %q: %w", im.Type, ErrInvalidPayload)
}

// inBounds 世界边界含端点，两轴相同
func (w *World) inBounds(v float64) bool {
	return v >= w.cfg.WorldMin && v <= w.cfg.WorldMax
}

// handleMove 只记录目标，位置在后续 Tick 中推进；越界拒绝而非裁剪
func (w *World) handleMove(s *Session, im InputMessage) error {
	if im.TargetPos == nil || im.TargetPos.X == nil || im.TargetPos.Y == nil {
		return fmt.Errorf("move without targetPos.x/y: %w", ErrInvalidPayload)
	}
	target := Vec2{X: *im.TargetPos.X, Y: *im.TargetPos.Y}
	if !w.inBounds(target.X) || !w.inBounds(target.Y) {
		return fmt.Errorf("move to (%g, %g): %w", target.X, target.Y, ErrOutOfBounds)
	}
	s.Target = target
	s.Moving = s.Target != s.Position
	return nil
}

func (w *World) handleJoinChan(s *Session, im InputMessage) error {
	if im.Chan == nil || *im.Chan == "" {
		return fmt.Errorf("join-chan without chan: %w", ErrInvalidPayload)
	}
	name := *im.Chan
	if err := w.channels.Join(s, name); err != nil {
		return err
	}
	w.dirty = true
	Log.Infow("channel joined", "id", s.ID, "chan", name)
	w.broadcast(inChannel(name), logsFrame(fmt.Sprintf("%s joined %s", s.Name(), name)))
	return nil
}

func (w *World) handleLeaveChan(s *Session) error {
	former, left := w.channels.Leave(s)
	if !left {
		return nil
	}
	w.dirty = true
	Log.Infow("channel left", "id", s.ID, "chan", former)
	w.broadcast(inChannel(former), logsFrame(fmt.Sprintf("%s left %s", s.Name(), former)))
	return nil
}

// handleSetName 空名回退为 ID，并立即推送一次全量快照让改名即时可见
func (w *World) handleSetName(s *Session, im InputMessage) error {
	name := ""
	if im.Username != nil {
		name = truncateRunes(strings.TrimSpace(*im.Username), w.cfg.MaxNameLength)
	}
	if name == "" {
		name = string(s.ID)
	}
	s.DisplayName = name
	w.broadcastSnapshot(true)
	return nil
}

// handleChat 必须指明目标：global 广播全体，频道名则要求发送方正在该频道
func (w *World) handleChat(s *Session, im InputMessage) error {
	if im.Q == nil || *im.Q == "" {
		return fmt.Errorf("chat without q: %w", ErrInvalidPayload)
	}
	if im.Chan == nil || *im.Chan == "" {
		return fmt.Errorf("chat without chan: %w", ErrInvalidPayload)
	}
	text := truncateRunes(*im.Q, w.cfg.MaxChatLength)
	target := *im.Chan
	if target == GlobalChannel {
		w.broadcast(nil, logsFrame(fmt.Sprintf("%s says: %s", s.Name(), text)))
		return nil
	}
	if !w.channels.Has(target) {
		return fmt.Errorf("chat to %q: %w", target, ErrUnknownChannel)
	}
	if !w.channels.IsMember(target, s.ID) {
		return fmt.Errorf("chat to %q: %w", target, ErrNotChannelMember)
	}
	w.broadcast(inChannel(target), logsFrame(fmt.Sprintf("[%s] %s says: %s", target, s.Name(), text)))
	return nil
}

// truncateRunes 按字符截断，不会切开多字节字符
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// IsRejection 消息是否因协议/校验原因被拒（而非内部故障）
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidPayload, ErrOutOfBounds, ErrUnknownChannel, ErrChannelFull,
		ErrAlreadyInChannel, ErrNotChannelMember, ErrRateLimitExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
