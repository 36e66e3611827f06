package server

import "errors"

// 消息处理的错误分类；调用方以 errors.Is 判断
var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrOutOfBounds       = errors.New("target position out of world bounds")
	ErrUnknownChannel    = errors.New("unknown channel")
	ErrChannelFull       = errors.New("channel is full")
	ErrAlreadyInChannel  = errors.New("already in a channel")
	ErrNotChannelMember  = errors.New("not a member of channel")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrIDSpaceExhausted  = errors.New("no free session id")
)

// echoToSender 决定错误是否以 error 帧回给发送方（越界静默丢弃）
func echoToSender(err error) bool {
	switch {
	case errors.Is(err, ErrOutOfBounds):
		return false
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrUnknownChannel),
		errors.Is(err, ErrChannelFull),
		errors.Is(err, ErrAlreadyInChannel),
		errors.Is(err, ErrNotChannelMember):
		return true
	default:
		return false
	}
}
