package server

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInput(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"move", `{"type":"move","targetPos":{"x":1,"y":2}}`, false},
		{"chat", `{"type":"chat","q":"hi","chan":"global"}`, false},
		{"missing type", `{"q":"hi","chan":"global"}`, true},
		{"unknown type is not chat", `{"type":"shout","q":"hi","chan":"global"}`, true},
		{"malformed", `{"type":`, true},
		{"non-numeric target", `{"type":"move","targetPos":{"x":"1","y":2}}`, true},
		{"not an object", `"move"`, true},
		{"ping ignores foreign fields", `{"type":"ping","chan":5,"targetPos":"x"}`, false},
		{"move ignores foreign fields", `{"type":"move","targetPos":{"x":1,"y":2},"q":7}`, false},
		{"chat with numeric q", `{"type":"chat","q":7,"chan":"global"}`, true},
		{"numeric type", `{"type":3}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInput([]byte(tt.payload))
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPayload), "err = %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUnknownTypeIsRejectedNotBroadcast(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, b := connect(t, w), connect(t, w)
	a.conn.reset()
	b.conn.reset()

	require.NoError(t, a.send(t, w, msg{"type": "shout", "q": "hello", "chan": "global"}))

	assert.Len(t, a.conn.ofType(t, OutError), 1)
	assert.Empty(t, b.conn.frames)
	assert.EqualValues(t, 1, w.Metrics().Rejected)
}

func TestMoveSetsTarget(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	c := connect(t, w)

	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 10, "y": -15}}))

	assert.Equal(t, Vec2{X: 10, Y: -15}, c.s.Target)
	assert.True(t, c.s.Moving)

	// 目标等于当前位置时不进入移动状态
	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 0, "y": 0}}))
	assert.False(t, c.s.Moving)
}

func TestMoveInvalidPayload(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	c := connect(t, w)
	c.conn.reset()

	for _, m := range []msg{
		{"type": "move"},
		{"type": "move", "targetPos": msg{"x": 1}},
		{"type": "move", "targetPos": msg{"x": "1", "y": 1}},
	} {
		require.NoError(t, c.send(t, w, m))
	}

	assert.Len(t, c.conn.ofType(t, OutError), 3)
	assert.Equal(t, Vec2{}, c.s.Target)
	assert.False(t, c.s.Moving)
}

func TestMoveOutOfBoundsIsDroppedSilently(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	c := connect(t, w)
	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 5, "y": 5}}))
	c.conn.reset()

	err := w.dispatch(c.s, []byte(`{"type":"move","targetPos":{"x":100,"y":0}}`))
	assert.True(t, errors.Is(err, ErrOutOfBounds))

	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 100, "y": 0}}))
	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 0, "y": -15.01}}))

	assert.Equal(t, Vec2{X: 5, Y: 5}, c.s.Target)
	assert.Empty(t, c.conn.ofType(t, OutError))

	// 边界本身合法
	require.NoError(t, c.send(t, w, msg{"type": "move", "targetPos": msg{"x": 15, "y": -15}}))
	assert.Equal(t, Vec2{X: 15, Y: -15}, c.s.Target)
}

func TestPingRefreshesLiveness(t *testing.T) {
	w, clock := newTestWorld(t, nil)
	c := connect(t, w)
	joinedAt := c.s.LastLivenessAt
	c.conn.reset()

	clock.Advance(30 * time.Second)
	require.NoError(t, c.send(t, w, msg{"type": "ping"}))

	assert.Equal(t, joinedAt.Add(30*time.Second), c.s.LastLivenessAt)
	assert.Empty(t, c.conn.frames)
}

func TestPingWithUnrelatedFieldsRefreshesLiveness(t *testing.T) {
	w, clock := newTestWorld(t, nil)
	c := connect(t, w)
	joinedAt := c.s.LastLivenessAt
	c.conn.reset()

	clock.Advance(10 * time.Second)
	require.NoError(t, c.send(t, w, msg{"type": "ping", "chan": 5}))

	assert.Equal(t, joinedAt.Add(10*time.Second), c.s.LastLivenessAt)
	assert.Empty(t, c.conn.ofType(t, OutError))
	assert.Zero(t, w.Metrics().Rejected)
}

func TestParseInputKeepsOnlyTypeFields(t *testing.T) {
	im, err := ParseInput([]byte(`{"type":"join-chan","chan":"chan1","q":"ignored","username":"x"}`))
	require.NoError(t, err)
	require.NotNil(t, im.Chan)
	assert.Equal(t, "chan1", *im.Chan)
	assert.Nil(t, im.Q)
	assert.Nil(t, im.Username)

	im, err = ParseInput([]byte(`{"type":"move","targetPos":null}`))
	require.NoError(t, err)
	assert.Nil(t, im.TargetPos)
}

func TestSetNameBroadcastsSnapshot(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, b := connect(t, w), connect(t, w)
	a.conn.reset()
	b.conn.reset()

	require.NoError(t, a.send(t, w, msg{"type": "set_name", "username": "  alice  "}))

	pos := b.conn.lastPositions(t)
	assert.True(t, pos.Refresh)
	assert.Equal(t, "alice", pos.Positions[a.s.ID].DisplayName)
	assert.Equal(t, "alice", a.conn.lastPositions(t).Positions[a.s.ID].DisplayName)

	require.NoError(t, a.send(t, w, msg{"type": "set_name", "username": ""}))
	assert.Equal(t, string(a.s.ID), a.s.DisplayName)

	require.NoError(t, a.send(t, w, msg{"type": "set_name", "username": strings.Repeat("n", 50)}))
	assert.Len(t, a.s.DisplayName, w.Config().MaxNameLength)
}

func TestChatGlobal(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, b := connect(t, w), connect(t, w)
	require.NoError(t, a.send(t, w, msg{"type": "set_name", "username": "alice"}))
	a.conn.reset()
	b.conn.reset()

	require.NoError(t, a.send(t, w, msg{"type": "chat", "q": "hello", "chan": "global"}))

	assert.Equal(t, []string{"alice says: hello"}, a.conn.logTexts(t))
	assert.Equal(t, []string{"alice says: hello"}, b.conn.logTexts(t))
}

func TestChatTruncated(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	c := connect(t, w)
	c.conn.reset()

	long := strings.Repeat("é", 100)
	require.NoError(t, c.send(t, w, msg{"type": "chat", "q": long, "chan": "global"}))

	texts := c.conn.logTexts(t)
	require.Len(t, texts, 1)
	assert.Equal(t, string(c.s.ID)+" says: "+strings.Repeat("é", 71), texts[0])
}

func TestChatChannel(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, b, outsider := connect(t, w), connect(t, w), connect(t, w)
	require.NoError(t, a.send(t, w, msg{"type": "join-chan", "chan": "chan1"}))
	require.NoError(t, b.send(t, w, msg{"type": "join-chan", "chan": "chan1"}))
	a.conn.reset()
	b.conn.reset()
	outsider.conn.reset()

	require.NoError(t, a.send(t, w, msg{"type": "chat", "q": "psst", "chan": "chan1"}))

	want := "[chan1] " + string(a.s.ID) + " says: psst"
	assert.Equal(t, []string{want}, a.conn.logTexts(t))
	assert.Equal(t, []string{want}, b.conn.logTexts(t))
	assert.Empty(t, outsider.conn.frames)

	// 非成员发往该频道
	require.NoError(t, outsider.send(t, w, msg{"type": "chat", "q": "let me in", "chan": "chan1"}))
	errs := outsider.conn.ofType(t, OutError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0]["logText"], ErrNotChannelMember.Error())
	assert.Len(t, a.conn.logTexts(t), 1)
}

func TestChatRequiresTarget(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, b := connect(t, w), connect(t, w)
	a.conn.reset()
	b.conn.reset()

	require.NoError(t, a.send(t, w, msg{"type": "chat", "q": "hello"}))
	require.NoError(t, a.send(t, w, msg{"type": "chat", "chan": "global"}))
	require.NoError(t, a.send(t, w, msg{"type": "chat", "q": "hello", "chan": "nowhere"}))

	errs := a.conn.ofType(t, OutError)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[2]["logText"], ErrUnknownChannel.Error())
	assert.Empty(t, b.conn.frames)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrRateLimitExceeded))
	assert.True(t, IsRejection(fmt.Errorf("join: %w", ErrChannelFull)))
	assert.False(t, IsRejection(errors.New("event queue full")))
}
