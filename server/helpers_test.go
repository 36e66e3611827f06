package server

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn 记录所有入队帧的 Conn
type fakeConn struct {
	frames [][]byte
	closed bool
	full   bool
}

func (f *fakeConn) Enqueue(b []byte) bool {
	if f.closed || f.full {
		return false
	}
	f.frames = append(f.frames, b)
	return true
}

func (f *fakeConn) IsOpen() bool { return !f.closed }

func (f *fakeConn) Close() { f.closed = true }

func (f *fakeConn) reset() { f.frames = nil }

// ofType 解码出指定 type 的帧
func (f *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, b := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// logTexts 所有 logs 帧的文本
func (f *fakeConn) logTexts(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range f.ofType(t, OutLogs) {
		out = append(out, m["logText"].(string))
	}
	return out
}

// lastPositions 最近一次 playerPositions 帧
func (f *fakeConn) lastPositions(t *testing.T) PlayerPositionsMessage {
	t.Helper()
	for i := len(f.frames) - 1; i >= 0; i-- {
		var msg PlayerPositionsMessage
		require.NoError(t, json.Unmarshal(f.frames[i], &msg))
		if msg.Type == OutPlayerPositions {
			return msg
		}
	}
	t.Fatal("no playerPositions frame")
	return PlayerPositionsMessage{}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWorld(t *testing.T, mutate func(*Config)) (*World, *fakeClock) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	w := NewWorld(cfg, WithClock(clock.Now), WithRand(rand.New(rand.NewPCG(1, 2))))
	return w, clock
}

type testClient struct {
	link *Link
	conn *fakeConn
	s    *Session
}

// connect 接入一个连接并立即处理 join
func connect(t *testing.T, w *World) *testClient {
	t.Helper()
	fc := &fakeConn{}
	link := w.Accept(fc)
	w.ProcessInputs()
	s := w.Sessions().ByConn(link.ID)
	require.NotNil(t, s)
	return &testClient{link: link, conn: fc, s: s}
}

// send 序列化、过限流并立即处理
func (c *testClient) send(t *testing.T, w *World, v any) error {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	err = c.link.Receive(b)
	w.ProcessInputs()
	return err
}

type msg map[string]any
