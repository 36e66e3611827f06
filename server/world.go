package server

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasha-s/go-deadlock"
)

type eventKind int

const (
	evJoin eventKind = iota
	evInput
	evLeave
	evKick
)

// event 连接侧交给世界协程的请求；世界状态只在世界协程内修改
type event struct {
	kind    eventKind
	conn    ConnID
	out     Conn
	limiter *RateLimiter
	payload []byte
}

// Status 对外只读的世界概况，由世界协程在状态变化后发布
type Status struct {
	Sessions int                      `json:"sessions"`
	Channels map[string]ChannelStatus `json:"channels"`
}

// World 权威世界：会话表、频道表与 Tick 均由单一协程推进
type World struct {
	cfg      Config
	sessions *SessionRegistry
	channels *ChannelRegistry
	zones    []Zone
	metrics  *WorldMetrics

	events   chan event
	done     chan struct{}
	doneOnce sync.Once
	// stopMu 写锁只在停止时取一次；投递方持读锁，保证停止后的排空能看到所有已入队事件
	stopMu  deadlock.RWMutex
	stopped bool

	rng      *rand.Rand
	now      func() time.Time
	lastTick time.Time
	dirty    bool

	nextConn atomic.Uint64
	status   atomic.Pointer[Status]
}

// Option 构造参数（测试注入时钟与随机源）
type Option func(*World)

func WithClock(now func() time.Time) Option {
	return func(w *World) { w.now = now }
}

func WithRand(rng *rand.Rand) Option {
	return func(w *World) { w.rng = rng }
}

// NewWorld 创建世界，初始化数据结构；调用 Run 后开始 Tick
func NewWorld(cfg Config, opts ...Option) *World {
	cfg = cfg.Sanitize()
	w := &World{
		cfg:     cfg,
		zones:   DefaultZones,
		metrics: &WorldMetrics{},
		events:  make(chan event, cfg.EventQueueSize), // 足够缓冲，避免网络读阻塞影响 Tick
		done:    make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	}
	w.sessions = NewSessionRegistry(cfg.PlayerIDLength, w.rng)
	w.channels = NewChannelRegistry(cfg.Channels)
	w.lastTick = w.now()
	w.publishStatus()
	return w
}

func (w *World) Config() Config { return w.cfg }

func (w *World) Metrics() *WorldMetrics { return w.metrics }

func (w *World) Sessions() *SessionRegistry { return w.sessions }

func (w *World) Channels() *ChannelRegistry { return w.channels }

// Status 最近一次发布的概况
func (w *World) Status() Status {
	if st := w.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

func (w *World) publishStatus() {
	w.status.Store(&Status{
		Sessions: w.sessions.Len(),
		Channels: w.channels.Occupancy(),
	})
	w.dirty = false
}

// submit 阻塞投递（join/leave/kick 必须送达）；世界已停止时返回 false
func (w *World) submit(ev event) bool {
	w.stopMu.RLock()
	defer w.stopMu.RUnlock()
	if w.stopped {
		return false
	}
	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

// stop 唤醒阻塞的投递方，之后排空队列：残留的 join 关闭其连接
func (w *World) stop() {
	w.doneOnce.Do(func() { close(w.done) })
	w.stopMu.Lock()
	w.stopped = true
	w.stopMu.Unlock()

	for {
		select {
		case ev := <-w.events:
			if ev.kind == evJoin && ev.out != nil {
				ev.out.Close()
			}
		default:
			return
		}
	}
}

// Link 一个连接在读侧持有的句柄：限流后再把消息交给世界
type Link struct {
	ID      ConnID
	world   *World
	out     Conn
	limiter *RateLimiter
	closed  atomic.Bool
}

// Accept 登记新连接；会话在下一次 Tick 开始时创建
func (w *World) Accept(out Conn) *Link {
	id := ConnID(w.nextConn.Add(1))
	l := &Link{
		ID:      id,
		world:   w,
		out:     out,
		limiter: NewRateLimiter(w.cfg.MaxMessagesPerSecond, time.Second, w.now()),
	}
	if !w.submit(event{kind: evJoin, conn: id, out: out, limiter: l.limiter}) {
		Log.Infow("connection refused, world stopped", "conn", id)
		l.closed.Store(true)
		out.Close()
	}
	return l
}

// Receive 限流检查后把原始消息排入世界队列（非阻塞，队列满则丢弃）
func (l *Link) Receive(payload []byte) error {
	w := l.world
	ok, rejected := l.limiter.Allow(w.now())
	if !ok {
		w.metrics.IncRateLimited()
		if rejected == 1 {
			// 每个窗口只提示一次，其余静默丢弃
			l.out.Enqueue(errorFrame(ErrRateLimitExceeded.Error()))
			Log.Warnw("rate limit exceeded", "conn", l.ID, "limit", w.cfg.MaxMessagesPerSecond)
		}
		if w.cfg.RateLimitKickAfter > 0 && rejected == w.cfg.RateLimitKickAfter {
			Log.Warnw("rate limit kick", "conn", l.ID, "messages", l.limiter.Count(), "rejected", rejected)
			w.submit(event{kind: evKick, conn: l.ID})
		}
		return ErrRateLimitExceeded
	}
	select {
	case w.events <- event{kind: evInput, conn: l.ID, payload: payload}:
		return nil
	default:
		// 丢弃：为了实时性，避免背压影响世界推进
		w.metrics.IncInputDropped()
		return errors.New("event queue full")
	}
}

// Close 通知世界在 Tick 协程中移除会话；重复调用无副作用
func (l *Link) Close() {
	if l.closed.CompareAndSwap(false, true) {
		l.world.submit(event{kind: evLeave, conn: l.ID})
	}
}

// ProcessInputs 处理队列中已有的事件（非阻塞 drain，本次只处理进入时已排队的部分）
func (w *World) ProcessInputs() {
	for n := len(w.events); n > 0; n-- {
		select {
		case ev := <-w.events:
			w.apply(ev)
		default:
			return
		}
	}
}

func (w *World) apply(ev event) {
	switch ev.kind {
	case evJoin:
		w.join(ev)
	case evInput:
		if s := w.sessions.ByConn(ev.conn); s != nil {
			w.handleInput(s, ev.payload)
		}
	case evLeave:
		if s := w.sessions.ByConn(ev.conn); s != nil {
			w.remove(s, "left the server", false)
			w.metrics.IncLeft()
		}
	case evKick:
		if s := w.sessions.ByConn(ev.conn); s != nil {
			Log.Infow("kicking session", "id", s.ID, "reason", "rate limit")
			w.remove(s, "was kicked", true)
			w.metrics.IncKicked()
		}
	}
}

func (w *World) join(ev event) {
	now := w.now()
	s := &Session{
		Conn:           ev.conn,
		MaxSpeed:       w.cfg.MaxSpeed,
		Color:          w.rng.IntN(0xFFFFFF),
		LastLivenessAt: now,
		out:            ev.out,
		limiter:        ev.limiter,
	}
	s.Zone = ZoneAt(s.Position, w.zones)
	if err := w.sessions.Register(s); err != nil {
		Log.Errorw("cannot register session", "conn", ev.conn, "err", err)
		if ev.out != nil {
			ev.out.Close()
		}
		return
	}
	w.metrics.IncJoined()
	w.dirty = true
	Log.Infow("session joined", "id", s.ID, "conn", s.Conn, "sessions", w.sessions.Len())
	w.announce(fmt.Sprintf("%s joined the server", s.ID))
}

// remove 原子地移出频道与会话表；之后该会话不会再收到任何广播
func (w *World) remove(s *Session, action string, closeConn bool) {
	if former, left := w.channels.Leave(s); left {
		w.broadcast(inChannel(former), logsFrame(fmt.Sprintf("%s left %s", s.Name(), former)))
	}
	if _, ok := w.sessions.Unregister(s.ID); !ok {
		return
	}
	if closeConn && s.out != nil {
		s.out.Close()
	}
	w.dirty = true
	Log.Infow("session removed", "id", s.ID, "action", action, "sessions", w.sessions.Len())
	w.announce(fmt.Sprintf("%s %s", s.ID, action))
}

// announce 生命周期广播：事件行、在线列表与全量位置刷新
func (w *World) announce(text string) {
	w.broadcast(nil, logsFrame(text))
	w.broadcast(nil, userListFrame(w.sessions.IDs()))
	w.broadcastSnapshot(true)
}

func (w *World) broadcast(pred func(*Session) bool, payload []byte) {
	_, dropped := w.sessions.Broadcast(pred, payload)
	w.metrics.AddFramesDropped(dropped)
}

// broadcastSnapshot 每个接收方各一份（self 标记不同），共享条目只序列化一次
func (w *World) broadcastSnapshot(refresh bool) {
	sn := buildSnapshot(w.sessions, refresh)
	dropped := 0
	for _, s := range w.sessions.sessions {
		if s.out == nil || !s.out.IsOpen() {
			continue
		}
		if !s.out.Enqueue(sn.For(s.ID)) {
			dropped++
		}
	}
	w.metrics.AddFramesDropped(dropped)
}

// shutdown 关闭所有连接并清空会话
func (w *World) shutdown() {
	for _, id := range w.sessions.IDs() {
		s := w.sessions.Get(id)
		w.channels.Leave(s)
		w.sessions.Unregister(id)
		if s.out != nil {
			s.out.Close()
		}
	}
	w.publishStatus()
	Log.Info("world stopped")
}
