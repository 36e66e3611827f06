package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
)

const (
	writeWait     = 5 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	maxFrameBytes = 4096
)

// ClientConn 负责发送（写）数据到客户端的轻量包装，实现 Conn
type ClientConn struct {
	ws   *websocket.Conn
	addr string

	mu     deadlock.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn, addr string, queueSize int) *ClientConn {
	return &ClientConn{
		ws:   ws,
		addr: addr,
		send: make(chan []byte, queueSize),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃，防止慢客户端阻塞 Tick）
func (c *ClientConn) Enqueue(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *ClientConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close 关闭发送队列；写协程发完已排队的帧后发送 close 帧并断开
func (c *ClientConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				Log.Debugw("write failed", "addr", c.addr, "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// readPump 读取客户端消息交给 Link；读泵退出时通知世界移除该会话
func (c *ClientConn) readPump(link *Link) {
	defer func() {
		link.Close()
		c.Close()
		_ = c.ws.Close()
	}()
	c.ws.SetReadLimit(maxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			logReadError(c.addr, err)
			return
		}
		if err := link.Receive(payload); err != nil && !IsRejection(err) {
			Log.Warnw("input dropped", "conn", link.ID, "err", err)
		}
	}
}

// logReadError 区分正常断开与异常错误
func logReadError(addr string, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		Log.Warnw("frame exceeded read limit", "addr", addr, "limit", maxFrameBytes)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		Log.Debugw("client disconnected", "addr", addr)
	case errors.Is(err, io.EOF), strings.Contains(err.Error(), "use of closed network connection"):
		Log.Debugw("connection closed", "addr", addr, "err", err)
	default:
		Log.Warnw("read error", "addr", addr, "err", err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：每个连接一个会话，ID 由服务端分配
func (w *World) HandleWS(rw http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		Log.Warnw("upgrade error", "addr", r.RemoteAddr, "err", err)
		return
	}

	client := NewClientConn(ws, r.RemoteAddr, w.cfg.SendQueueSize)
	link := w.Accept(client)

	go client.writePump()
	go client.readPump(link)
}
