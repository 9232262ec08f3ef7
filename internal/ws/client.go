package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is one upgraded browser connection. It implements room.Conn:
// the coordinator queues frames through Send and the write pump is the only
// goroutine writing to the socket.
type clientConn struct {
	id      string
	addr    string
	rawConn *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rateLimiter
}

func newClientConn(id, addr string, raw *websocket.Conn, sendBuffer int, limiter *rateLimiter) *clientConn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &clientConn{
		id:      id,
		addr:    addr,
		rawConn: raw,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: limiter,
	}
}

func (c *clientConn) ID() string { return c.id }

// Send queues frame without blocking. It reports false once the connection is
// closing or its queue is full.
func (c *clientConn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close asks the write pump to flush what is queued, send a close frame and
// drop the socket. Safe to call more than once.
func (c *clientConn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *clientConn) write(mt int, data []byte) error {
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("ws.write", zap.String("conn", c.id), zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn", c.id), zap.Error(err))
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued; used right before closing.
func (c *clientConn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *clientConn) setupRead(readLimit int64) {
	if readLimit > 0 {
		c.rawConn.SetReadLimit(readLimit)
	}
	_ = c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	c.rawConn.SetPongHandler(func(string) error {
		return c.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// allow applies the per-connection rate limit.
func (c *clientConn) allow() bool {
	if c.limiter == nil || c.limiter.allow() {
		return true
	}
	zap.L().Warn("ws.rate_limited", zap.String("conn", c.id), zap.String("addr", c.addr))
	return false
}

// logReadError reports why the read loop stopped at a level matching how
// surprising the cause is.
func logReadError(connID string, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		zap.L().Warn("ws.read_limit", zap.String("conn", connID))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		zap.L().Debug("ws.closed", zap.String("conn", connID))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		zap.L().Info("ws.unexpected_close", zap.String("conn", connID), zap.Error(err))
	default:
		zap.L().Debug("ws.read", zap.String("conn", connID), zap.Error(err))
	}
}
