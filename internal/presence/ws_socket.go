package presence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"roomchat/internal/wire"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("socket not connected")

const writeWait = 10 * time.Second

// WSSocket is a Socket over gorilla/websocket that redials with backoff
// until it is closed.
type WSSocket struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	backoff Backoff

	mu       sync.RWMutex
	handlers map[string][]func(json.RawMessage)

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	opened bool
}

type SocketOption func(*WSSocket)

func WithHeader(h http.Header) SocketOption { return func(s *WSSocket) { s.header = h } }

func WithBackoff(b Backoff) SocketOption { return func(s *WSSocket) { s.backoff = b } }

func WithDialer(d *websocket.Dialer) SocketOption { return func(s *WSSocket) { s.dialer = d } }

func NewWSSocket(url string, opts ...SocketOption) *WSSocket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &WSSocket{
		url:      url,
		dialer:   websocket.DefaultDialer,
		backoff:  DefaultBackoff(),
		handlers: make(map[string][]func(json.RawMessage)),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *WSSocket) On(event string, fn func(json.RawMessage)) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], fn)
	s.mu.Unlock()
}

func (s *WSSocket) Open() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.opened {
		return
	}
	s.opened = true
	s.wg.Add(1)
	go s.loop()
}

func (s *WSSocket) Emit(event string, body any) error {
	frame, err := wire.Encode(event, body)
	if err != nil {
		return err
	}
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return ErrNotConnected
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close stops reconnecting, closes the live connection and waits for the
// read loop to exit.
func (s *WSSocket) Close() error {
	s.cancel()
	s.connMu.Lock()
	var err error
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	return err
}

func (s *WSSocket) loop() {
	defer s.wg.Done()

	attempt := 0
	for {
		conn, _, err := s.dialer.DialContext(s.ctx, s.url, s.header)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			delay := s.backoff.Delay(attempt)
			attempt++
			zap.L().Debug("presence.dial", zap.Int("attempt", attempt), zap.Duration("retry_in", delay), zap.Error(err))
			if !s.sleep(delay) {
				return
			}
			continue
		}
		attempt = 0

		s.connMu.Lock()
		if s.ctx.Err() != nil {
			s.connMu.Unlock()
			_ = conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()

		s.raise(wire.EventConnect, nil)
		s.read(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		_ = conn.Close()
		s.raise(wire.EventDisconnect, nil)

		if !s.sleep(s.backoff.Delay(0)) {
			return
		}
	}
}

func (s *WSSocket) read(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			zap.L().Debug("presence.read", zap.Error(err))
			return
		}
		env, err := wire.Decode(frame)
		if err != nil {
			zap.L().Debug("presence.malformed_frame", zap.Error(err))
			continue
		}
		s.raise(env.Event, env.Body)
	}
}

func (s *WSSocket) raise(event string, body json.RawMessage) {
	s.mu.RLock()
	handlers := s.handlers[event]
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(body)
	}
}

func (s *WSSocket) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
