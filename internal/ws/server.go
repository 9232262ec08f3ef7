package ws

import (
	"context"
	"errors"
	"time"

	"roomchat/internal/room"
	"roomchat/internal/wire"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10 // must be < pongWait
	handlerWait  = 1900 * time.Millisecond
	leaveTimeout = 5 * time.Second
)

var ErrRoomUnknown = errors.New("room unknown to directory")

// RoomDirectory maps the key a client joins with to the room's canonical
// key, reporting false for rooms the room service never issued.
type RoomDirectory interface {
	Resolve(ctx context.Context, address string) (string, bool, error)
}

type Options struct {
	ReadLimit         int64
	SendBuffer        int
	AllowedOrigins    []string
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

type WsServer struct {
	coord     *room.Coordinator
	directory RoomDirectory // nil: any non-empty key is its own room
	router    *Router
	upgrader  websocket.Upgrader
	opts      Options
}

func NewWsServer(coord *room.Coordinator, directory RoomDirectory, opts Options) *WsServer {
	origins := newOriginPolicy(opts.AllowedOrigins)
	srv := &WsServer{
		coord:     coord,
		directory: directory,
		router:    NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		opts: opts,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		// The upgrader already replied with an HTTP error.
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	conn := newClientConn(
		uuid.NewString(),
		ginCtx.ClientIP(),
		rawConn,
		s.opts.SendBuffer,
		s.newLimiter(),
	)
	if err := s.coord.Connect(ginCtx.Request.Context(), conn); err != nil {
		zap.L().Warn("ws.connect", zap.Error(err))
		_ = rawConn.Close()
		return
	}
	zap.L().Debug("ws.connected", zap.String("conn", conn.id), zap.String("addr", conn.addr))

	go conn.writePump()
	go s.reader(conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

// newLimiter returns nil when no burst is configured, which disables rate
// limiting for the connection.
func (s *WsServer) newLimiter() *rateLimiter {
	if s.opts.RateLimitBurst <= 0 {
		return nil
	}
	return newRateLimiter(s.opts.RateLimitBurst, s.opts.RateLimitInterval)
}

func (s *WsServer) registerHandlers() {
	// 🔹 join-room -----------------------------------------------------------
	Register(
		s.router,
		wire.EventJoinRoom,
		func(ctx context.Context, cc *ConnContext, address string) error {
			if address == "" {
				return room.ErrRoomRequired
			}
			roomID := address
			if s.directory != nil {
				id, ok, err := s.directory.Resolve(ctx, address)
				if err != nil {
					return err
				}
				if !ok {
					return ErrRoomUnknown
				}
				roomID = id
			}
			return s.coord.JoinAs(ctx, cc.ConnID, roomID, address)
		},
	)

	// 🔹 set-alias -----------------------------------------------------------
	Register(
		s.router,
		wire.EventSetAlias,
		func(ctx context.Context, cc *ConnContext, alias string) error {
			return s.coord.ClaimAlias(ctx, cc.ConnID, alias)
		},
	)

	// 🔹 send-message --------------------------------------------------------
	Register(
		s.router,
		wire.EventSendMessage,
		func(ctx context.Context, cc *ConnContext, req wire.SendMessageBody) error {
			return s.coord.Relay(ctx, cc.ConnID, req)
		},
	)
}

// reader runs one frame at a time: each operation completes on the
// coordinator before the next frame from this connection is read.
func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		if err := s.coord.Disconnect(ctx, conn.id); err != nil && !errors.Is(err, room.ErrUnknownConnection) {
			zap.L().Debug("ws.disconnect", zap.String("conn", conn.id), zap.Error(err))
		}
		cancel()
		conn.Close()
	}()

	conn.setupRead(s.opts.ReadLimit)
	cc := &ConnContext{ConnID: conn.id, Addr: conn.addr}

	for {
		_, frame, err := conn.rawConn.ReadMessage()
		if err != nil {
			logReadError(conn.id, err)
			return
		}
		if !conn.allow() {
			continue
		}

		env, err := wire.Decode(frame)
		if err != nil {
			zap.L().Debug("ws.malformed_frame", zap.String("conn", conn.id), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerWait)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, room.ErrStopped):
			return
		case errors.Is(err, room.ErrAliasInvalid), errors.Is(err, room.ErrAliasTaken):
			// The requester already got alias-rejected.
		default:
			zap.L().Debug("ws.dropped",
				zap.String("conn", conn.id),
				zap.String("event", env.Event),
				zap.Error(err),
			)
		}
	}
}

// HealthCheck reports whether the coordinator loop is still serving.
func (s *WsServer) HealthCheck(ctx context.Context) error {
	_, err := s.coord.Snapshot(ctx)
	return err
}

