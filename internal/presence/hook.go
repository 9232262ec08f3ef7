package presence

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"roomchat/internal/wire"

	"go.uber.org/zap"
)

// Socket is the client end of the event transport.
//
// Handlers registered with On run one at a time. Lifecycle events
// (wire.EventConnect, wire.EventDisconnect) are raised with a nil body.
// Open starts connecting in the background. Once Close returns no handler
// runs anymore.
type Socket interface {
	On(event string, fn func(body json.RawMessage))
	Emit(event string, body any) error
	Open()
	Close() error
}

type Options struct {
	RoomID string
	// Buffer is the Events channel capacity.
	Buffer int
}

// Hook binds one Socket to one room. Outgoing actions are dropped while
// the socket is not connected; nothing is queued for replay.
type Hook struct {
	roomID    string
	socket    Socket
	connected atomic.Bool
	events    chan Event
	done      chan struct{}
	once      sync.Once
}

// Mount wires the hook's handlers onto socket and opens it.
func Mount(socket Socket, opts Options) *Hook {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	h := &Hook{
		roomID: opts.RoomID,
		socket: socket,
		events: make(chan Event, opts.Buffer),
		done:   make(chan struct{}),
	}

	socket.On(wire.EventConnect, h.onConnect)
	socket.On(wire.EventDisconnect, h.onDisconnect)
	socket.On(wire.EventNewMessage, h.onNewMessage)
	socket.On(wire.EventUsersUpdated, h.onUsersUpdated)
	socket.On(wire.EventAliasRejected, h.onAliasRejected)

	socket.Open()
	return h
}

func (h *Hook) RoomID() string { return h.roomID }

func (h *Hook) Connected() bool { return h.connected.Load() }

// Events delivers inbound events in arrival order. It is closed by Unmount.
func (h *Hook) Events() <-chan Event { return h.events }

// SetAlias asks the server to claim alias in the room.
func (h *Hook) SetAlias(alias string) {
	h.emit(wire.EventSetAlias, alias)
}

// SendMessage relays message to the room. The server stamps the alias it
// committed for this connection; alias is informational.
func (h *Hook) SendMessage(alias, message string) {
	h.emit(wire.EventSendMessage, wire.SendMessageBody{
		RoomID:  h.roomID,
		Alias:   alias,
		Message: message,
	})
}

// Unmount closes the socket, which ends the server-side session.
func (h *Hook) Unmount() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		err = h.socket.Close()
		h.connected.Store(false)
		close(h.events)
	})
	return err
}

func (h *Hook) emit(event string, body any) {
	if !h.connected.Load() {
		zap.L().Debug("presence.dropped_offline", zap.String("event", event))
		return
	}
	if err := h.socket.Emit(event, body); err != nil {
		zap.L().Debug("presence.emit", zap.String("event", event), zap.Error(err))
	}
}

func (h *Hook) publish(ev Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// onConnect emits join-room before actions are let through.
func (h *Hook) onConnect(json.RawMessage) {
	if err := h.socket.Emit(wire.EventJoinRoom, h.roomID); err != nil {
		zap.L().Warn("presence.join", zap.String("room", h.roomID), zap.Error(err))
	}
	h.connected.Store(true)
	h.publish(Connected{})
}

func (h *Hook) onDisconnect(json.RawMessage) {
	h.connected.Store(false)
	h.publish(Disconnected{})
}

func (h *Hook) onNewMessage(body json.RawMessage) {
	var msg wire.NewMessageBody
	if err := json.Unmarshal(body, &msg); err != nil {
		zap.L().Debug("presence.bad_message", zap.Error(err))
		return
	}
	if msg.ChatroomID != h.roomID {
		return
	}
	h.publish(NewMessage(msg))
}

func (h *Hook) onUsersUpdated(body json.RawMessage) {
	var aliases []string
	if err := json.Unmarshal(body, &aliases); err != nil {
		zap.L().Debug("presence.bad_users", zap.Error(err))
		return
	}
	h.publish(UsersUpdated{Aliases: aliases})
}

func (h *Hook) onAliasRejected(body json.RawMessage) {
	var rej wire.AliasRejectedBody
	if err := json.Unmarshal(body, &rej); err != nil {
		zap.L().Debug("presence.bad_rejection", zap.Error(err))
		return
	}
	h.publish(AliasRejected{Reason: rej.Reason})
}
