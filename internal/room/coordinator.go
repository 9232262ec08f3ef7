package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"roomchat/internal/wire"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrAliasInvalid      = errors.New("alias invalid")
	ErrAliasTaken        = errors.New("alias taken")
	ErrInvalidState      = errors.New("operation not allowed in current session state")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrRoomRequired      = errors.New("room id required")
	ErrRoomMismatch      = errors.New("message addressed to another room")
	ErrEmptyMessage      = errors.New("empty message")
	ErrMessageTooLong    = errors.New("message too long")
	ErrStopped           = errors.New("coordinator stopped")
)

const (
	reasonAliasEmpty = "Alias cannot be empty"
	reasonAliasLong  = "Alias must be at most %d characters"
	reasonAliasTaken = "Alias already taken"
)

// State is the lifecycle state of one connection.
type State int

const (
	StateConnectedUnjoined State = iota
	StateJoinedNoAlias
	StateJoinedWithAlias
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnectedUnjoined:
		return "CONNECTED_UNJOINED"
	case StateJoinedNoAlias:
		return "JOINED_NO_ALIAS"
	case StateJoinedWithAlias:
		return "JOINED_WITH_ALIAS"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Conn is the coordinator's view of a live transport connection.
// Send must not block: it queues the frame and reports false when the
// connection cannot accept it.
type Conn interface {
	ID() string
	Send(frame []byte) bool
	Close()
}

// Message is one relayed chat message.
type Message struct {
	ID     string
	RoomID string
	Alias  string
	Body   string
	At     time.Time
}

// MessageSink receives every relayed message after fan-out. Record must not
// block the caller.
type MessageSink interface {
	Record(msg Message)
}

type Limits struct {
	MaxAliasLength   int
	MaxMessageLength int
}

type session struct {
	conn    Conn
	state   State
	roomID  string
	address string
}

// Coordinator runs the per-connection state machines. Every operation is
// executed on the single goroutine started by Run, which is also the only
// goroutine touching the Registry.
type Coordinator struct {
	registry *Registry
	limits   Limits
	sink     MessageSink
	now      func() time.Time
	newID    func() string

	ops      chan func()
	sessions map[string]*session
	stopped  chan struct{}
}

type Option func(*Coordinator)

func WithMessageSink(s MessageSink) Option { return func(c *Coordinator) { c.sink = s } }

func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

func WithIDGenerator(fn func() string) Option { return func(c *Coordinator) { c.newID = fn } }

func NewCoordinator(registry *Registry, limits Limits, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		limits:   limits,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
		ops:      make(chan func(), 256),
		sessions: make(map[string]*session),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes operations until ctx is cancelled. It must be started once.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.stopped)
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case op := <-c.ops:
			op()
		}
	}
}

// do queues fn on the loop and waits until it has run.
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case c.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-c.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// ---------------------------------------------------------------------------
//  Public operations
// ---------------------------------------------------------------------------

// Connect registers a new connection in CONNECTED_UNJOINED.
func (c *Coordinator) Connect(ctx context.Context, conn Conn) error {
	var res error
	err := c.do(ctx, func() {
		if _, ok := c.sessions[conn.ID()]; ok {
			res = fmt.Errorf("%w: connection %s already registered", ErrInvalidState, conn.ID())
			return
		}
		c.sessions[conn.ID()] = &session{conn: conn, state: StateConnectedUnjoined}
	})
	if err != nil {
		return err
	}
	return res
}

// Join registers the connection as an unnamed member of roomID. Joining the
// same room again is a no-op.
func (c *Coordinator) Join(ctx context.Context, connID, roomID string) error {
	return c.JoinAs(ctx, connID, roomID, roomID)
}

// JoinAs is Join for a client that addressed the room as address while
// roomID is its canonical key. Members of one room share presence and
// messages whatever address they used; each sees its own address as the
// chatroomId of relayed messages.
func (c *Coordinator) JoinAs(ctx context.Context, connID, roomID, address string) error {
	var res error
	if err := c.do(ctx, func() { res = c.join(connID, roomID, address) }); err != nil {
		return err
	}
	return res
}

// ClaimAlias validates and commits alias for the connection. Failures are
// reported to the requester with an alias-rejected event.
func (c *Coordinator) ClaimAlias(ctx context.Context, connID, alias string) error {
	var res error
	if err := c.do(ctx, func() { res = c.claimAlias(connID, alias) }); err != nil {
		return err
	}
	return res
}

// Relay fans a chat message out to the sender's room.
func (c *Coordinator) Relay(ctx context.Context, connID string, body wire.SendMessageBody) error {
	var res error
	if err := c.do(ctx, func() { res = c.relay(connID, body) }); err != nil {
		return err
	}
	return res
}

// Disconnect removes the connection from its room and forgets it.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) error {
	var res error
	if err := c.do(ctx, func() { res = c.disconnect(connID) }); err != nil {
		return err
	}
	return res
}

// CloseRoom tears the room's registry entry down and closes every member
// connection. It returns the number of members removed.
func (c *Coordinator) CloseRoom(ctx context.Context, roomID string) (int, error) {
	var n int
	err := c.do(ctx, func() {
		members := c.registry.Drop(roomID)
		for _, m := range members {
			s, ok := c.sessions[m.ConnID]
			if !ok {
				continue
			}
			s.state = StateDisconnected
			delete(c.sessions, m.ConnID)
			s.conn.Close()
		}
		n = len(members)
	})
	if n > 0 {
		zap.L().Info("coordinator.room_closed", zap.String("room", roomID), zap.Int("members", n))
	}
	return n, err
}

// Members returns the room's claimed aliases in join order and whether the
// room currently has a registry entry.
func (c *Coordinator) Members(ctx context.Context, roomID string) ([]string, bool, error) {
	var (
		aliases []string
		exists  bool
	)
	err := c.do(ctx, func() {
		exists = c.registry.Exists(roomID)
		aliases = c.registry.Aliases(roomID)
	})
	return aliases, exists, err
}

// Snapshot returns the member count of every active room.
func (c *Coordinator) Snapshot(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	err := c.do(ctx, func() {
		for _, id := range c.registry.RoomIDs() {
			out[id] = c.registry.Len(id)
		}
	})
	return out, err
}

// SessionState reports the state of a connection. Forgotten connections
// report StateDisconnected.
func (c *Coordinator) SessionState(ctx context.Context, connID string) (State, error) {
	st := StateDisconnected
	err := c.do(ctx, func() {
		if s, ok := c.sessions[connID]; ok {
			st = s.state
		}
	})
	return st, err
}

// ---------------------------------------------------------------------------
//  Transitions (loop goroutine only)
// ---------------------------------------------------------------------------

func (c *Coordinator) join(connID, roomID, address string) error {
	s, ok := c.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if roomID == "" {
		return ErrRoomRequired
	}

	if address == "" {
		address = roomID
	}

	switch s.state {
	case StateConnectedUnjoined:
		c.registry.Add(roomID, &Member{ConnID: connID, Address: address, JoinedAt: c.now().UTC()})
		s.roomID = roomID
		s.address = address
		s.state = StateJoinedNoAlias
		zap.L().Debug("coordinator.joined", zap.String("conn", connID), zap.String("room", roomID))
		return nil
	case StateJoinedNoAlias, StateJoinedWithAlias:
		if s.roomID == roomID {
			return nil
		}
		return fmt.Errorf("%w: already joined %s", ErrInvalidState, s.roomID)
	default:
		return ErrInvalidState
	}
}

func (c *Coordinator) claimAlias(connID, alias string) error {
	s, ok := c.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if s.state != StateJoinedNoAlias && s.state != StateJoinedWithAlias {
		return ErrInvalidState
	}

	alias = strings.TrimSpace(alias)
	if alias == "" {
		c.reject(s, reasonAliasEmpty)
		return ErrAliasInvalid
	}
	if limit := c.limits.MaxAliasLength; limit > 0 && utf8.RuneCountInString(alias) > limit {
		c.reject(s, fmt.Sprintf(reasonAliasLong, limit))
		return ErrAliasInvalid
	}
	if holder, taken := c.registry.AliasHolder(s.roomID, alias); taken && holder.ConnID != connID {
		c.reject(s, reasonAliasTaken)
		zap.L().Debug("coordinator.alias_taken", zap.String("room", s.roomID), zap.String("alias", alias))
		return ErrAliasTaken
	}

	m, ok := c.registry.Member(s.roomID, connID)
	if !ok {
		return ErrInvalidState
	}
	m.Alias = alias
	s.state = StateJoinedWithAlias
	c.broadcastUsers(s.roomID)
	return nil
}

func (c *Coordinator) relay(connID string, body wire.SendMessageBody) error {
	s, ok := c.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if s.state != StateJoinedWithAlias {
		return ErrInvalidState
	}
	if body.RoomID != "" && body.RoomID != s.roomID && body.RoomID != s.address {
		return ErrRoomMismatch
	}
	// Blank bodies are refused; anything else is relayed verbatim.
	text := body.Message
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if limit := c.limits.MaxMessageLength; limit > 0 && utf8.RuneCountInString(text) > limit {
		return ErrMessageTooLong
	}
	m, ok := c.registry.Member(s.roomID, connID)
	if !ok {
		return ErrInvalidState
	}

	msg := Message{
		ID:     c.newID(),
		RoomID: s.roomID,
		Alias:  m.Alias,
		Body:   text,
		At:     c.now().UTC(),
	}
	if err := c.fanoutMessage(msg); err != nil {
		zap.L().Error("coordinator.encode", zap.Error(err))
		return err
	}

	if c.sink != nil {
		c.sink.Record(msg)
	}
	return nil
}

func (c *Coordinator) disconnect(connID string) error {
	s, ok := c.sessions[connID]
	if !ok {
		return ErrUnknownConnection
	}
	delete(c.sessions, connID)

	prev := s.state
	s.state = StateDisconnected
	if prev != StateJoinedNoAlias && prev != StateJoinedWithAlias {
		return nil
	}

	removed, deleted := c.registry.Remove(s.roomID, connID)
	zap.L().Debug("coordinator.left",
		zap.String("conn", connID),
		zap.String("room", s.roomID),
		zap.Bool("room_deleted", deleted),
	)
	if removed != nil && removed.HasAlias() && !deleted {
		c.broadcastUsers(s.roomID)
	}
	return nil
}

func (c *Coordinator) shutdown() {
	for id, s := range c.sessions {
		s.state = StateDisconnected
		s.conn.Close()
		delete(c.sessions, id)
	}
	zap.L().Info("coordinator.stopped")
}

// ---------------------------------------------------------------------------
//  Delivery helpers
// ---------------------------------------------------------------------------

func (c *Coordinator) broadcastUsers(roomID string) {
	aliases := c.registry.Aliases(roomID)
	if aliases == nil {
		aliases = []string{}
	}
	frame, err := wire.Encode(wire.EventUsersUpdated, aliases)
	if err != nil {
		zap.L().Error("coordinator.encode", zap.Error(err))
		return
	}
	c.fanout(roomID, frame)
}

func (c *Coordinator) reject(s *session, reason string) {
	frame, err := wire.Encode(wire.EventAliasRejected, wire.AliasRejectedBody{Reason: reason})
	if err != nil {
		zap.L().Error("coordinator.encode", zap.Error(err))
		return
	}
	if !s.conn.Send(frame) {
		s.conn.Close()
	}
}

// fanout queues frame on every member of roomID.
func (c *Coordinator) fanout(roomID string, frame []byte) {
	for _, m := range c.registry.Members(roomID) {
		if s, ok := c.sessions[m.ConnID]; ok {
			deliver(s, roomID, frame)
		}
	}
}

// fanoutMessage relays msg to its room, encoding one frame per distinct
// member address.
func (c *Coordinator) fanoutMessage(msg Message) error {
	frames := make(map[string][]byte, 1)
	for _, m := range c.registry.Members(msg.RoomID) {
		s, ok := c.sessions[m.ConnID]
		if !ok {
			continue
		}
		addr := m.Address
		if addr == "" {
			addr = msg.RoomID
		}
		frame, ok := frames[addr]
		if !ok {
			var err error
			frame, err = wire.Encode(wire.EventNewMessage, wire.NewMessageBody{
				ID:         msg.ID,
				ChatroomID: addr,
				Alias:      msg.Alias,
				Message:    msg.Body,
				Timestamp:  msg.At,
			})
			if err != nil {
				return err
			}
			frames[addr] = frame
		}
		deliver(s, msg.RoomID, frame)
	}
	return nil
}

// deliver queues frame on one member. A member whose queue is full is
// closed; its reader then reports the disconnect like any other.
func deliver(s *session, roomID string, frame []byte) {
	if !s.conn.Send(frame) {
		zap.L().Warn("coordinator.slow_member", zap.String("conn", s.conn.ID()), zap.String("room", roomID))
		s.conn.Close()
	}
}
