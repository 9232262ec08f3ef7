package presence

import "roomchat/internal/wire"

// Event is anything the hook publishes on its Events channel.
type Event interface{ isEvent() }

// Connected is published after each connect acknowledgment, once the
// join-room for the hook's room has been sent.
type Connected struct{}

type Disconnected struct{}

// NewMessage is a message relayed in the hook's room.
type NewMessage wire.NewMessageBody

// UsersUpdated carries the full alias list of the room in join order.
type UsersUpdated struct {
	Aliases []string
}

// AliasRejected answers a SetAlias that the server refused.
type AliasRejected struct {
	Reason string
}

func (Connected) isEvent()     {}
func (Disconnected) isEvent()  {}
func (NewMessage) isEvent()    {}
func (UsersUpdated) isEvent()  {}
func (AliasRejected) isEvent() {}
