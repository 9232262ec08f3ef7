package room

import (
	"sort"
	"time"
)

// Member is the presence record of one live connection inside one room.
// An empty Alias means the member has not claimed a name yet; claimed aliases
// are never empty because they are trimmed and validated first.
//
// Address is the room key the client joined with. It differs from the
// registry key when the room is reachable under more than one name.
type Member struct {
	ConnID   string
	Alias    string
	Address  string
	JoinedAt time.Time
}

// HasAlias reports whether the member has claimed a name.
func (m *Member) HasAlias() bool { return m.Alias != "" }

type roomEntry struct {
	members []*Member // join order
}

// Registry keeps member lists per room id.
//
// A room entry exists iff it has at least one member: it is created by the
// first Add and deleted by the Remove that empties it. Registry is not safe
// for concurrent use; the Coordinator loop is its only writer and reader.
type Registry struct {
	rooms map[string]*roomEntry
}

func NewRegistry() *Registry { return &Registry{rooms: make(map[string]*roomEntry)} }

// Add registers m under roomID. It returns false when the connection is
// already a member of that room.
func (r *Registry) Add(roomID string, m *Member) bool {
	e, ok := r.rooms[roomID]
	if !ok {
		e = &roomEntry{}
		r.rooms[roomID] = e
	}
	for _, cur := range e.members {
		if cur.ConnID == m.ConnID {
			return false
		}
	}
	e.members = append(e.members, m)
	return true
}

// Remove deletes the connection from the room and reports the removed member
// and whether the room entry was dropped because it became empty.
func (r *Registry) Remove(roomID, connID string) (removed *Member, roomDeleted bool) {
	e, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	for i, m := range e.members {
		if m.ConnID != connID {
			continue
		}
		removed = m
		e.members = append(e.members[:i], e.members[i+1:]...)
		break
	}
	if len(e.members) == 0 {
		delete(r.rooms, roomID)
		return removed, true
	}
	return removed, false
}

// Drop deletes the whole room entry and returns the members it held.
func (r *Registry) Drop(roomID string) []*Member {
	e, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	delete(r.rooms, roomID)
	return e.members
}

// Member looks up a connection's record in a room.
func (r *Registry) Member(roomID, connID string) (*Member, bool) {
	e, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	for _, m := range e.members {
		if m.ConnID == connID {
			return m, true
		}
	}
	return nil, false
}

// AliasHolder returns the member of roomID currently holding alias.
// Comparison is exact and case-sensitive.
func (r *Registry) AliasHolder(roomID, alias string) (*Member, bool) {
	e, ok := r.rooms[roomID]
	if !ok || alias == "" {
		return nil, false
	}
	for _, m := range e.members {
		if m.Alias == alias {
			return m, true
		}
	}
	return nil, false
}

// Members returns a copy of the room's member list in join order.
func (r *Registry) Members(roomID string) []*Member {
	e, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]*Member, len(e.members))
	copy(out, e.members)
	return out
}

// Aliases returns the claimed aliases of the room in join order.
func (r *Registry) Aliases(roomID string) []string {
	e, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(e.members))
	for _, m := range e.members {
		if m.HasAlias() {
			out = append(out, m.Alias)
		}
	}
	return out
}

func (r *Registry) Exists(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// RoomIDs lists the rooms that currently have members, sorted.
func (r *Registry) RoomIDs() []string {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of members in roomID.
func (r *Registry) Len(roomID string) int {
	if e, ok := r.rooms[roomID]; ok {
		return len(e.members)
	}
	return 0
}
