package room

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddCreatesRoomOnFirstMember(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	req.False(r.Exists("abc123"))

	req.True(r.Add("abc123", &Member{ConnID: "c1"}))
	req.True(r.Exists("abc123"))
	req.Equal(1, r.Len("abc123"))

	req.False(r.Add("abc123", &Member{ConnID: "c1"}), "same connection twice")
	req.Equal(1, r.Len("abc123"))
}

func TestRegistry_AliasesSkipUnnamedAndKeepJoinOrder(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Add("abc123", &Member{ConnID: "c1", Alias: "Zed"})
	r.Add("abc123", &Member{ConnID: "c2"})
	r.Add("abc123", &Member{ConnID: "c3", Alias: "Amy"})

	req.Equal([]string{"Zed", "Amy"}, r.Aliases("abc123"))
	req.Nil(r.Aliases("missing"))
}

func TestRegistry_RemoveDeletesEmptyRoom(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Add("abc123", &Member{ConnID: "c1", Alias: "X"})
	r.Add("abc123", &Member{ConnID: "c2", Alias: "Y"})

	removed, deleted := r.Remove("abc123", "c1")
	req.Equal("X", removed.Alias)
	req.False(deleted)

	removed, deleted = r.Remove("abc123", "c2")
	req.Equal("Y", removed.Alias)
	req.True(deleted)
	req.False(r.Exists("abc123"))
	req.Empty(r.RoomIDs())
}

func TestRegistry_RemoveUnknown(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	removed, deleted := r.Remove("abc123", "c1")
	req.Nil(removed)
	req.False(deleted)

	r.Add("abc123", &Member{ConnID: "c1"})
	removed, deleted = r.Remove("abc123", "ghost")
	req.Nil(removed)
	req.False(deleted)
	req.Equal(1, r.Len("abc123"))
}

func TestRegistry_AliasHolderIsExactMatch(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Add("abc123", &Member{ConnID: "c1", Alias: "Alice"})
	r.Add("abc123", &Member{ConnID: "c2"})

	m, ok := r.AliasHolder("abc123", "Alice")
	req.True(ok)
	req.Equal("c1", m.ConnID)

	_, ok = r.AliasHolder("abc123", "alice")
	req.False(ok)
	_, ok = r.AliasHolder("abc123", "")
	req.False(ok, "unnamed members never hold the empty alias")
}

func TestRegistry_DropReturnsMembers(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Add("abc123", &Member{ConnID: "c1"})
	r.Add("abc123", &Member{ConnID: "c2"})
	r.Add("zzz", &Member{ConnID: "c3"})

	dropped := r.Drop("abc123")
	req.Len(dropped, 2)
	req.False(r.Exists("abc123"))
	req.Equal([]string{"zzz"}, r.RoomIDs())
	req.Nil(r.Drop("abc123"))
}

func TestRegistry_MembersIsACopy(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	r.Add("abc123", &Member{ConnID: "c1"})

	ms := r.Members("abc123")
	ms[0] = &Member{ConnID: "other"}

	_, ok := r.Member("abc123", "c1")
	req.True(ok)
}
