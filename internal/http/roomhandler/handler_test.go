package roomhandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomchat/internal/services/history"
	"roomchat/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakePresence map[string][]string

func (f fakePresence) Members(_ context.Context, roomID string) ([]string, bool, error) {
	aliases, ok := f[roomID]
	return aliases, ok, nil
}

type fakeHistory struct {
	gotRoom   string
	gotBefore time.Time
	gotLimit  int
	out       []history.MessageDTO
	err       error
}

func (f *fakeHistory) List(_ context.Context, roomID string, before time.Time, limit int) ([]history.MessageDTO, error) {
	f.gotRoom, f.gotBefore, f.gotLimit = roomID, before, limit
	return f.out, f.err
}

// fakeChecker maps addresses to primary ids.
type fakeChecker map[string]string

func (f fakeChecker) Canonical(_ context.Context, address string) (string, error) {
	if id, ok := f[address]; ok {
		return id, nil
	}
	return "", rooms.ErrRoomNotFound
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestMembers(t *testing.T) {
	h := New(fakePresence{"abc123": {"Alice", "Bob"}, "quiet": nil}, &fakeHistory{}, nil)

	w := serve(h, "/rooms/abc123/members")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"roomId":"abc123","aliases":["Alice","Bob"]}`, w.Body.String())

	w = serve(h, "/rooms/quiet/members")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"roomId":"quiet","aliases":[]}`, w.Body.String())

	w = serve(h, "/rooms/missing/members")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessages_PassesCursorAndLimit(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC)
	hist := &fakeHistory{out: []history.MessageDTO{{ID: "m1", ChatroomID: "abc123", Alias: "Alice", Message: "hi", Timestamp: at}}}
	h := New(fakePresence{}, hist, fakeChecker{"abc123": "abc123"})

	w := serve(h, "/rooms/abc123/messages?limit=5&before=2025-07-27T17:00:00Z")
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`[{"id":"m1","chatroomId":"abc123","alias":"Alice","message":"hi","timestamp":"2025-07-27T16:05:05Z"}]`, w.Body.String())
	req.Equal("abc123", hist.gotRoom)
	req.Equal(5, hist.gotLimit)
	req.True(hist.gotBefore.Equal(time.Date(2025, 7, 27, 17, 0, 0, 0, time.UTC)))
}

func TestMessages_Errors(t *testing.T) {
	hist := &fakeHistory{}
	h := New(fakePresence{}, hist, fakeChecker{"abc123": "abc123"})

	require.Equal(t, http.StatusBadRequest, serve(h, "/rooms/abc123/messages?limit=9999").Code)
	require.Equal(t, http.StatusBadRequest, serve(h, "/rooms/abc123/messages?before=yesterday").Code)
	require.Equal(t, http.StatusNotFound, serve(h, "/rooms/ghost/messages").Code)

	hist.err = errors.New("pg down")
	require.Equal(t, http.StatusInternalServerError, serve(h, "/rooms/abc123/messages").Code)
}

func TestMessages_NoCheckerServesAnyRoom(t *testing.T) {
	hist := &fakeHistory{out: []history.MessageDTO{}}
	w := serve(New(fakePresence{}, hist, nil), "/rooms/anything/messages")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
	require.Equal(t, 0, hist.gotLimit)
}

func TestRoutes_ResolveUrlToPrimaryID(t *testing.T) {
	req := require.New(t)
	hist := &fakeHistory{out: []history.MessageDTO{}}
	checker := fakeChecker{"abc123": "room-1", "room-1": "room-1"}
	h := New(fakePresence{"room-1": {"Alice"}}, hist, checker)

	for _, address := range []string{"abc123", "room-1"} {
		w := serve(h, "/rooms/"+address+"/members")
		req.Equal(http.StatusOK, w.Code)
		req.JSONEq(`{"roomId":"room-1","aliases":["Alice"]}`, w.Body.String())

		hist.gotRoom = ""
		req.Equal(http.StatusOK, serve(h, "/rooms/"+address+"/messages").Code)
		req.Equal("room-1", hist.gotRoom)
	}

	req.Equal(http.StatusNotFound, serve(h, "/rooms/ghost/members").Code)
}
