package roomwatcher

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deletedPattern matches "room:<roomID>:deleted", published by the room
// service when a room is removed.
const deletedPattern = "room:*:deleted"

type RoomCloser interface {
	CloseRoom(ctx context.Context, roomID string) (int, error)
}

// Forgetter drops cached knowledge about a room.
type Forgetter interface {
	Forget(ctx context.Context, roomID string) error
}

// Run listens for room deletions and tears the matching registry entries
// down. cache may be nil. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, closer RoomCloser, cache Forgetter) {
	ps := rdb.PSubscribe(ctx, deletedPattern)
	defer ps.Close()
	consume(ctx, ps.Channel(), closer, cache)
}

func consume(ctx context.Context, ch <-chan *redis.Message, closer RoomCloser, cache Forgetter) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			roomID, ok := roomIDFromChannel(m.Channel)
			if !ok {
				continue
			}
			if cache != nil {
				if err := cache.Forget(ctx, roomID); err != nil {
					zap.L().Debug("roomwatcher.forget", zap.String("room", roomID), zap.Error(err))
				}
			}
			n, err := closer.CloseRoom(ctx, roomID)
			if err != nil {
				zap.L().Warn("roomwatcher.close", zap.String("room", roomID), zap.Error(err))
				continue
			}
			zap.L().Info("roomwatcher.room_deleted", zap.String("room", roomID), zap.Int("members", n))
		}
	}
}

// channel format: "room:<roomID>:deleted"
func roomIDFromChannel(channel string) (string, bool) {
	rest, ok := strings.CutPrefix(channel, "room:")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, ":deleted")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
