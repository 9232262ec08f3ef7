package syncpresence

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// PresenceKey is a hash of room id -> live member count.
	PresenceKey = "rooms:presence"
	pipeTimeout = 1500 * time.Millisecond
)

type SnapshotSource interface {
	Snapshot(ctx context.Context) (map[string]int, error)
}

// Run mirrors the live member counts into Redis every interval so the room
// service can show occupancy without talking to this process.
func Run(ctx context.Context, rdc *redis.Client, src SnapshotSource, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				if err := syncOnce(ctx, rdc, src, interval); err != nil {
					zap.L().Warn("syncpresence.sync", zap.Error(err))
				}
			}
		}
	}()
}

func syncOnce(ctx context.Context, rdc *redis.Client, src SnapshotSource, interval time.Duration) error {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, pipeTimeout)
	defer cancel()

	// Replace the whole hash in one round‑trip so rooms that emptied vanish.
	pipe := rdc.TxPipeline()
	pipe.Del(ctx, PresenceKey)
	if len(snap) > 0 {
		pipe.HSet(ctx, PresenceKey, fields(snap)...)
		// Outlives a few missed ticks, then disappears if this process dies.
		pipe.Expire(ctx, PresenceKey, 3*interval)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// fields flattens the snapshot into sorted HSET field/value pairs.
func fields(snap map[string]int) []interface{} {
	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]interface{}, 0, 2*len(ids))
	for _, id := range ids {
		out = append(out, id, snap[id])
	}
	return out
}
