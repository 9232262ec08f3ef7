package syncmsg

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"roomchat/internal/services/history"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize = 100
	blockFor  = 2000 * time.Millisecond
)

// Syncer tails the history stream and persists every message.
type Syncer struct {
	rdc    *redis.Client
	db     *sql.DB
	lastID string
}

func New(rdc *redis.Client, db *sql.DB) *Syncer {
	// Starting from the beginning replays what is still in the stream;
	// inserts are idempotent.
	return &Syncer{rdc: rdc, db: db, lastID: "0-0"}
}

// Run starts the tail loop in the background.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	s := New(rdc, db)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := s.step(ctx); err != nil && ctx.Err() == nil {
				zap.L().Warn("syncmsg.step", zap.Error(err))
				time.Sleep(time.Second)
			}
		}
	}()
}

// step reads one batch (blocking up to 2 s) and persists it.
func (s *Syncer) step(ctx context.Context) error {
	res, err := s.rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{history.StreamKey, s.lastID},
		Count:   batchSize,
		Block:   blockFor,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil
	}
	entries := res[0].Messages
	if err := persist(ctx, s.db, entries); err != nil {
		return err
	}
	s.lastID = entries[len(entries)-1].ID
	return nil
}

type row struct {
	id, room, alias, body string
	tsMillis              int64
}

func parse(m redis.XMessage) (row, bool) {
	str := func(k string) string {
		v, _ := m.Values[k].(string)
		return v
	}
	r := row{id: str("id"), room: str("room"), alias: str("alias"), body: str("body")}
	ts, err := strconv.ParseInt(str("ts"), 10, 64)
	if err != nil || r.id == "" || r.room == "" {
		return row{}, false
	}
	r.tsMillis = ts
	return r, true
}

func persist(ctx context.Context, db *sql.DB, msgs []redis.XMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO messages (id, chatroom_id, alias, body, created_at)
	             VALUES ($1, $2, $3, $4, to_timestamp($5::double precision / 1000))
	             ON CONFLICT (id) DO NOTHING`
	for _, m := range msgs {
		r, ok := parse(m)
		if !ok {
			zap.L().Warn("syncmsg.bad_entry", zap.String("entry", m.ID))
			continue
		}
		if _, err := tx.ExecContext(ctx, ins, r.id, r.room, r.alias, r.body, r.tsMillis); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
