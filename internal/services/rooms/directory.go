package rooms

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	addressKeyPrefix = "room_key:"  // room_key:<address> -> primary id
	indexKeyPrefix   = "room_keys:" // room_keys:<id> -> set of cached addresses
	defaultTTL       = 5 * time.Minute
)

var ErrRoomNotFound = errors.New("room not found")

// Directory maps the addresses a room is reachable under (its short url or
// its primary id) to the primary id, which is the key every other component
// uses. Only positive answers are cached, so a freshly created room is
// visible immediately.
type Directory struct {
	db  *sql.DB
	rdc *redis.Client
	ttl time.Duration
}

func NewDirectory(db *sql.DB, rdc *redis.Client) *Directory {
	return &Directory{db: db, rdc: rdc, ttl: defaultTTL}
}

// Resolve returns the primary id of the room reachable at address and
// whether such a room exists. An exact id match wins over a url match.
func (d *Directory) Resolve(ctx context.Context, address string) (string, bool, error) {
	if address == "" {
		return "", false, nil
	}

	// 1. Fast‑path: cached lookup
	id, err := d.rdc.Get(ctx, addressKeyPrefix+address).Result()
	if err == nil && id != "" {
		return id, true, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		zap.L().Debug("rooms.cache_read", zap.Error(err))
	}

	// 2. Otherwise go to Postgres
	const q = `SELECT id FROM chatrooms WHERE id = $1 OR room_url = $1 ORDER BY (id = $1) DESC LIMIT 1`
	if err := d.db.QueryRowContext(ctx, q, address).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	d.remember(ctx, address, id)
	return id, true, nil
}

func (d *Directory) remember(ctx context.Context, address, id string) {
	pipe := d.rdc.TxPipeline()
	pipe.Set(ctx, addressKeyPrefix+address, id, d.ttl)
	pipe.SAdd(ctx, indexKeyPrefix+id, address)
	pipe.Expire(ctx, indexKeyPrefix+id, d.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		zap.L().Debug("rooms.cache_write", zap.Error(err))
	}
}

// Canonical is Resolve folded into ErrRoomNotFound.
func (d *Directory) Canonical(ctx context.Context, address string) (string, error) {
	id, ok, err := d.Resolve(ctx, address)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRoomNotFound
	}
	return id, nil
}

// Forget drops every cached address of the room, used when it is deleted.
func (d *Directory) Forget(ctx context.Context, id string) error {
	index := indexKeyPrefix + id
	addrs, err := d.rdc.SMembers(ctx, index).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := []string{index, addressKeyPrefix + id}
	for _, a := range addrs {
		if a != id {
			keys = append(keys, addressKeyPrefix+a)
		}
	}
	return d.rdc.Del(ctx, keys...).Err()
}
