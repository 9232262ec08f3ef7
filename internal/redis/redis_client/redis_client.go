package redis_client

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	clientName     = "roomchat"
	connectTimeout = 5 * time.Second
	maxPoolSize    = 512
)

// poolSize scales with the cpu count; pub/sub and blocking XREAD each pin a conn.
func poolSize(cpus int) int {
	n := cpus * 8
	if n > maxPoolSize {
		n = maxPoolSize
	}
	if n < 16 {
		n = 16
	}
	return n
}

func newOptions(host string, port int) *redis.Options {
	return &redis.Options{
		Addr:       net.JoinHostPort(host, strconv.Itoa(port)),
		ClientName: clientName,
		PoolSize:   poolSize(runtime.NumCPU()),
	}
}

// NewRedisClient returns a client that answered PING.
func NewRedisClient(host string, port int) (*redis.Client, error) {
	rc := redis.NewClient(newOptions(host, port))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		zap.L().Error("redis_connect", zap.String("addr", rc.Options().Addr), zap.Error(err))
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rc, nil
}
