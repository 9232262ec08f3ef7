package history

import (
	"context"
	"time"

	"roomchat/internal/room"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// StreamKey is the Redis stream the message syncer tails.
	StreamKey = "messages_stream"
	// CountersKey is a hash of room id -> relayed message count.
	CountersKey = "rooms:msg_count"

	appendFunction = "chat_append"
	appendTimeout  = 2 * time.Second
)

// Recorder implements room.MessageSink. Record only enqueues; Run drains the
// queue into Redis so the coordinator loop never waits on the network.
type Recorder struct {
	rdc    *redis.Client
	maxLen int64
	queue  chan room.Message
}

var _ room.MessageSink = (*Recorder)(nil)

func NewRecorder(rdc *redis.Client, streamMaxLen int64, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Recorder{
		rdc:    rdc,
		maxLen: streamMaxLen,
		queue:  make(chan room.Message, buffer),
	}
}

func (r *Recorder) Record(msg room.Message) {
	select {
	case r.queue <- msg:
	default:
		zap.L().Warn("history.recorder_full", zap.String("room", msg.RoomID), zap.String("id", msg.ID))
	}
}

// Run appends queued messages until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			if err := r.append(ctx, msg); err != nil {
				zap.L().Warn("history.append", zap.String("id", msg.ID), zap.Error(err))
			}
		}
	}
}

func (r *Recorder) append(ctx context.Context, msg room.Message) error {
	ctx, cancel := context.WithTimeout(ctx, appendTimeout)
	defer cancel()

	return r.rdc.FCall(ctx, appendFunction,
		[]string{
			StreamKey,   // XADD target
			CountersKey, // per-room counter
		},
		r.maxLen,
		msg.ID,
		msg.RoomID,
		msg.Alias,
		msg.Body,
		msg.At.UnixMilli(),
	).Err()
}
