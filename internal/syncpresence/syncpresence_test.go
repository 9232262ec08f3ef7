package syncpresence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	snap map[string]int
	err  error
}

func (s staticSource) Snapshot(context.Context) (map[string]int, error) { return s.snap, s.err }

func TestSyncOnce_ReplacesPresenceHash(t *testing.T) {
	req := require.New(t)
	rdb, mock := redismock.NewClientMock()

	mock.ExpectTxPipeline()
	mock.ExpectDel(PresenceKey).SetVal(1)
	mock.ExpectHSet(PresenceKey, "abc123", 2, "def456", 1).SetVal(2)
	mock.ExpectExpire(PresenceKey, 30*time.Second).SetVal(true)
	mock.ExpectTxPipelineExec()

	src := staticSource{snap: map[string]int{"def456": 1, "abc123": 2}}
	req.NoError(syncOnce(context.Background(), rdb, src, 10*time.Second))
	req.NoError(mock.ExpectationsWereMet())
}

func TestSyncOnce_NoRoomsOnlyDeletes(t *testing.T) {
	req := require.New(t)
	rdb, mock := redismock.NewClientMock()

	mock.ExpectTxPipeline()
	mock.ExpectDel(PresenceKey).SetVal(0)
	mock.ExpectTxPipelineExec()

	req.NoError(syncOnce(context.Background(), rdb, staticSource{snap: map[string]int{}}, 10*time.Second))
	req.NoError(mock.ExpectationsWereMet())
}

func TestSyncOnce_SnapshotErrorSkipsRedis(t *testing.T) {
	req := require.New(t)
	rdb, mock := redismock.NewClientMock()

	err := syncOnce(context.Background(), rdb, staticSource{err: errors.New("coordinator stopped")}, time.Second)
	req.ErrorContains(err, "coordinator stopped")
	req.NoError(mock.ExpectationsWereMet())
}

func TestFields_SortedPairs(t *testing.T) {
	require.Equal(t,
		[]interface{}{"a", 3, "b", 1, "c", 2},
		fields(map[string]int{"c": 2, "a": 3, "b": 1}),
	)
}
