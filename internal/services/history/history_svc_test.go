package history

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestHistoryService_ListNewestFirst(t *testing.T) {
	req := require.New(t)
	db, mock, err := sqlmock.New()
	req.NoError(err)
	defer db.Close()

	t1 := time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC)
	t0 := t1.Add(-time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("FROM messages")).
		WithArgs("abc123", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chatroom_id", "alias", "body", "created_at"}).
			AddRow("m2", "abc123", "Bob", "yo", t1).
			AddRow("m1", "abc123", "Alice", "hi", t0))

	svc := NewHistoryService(db, 50)
	list, err := svc.List(context.Background(), "abc123", time.Time{}, 0)
	req.NoError(err)
	req.Len(list, 2)
	req.Equal(MessageDTO{ID: "m2", ChatroomID: "abc123", Alias: "Bob", Message: "yo", Timestamp: t1}, list[0])
	req.Equal("m1", list[1].ID)
	req.NoError(mock.ExpectationsWereMet())
}

func TestHistoryService_ListBeforeCursor(t *testing.T) {
	req := require.New(t)
	db, mock, err := sqlmock.New()
	req.NoError(err)
	defer db.Close()

	before := time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND created_at < $2 ORDER BY created_at DESC LIMIT $3")).
		WithArgs("abc123", before, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chatroom_id", "alias", "body", "created_at"}))

	list, err := NewHistoryService(db, 50).List(context.Background(), "abc123", before, 10)
	req.NoError(err)
	req.Empty(list)
	req.NotNil(list)
	req.NoError(mock.ExpectationsWereMet())
}

func TestHistoryService_ListQueryError(t *testing.T) {
	req := require.New(t)
	db, mock, err := sqlmock.New()
	req.NoError(err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	_, err = NewHistoryService(db, 50).List(context.Background(), "abc123", time.Time{}, 5)
	req.ErrorIs(err, context.DeadlineExceeded)
}
