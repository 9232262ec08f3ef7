package history

import (
	"context"
	"database/sql"
	"time"
)

type MessageDTO struct {
	ID         string    `json:"id"         example:"7d0c5b0e-5b8e-4f7e-9a53-0f1f3c1d2e4a"`
	ChatroomID string    `json:"chatroomId" example:"abc123"`
	Alias      string    `json:"alias"      example:"Alice"`
	Message    string    `json:"message"    example:"hi"`
	Timestamp  time.Time `json:"timestamp"  example:"2025-07-27T16:05:05Z"`
} // @name Message

type IHistoryService interface {
	// List returns up to limit messages of the room, newest first. A non-zero
	// before only returns messages strictly older than it.
	List(ctx context.Context, roomID string, before time.Time, limit int) ([]MessageDTO, error)
}

type historyService struct {
	db           *sql.DB
	defaultLimit int
}

func NewHistoryService(db *sql.DB, defaultLimit int) IHistoryService {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &historyService{db: db, defaultLimit: defaultLimit}
}

func (svc *historyService) List(ctx context.Context, roomID string,
	before time.Time, limit int) ([]MessageDTO, error) {

	if limit <= 0 {
		limit = svc.defaultLimit
	}
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT id, chatroom_id, alias, body, created_at
               FROM messages
              WHERE chatroom_id = $1`
	if before.IsZero() {
		rows, err = svc.db.QueryContext(ctx, base+" ORDER BY created_at DESC LIMIT $2",
			roomID, limit)
	} else {
		rows, err = svc.db.QueryContext(ctx, base+" AND created_at < $2 ORDER BY created_at DESC LIMIT $3",
			roomID, before.UTC(), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]MessageDTO, 0, limit)
	for rows.Next() {
		var m MessageDTO
		if err := rows.Scan(&m.ID, &m.ChatroomID, &m.Alias, &m.Message, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Timestamp = m.Timestamp.UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}
