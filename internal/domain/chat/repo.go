package chat

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists chat rooms and messages. Rooms are created by the
// transfer accept cascade; this repository only reads them.
type Repository interface {
	GetRoom(ctx context.Context, id uuid.UUID) (*ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID uuid.UUID) ([]*ChatRoom, error)
	CreateMessage(ctx context.Context, m *ChatMessage) error
	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error)
	// MarkRead flags every message in the room not sent by readerID as read.
	MarkRead(ctx context.Context, roomID, readerID uuid.UUID) error
}
