package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound = errors.New("chat room not found")
	ErrForbidden    = errors.New("not a room participant")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Room returns a room the given user participates in.
func (s *Service) Room(ctx context.Context, roomID, userID uuid.UUID) (*ChatRoom, error) {
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Member(userID) {
		return nil, ErrForbidden
	}
	return room, nil
}

// RoomsForUser lists the active rooms the user participates in.
func (s *Service) RoomsForUser(ctx context.Context, userID uuid.UUID) ([]*ChatRoom, error) {
	return s.repo.ListRoomsForUser(ctx, userID)
}

// Messages returns a room's history, oldest first, for a participant.
// Fetching the history marks the counterpart's messages as read.
func (s *Service) Messages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]*ChatMessage, int, error) {
	if _, err := s.Room(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}
	if err := s.repo.MarkRead(ctx, roomID, userID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMessages(ctx, roomID, limit, offset)
}

// Post verifies the sender against the room's recorded participants and
// persists the message. A sender mismatch returns ErrForbidden and nothing
// is written.
func (s *Service) Post(ctx context.Context, room *ChatRoom, senderID uuid.UUID, senderType, body string) (*ChatMessage, error) {
	if !room.SenderAllowed(senderID, senderType) {
		return nil, ErrForbidden
	}
	m := &ChatMessage{
		RoomID:     room.ID,
		SenderID:   senderID,
		SenderType: senderType,
		Message:    body,
	}
	if err := s.repo.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
