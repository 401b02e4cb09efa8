package hospital

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the hospital directory.
type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	Update(ctx context.Context, h *Hospital) error
	ListActive(ctx context.Context) ([]*Hospital, error)
	List(ctx context.Context, limit, offset int) ([]*Hospital, int, error)
}
