package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/queueline/internal/models"
)

// ErrStoreUnavailable is returned by every operation of UnavailableStore.
var ErrStoreUnavailable = errors.New("ticket store unavailable")

// UnavailableStore stands in when the database connection failed at boot:
// the process stays up and keeps its default route reachable, while every
// store-backed operation fails cleanly.
type UnavailableStore struct{}

func (UnavailableStore) Insert(ctx context.Context, ticket *models.Ticket) error {
	return errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) FindByTicketNumber(ctx context.Context, number int64) (*models.Ticket, error) {
	return nil, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) AllocateTicketNumber(ctx context.Context) (int64, error) {
	return 0, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) MaxTicketNumber(ctx context.Context) (int64, error) {
	return 0, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	return nil, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TicketStatus) (bool, error) {
	return false, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) ServeOldestWaiting(ctx context.Context) (*models.Ticket, error) {
	return nil, errors.WithStack(ErrStoreUnavailable)
}

func (UnavailableStore) DeleteAll(ctx context.Context) error {
	return errors.WithStack(ErrStoreUnavailable)
}
