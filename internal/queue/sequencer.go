package queue

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/queueline/internal/repository"
)

// Sequencer produces the next globally unique ticket number. The increment
// is delegated to the store's atomic counter record, so two concurrent
// joins never receive the same value and numbers survive process restarts.
// A process-local counter is deliberately avoided. Should the counter ever
// lag behind issued tickets, the unique index on ticket_number catches the
// collision and Service.Join retries with a fresh allocation.
type Sequencer struct {
	store repository.TicketStore
}

// NewSequencer constructs a sequencer over the given store.
func NewSequencer(store repository.TicketStore) *Sequencer {
	return &Sequencer{store: store}
}

// NextTicketNumber returns the next number in the sequence, starting at 1
// on an empty (or freshly reset) store.
func (s *Sequencer) NextTicketNumber(ctx context.Context) (int64, error) {
	number, err := s.store.AllocateTicketNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "allocate ticket number")
	}
	return number, nil
}
