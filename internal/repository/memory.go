package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/queueline/internal/models"
)

// MemoryStore is a mutex-guarded TicketStore used by tests and local runs
// without a database. Each method is atomic under the single lock, matching
// the per-operation atomicity the Postgres store provides.
type MemoryStore struct {
	mu      sync.Mutex
	counter int64
	tickets []*models.Ticket
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(ctx context.Context, ticket *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.TicketNumber == ticket.TicketNumber {
			return errors.WithStack(ErrDuplicateTicketNumber)
		}
	}
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusWaiting
	}
	if ticket.Name == "" {
		ticket.Name = models.DefaultName
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	s.tickets = append(s.tickets, &stored)
	return nil
}

func (s *MemoryStore) FindByTicketNumber(ctx context.Context, number int64) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.TicketNumber == number {
			copied := *t
			return &copied, nil
		}
	}
	return nil, errors.WithStack(ErrNotFound)
}

func (s *MemoryStore) AllocateTicketNumber(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Catch up if the counter somehow fell behind the issued tickets, so
	// the next allocation cannot collide.
	for _, t := range s.tickets {
		if t.TicketNumber > s.counter {
			s.counter = t.TicketNumber
		}
	}
	s.counter++
	return s.counter, nil
}

func (s *MemoryStore) MaxTicketNumber(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for _, t := range s.tickets {
		if t.TicketNumber > max {
			max = t.TicketNumber
		}
	}
	return max, nil
}

func (s *MemoryStore) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waitingLocked(), nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TicketStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ID == id && t.Status == from {
			t.Status = to
			t.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ServeOldestWaiting(ctx context.Context) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	waiting := s.waitingLocked()
	if len(waiting) == 0 {
		return nil, nil
	}
	for _, t := range s.tickets {
		if t.ID == waiting[0].ID {
			t.Status = models.TicketStatusServed
			t.UpdatedAt = time.Now()
			copied := *t
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = nil
	s.counter = 0
	return nil
}

// waitingLocked returns copies of waiting tickets ordered by creation time
// ascending, with ticket number breaking ties from same-instant inserts.
func (s *MemoryStore) waitingLocked() []models.Ticket {
	waiting := []models.Ticket{}
	for _, t := range s.tickets {
		if t.Status == models.TicketStatusWaiting {
			waiting = append(waiting, *t)
		}
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].TicketNumber < waiting[j].TicketNumber
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting
}
