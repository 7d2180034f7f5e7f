package queue

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/example/queueline/internal/models"
	"github.com/example/queueline/internal/notify"
	"github.com/example/queueline/internal/repository"
)

// DefaultAverageServiceMinutes is the fixed per-ticket service estimate used
// when no override is configured.
const DefaultAverageServiceMinutes = 2

// maxSequenceRetries bounds how often a join recomputes its ticket number
// after losing the insert race to a concurrent join.
const maxSequenceRetries = 3

var (
	// ErrMissingServiceType rejects joins that do not say which service
	// queue they are for.
	ErrMissingServiceType = errors.New("serviceType is required")
	// ErrSequencingFailed is returned when every sequencing attempt lost
	// the insert race.
	ErrSequencingFailed = errors.New("could not allocate a ticket number")
)

// Notifier receives a signal whenever the waiting set mutates. Delivery is
// best-effort and must never block the request path.
type Notifier interface {
	Publish(ctx context.Context, event string)
}

// JoinInput carries the client-supplied fields of a join request.
type JoinInput struct {
	Name        string
	UrgencyType string
	ServiceType string
}

// TicketStatus is the position report for a single ticket. Position is 0 and
// EstimatedWaitMinutes is 0 when the ticket has already been served.
type TicketStatus struct {
	Ticket               models.Ticket
	Position             int
	QueueLength          int
	EstimatedWaitMinutes int
}

// Service owns ticket issuance, position computation and the admin
// operations. All mutations go through the store; the notifier is told after
// the store accepted the change.
type Service struct {
	store             repository.TicketStore
	sequencer         *Sequencer
	notifier          Notifier
	avgServiceMinutes int
}

// NewService builds the queue service. avgServiceMinutes <= 0 falls back to
// the default.
func NewService(store repository.TicketStore, notifier Notifier, avgServiceMinutes int) *Service {
	if avgServiceMinutes <= 0 {
		avgServiceMinutes = DefaultAverageServiceMinutes
	}
	return &Service{
		store:             store,
		sequencer:         NewSequencer(store),
		notifier:          notifier,
		avgServiceMinutes: avgServiceMinutes,
	}
}

// Join issues the next ticket number and persists a waiting ticket. On a
// duplicate-number insert (a concurrent join won the race) the number is
// recomputed and the insert retried a bounded number of times.
func (s *Service) Join(ctx context.Context, input JoinInput) (*models.Ticket, error) {
	if input.ServiceType == "" {
		return nil, errors.WithStack(ErrMissingServiceType)
	}

	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		number, err := s.sequencer.NextTicketNumber(ctx)
		if err != nil {
			return nil, err
		}
		ticket := &models.Ticket{
			TicketNumber: number,
			Name:         input.Name,
			UrgencyType:  input.UrgencyType,
			ServiceType:  input.ServiceType,
			Status:       models.TicketStatusWaiting,
		}
		err = s.store.Insert(ctx, ticket)
		if errors.Is(err, repository.ErrDuplicateTicketNumber) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "insert ticket")
		}
		s.publish(ctx)
		return ticket, nil
	}
	return nil, errors.WithStack(ErrSequencingFailed)
}

// Status reports a ticket's 1-based rank among waiting tickets, the waiting
// list length and the linear wait estimate. A served ticket reports position
// 0 and a zero estimate. Returns repository.ErrNotFound for unknown numbers.
func (s *Service) Status(ctx context.Context, ticketNumber int64) (*TicketStatus, error) {
	ticket, err := s.store.FindByTicketNumber(ctx, ticketNumber)
	if err != nil {
		return nil, err
	}
	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list waiting tickets")
	}

	status := &TicketStatus{Ticket: *ticket, QueueLength: len(waiting)}
	for i, w := range waiting {
		if w.TicketNumber == ticket.TicketNumber {
			status.Position = i + 1
			status.EstimatedWaitMinutes = status.Position * s.avgServiceMinutes
			break
		}
	}
	return status, nil
}

// ListWaiting returns the waiting list in creation order; empty slice when
// nobody is waiting.
func (s *Service) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	waiting, err := s.store.ListWaiting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list waiting tickets")
	}
	if waiting == nil {
		waiting = []models.Ticket{}
	}
	return waiting, nil
}

// CallNext serves the oldest waiting ticket. An empty queue is a normal
// outcome, reported as (nil, nil) with no notification and no store change.
func (s *Service) CallNext(ctx context.Context) (*models.Ticket, error) {
	served, err := s.store.ServeOldestWaiting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "serve next ticket")
	}
	if served == nil {
		return nil, nil
	}
	s.publish(ctx)
	return served, nil
}

// Reset deletes every ticket. Observers are always notified, even when the
// store was already empty, so dashboards never need to special-case it.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return errors.Wrap(err, "delete all tickets")
	}
	s.publish(ctx)
	return nil
}

func (s *Service) publish(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, notify.EventQueueUpdated)
}

// EstimatedWaitText renders a wait estimate the way signage shows it.
func EstimatedWaitText(minutes int) string {
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
