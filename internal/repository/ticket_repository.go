package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/queueline/internal/models"
)

// Store-level sentinel errors. Callers compare with errors.Is; the stack
// attached by pkg/errors is for server-side logs only.
var (
	// ErrNotFound is returned when no ticket carries the requested number.
	ErrNotFound = errors.New("ticket not found")
	// ErrDuplicateTicketNumber is returned by Insert when the ticket number
	// is already taken. The unique index on ticket_number is the
	// enforcement point for sequence uniqueness.
	ErrDuplicateTicketNumber = errors.New("duplicate ticket number")
)

// TicketStore is the persistence contract the queue core depends on. All
// operations are atomic at the single-record or single-query level; nothing
// here assumes multi-record transactions.
type TicketStore interface {
	// Insert persists a new ticket, failing with ErrDuplicateTicketNumber
	// when the number is already taken.
	Insert(ctx context.Context, ticket *models.Ticket) error
	// FindByTicketNumber returns the ticket or ErrNotFound.
	FindByTicketNumber(ctx context.Context, number int64) (*models.Ticket, error)
	// AllocateTicketNumber atomically increments and returns the ticket
	// number counter. The increment happens store-side so two concurrent
	// callers never receive the same value.
	AllocateTicketNumber(ctx context.Context) (int64, error)
	// MaxTicketNumber returns the highest issued number, 0 when empty.
	MaxTicketNumber(ctx context.Context) (int64, error)
	// ListWaiting returns waiting tickets ordered by creation time ascending.
	ListWaiting(ctx context.Context) ([]models.Ticket, error)
	// UpdateStatus flips a ticket from one status to another. The condition
	// on the current status makes the flip a compare-and-set; it reports
	// false when the ticket was not in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TicketStatus) (bool, error)
	// ServeOldestWaiting atomically claims the waiting ticket with the
	// smallest creation time and marks it served. Returns (nil, nil) when
	// no ticket is waiting.
	ServeOldestWaiting(ctx context.Context) (*models.Ticket, error)
	// DeleteAll removes every ticket regardless of status and restarts
	// the number sequence.
	DeleteAll(ctx context.Context) error
}

// Counter is the store-managed sequence record behind ticket numbers.
type Counter struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

// TableName keeps the counter table clearly scoped to tickets.
func (Counter) TableName() string { return "ticket_counters" }

// counterName is the single row key used for the ticket number sequence.
const counterName = "ticket_number"

// TicketRepository implements TicketStore on a gorm Postgres connection.
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository constructs a repository using the provided gorm DB.
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Insert(ctx context.Context, ticket *models.Ticket) error {
	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.WithStack(ErrDuplicateTicketNumber)
		}
		return errors.WithStack(err)
	}
	return nil
}

func (r *TicketRepository) FindByTicketNumber(ctx context.Context, number int64) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).First(&ticket, "ticket_number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.WithStack(ErrNotFound)
		}
		return nil, errors.WithStack(err)
	}
	return &ticket, nil
}

// AllocateTicketNumber relies on a single-statement upsert so the increment
// is atomic inside Postgres; no multi-record transaction is needed.
func (r *TicketRepository) AllocateTicketNumber(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO ticket_counters (name, value) VALUES (?, 1)
		 ON CONFLICT (name) DO UPDATE SET value = ticket_counters.value + 1
		 RETURNING value`,
		counterName,
	).Scan(&value).Error
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return value, nil
}

func (r *TicketRepository) MaxTicketNumber(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Select("COALESCE(MAX(ticket_number), 0)").
		Scan(&max).Error
	return max, errors.WithStack(err)
}

func (r *TicketRepository) ListWaiting(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TicketStatusWaiting).
		Order("created_at asc").
		Find(&tickets).Error
	return tickets, errors.WithStack(err)
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.TicketStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, errors.WithStack(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ServeOldestWaiting selects the head of the waiting list and flips it with a
// conditional update. When a concurrent admin wins the flip the select is
// retried against the new head, so two callers never serve the same ticket.
func (r *TicketRepository) ServeOldestWaiting(ctx context.Context) (*models.Ticket, error) {
	for {
		var ticket models.Ticket
		err := r.db.WithContext(ctx).
			Where("status = ?", models.TicketStatusWaiting).
			Order("created_at asc").
			First(&ticket).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}

		claimed, err := r.UpdateStatus(ctx, ticket.ID, models.TicketStatusWaiting, models.TicketStatusServed)
		if err != nil {
			return nil, err
		}
		if claimed {
			ticket.Status = models.TicketStatusServed
			return &ticket, nil
		}
	}
}

// DeleteAll clears tickets and the counter together so numbering restarts
// at 1 after a reset.
func (r *TicketRepository) DeleteAll(ctx context.Context) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.Ticket{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Counter{Name: counterName}).Error
	})
	return errors.WithStack(err)
}
