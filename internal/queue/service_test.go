package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/queueline/internal/models"
	"github.com/example/queueline/internal/queue"
	"github.com/example/queueline/internal/repository"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(ctx context.Context, event string) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func newService() (*queue.Service, *repository.MemoryStore, *recordingNotifier) {
	store := repository.NewMemoryStore()
	notifier := &recordingNotifier{}
	return queue.NewService(store, notifier, 0), store, notifier
}

func TestJoinAssignsSequentialNumbers(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		ticket, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
		require.NoError(t, err)
		assert.Equal(t, i, ticket.TicketNumber)
		assert.Equal(t, models.TicketStatusWaiting, ticket.Status)
	}
}

func TestJoinDefaultsName(t *testing.T) {
	svc, _, _ := newService()

	ticket, err := svc.Join(context.Background(), queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultName, ticket.Name)
	assert.NotEqual(t, "", ticket.ID.String())
}

func TestJoinRequiresServiceType(t *testing.T) {
	svc, _, notifier := newService()

	_, err := svc.Join(context.Background(), queue.JoinInput{Name: "Alice"})
	assert.ErrorIs(t, err, queue.ErrMissingServiceType)
	assert.Equal(t, 0, notifier.count())
}

func TestConcurrentJoinsProduceUniqueNumbers(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	const n = 100

	numbers := make(chan int64, n)
	wg := sync.WaitGroup{}
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ticket, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
			if err == nil {
				numbers <- ticket.TicketNumber
			}
		}()
	}
	wg.Wait()
	close(numbers)

	seen := map[int64]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "ticket number %d issued twice", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
	for i := int64(1); i <= n; i++ {
		assert.True(t, seen[i], "ticket number %d missing", i)
	}
}

func TestStatusMatchesWaitingOrder(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
		require.NoError(t, err)
	}

	waiting, err := svc.ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 5)

	for i, ticket := range waiting {
		status, err := svc.Status(ctx, ticket.TicketNumber)
		require.NoError(t, err)
		assert.Equal(t, i+1, status.Position)
		assert.Equal(t, 5, status.QueueLength)
		assert.Equal(t, (i+1)*queue.DefaultAverageServiceMinutes, status.EstimatedWaitMinutes)
	}
}

func TestStatusUnknownTicket(t *testing.T) {
	svc, _, _ := newService()

	_, err := svc.Status(context.Background(), 42)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStatusForServedTicket(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	ticket, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	_, err = svc.CallNext(ctx)
	require.NoError(t, err)

	status, err := svc.Status(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusServed, status.Ticket.Status)
	assert.Equal(t, 0, status.Position)
	assert.Equal(t, 0, status.EstimatedWaitMinutes)
	assert.Equal(t, 0, status.QueueLength)
}

func TestCallNextServesOldestWaiting(t *testing.T) {
	svc, _, notifier := newService()
	ctx := context.Background()

	first, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	before := notifier.count()

	served, err := svc.CallNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, first.TicketNumber, served.TicketNumber)
	assert.Equal(t, models.TicketStatusServed, served.Status)
	assert.Equal(t, before+1, notifier.count())

	waiting, err := svc.ListWaiting(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.NotEqual(t, first.TicketNumber, waiting[0].TicketNumber)
}

func TestCallNextEmptyQueue(t *testing.T) {
	svc, store, notifier := newService()
	ctx := context.Background()

	served, err := svc.CallNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, served)
	assert.Equal(t, 0, notifier.count())

	max, err := store.MaxTicketNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), max)
}

func TestResetAlwaysNotifiesAndRestartsNumbering(t *testing.T) {
	svc, _, notifier := newService()
	ctx := context.Background()

	// Reset of an already empty store still notifies.
	require.NoError(t, svc.Reset(ctx))
	assert.Equal(t, 1, notifier.count())

	_, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	_, err = svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)

	require.NoError(t, svc.Reset(ctx))

	ticket, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ticket.TicketNumber)

	waiting, err := svc.ListWaiting(ctx)
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
}

func TestBankCounterScenario(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	first, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TicketNumber)

	status, err := svc.Status(ctx, first.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Position)
	assert.Equal(t, 1, status.QueueLength)

	second, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.TicketNumber)

	status, err = svc.Status(ctx, second.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Position)

	served, err := svc.CallNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, served)
	assert.Equal(t, first.TicketNumber, served.TicketNumber)

	status, err = svc.Status(ctx, second.TicketNumber)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Position)
	assert.Equal(t, 1, status.QueueLength)
	assert.Equal(t, "2 minutes", queue.EstimatedWaitText(status.EstimatedWaitMinutes))
}

// staleAllocStore hands out an already-used number once, simulating a
// counter record that fell behind the issued tickets.
type staleAllocStore struct {
	repository.TicketStore
	mu    sync.Mutex
	stale bool
}

func (s *staleAllocStore) AllocateTicketNumber(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		s.stale = false
		return 1, nil
	}
	return s.TicketStore.AllocateTicketNumber(ctx)
}

func TestJoinRetriesOnDuplicateNumber(t *testing.T) {
	store := &staleAllocStore{TicketStore: repository.NewMemoryStore()}
	svc := queue.NewService(store, nil, 0)
	ctx := context.Background()

	first, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.TicketNumber)

	store.mu.Lock()
	store.stale = true
	store.mu.Unlock()

	second, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.TicketNumber)
}

// exhaustedAllocStore always returns the same used number, so every retry
// collides.
type exhaustedAllocStore struct {
	repository.TicketStore
}

func (s *exhaustedAllocStore) AllocateTicketNumber(ctx context.Context) (int64, error) {
	return 1, nil
}

func TestJoinSurfacesSequencingFailure(t *testing.T) {
	store := &exhaustedAllocStore{TicketStore: repository.NewMemoryStore()}
	svc := queue.NewService(store, nil, 0)
	ctx := context.Background()

	_, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	require.NoError(t, err)

	_, err = svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	assert.ErrorIs(t, err, queue.ErrSequencingFailed)
}

func TestOperationsAgainstUnavailableStore(t *testing.T) {
	svc := queue.NewService(repository.UnavailableStore{}, nil, 0)
	ctx := context.Background()

	_, err := svc.Join(ctx, queue.JoinInput{ServiceType: "Bank"})
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	_, err = svc.Status(ctx, 1)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	_, err = svc.CallNext(ctx)
	assert.ErrorIs(t, err, repository.ErrStoreUnavailable)
	assert.ErrorIs(t, svc.Reset(ctx), repository.ErrStoreUnavailable)
}
