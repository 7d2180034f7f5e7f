package worker

import (
	"context"
	"log"
	"time"

	"github.com/example/queueline/internal/queue"
)

// Monitor periodically logs queue depth and the age of the oldest waiting
// ticket, so operators can spot a stalling queue without a metrics stack.
type Monitor struct {
	queue    *queue.Service
	interval time.Duration
}

// NewMonitor creates the monitor.
func NewMonitor(svc *queue.Service, interval time.Duration) *Monitor {
	return &Monitor{queue: svc, interval: interval}
}

// Run starts the polling loop and should be launched in its own goroutine.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("queue monitor shutting down")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	waiting, err := m.queue.ListWaiting(ctx)
	if err != nil {
		log.Printf("queue monitor: %v", err)
		return
	}
	if len(waiting) == 0 {
		log.Println("queue monitor: queue empty")
		return
	}
	oldest := time.Since(waiting[0].CreatedAt).Round(time.Second)
	log.Printf("queue monitor: %d waiting, oldest ticket #%d waiting for %s",
		len(waiting), waiting[0].TicketNumber, oldest)
}
