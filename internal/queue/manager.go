// -----------------------------------------------------------------------
// Queue Manager - bounded in-process queues with static routing
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
	"github.com/ternarybob/overseer/internal/metrics"
	"github.com/ternarybob/overseer/internal/models"
)

// Manager routes jobs onto one bounded channel per queue.
// Delivery is at-least-once: a message lost on shutdown leaves its job scheduled in the store
// and the job is dispatched again by startup recovery.
type Manager struct {
	router *Router
	queues map[models.QueueName]chan models.QueueMessage
	clock  common.Clock
	logger arbor.ILogger

	// delayed dispatches live until Close, independent of the caller's context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ interfaces.JobDispatcher = (*Manager)(nil)

// NewManager creates a queue manager with one buffer per config
func NewManager(router *Router, configs []Config, clk common.Clock, logger arbor.ILogger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	queues := make(map[models.QueueName]chan models.QueueMessage, len(configs))
	for _, cfg := range configs {
		buffer := cfg.Buffer
		if buffer < 1 {
			buffer = 1
		}
		queues[cfg.Name] = make(chan models.QueueMessage, buffer)
	}

	return &Manager{
		router: router,
		queues: queues,
		clock:  clk,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Route returns the queue for a job type
func (m *Manager) Route(jobType string) (models.QueueName, error) {
	return m.router.Route(jobType)
}

// Dispatch pushes the job onto its queue, blocking while the buffer is full
func (m *Manager) Dispatch(ctx context.Context, job *models.Job) error {
	queueName, err := m.router.Route(job.JobType)
	if err != nil {
		return err
	}
	ch, ok := m.queues[queueName]
	if !ok {
		return fmt.Errorf("queue %s is not configured: %w", queueName, interfaces.ErrUnroutable)
	}

	msg := models.QueueMessage{
		JobID:   job.ID,
		JobType: job.JobType,
		Queue:   queueName,
	}

	select {
	case ch <- msg:
	case <-ctx.Done():
		return fmt.Errorf("dispatch %s to %s: %w", job.ID, queueName, ctx.Err())
	}

	metrics.JobsDispatched.WithLabelValues(string(queueName)).Inc()
	metrics.QueueDepth.WithLabelValues(string(queueName)).Set(float64(len(ch)))

	m.logger.Debug().
		Str("job_id", job.ID).
		Str("job_type", job.JobType).
		Str("queue", string(queueName)).
		Msg("Job dispatched")

	return nil
}

// DispatchAfter dispatches the job once delay has elapsed on the manager clock.
// It returns immediately; the wait ends early only when the manager is closed.
func (m *Manager) DispatchAfter(ctx context.Context, job *models.Job, delay time.Duration) {
	m.wg.Add(1)
	common.SafeGo(m.logger, "dispatchAfter", func() {
		defer m.wg.Done()

		if err := common.Sleep(m.ctx, m.clock, delay); err != nil {
			m.logger.Debug().
				Str("job_id", job.ID).
				Msg("Delayed dispatch cancelled by shutdown, job stays scheduled")
			return
		}

		if err := m.Dispatch(m.ctx, job); err != nil {
			m.logger.Warn().
				Err(err).
				Str("job_id", job.ID).
				Str("job_type", job.JobType).
				Msg("Delayed dispatch failed")
		}
	})
}

// Receive blocks until a message is available on queue or ctx is cancelled
func (m *Manager) Receive(ctx context.Context, queueName models.QueueName) (models.QueueMessage, error) {
	ch, ok := m.queues[queueName]
	if !ok {
		return models.QueueMessage{}, fmt.Errorf("queue %s is not configured: %w", queueName, interfaces.ErrUnroutable)
	}

	select {
	case msg := <-ch:
		metrics.QueueDepth.WithLabelValues(string(queueName)).Set(float64(len(ch)))
		return msg, nil
	case <-ctx.Done():
		return models.QueueMessage{}, ctx.Err()
	}
}

// Depth returns the number of messages waiting in queue
func (m *Manager) Depth(queueName models.QueueName) int {
	ch, ok := m.queues[queueName]
	if !ok {
		return 0
	}
	return len(ch)
}

// Close cancels pending delayed dispatches and waits for them to exit
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
	m.logger.Debug().Msg("Queue manager closed")
}
