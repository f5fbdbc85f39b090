// Package taskqueue provides lane-based asynchronous task execution with
// per-lane concurrency control. Dispatch never blocks the caller; the
// webhook path uses it to acknowledge deliveries before processing them.
package taskqueue

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// Task is an asynchronous unit of work. Failures are the task's own
// business; nothing joins the result.
type Task func(ctx context.Context)

// taskRecord tracks a dispatched task
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
}

// laneState manages execution state for a single lane
type laneState struct {
	concurrency int
	queue       []*taskRecord
	running     int
	mu          sync.Mutex
}

// Queue provides lane-based task execution with concurrency control
type Queue struct {
	lanes              map[string]*laneState
	defaultConcurrency int
	mu                 sync.RWMutex
	wg                 sync.WaitGroup
	ctx                context.Context
	cancel             context.CancelFunc
	logger             zerolog.Logger
}

// New creates a queue. Lanes are created on first use with the default
// concurrency; InitLane overrides it per lane.
func New(defaultConcurrency int, logger zerolog.Logger) *Queue {
	if defaultConcurrency <= 0 {
		defaultConcurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		lanes:              make(map[string]*laneState),
		defaultConcurrency: defaultConcurrency,
		ctx:                ctx,
		cancel:             cancel,
		logger:             logger.With().Str("component", "taskqueue").Logger(),
	}
}

// InitLane creates a lane with the specified concurrency
func (q *Queue) InitLane(lane string, concurrency int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.lanes[lane]; !exists {
		q.lanes[lane] = &laneState{
			concurrency: concurrency,
			queue:       make([]*taskRecord, 0),
		}
		q.logger.Debug().Str("lane", lane).Int("concurrency", concurrency).Msg("Lane initialized")
	}
}

// Dispatch enqueues a task and returns immediately. The context is
// carried to the task; the task additionally observes queue shutdown.
func (q *Queue) Dispatch(ctx context.Context, lane string, task Task) {
	if ctx == nil {
		ctx = context.Background()
	}

	q.ensureLane(lane)

	id, err := gonanoid.New()
	if err != nil {
		// Entropy exhaustion does not happen in practice; the id is
		// only for log correlation.
		id = "task"
	}

	record := &taskRecord{
		id:         id,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
	}

	q.mu.RLock()
	ls := q.lanes[lane]
	q.mu.RUnlock()

	// Counted here, not at start time, so a task still queued when the
	// drain begins is waited for rather than dropped.
	q.wg.Add(1)

	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	q.logger.Debug().
		Str("lane", lane).
		Str("taskId", id).
		Int("queueSize", queueSize).
		Msg("Task dispatched")

	go q.processLane(lane)
}

// ensureLane creates a lane if it doesn't exist
func (q *Queue) ensureLane(lane string) {
	q.mu.RLock()
	_, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		q.InitLane(lane, q.defaultConcurrency)
	}
}

// processLane starts queued tasks for a lane up to its concurrency
func (q *Queue) processLane(lane string) {
	q.mu.RLock()
	ls := q.lanes[lane]
	q.mu.RUnlock()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]

		ls.running++

		go q.executeTask(lane, ls, record)
	}
}

// executeTask runs a single task and kicks the lane when done
func (q *Queue) executeTask(lane string, ls *laneState, record *taskRecord) {
	defer q.wg.Done()

	runCtx, cancel := context.WithCancel(record.ctx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	waited := startTime.Sub(record.enqueuedAt)

	record.task(runCtx)

	q.logger.Debug().
		Str("lane", lane).
		Str("taskId", record.id).
		Dur("waited", waited).
		Dur("duration", time.Since(startTime)).
		Msg("Task completed")

	ls.mu.Lock()
	ls.running--
	ls.mu.Unlock()

	go q.processLane(lane)
}

// QueueSize returns the number of queued tasks in a lane
func (q *Queue) QueueSize(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue)
}

// RunningCount returns the number of running tasks in a lane
func (q *Queue) RunningCount(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.running
}

// WaitForActive waits for all dispatched tasks to finish, up to timeout.
// Returns false when the timeout was reached first.
func (q *Queue) WaitForActive(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close cancels the run context of all tasks and waits briefly for them
// to finish.
func (q *Queue) Close() error {
	q.cancel()
	q.WaitForActive(5 * time.Second)
	return nil
}
