// Package queue owns the lifecycle of accepted-but-not-yet-applied webhook
// items: pending -> processing -> removed on success, re-queued with backoff
// on failure, dead-lettered once attempts are exhausted. State is held in
// memory and guarded by a single mutex; senders are expected to re-deliver
// after a process restart.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a live queue entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
)

// Processor is the user-supplied handler invoked once per attempt. The queue
// is payload-agnostic: it only cares whether the handler returned an error.
type Processor func(ctx context.Context, payload json.RawMessage) error

// Entry is a live queue item.
type Entry struct {
	ID            string          `json:"id"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	MaxAttempts   int             `json:"max_attempts"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`

	nextAttemptAt time.Time
}

// DeadLetter is a terminal failure record, kept until an operator retries or
// acknowledges it.
type DeadLetter struct {
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
	FinalError string          `json:"final_error"`
	Attempts   int             `json:"attempts"`
	MovedAt    time.Time       `json:"moved_at"`
}

// Stats is the queue's observability surface.
type Stats struct {
	QueueSize    int  `json:"queue_size"`
	DLQSize      int  `json:"dlq_size"`
	IsProcessing bool `json:"is_processing"`
}

// Config holds queue construction options.
type Config struct {
	Logger         *slog.Logger
	MaxAttempts    int
	AttemptTimeout time.Duration
	Backoff        []time.Duration
}

// Queue is an in-memory retry queue with a dead-letter store. All state
// mutations go through its methods under one mutex, so concurrent Process
// calls never double-process an entry.
type Queue struct {
	logger         *slog.Logger
	attemptTimeout time.Duration
	backoff        []time.Duration

	mu          sync.Mutex
	entries     map[string]*Entry
	dead        []*DeadLetter
	processor   Processor
	maxAttempts int
	running     bool
	stopChan    chan struct{}
	loopDone    chan struct{}

	// now is overridable so tests can drive the backoff clock.
	now func() time.Time
}

// New creates a queue. One instance per process, constructed at startup.
func New(cfg *Config) *Queue {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	backoff := cfg.Backoff
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		logger:         logger,
		attemptTimeout: cfg.AttemptTimeout,
		backoff:        backoff,
		entries:        make(map[string]*Entry),
		maxAttempts:    maxAttempts,
		now:            time.Now,
	}
}

// SetProcessor registers the handler invoked for every attempt. Must be set
// before the first Process call.
func (q *Queue) SetProcessor(fn Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = fn
}

// Add creates a pending entry for the payload and returns its id. The
// processor is not invoked here; failures surface later through Stats and
// DeadLetters, never to the caller of Add.
func (q *Queue) Add(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal queue payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	entry := &Entry{
		ID:            uuid.New().String(),
		Payload:       raw,
		MaxAttempts:   q.maxAttempts,
		Status:        StatusPending,
		CreatedAt:     now,
		nextAttemptAt: now,
	}
	q.entries[entry.ID] = entry

	q.logger.Debug("Entry enqueued",
		slog.String("entry_id", entry.ID),
		slog.Int("max_attempts", entry.MaxAttempts),
	)

	return entry.ID, nil
}

// Process scans all pending entries whose retry time has elapsed and invokes
// the processor for each concurrently. Outcomes are isolated per entry: one
// slow or failing item never blocks or aborts its siblings.
func (q *Queue) Process(ctx context.Context) {
	q.mu.Lock()
	if q.processor == nil {
		q.mu.Unlock()
		q.logger.Warn("Process called with no processor registered")
		return
	}

	now := q.now()
	var eligible []*Entry
	for _, entry := range q.entries {
		if entry.Status == StatusPending && !entry.nextAttemptAt.After(now) {
			entry.Status = StatusProcessing
			eligible = append(eligible, entry)
		}
	}
	processor := q.processor
	q.mu.Unlock()

	if len(eligible) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, entry := range eligible {
		wg.Add(1)
		go func(entry *Entry) {
			defer wg.Done()
			q.settle(entry, q.attempt(ctx, processor, entry.Payload))
		}(entry)
	}
	wg.Wait()
}

// attempt runs the processor once, bounding it by the per-attempt timeout so
// a handler that never settles cannot hold its entry in processing forever.
func (q *Queue) attempt(ctx context.Context, processor Processor, payload json.RawMessage) error {
	if q.attemptTimeout <= 0 {
		return processor(ctx, payload)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, q.attemptTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- processor(attemptCtx, payload)
	}()

	select {
	case err := <-errChan:
		return err
	case <-attemptCtx.Done():
		return fmt.Errorf("attempt timed out after %s: %w", q.attemptTimeout, attemptCtx.Err())
	}
}

// settle records one attempt's outcome: success removes the entry, failure
// re-queues it with backoff or moves it to the dead-letter store once
// attempts reach the limit.
func (q *Queue) settle(entry *Entry, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	if err == nil {
		delete(q.entries, entry.ID)
		q.logger.Info("Entry applied",
			slog.String("entry_id", entry.ID),
			slog.Int("attempts", entry.Attempts+1),
		)
		return
	}

	entry.Attempts++
	entry.LastAttemptAt = now
	entry.LastError = err.Error()

	if entry.Attempts >= entry.MaxAttempts {
		delete(q.entries, entry.ID)
		q.dead = append(q.dead, &DeadLetter{
			ID:         entry.ID,
			Payload:    entry.Payload,
			FinalError: err.Error(),
			Attempts:   entry.Attempts,
			MovedAt:    now,
		})
		q.logger.Error("Entry moved to dead-letter store",
			slog.String("entry_id", entry.ID),
			slog.Int("attempts", entry.Attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	delay := backoffDelay(q.backoff, entry.Attempts)
	entry.Status = StatusPending
	entry.nextAttemptAt = now.Add(delay)

	q.logger.Warn("Entry attempt failed, re-queued",
		slog.String("entry_id", entry.ID),
		slog.Int("attempts", entry.Attempts),
		slog.Int("max_attempts", entry.MaxAttempts),
		slog.Duration("retry_in", delay),
		slog.String("error", err.Error()),
	)
}

// DeadLetters returns a snapshot of the dead-letter store, oldest first.
func (q *Queue) DeadLetters() []*DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*DeadLetter, len(q.dead))
	for i, dl := range q.dead {
		copied := *dl
		out[i] = &copied
	}
	return out
}

// RetryFromDLQ removes a dead-letter entry and re-enqueues it as a fresh
// pending entry with attempts reset to zero. The payload is not re-validated;
// the operator is expected to have fixed the underlying cause. Returns false
// when the id is unknown.
func (q *Queue) RetryFromDLQ(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, dl := range q.dead {
		if dl.ID != id {
			continue
		}

		q.dead = append(q.dead[:i], q.dead[i+1:]...)
		now := q.now()
		q.entries[dl.ID] = &Entry{
			ID:            dl.ID,
			Payload:       dl.Payload,
			MaxAttempts:   q.maxAttempts,
			Status:        StatusPending,
			CreatedAt:     now,
			nextAttemptAt: now,
		}

		q.logger.Info("Dead-letter entry re-enqueued",
			slog.String("entry_id", dl.ID),
		)
		return true
	}
	return false
}

// Start begins a recurring scan of the queue on the given interval.
// Idempotent: calling Start on a running queue is a no-op.
func (q *Queue) Start(interval time.Duration) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopChan = make(chan struct{})
	q.loopDone = make(chan struct{})
	stopChan := q.stopChan
	loopDone := q.loopDone
	q.mu.Unlock()

	q.logger.Info("Queue processing started",
		slog.Duration("interval", interval),
	)

	go func() {
		defer close(loopDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stopChan:
				return
			case <-ticker.C:
				q.Process(context.Background())
			}
		}
	}()
}

// Stop halts future scheduled scans. An attempt already in flight is not
// interrupted; the per-attempt timeout bounds how long it can run.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopChan)
	loopDone := q.loopDone
	q.mu.Unlock()

	<-loopDone
	q.logger.Info("Queue processing stopped")
}

// Stats reports queue and dead-letter sizes and whether the periodic scanner
// is running.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		QueueSize:    len(q.entries),
		DLQSize:      len(q.dead),
		IsProcessing: q.running,
	}
}

// SetMaxAttempts changes the attempt limit applied to entries enqueued from
// now on.
func (q *Queue) SetMaxAttempts(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maxAttempts = n
}

// Clear drops all live and dead-lettered entries. Test hook.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[string]*Entry)
	q.dead = nil
}
