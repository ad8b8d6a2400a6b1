package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance the queue's view of time past backoff delays.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(t *testing.T, maxAttempts int) (*Queue, *fakeClock) {
	t.Helper()
	q := New(&Config{MaxAttempts: maxAttempts})
	clock := newFakeClock()
	q.now = clock.Now
	return q, clock
}

func TestAddReturnsIDWithoutProcessing(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	var calls int32
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	id, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, q.Stats().QueueSize)
}

func TestProcessSuccessRemovesEntry(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return nil
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())

	stats := q.Stats()
	assert.Equal(t, 0, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)
}

func TestFailuresExhaustIntoDeadLetterStore(t *testing.T) {
	const maxAttempts = 3

	q, clock := newTestQueue(t, maxAttempts)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("downstream unavailable")
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	for i := 0; i < maxAttempts; i++ {
		q.Process(context.Background())
		clock.Advance(time.Minute) // past any backoff delay
	}

	stats := q.Stats()
	assert.Equal(t, 0, stats.QueueSize)
	assert.Equal(t, 1, stats.DLQSize)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, maxAttempts, dead[0].Attempts)
	assert.Contains(t, dead[0].FinalError, "downstream unavailable")
	assert.False(t, dead[0].MovedAt.IsZero())
}

func TestSingleAttemptEntryLandsInDLQ(t *testing.T) {
	q, clock := newTestQueue(t, 1)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("boom")
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())
	clock.Advance(time.Minute)
	q.Process(context.Background())

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, 1, dead[0].Attempts)
	assert.Equal(t, 0, q.Stats().QueueSize)
}

func TestBackoffDefersRetry(t *testing.T) {
	q, clock := newTestQueue(t, 3)

	var calls int32
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("transient")
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Backoff after one failure is 1s; an immediate rescan must not retry.
	q.Process(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	clock.Advance(2 * time.Second)
	q.Process(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFailureIsolationBetweenEntries(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		var p map[string]string
		require.NoError(t, json.Unmarshal(payload, &p))
		if p["outcome"] == "fail" {
			return errors.New("this one fails")
		}
		return nil
	})

	_, err := q.Add(map[string]string{"outcome": "fail"})
	require.NoError(t, err)
	_, err = q.Add(map[string]string{"outcome": "ok"})
	require.NoError(t, err)

	q.Process(context.Background())

	// The failing entry stays queued for retry, the good one is gone.
	stats := q.Stats()
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)
}

func TestRetryFromDLQ(t *testing.T) {
	q, clock := newTestQueue(t, 1)

	shouldFail := int32(1)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		if atomic.LoadInt32(&shouldFail) == 1 {
			return errors.New("still broken")
		}
		return nil
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())
	dead := q.DeadLetters()
	require.Len(t, dead, 1)

	assert.False(t, q.RetryFromDLQ("no-such-id"))

	require.True(t, q.RetryFromDLQ(dead[0].ID))
	assert.Empty(t, q.DeadLetters())
	assert.Equal(t, 1, q.Stats().QueueSize)

	// Operator fixed the cause; the retried entry now applies.
	atomic.StoreInt32(&shouldFail, 0)
	clock.Advance(time.Minute)
	q.Process(context.Background())

	stats := q.Stats()
	assert.Equal(t, 0, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)
}

func TestAttemptTimeoutForcesFailure(t *testing.T) {
	q := New(&Config{MaxAttempts: 1, AttemptTimeout: 20 * time.Millisecond})

	block := make(chan struct{})
	defer close(block)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		<-block // never settles on its own
		return nil
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].FinalError, "timed out")
}

func TestConcurrentProcessNeverDoubleProcesses(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	var calls int32
	release := make(chan struct{})
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	// Two concurrent scans race for the same entry; the second must see it
	// already in processing and leave it alone.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Process(context.Background())
		}()
	}

	// Give both scans time to select eligible entries while the attempt is
	// still blocked.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, q.Stats().QueueSize)
}

func TestStopDoesNotInterruptInFlightAttempt(t *testing.T) {
	q, _ := newTestQueue(t, 3)

	started := make(chan struct{})
	release := make(chan struct{})
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		close(started)
		<-release
		return nil
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Start(5 * time.Millisecond)
	<-started

	stopDone := make(chan struct{})
	go func() {
		q.Stop()
		close(stopDone)
	}()

	// Stop halts future scans but must not cancel the running attempt: the
	// entry is still held in processing, not failed or dropped.
	time.Sleep(20 * time.Millisecond)
	stats := q.Stats()
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)

	close(release)

	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the in-flight attempt settled")
	}

	// The attempt settled as a success, not a cancellation.
	stats = q.Stats()
	assert.Equal(t, 0, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)
	assert.False(t, stats.IsProcessing)
}

func TestStartIsIdempotent(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return nil
	})

	q.Start(10 * time.Millisecond)
	q.Start(10 * time.Millisecond) // second call must not spawn another loop
	assert.True(t, q.Stats().IsProcessing)

	q.Stop()
	q.Stop() // likewise safe
	assert.False(t, q.Stats().IsProcessing)
}

func TestSetMaxAttemptsAppliesToNewEntries(t *testing.T) {
	q, clock := newTestQueue(t, 5)
	q.SetMaxAttempts(1)

	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("nope")
	})

	_, err := q.Add(map[string]string{"test": "data"})
	require.NoError(t, err)

	q.Process(context.Background())
	clock.Advance(time.Minute)

	assert.Equal(t, 1, q.Stats().DLQSize)
}

func TestClear(t *testing.T) {
	q, _ := newTestQueue(t, 1)
	q.SetProcessor(func(ctx context.Context, payload json.RawMessage) error {
		return errors.New("fail")
	})

	_, err := q.Add(map[string]string{"a": "1"})
	require.NoError(t, err)
	q.Process(context.Background())

	_, err = q.Add(map[string]string{"b": "2"})
	require.NoError(t, err)

	q.Clear()

	stats := q.Stats()
	assert.Equal(t, 0, stats.QueueSize)
	assert.Equal(t, 0, stats.DLQSize)
}
