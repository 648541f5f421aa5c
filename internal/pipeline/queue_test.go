package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// A full queue must keep accepting parks: the worker's Park and a
// blocked Enqueue contend for the same internal state, and the pool
// wedges permanently if backpressure holds the mutex.
func TestEnqueueUnderSaturationDoesNotBlockParking(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	runs := map[uuid.UUID]int{}

	var q *workQueue
	q = newWorkQueue(func(_ context.Context, id uuid.UUID) {
		mu.Lock()
		runs[id]++
		n := runs[id]
		mu.Unlock()
		if id == first && n == 1 {
			close(entered)
			<-release
			q.Park(id, time.Millisecond)
		}
	}, discardLogger(), 1, 1, time.Minute)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	})

	q.Enqueue(first)
	<-entered         // the only worker is busy with first
	q.Enqueue(second) // fills the buffer

	enqueued := make(chan struct{})
	go func() {
		q.Enqueue(third) // queue full: blocks until a worker drains
		close(enqueued)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release) // worker now parks first and returns to the channel

	select {
	case <-enqueued:
	case <-time.After(3 * time.Second):
		t.Fatal("enqueue wedged while the worker parked a job")
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		drained := runs[second] >= 1 && runs[third] >= 1 && runs[first] >= 2
		snapshot := map[uuid.UUID]int{first: runs[first], second: runs[second], third: runs[third]}
		mu.Unlock()
		if drained {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("queue not drained after saturation: %v", snapshot)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEnqueueAfterShutdownIsIgnored(t *testing.T) {
	q := newWorkQueue(func(context.Context, uuid.UUID) {}, discardLogger(), 1, 1, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	// must not panic or block
	q.Enqueue(uuid.New())
	q.Park(uuid.New(), time.Millisecond)
}
