// internal/pipeline/queue.go
package pipeline

import (
	"context"
	"sync"
)

// DefaultQueueSize bounds the WorkQueue when no capacity is given.
const DefaultQueueSize = 1000

// Job is one raw data line and its 0-based position among data lines, or
// the end-of-work marker.
type Job struct {
	Ordinal uint64
	Line    string
	end     bool
}

// EndOfWork returns the marker that tells one worker to stop.
func EndOfWork() Job { return Job{end: true} }

func (j Job) IsEnd() bool { return j.end }

// WorkQueue is a bounded FIFO of jobs. Push blocks while it is full.
type WorkQueue struct {
	ch chan Job
}

func NewWorkQueue(capacity int) *WorkQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &WorkQueue{ch: make(chan Job, capacity)}
}

// Push enqueues job, blocking while the queue is full. It never drops a job;
// it fails only when ctx is done first.
func (q *WorkQueue) Push(ctx context.Context, job Job) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// Pop blocks until a job is available.
func (q *WorkQueue) Pop() Job { return <-q.ch }

// PushEnd enqueues n end-of-work markers. It takes no context: live workers
// always drain the queue, so it cannot block forever.
func (q *WorkQueue) PushEnd(n int) {
	for i := 0; i < n; i++ {
		q.ch <- EndOfWork()
	}
}

func (q *WorkQueue) Len() int { return len(q.ch) }
func (q *WorkQueue) Cap() int { return cap(q.ch) }

// ResultQueue is the unbounded queue between the workers and the collector.
// Push never blocks, so a slow spill file cannot stall annotation.
type ResultQueue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []Result
	head  int
}

func NewResultQueue() *ResultQueue {
	q := &ResultQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *ResultQueue) Push(r Result) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.ready.Signal()
}

// Pop blocks until a result is available.
func (q *ResultQueue) Pop() Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		q.ready.Wait()
	}
	r := q.items[q.head]
	q.items[q.head] = Result{}
	q.head++
	// reclaim the popped prefix once it is the larger half
	if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return r
}

func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
