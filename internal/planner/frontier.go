package planner

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

// Frontier is a thread-safe priority queue of crawl tasks. Level-1 tasks
// drain before level-2 tasks, ordered by rank within a level; ties fall
// back to insertion order so the queue is fully deterministic.
type Frontier struct {
	mu     sync.Mutex
	pq     priorityQueue
	seq    uint64
	closed bool
}

// NewFrontier creates a new Frontier.
func NewFrontier() *Frontier {
	f := &Frontier{
		pq: make(priorityQueue, 0, 256),
	}
	heap.Init(&f.pq)
	return f
}

// Push adds a task to the frontier. It reports false when the frontier
// is already closed and the task was not enqueued; the caller still owns
// the task's accounting in that case.
func (f *Frontier) Push(task *types.CrawlTask) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return false
	}

	f.seq++
	heap.Push(&f.pq, &pqItem{task: task, seq: f.seq})
	return true
}

// Pop removes and returns the best task. Blocks until a task is available
// or the frontier is closed. Returns nil if closed and empty, or when the
// context is done.
func (f *Frontier) Pop(ctx context.Context) *types.CrawlTask {
	for {
		f.mu.Lock()
		if f.pq.Len() > 0 {
			item := heap.Pop(&f.pq).(*pqItem)
			f.mu.Unlock()
			return item.task
		}
		if f.closed {
			f.mu.Unlock()
			return nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TryPop attempts a non-blocking dequeue. Returns nil if empty.
func (f *Frontier) TryPop() *types.CrawlTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pq.Len() == 0 {
		return nil
	}

	item := heap.Pop(&f.pq).(*pqItem)
	return item.task
}

// Len returns the number of tasks in the frontier.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

// IsEmpty returns true if the frontier is empty.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Close closes the frontier, unblocking any waiting Pop calls.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// IsClosed returns true if the frontier has been closed.
func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Drain returns all remaining tasks in queue order, removing them. Used
// at the deadline to account for work that never ran.
func (f *Frontier) Drain() []*types.CrawlTask {
	f.mu.Lock()
	defer f.mu.Unlock()

	tasks := make([]*types.CrawlTask, 0, f.pq.Len())
	for f.pq.Len() > 0 {
		item := heap.Pop(&f.pq).(*pqItem)
		tasks = append(tasks, item.task)
	}
	return tasks
}

// --- Priority Queue Implementation ---

type pqItem struct {
	task  *types.CrawlTask
	seq   uint64
	index int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.task.Level != b.task.Level {
		return a.task.Level < b.task.Level
	}
	if a.task.Rank != b.task.Rank {
		return a.task.Rank < b.task.Rank
	}
	return a.seq < b.seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // GC
	item.index = -1
	*pq = old[:n-1]
	return item
}
