package scheduler

import (
	"container/heap"
	"slices"
	"time"
)

// Task is one unit of orchestration work for a job. Tasks live only in
// memory.
type Task struct {
	ID    string
	JobID string
	// PostingIDs scopes a retry task; empty means every pending posting.
	PostingIDs  []string
	Attempt     int
	MaxAttempts int
	CreatedAt   time.Time
	RunAt       time.Time
	Reason      string

	seq  uint64
	done chan struct{}
	err  error
}

func (t *Task) scoped() bool { return len(t.PostingIDs) > 0 }

// TaskHandle lets a caller wait for a task to finish.
type TaskHandle struct {
	ID    string
	JobID string
	RunAt time.Time
	task  *Task
}

// Done is closed when the task completes or is given up.
func (h TaskHandle) Done() <-chan struct{} { return h.task.done }

// Err reports why the task was given up. Only valid after Done.
func (h TaskHandle) Err() error { return h.task.err }

func (t *Task) handle() TaskHandle {
	return TaskHandle{ID: t.ID, JobID: t.JobID, RunAt: t.RunAt, task: t}
}

// TaskInfo is the read-only view exposed to the status API.
type TaskInfo struct {
	ID         string    `json:"id"`
	JobID      string    `json:"jobId"`
	PostingIDs []string  `json:"postingIds,omitempty"`
	Attempt    int       `json:"attempt"`
	RunAt      time.Time `json:"runAt"`
	Reason     string    `json:"reason"`
}

func (t *Task) info() TaskInfo {
	return TaskInfo{ID: t.ID, JobID: t.JobID, PostingIDs: t.PostingIDs, Attempt: t.Attempt, RunAt: t.RunAt, Reason: t.Reason}
}

// taskHeap orders by RunAt, then arrival.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if !h[i].RunAt.Equal(h[j].RunAt) {
		return h[i].RunAt.Before(h[j].RunAt)
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// delayQueue is a min-heap of tasks keyed on RunAt. Not safe for concurrent use.
type delayQueue struct {
	h   taskHeap
	seq uint64
}

func (q *delayQueue) push(t *Task) {
	q.seq++
	t.seq = q.seq
	heap.Push(&q.h, t)
}

func (q *delayQueue) peek() *Task {
	if len(q.h) == 0 {
		return nil
	}
	return q.h[0]
}

func (q *delayQueue) pop() *Task {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Task)
}

func (q *delayQueue) len() int { return len(q.h) }

// each visits tasks in heap order, not run order.
func (q *delayQueue) each(fn func(*Task)) {
	for _, t := range q.h {
		fn(t)
	}
}

func sortInfos(in []TaskInfo) {
	slices.SortStableFunc(in, func(a, b TaskInfo) int { return a.RunAt.Compare(b.RunAt) })
}
