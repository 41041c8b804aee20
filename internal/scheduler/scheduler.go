// Package scheduler owns the task queue: it runs one job's orchestration at a
// time, bounds browser concurrency per batch and decides retry versus terminal.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
)

var (
	ErrQueueClosed  = errors.New("task queue closed")
	ErrNotRetryable = errors.New("posting is not in failed state")
)

// Executor runs one posting attempt.
type Executor interface {
	Execute(ctx context.Context, job domain.Job, p domain.Posting) domain.Outcome
}

// Starter brings up the browser before a task's first batch.
type Starter interface {
	Start(ctx context.Context) error
}

// Screenshots persists an attempt's screenshot and returns its path.
type Screenshots interface {
	Save(postingID string, attempt int, png []byte) (string, error)
}

type Options struct {
	MaxConcurrentPosts int
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	TaskMaxAttempts    int
}

func (o *Options) defaults() {
	if o.MaxConcurrentPosts <= 0 {
		o.MaxConcurrentPosts = 3
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
	if o.TaskMaxAttempts <= 0 {
		o.TaskMaxAttempts = 5
	}
}

type Deps struct {
	Repo     domain.Repository
	Recovery domain.RecoveryStore
	Executor Executor
	Driver   Starter
	Notifier events.Notifier
	Shots    Screenshots
	Clock    Clock
	Log      hclog.Logger
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Queued         int    `json:"queued"`
	Running        string `json:"running,omitempty"`
	InFlight       int    `json:"inFlight"`
	MaxInFlight    int    `json:"maxInFlight"`
	TasksRun       int    `json:"tasksRun"`
	TasksAborted   int    `json:"tasksAborted"`
	TasksGivenUp   int    `json:"tasksGivenUp"`
	Attempts       int    `json:"attempts"`
	Succeeded      int    `json:"succeeded"`
	Failed         int    `json:"failed"`
	RetriesQueued  int    `json:"retriesQueued"`
	JobsCompleted  int    `json:"jobsCompleted"`
	OperatorResets int    `json:"operatorResets"`
}

type Scheduler struct {
	repo     domain.Repository
	recovery domain.RecoveryStore
	exec     Executor
	driver   Starter
	notify   events.Notifier
	shots    Screenshots
	clock    Clock
	log      hclog.Logger
	opts     Options

	mu       sync.Mutex
	queue    delayQueue
	running  *Task
	closed   bool
	reserved map[string]string // posting id -> scoped task id
	inFlight map[string]bool   // posting ids inside Execute
	jobCost  map[string]float64
	stats    Stats

	recoverMu sync.Mutex
	wake      chan struct{}
}

func New(deps Deps, opts Options) *Scheduler {
	opts.defaults()
	if deps.Clock == nil {
		deps.Clock = RealClock
	}
	if deps.Notifier == nil {
		deps.Notifier = events.Discard{}
	}
	if deps.Log == nil {
		deps.Log = hclog.NewNullLogger()
	}
	return &Scheduler{
		repo:     deps.Repo,
		recovery: deps.Recovery,
		exec:     deps.Executor,
		driver:   deps.Driver,
		notify:   deps.Notifier,
		shots:    deps.Shots,
		clock:    deps.Clock,
		log:      deps.Log.Named("scheduler"),
		opts:     opts,
		reserved: map[string]string{},
		inFlight: map[string]bool{},
		jobCost:  map[string]float64{},
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue queues an orchestration task for every pending posting of jobID.
// A due task for the same job that has not started yet is reused.
func (s *Scheduler) Enqueue(jobID string) (TaskHandle, error) {
	return s.enqueue(jobID, nil, 0, "enqueue")
}

func (s *Scheduler) enqueue(jobID string, postingIDs []string, delay time.Duration, reason string) (TaskHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return TaskHandle{}, ErrQueueClosed
	}
	now := s.clock.Now()

	if len(postingIDs) == 0 && delay <= 0 {
		var existing *Task
		s.queue.each(func(t *Task) {
			if existing == nil && t.JobID == jobID && !t.scoped() && !t.RunAt.After(now) {
				existing = t
			}
		})
		if existing != nil {
			return existing.handle(), nil
		}
	}

	t := &Task{
		ID:          uuid.NewString(),
		JobID:       jobID,
		PostingIDs:  postingIDs,
		Attempt:     1,
		MaxAttempts: s.opts.TaskMaxAttempts,
		CreatedAt:   now,
		RunAt:       now.Add(delay),
		Reason:      reason,
		done:        make(chan struct{}),
	}
	for _, id := range postingIDs {
		s.reserved[id] = t.ID
	}
	s.queue.push(t)
	s.signal()
	return t.handle(), nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// HasTask reports whether jobID has a queued or running task.
func (s *Scheduler) HasTask(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != nil && s.running.JobID == jobID {
		return true
	}
	found := false
	s.queue.each(func(t *Task) {
		if t.JobID == jobID {
			found = true
		}
	})
	return found
}

// Queued lists waiting tasks ordered by RunAt.
func (s *Scheduler) Queued() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, s.queue.len())
	s.queue.each(func(t *Task) { out = append(out, t.info()) })
	sortInfos(out)
	return out
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Queued = s.queue.len()
	st.InFlight = len(s.inFlight)
	if s.running != nil {
		st.Running = s.running.JobID
	}
	return st
}

// Close stops accepting tasks. Queued tasks are dropped with the process.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

// RetryPosting is the operator reset: a failed posting goes back to pending
// with its retry count bumped, and its job is queued right away.
func (s *Scheduler) RetryPosting(ctx context.Context, postingID string) (TaskHandle, error) {
	p, err := s.repo.LoadPosting(ctx, postingID)
	if err != nil {
		return TaskHandle{}, err
	}
	if p.Status != domain.PostingFailed {
		return TaskHandle{}, fmt.Errorf("posting %s is %s: %w", postingID, p.Status, ErrNotRetryable)
	}
	err = s.repo.UpdatePosting(ctx, postingID, domain.PostingUpdate{
		From:           domain.PostingFailed,
		To:             domain.PostingPending,
		ErrorMessage:   p.ErrorMessage,
		IncrementRetry: true,
	})
	if err != nil {
		return TaskHandle{}, err
	}
	p.Status = domain.PostingPending
	p.RetryCount++
	s.publish(ctx, events.NewPostingUpdate(p))

	s.mu.Lock()
	s.stats.OperatorResets++
	s.mu.Unlock()
	s.log.Info("operator retry", "job", p.JobID, "posting", p.ID, "board", p.BoardID, "retry_count", p.RetryCount)

	if err := s.repo.UpdateJobStatus(ctx, p.JobID, domain.JobPending); err != nil {
		s.log.Warn("reset job status", "job", p.JobID, "error", err)
	}
	return s.Enqueue(p.JobID)
}

// Run drives the queue until ctx is done or the scheduler is closed.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "max_concurrent_posts", s.opts.MaxConcurrentPosts, "max_attempts", s.opts.MaxAttempts)
	for {
		s.RunDue(ctx)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrQueueClosed
		}
		var timer <-chan time.Time
		if next := s.queue.peek(); next != nil {
			timer = s.clock.After(next.RunAt.Sub(s.clock.Now()))
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer:
		}
	}
}

// RunDue runs every task whose time has come, one at a time, and returns how
// many ran.
func (s *Scheduler) RunDue(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		t := s.popDue()
		if t == nil {
			return n
		}
		s.runTask(ctx, t)
		n++
	}
	return n
}

func (s *Scheduler) popDue() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	next := s.queue.peek()
	if next == nil || next.RunAt.After(s.clock.Now()) {
		return nil
	}
	t := s.queue.pop()
	s.running = t
	return t
}

func (s *Scheduler) publish(ctx context.Context, e events.Event) {
	if err := s.notify.Publish(ctx, e); err != nil {
		s.log.Warn("publish event", "type", e.Type, "job", e.JobID, "error", err)
	}
}
