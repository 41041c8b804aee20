package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
)

// RecoveryReport summarizes one Recover pass.
type RecoveryReport struct {
	Interrupted int
	Enqueued    int
	Finalized   int
}

// Recover repairs state a crashed process or a lost task left behind.
// Postings stuck in posting that nobody is executing are failed as
// interrupted and run through the retry policy; jobs with pending postings
// and no task get one; jobs left with nothing to do are finalized.
func (s *Scheduler) Recover(ctx context.Context) (RecoveryReport, error) {
	s.recoverMu.Lock()
	defer s.recoverMu.Unlock()

	var rep RecoveryReport
	if s.recovery == nil {
		return rep, nil
	}

	stuck, err := s.recovery.InterruptedPostings(ctx)
	if err != nil {
		return rep, fmt.Errorf("load interrupted postings: %w", err)
	}
	touched := map[string]bool{}
	for _, p := range stuck {
		if s.isInFlight(p.ID) {
			continue
		}
		upd := domain.PostingUpdate{From: domain.PostingActive, To: domain.PostingFailed, ErrorMessage: msgInterrupted}
		if err := s.repo.UpdatePosting(ctx, p.ID, upd); err != nil {
			if errors.Is(err, domain.ErrStaleWrite) {
				continue
			}
			return rep, fmt.Errorf("fail interrupted posting %s: %w", p.ID, err)
		}
		p = upd.Apply(p, s.clock.Now())
		s.publish(ctx, events.NewPostingUpdate(p))
		s.log.Warn("recovered interrupted posting", "job", p.JobID, "posting", p.ID, "board", p.BoardID)
		rep.Interrupted++
		touched[p.JobID] = true

		if err := s.retryPolicy(ctx, p, domain.FailureAutomation); err != nil {
			return rep, err
		}
	}

	jobs, err := s.recovery.JobsWithPendingPostings(ctx)
	if err != nil {
		return rep, fmt.Errorf("load jobs with pending postings: %w", err)
	}
	for _, id := range jobs {
		if s.HasTask(id) {
			continue
		}
		if _, err := s.Enqueue(id); err != nil {
			return rep, err
		}
		s.log.Info("enqueued orphaned job", "job", id)
		rep.Enqueued++
	}

	for id := range touched {
		if s.HasTask(id) {
			continue
		}
		if err := s.finalize(ctx, id); err != nil {
			return rep, err
		}
		rep.Finalized++
	}
	return rep, nil
}

func (s *Scheduler) isInFlight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[id]
}

// Sweeper runs Recover on a cron schedule.
type Sweeper struct {
	cron  *cron.Cron
	sched *Scheduler
	spec  string
}

func NewSweeper(sched *Scheduler, spec string) *Sweeper {
	return &Sweeper{
		cron:  cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sched: sched,
		spec:  spec,
	}
}

// Start registers the sweep and starts the cron runner.
func (w *Sweeper) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.spec, func() {
		rep, err := w.sched.Recover(ctx)
		if err != nil {
			w.sched.log.Warn("sweep failed", "error", err)
			return
		}
		if rep != (RecoveryReport{}) {
			w.sched.log.Info("sweep", "interrupted", rep.Interrupted, "enqueued", rep.Enqueued, "finalized", rep.Finalized)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	w.cron.Start()
	w.sched.log.Info("sweep started", "spec", w.spec)
	return nil
}

// Stop halts the cron runner and waits for a running sweep.
func (w *Sweeper) Stop() {
	<-w.cron.Stop().Done()
}
