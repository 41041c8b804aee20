package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/events"
)

// msgInterrupted is recorded on postings a previous process left mid-attempt.
const msgInterrupted = "interrupted"

func (s *Scheduler) runTask(ctx context.Context, t *Task) {
	log := s.log.With("task", t.ID, "job", t.JobID, "attempt", t.Attempt)
	log.Debug("task started", "reason", t.Reason, "scope", len(t.PostingIDs))

	err := s.orchestrate(ctx, t)
	s.finish(t, err)

	switch {
	case err == nil:
		log.Debug("task finished")
	case ctx.Err() != nil:
		log.Info("task interrupted by shutdown")
	default:
		log.Warn("task aborted", "error", err)
	}
}

func (s *Scheduler) orchestrate(ctx context.Context, t *Task) error {
	job, err := s.repo.LoadJob(ctx, t.JobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	pending, err := s.repo.LoadPendingPostings(ctx, t.JobID)
	if err != nil {
		return fmt.Errorf("load pending postings: %w", err)
	}
	selected := s.selectPostings(t, pending)

	if len(selected) == 0 {
		if !job.Status.Terminal() {
			return s.finalize(ctx, job.ID)
		}
		return nil
	}

	if !t.scoped() {
		all, err := s.repo.LoadPostings(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("load postings: %w", err)
		}
		s.publish(ctx, events.NewJobStart(job.ID, len(all)))
	}
	if job.Status != domain.JobPosting {
		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobPosting); err != nil {
			return fmt.Errorf("mark job posting: %w", err)
		}
	}

	if s.driver != nil {
		if err := s.driver.Start(ctx); err != nil {
			s.log.Error("browser driver failed to start", "job", job.ID, "error", err)
			if err := s.failAll(ctx, selected, "browser driver failed to start: "+err.Error()); err != nil {
				return err
			}
			return s.finalize(ctx, job.ID)
		}
	}

	for batch := range slices.Chunk(selected, s.opts.MaxConcurrentPosts) {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A plain Group: one posting's infra error must not cancel its siblings.
		var g errgroup.Group
		for _, p := range batch {
			g.Go(func() error {
				return s.runPosting(ctx, job, p)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return s.finalize(ctx, job.ID)
}

// selectPostings narrows pending postings to what t may touch and releases
// t's reservations. Full-scope tasks leave postings owned by a retry task alone.
func (s *Scheduler) selectPostings(t *Task, pending []domain.Posting) []domain.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Posting
	for _, p := range pending {
		owner, held := s.reserved[p.ID]
		switch {
		case t.scoped():
			if slices.Contains(t.PostingIDs, p.ID) {
				out = append(out, p)
			}
		case held && owner != t.ID:
			continue
		default:
			out = append(out, p)
		}
	}
	s.releaseLocked(t)
	return out
}

func (s *Scheduler) releaseLocked(t *Task) {
	for _, id := range t.PostingIDs {
		if s.reserved[id] == t.ID {
			delete(s.reserved, id)
		}
	}
}

func (s *Scheduler) finish(t *Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = nil

	if err == nil {
		s.stats.TasksRun++
		s.releaseLocked(t)
		close(t.done)
		return
	}

	retry := !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		t.Attempt < t.MaxAttempts &&
		!s.closed
	if retry {
		s.stats.TasksAborted++
		t.RunAt = s.clock.Now().Add(Backoff(s.opts.BackoffBase, s.opts.BackoffMax, t.Attempt-1))
		t.Attempt++
		t.Reason = "requeue"
		s.queue.push(t)
		return
	}

	s.stats.TasksGivenUp++
	s.releaseLocked(t)
	t.err = err
	close(t.done)
}

// runPosting drives one posting through a single attempt. Only repository
// failures are returned; everything else is recorded on the posting.
func (s *Scheduler) runPosting(ctx context.Context, job domain.Job, p domain.Posting) error {
	s.trackInFlight(p.ID, true)
	defer s.trackInFlight(p.ID, false)

	log := s.log.With("job", job.ID, "posting", p.ID, "board", p.BoardID, "attempt", p.Attempt())

	err := s.repo.UpdatePosting(ctx, p.ID, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive})
	switch {
	case errors.Is(err, domain.ErrStaleWrite), errors.Is(err, domain.ErrNotFound):
		log.Debug("posting claimed elsewhere", "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("claim posting %s: %w", p.ID, err)
	}
	p.Status = domain.PostingActive
	p.ErrorMessage = ""
	s.publish(ctx, events.NewPostingUpdate(p))

	out := s.exec.Execute(ctx, job, p)
	s.record(job.ID, out)

	upd := domain.PostingUpdate{From: domain.PostingActive}
	if len(out.Screenshot) > 0 && s.shots != nil {
		path, err := s.shots.Save(p.ID, p.Attempt(), out.Screenshot)
		if err != nil {
			log.Warn("save screenshot", "error", err)
		}
		upd.ScreenshotPath = path
	}
	if out.Success {
		now := s.clock.Now().UTC()
		upd.To = domain.PostingSuccess
		upd.ExternalURL = out.ExternalURL
		upd.PostedAt = &now
	} else {
		upd.To = domain.PostingFailed
		upd.ErrorMessage = out.ErrorMessage
	}

	// The attempt already happened; persist it even if shutdown began.
	wctx := context.WithoutCancel(ctx)
	if err := s.repo.UpdatePosting(wctx, p.ID, upd); err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			log.Warn("posting changed during attempt", "error", err)
			return nil
		}
		return fmt.Errorf("persist outcome for %s: %w", p.ID, err)
	}
	p = upd.Apply(p, s.clock.Now())
	s.publish(wctx, events.NewPostingUpdate(p))

	if out.Success {
		log.Info("posted", "url", out.ExternalURL, "discovered", out.Discovered, "cost", out.Cost)
		return nil
	}
	log.Warn("posting failed", "kind", out.Kind, "error", out.ErrorMessage)
	return s.retryPolicy(wctx, p, out.Kind)
}

func (s *Scheduler) trackInFlight(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !on {
		delete(s.inFlight, id)
		return
	}
	s.inFlight[id] = true
	if n := len(s.inFlight); n > s.stats.MaxInFlight {
		s.stats.MaxInFlight = n
	}
}

func (s *Scheduler) record(jobID string, out domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Attempts++
	if out.Success {
		s.stats.Succeeded++
	} else {
		s.stats.Failed++
	}
	s.jobCost[jobID] += out.Cost
}

// retryPolicy decides what happens to a posting that just failed. Retryable
// failures under the ceiling go back to pending and get their own delayed
// task; everything else stays failed.
func (s *Scheduler) retryPolicy(ctx context.Context, p domain.Posting, kind domain.FailureKind) error {
	log := s.log.With("job", p.JobID, "posting", p.ID, "board", p.BoardID)
	if !kind.Retryable() {
		log.Info("failure is terminal", "kind", kind)
		return nil
	}
	if p.RetryCount+1 >= s.opts.MaxAttempts {
		log.Info("attempt ceiling reached", "attempts", p.Attempt(), "max_attempts", s.opts.MaxAttempts)
		return nil
	}

	delay := Backoff(s.opts.BackoffBase, s.opts.BackoffMax, p.RetryCount)
	err := s.repo.UpdatePosting(ctx, p.ID, domain.PostingUpdate{
		From:           domain.PostingFailed,
		To:             domain.PostingPending,
		ErrorMessage:   p.ErrorMessage,
		IncrementRetry: true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStaleWrite) {
			return nil
		}
		return fmt.Errorf("reset posting %s: %w", p.ID, err)
	}
	p.Status = domain.PostingPending
	p.RetryCount++
	s.publish(ctx, events.NewPostingUpdate(p))

	h, err := s.enqueue(p.JobID, []string{p.ID}, delay, "retry")
	if err != nil {
		// left pending; recovery picks it up on the next start
		log.Warn("schedule retry", "error", err)
		return nil
	}
	s.mu.Lock()
	s.stats.RetriesQueued++
	s.mu.Unlock()
	log.Info("retry scheduled", "retry_count", p.RetryCount, "delay", delay, "run_at", h.RunAt)
	return nil
}

// failAll records the same failure on every posting without running them.
func (s *Scheduler) failAll(ctx context.Context, ps []domain.Posting, msg string) error {
	for _, p := range ps {
		err := s.repo.UpdatePosting(ctx, p.ID, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive})
		if errors.Is(err, domain.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return fmt.Errorf("claim posting %s: %w", p.ID, err)
		}
		p.Status = domain.PostingActive
		s.publish(ctx, events.NewPostingUpdate(p))

		upd := domain.PostingUpdate{From: domain.PostingActive, To: domain.PostingFailed, ErrorMessage: msg}
		if err := s.repo.UpdatePosting(ctx, p.ID, upd); err != nil {
			if errors.Is(err, domain.ErrStaleWrite) {
				continue
			}
			return fmt.Errorf("fail posting %s: %w", p.ID, err)
		}
		p = upd.Apply(p, s.clock.Now())
		s.publish(ctx, events.NewPostingUpdate(p))
	}
	return nil
}

// finalize persists the aggregate status once every posting is terminal and
// announces it.
func (s *Scheduler) finalize(ctx context.Context, jobID string) error {
	ps, err := s.repo.LoadPostings(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load postings: %w", err)
	}
	status := domain.AggregateStatus(ps)
	if status == domain.JobPosting {
		return nil
	}
	if err := s.repo.UpdateJobStatus(ctx, jobID, status); err != nil {
		return fmt.Errorf("mark job %s: %w", status, err)
	}

	s.mu.Lock()
	cost := s.jobCost[jobID]
	delete(s.jobCost, jobID)
	s.stats.JobsCompleted++
	s.mu.Unlock()

	tally := domain.TallyPostings(ps)
	s.publish(ctx, events.NewJobComplete(jobID, status, tally, cost))
	s.log.Info("job complete", "job", jobID, "status", status, "success", tally.Success, "failed", tally.Failed, "cost", cost)
	return nil
}
