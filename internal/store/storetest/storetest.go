// Package storetest checks any domain.Store against the repository contract.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// Job returns a valid job for tests.
func Job() domain.Job {
	return domain.Job{
		Title:        "Staff Engineer",
		Description:  "Own the posting pipeline.",
		Location:     "Remote",
		Company:      "Acme",
		ContactEmail: "hr@acme.test",
		Salary:       &domain.SalaryRange{Min: 150000, Max: 190000, Currency: "EUR"},
	}
}

// Run exercises newStore, which must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) domain.Store) {
	t.Run("CreateJob", func(t *testing.T) { testCreateJob(t, newStore(t)) })
	t.Run("CreateJobRejects", func(t *testing.T) { testCreateJobRejects(t, newStore(t)) })
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, newStore(t)) })
	t.Run("ConditionalWrite", func(t *testing.T) { testConditionalWrite(t, newStore(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { testConcurrentClaim(t, newStore(t)) })
	t.Run("Recovery", func(t *testing.T) { testRecovery(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func testCreateJob(t *testing.T, s domain.Store) {
	ctx := context.Background()
	job, postings, err := s.CreateJob(ctx, Job(), []string{"b", "a", "b", "c"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobPending, job.Status)

	// exactly one pending posting per distinct board
	require.Len(t, postings, 3)
	for _, p := range postings {
		assert.Equal(t, domain.PostingPending, p.Status)
		assert.Equal(t, job.ID, p.JobID)
		assert.Zero(t, p.RetryCount)
	}

	got, err := s.LoadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Title, got.Title)
	require.NotNil(t, got.Salary)
	assert.Equal(t, 190000, got.Salary.Max)
	assert.Equal(t, "EUR", got.Salary.Currency)

	pending, err := s.LoadPendingPostings(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].BoardID)
}

func testCreateJobRejects(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, _, err := s.CreateJob(ctx, Job(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)

	bad := Job()
	bad.Title = ""
	_, _, err = s.CreateJob(ctx, bad, []string{"a"})
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}

func testLifecycle(t *testing.T, s domain.Store) {
	ctx := context.Background()
	job, postings, err := s.CreateJob(ctx, Job(), []string{"a"})
	require.NoError(t, err)
	id := postings[0].ID

	require.NoError(t, s.UpdatePosting(ctx, id, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive}))
	require.NoError(t, s.UpdatePosting(ctx, id, domain.PostingUpdate{
		From: domain.PostingActive, To: domain.PostingFailed,
		ErrorMessage: "status unclear", ScreenshotPath: "/tmp/shot.png",
	}))
	require.NoError(t, s.UpdatePosting(ctx, id, domain.PostingUpdate{
		From: domain.PostingFailed, To: domain.PostingPending, IncrementRetry: true,
	}))

	p, err := s.LoadPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PostingPending, p.Status)
	assert.Equal(t, 1, p.RetryCount)
	assert.Equal(t, "status unclear", p.ErrorMessage)
	assert.Equal(t, "/tmp/shot.png", p.ScreenshotPath)

	posted := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdatePosting(ctx, id, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive}))
	require.NoError(t, s.UpdatePosting(ctx, id, domain.PostingUpdate{
		From: domain.PostingActive, To: domain.PostingSuccess,
		ExternalURL: "https://a.example/jobs/1", PostedAt: &posted,
	}))

	p, err = s.LoadPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PostingSuccess, p.Status)
	assert.Empty(t, p.ErrorMessage)
	assert.Equal(t, "https://a.example/jobs/1", p.ExternalURL)
	require.NotNil(t, p.PostedAt)
	assert.True(t, posted.Equal(*p.PostedAt))

	require.NoError(t, s.UpdateJobStatus(ctx, job.ID, domain.JobCompleted))
	j, err := s.LoadJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, j.Status)

	all, err := s.LoadPostings(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, domain.AggregateStatus(all))
}

func testConditionalWrite(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, postings, err := s.CreateJob(ctx, Job(), []string{"a"})
	require.NoError(t, err)
	id := postings[0].ID

	// skipping posting is not an edge
	err = s.UpdatePosting(ctx, id, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingSuccess})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// From does not match the row
	err = s.UpdatePosting(ctx, id, domain.PostingUpdate{From: domain.PostingActive, To: domain.PostingFailed})
	assert.ErrorIs(t, err, domain.ErrStaleWrite)

	p, err := s.LoadPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.PostingPending, p.Status)
}

func testConcurrentClaim(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, postings, err := s.CreateJob(ctx, Job(), []string{"a"})
	require.NoError(t, err)
	id := postings[0].ID

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.UpdatePosting(ctx, id, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive}) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func testRecovery(t *testing.T, s domain.Store) {
	ctx := context.Background()
	j1, p1, err := s.CreateJob(ctx, Job(), []string{"a", "b"})
	require.NoError(t, err)
	_, p2, err := s.CreateJob(ctx, Job(), []string{"a"})
	require.NoError(t, err)

	require.NoError(t, s.UpdatePosting(ctx, p1[0].ID, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive}))
	require.NoError(t, s.UpdatePosting(ctx, p2[0].ID, domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive}))
	require.NoError(t, s.UpdatePosting(ctx, p2[0].ID, domain.PostingUpdate{From: domain.PostingActive, To: domain.PostingFailed}))

	stuck, err := s.InterruptedPostings(ctx)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, p1[0].ID, stuck[0].ID)

	jobs, err := s.JobsWithPendingPostings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{j1.ID}, jobs)
}

func testNotFound(t *testing.T, s domain.Store) {
	ctx := context.Background()
	_, err := s.LoadJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.LoadPosting(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	err = s.UpdatePosting(ctx, "missing", domain.PostingUpdate{From: domain.PostingPending, To: domain.PostingActive})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, "missing", domain.JobFailed), domain.ErrNotFound)
}
