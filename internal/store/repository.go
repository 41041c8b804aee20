package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

// Repository is the SQL implementation of domain.Store.
type Repository struct {
	db  *DB
	now func() time.Time
}

var _ domain.Store = (*Repository)(nil)

func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Repository) Close() error { return r.db.Close() }

const jobColumns = `id, title, description, location, company, contact_email,
  salary_min, salary_max, salary_currency, employment_type, department, status, created_at, updated_at`

const postingColumns = `id, job_id, board_id, status, external_url, error_message,
  screenshot_path, posted_at, retry_count, updated_at`

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// CreateJob stores job in pending with one pending posting per distinct board.
func (r *Repository) CreateJob(ctx context.Context, job domain.Job, boardIDs []string) (domain.Job, []domain.Posting, error) {
	job, postings, err := prepareJob(job, boardIDs, r.now())
	if err != nil {
		return domain.Job{}, nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var smin, smax int
	var scur string
	if job.Salary != nil {
		smin, smax, scur = job.Salary.Min, job.Salary.Max, job.Salary.Currency
	}
	_, err = tx.ExecContext(ctx, r.db.rebind(`
INSERT INTO jobs (`+jobColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID, job.Title, job.Description, job.Location, job.Company, job.ContactEmail,
		smin, smax, scur, job.EmploymentType, job.Department, string(job.Status),
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return domain.Job{}, nil, fmt.Errorf("insert job: %w", err)
	}

	for _, p := range postings {
		_, err = tx.ExecContext(ctx, r.db.rebind(`
INSERT INTO postings (id, job_id, board_id, status, retry_count, updated_at)
VALUES (?, ?, ?, ?, 0, ?)`),
			p.ID, p.JobID, p.BoardID, string(p.Status), formatTime(p.UpdatedAt),
		)
		if err != nil {
			return domain.Job{}, nil, fmt.Errorf("insert posting %s: %w", p.BoardID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, nil, err
	}
	return job, postings, nil
}

// prepareJob validates and fills ids, timestamps and initial statuses.
func prepareJob(job domain.Job, boardIDs []string, now time.Time) (domain.Job, []domain.Posting, error) {
	if err := job.Validate(); err != nil {
		return domain.Job{}, nil, err
	}
	boards := dedupe(boardIDs)
	if len(boards) == 0 {
		return domain.Job{}, nil, fmt.Errorf("%w: no boards selected", domain.ErrInvalidJob)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobPending
	job.CreatedAt, job.UpdatedAt = now, now

	postings := make([]domain.Posting, 0, len(boards))
	for _, b := range boards {
		postings = append(postings, domain.Posting{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			BoardID:   b,
			Status:    domain.PostingPending,
			UpdatedAt: now,
		})
	}
	return job, postings, nil
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (r *Repository) LoadJob(ctx context.Context, id string) (domain.Job, error) {
	var (
		j                    domain.Job
		smin, smax           int
		scur, status, ca, ua string
	)
	err := r.db.queryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id).Scan(
		&j.ID, &j.Title, &j.Description, &j.Location, &j.Company, &j.ContactEmail,
		&smin, &smax, &scur, &j.EmploymentType, &j.Department, &status, &ca, &ua,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("load job %s: %w", id, err)
	}
	if smin > 0 || smax > 0 {
		j.Salary = &domain.SalaryRange{Min: smin, Max: smax, Currency: scur}
	}
	j.Status = domain.JobStatus(status)
	j.CreatedAt, j.UpdatedAt = parseTime(ca), parseTime(ua)
	return j, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(s rowScanner) (domain.Posting, error) {
	var (
		p                      domain.Posting
		status, postedAt, upAt string
	)
	if err := s.Scan(&p.ID, &p.JobID, &p.BoardID, &status, &p.ExternalURL, &p.ErrorMessage,
		&p.ScreenshotPath, &postedAt, &p.RetryCount, &upAt); err != nil {
		return domain.Posting{}, err
	}
	st, err := domain.ParsePostingStatus(status)
	if err != nil {
		return domain.Posting{}, err
	}
	p.Status = st
	if postedAt != "" {
		t := parseTime(postedAt)
		p.PostedAt = &t
	}
	p.UpdatedAt = parseTime(upAt)
	return p, nil
}

func (r *Repository) listPostings(ctx context.Context, where string, args ...any) ([]domain.Posting, error) {
	rows, err := r.db.query(ctx, `SELECT `+postingColumns+` FROM postings WHERE `+where+` ORDER BY board_id, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) LoadPendingPostings(ctx context.Context, jobID string) ([]domain.Posting, error) {
	return r.listPostings(ctx, `job_id = ? AND status = ?`, jobID, string(domain.PostingPending))
}

func (r *Repository) LoadPostings(ctx context.Context, jobID string) ([]domain.Posting, error) {
	return r.listPostings(ctx, `job_id = ?`, jobID)
}

func (r *Repository) LoadPosting(ctx context.Context, id string) (domain.Posting, error) {
	p, err := scanPosting(r.db.queryRow(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Posting{}, fmt.Errorf("posting %s: %w", id, domain.ErrNotFound)
	}
	return p, err
}

// UpdatePosting applies upd only while the row is still in upd.From and
// unchanged since it was read.
func (r *Repository) UpdatePosting(ctx context.Context, id string, upd domain.PostingUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	cur, err := r.LoadPosting(ctx, id)
	if err != nil {
		return err
	}
	if cur.Status != upd.From {
		return fmt.Errorf("posting %s is %s, not %s: %w", id, cur.Status, upd.From, domain.ErrStaleWrite)
	}
	next := upd.Apply(cur, r.now())

	postedAt := ""
	if next.PostedAt != nil {
		postedAt = formatTime(*next.PostedAt)
	}
	res, err := r.db.exec(ctx, `
UPDATE postings
SET status = ?, external_url = ?, error_message = ?, screenshot_path = ?,
    posted_at = ?, retry_count = ?, updated_at = ?
WHERE id = ? AND status = ? AND retry_count = ?`,
		string(next.Status), next.ExternalURL, next.ErrorMessage, next.ScreenshotPath,
		postedAt, next.RetryCount, formatTime(next.UpdatedAt),
		id, string(cur.Status), cur.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("update posting %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("posting %s: %w", id, domain.ErrStaleWrite)
	}
	return nil
}

func (r *Repository) UpdateJobStatus(ctx context.Context, id string, status domain.JobStatus) error {
	res, err := r.db.exec(ctx, `UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *Repository) InterruptedPostings(ctx context.Context) ([]domain.Posting, error) {
	return r.listPostings(ctx, `status = ?`, string(domain.PostingActive))
}

func (r *Repository) JobsWithPendingPostings(ctx context.Context) ([]string, error) {
	rows, err := r.db.query(ctx, `SELECT DISTINCT job_id FROM postings WHERE status = ? ORDER BY job_id`, string(domain.PostingPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
