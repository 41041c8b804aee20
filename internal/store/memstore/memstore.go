// Package memstore is an in-memory domain.Store on go-memdb, used for
// development runs and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

const (
	tableJobs     = "jobs"
	tablePostings = "postings"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableJobs: {
				Name: tableJobs,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tablePostings: {
				Name: tablePostings,
				Indexes: map[string]*memdb.IndexSchema{
					"id":     {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					"job":    {Name: "job", Indexer: &memdb.StringFieldIndex{Field: "JobID"}},
					"status": {Name: "status", Indexer: &memdb.StringFieldIndex{Field: "Status"}},
				},
			},
		},
	}
}

type Store struct {
	db  *memdb.MemDB
	now func() time.Time
}

var _ domain.Store = (*Store)(nil)

func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateJob(_ context.Context, job domain.Job, boardIDs []string) (domain.Job, []domain.Posting, error) {
	if err := job.Validate(); err != nil {
		return domain.Job{}, nil, err
	}
	seen := map[string]bool{}
	var boards []string
	for _, b := range boardIDs {
		if b != "" && !seen[b] {
			seen[b] = true
			boards = append(boards, b)
		}
	}
	if len(boards) == 0 {
		return domain.Job{}, nil, fmt.Errorf("%w: no boards selected", domain.ErrInvalidJob)
	}

	now := s.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobPending
	job.CreatedAt, job.UpdatedAt = now, now

	txn := s.db.Txn(true)
	defer txn.Abort()

	if existing, err := txn.First(tableJobs, "id", job.ID); err != nil {
		return domain.Job{}, nil, err
	} else if existing != nil {
		return domain.Job{}, nil, fmt.Errorf("%w: job %s already exists", domain.ErrInvalidJob, job.ID)
	}
	stored := job
	if err := txn.Insert(tableJobs, &stored); err != nil {
		return domain.Job{}, nil, err
	}

	postings := make([]domain.Posting, 0, len(boards))
	for _, b := range boards {
		p := domain.Posting{ID: uuid.NewString(), JobID: job.ID, BoardID: b, Status: domain.PostingPending, UpdatedAt: now}
		cp := p
		if err := txn.Insert(tablePostings, &cp); err != nil {
			return domain.Job{}, nil, err
		}
		postings = append(postings, p)
	}
	txn.Commit()
	return job, postings, nil
}

func (s *Store) LoadJob(_ context.Context, id string) (domain.Job, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(tableJobs, "id", id)
	if err != nil {
		return domain.Job{}, err
	}
	if raw == nil {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return *raw.(*domain.Job), nil
}

func (s *Store) postings(index string, args ...any) ([]domain.Posting, error) {
	txn := s.db.Txn(false)
	it, err := txn.Get(tablePostings, index, args...)
	if err != nil {
		return nil, err
	}
	var out []domain.Posting
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*domain.Posting))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BoardID != out[j].BoardID {
			return out[i].BoardID < out[j].BoardID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) LoadPostings(_ context.Context, jobID string) ([]domain.Posting, error) {
	return s.postings("job", jobID)
}

func (s *Store) LoadPendingPostings(ctx context.Context, jobID string) ([]domain.Posting, error) {
	all, err := s.LoadPostings(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var out []domain.Posting
	for _, p := range all {
		if p.Status == domain.PostingPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) LoadPosting(_ context.Context, id string) (domain.Posting, error) {
	raw, err := s.db.Txn(false).First(tablePostings, "id", id)
	if err != nil {
		return domain.Posting{}, err
	}
	if raw == nil {
		return domain.Posting{}, fmt.Errorf("posting %s: %w", id, domain.ErrNotFound)
	}
	return *raw.(*domain.Posting), nil
}

func (s *Store) UpdatePosting(_ context.Context, id string, upd domain.PostingUpdate) error {
	if err := upd.Validate(); err != nil {
		return err
	}
	// write txns are serialized by memdb, so the check below cannot race
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tablePostings, "id", id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("posting %s: %w", id, domain.ErrNotFound)
	}
	cur := *raw.(*domain.Posting)
	if cur.Status != upd.From {
		return fmt.Errorf("posting %s is %s, not %s: %w", id, cur.Status, upd.From, domain.ErrStaleWrite)
	}
	next := upd.Apply(cur, s.now())
	if err := txn.Insert(tablePostings, &next); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) UpdateJobStatus(_ context.Context, id string, status domain.JobStatus) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableJobs, "id", id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	j := *raw.(*domain.Job)
	j.Status = status
	j.UpdatedAt = s.now()
	if err := txn.Insert(tableJobs, &j); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) InterruptedPostings(context.Context) ([]domain.Posting, error) {
	return s.postings("status", string(domain.PostingActive))
}

func (s *Store) JobsWithPendingPostings(context.Context) ([]string, error) {
	pending, err := s.postings("status", string(domain.PostingPending))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range pending {
		if !seen[p.JobID] {
			seen[p.JobID] = true
			out = append(out, p.JobID)
		}
	}
	sort.Strings(out)
	return out, nil
}
