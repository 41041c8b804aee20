package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid posting transition")
	ErrStaleWrite        = errors.New("posting changed concurrently")
	ErrInvalidJob        = errors.New("invalid job")
)

// Repository is the narrow view of the relational store the engine needs.
// UpdatePosting must be atomic per row and reads must observe the latest
// committed write.
type Repository interface {
	LoadJob(ctx context.Context, id string) (Job, error)
	LoadPendingPostings(ctx context.Context, jobID string) ([]Posting, error)
	LoadPostings(ctx context.Context, jobID string) ([]Posting, error)
	LoadPosting(ctx context.Context, id string) (Posting, error)
	UpdatePosting(ctx context.Context, id string, upd PostingUpdate) error
	UpdateJobStatus(ctx context.Context, id string, status JobStatus) error
}

// RecoveryStore lets the scheduler find work a previous process left behind.
type RecoveryStore interface {
	InterruptedPostings(ctx context.Context) ([]Posting, error)
	JobsWithPendingPostings(ctx context.Context) ([]string, error)
}

// JobStore is the intake side used by the operator API and tests.
type JobStore interface {
	CreateJob(ctx context.Context, job Job, boardIDs []string) (Job, []Posting, error)
}

// Store is everything a concrete backend provides.
type Store interface {
	Repository
	RecoveryStore
	JobStore
	Close() error
}
