package domain

import (
	"fmt"
	"time"
)

// PostingStatus is the lifecycle state of one (job, board) attempt record.
//
//	pending ──► posting ──► success
//	   ▲           │
//	   │           └──────► failed
//	   └───────── reset ◄──────┘
//
// success is final. failed only leaves through an explicit reset, which
// increments the retry count.
type PostingStatus string

const (
	PostingPending PostingStatus = "pending"
	PostingActive  PostingStatus = "posting"
	PostingSuccess PostingStatus = "success"
	PostingFailed  PostingStatus = "failed"
)

var postingTransitions = map[PostingStatus][]PostingStatus{
	PostingPending: {PostingActive},
	PostingActive:  {PostingSuccess, PostingFailed},
	PostingFailed:  {PostingPending},
}

// ParsePostingStatus converts a stored value to a PostingStatus.
func ParsePostingStatus(s string) (PostingStatus, error) {
	st := PostingStatus(s)
	switch st {
	case PostingPending, PostingActive, PostingSuccess, PostingFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown posting status %q", s)
}

// Terminal reports whether the posting has resolved.
func (s PostingStatus) Terminal() bool {
	return s == PostingSuccess || s == PostingFailed
}

// CanTransition reports whether from -> to is an edge of the posting state machine.
func CanTransition(from, to PostingStatus) bool {
	for _, s := range postingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Posting ties a Job to a Board.
type Posting struct {
	ID             string        `json:"id"`
	JobID          string        `json:"jobId"`
	BoardID        string        `json:"boardId"`
	Status         PostingStatus `json:"status"`
	ExternalURL    string        `json:"externalUrl,omitempty"`
	ErrorMessage   string        `json:"errorMessage,omitempty"`
	ScreenshotPath string        `json:"screenshotPath,omitempty"`
	PostedAt       *time.Time    `json:"postedAt,omitempty"`
	RetryCount     int           `json:"retryCount"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// Attempt is the 1-based number of the attempt the posting is on.
func (p Posting) Attempt() int { return p.RetryCount + 1 }

// PostingUpdate is a conditional write against one posting row. The write
// only applies while the row is still in From.
type PostingUpdate struct {
	From           PostingStatus
	To             PostingStatus
	ExternalURL    string
	ErrorMessage   string
	ScreenshotPath string
	PostedAt       *time.Time
	IncrementRetry bool
}

// Validate rejects updates that are not edges of the state machine.
func (u PostingUpdate) Validate() error {
	if !CanTransition(u.From, u.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.From, u.To)
	}
	if u.IncrementRetry && !(u.From == PostingFailed && u.To == PostingPending) {
		return fmt.Errorf("%w: retry count only moves on reset", ErrInvalidTransition)
	}
	return nil
}

// Apply returns p with u applied. Callers validate first.
func (u PostingUpdate) Apply(p Posting, now time.Time) Posting {
	p.Status = u.To
	switch u.To {
	case PostingActive:
		p.ErrorMessage = ""
	case PostingSuccess:
		p.ErrorMessage = ""
		p.ExternalURL = u.ExternalURL
		p.PostedAt = u.PostedAt
	case PostingFailed:
		p.ErrorMessage = u.ErrorMessage
	case PostingPending:
		if u.ErrorMessage != "" {
			p.ErrorMessage = u.ErrorMessage
		}
	}
	if u.ScreenshotPath != "" {
		p.ScreenshotPath = u.ScreenshotPath
	}
	if u.IncrementRetry {
		p.RetryCount++
	}
	p.UpdatedAt = now
	return p
}

// Tally counts postings by outcome.
type Tally struct {
	Total       int
	Success     int
	Failed      int
	NonTerminal int
}

func TallyPostings(ps []Posting) Tally {
	t := Tally{Total: len(ps)}
	for _, p := range ps {
		switch p.Status {
		case PostingSuccess:
			t.Success++
		case PostingFailed:
			t.Failed++
		default:
			t.NonTerminal++
		}
	}
	return t
}

// AggregateStatus derives a job's status from its postings alone.
// Any non-terminal posting keeps the job in posting.
func AggregateStatus(ps []Posting) JobStatus {
	t := TallyPostings(ps)
	switch {
	case t.NonTerminal > 0:
		return JobPosting
	case t.Success > 0 && t.Failed == 0:
		return JobCompleted
	case t.Success > 0:
		return JobPartial
	}
	return JobFailed
}
