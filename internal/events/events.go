package events

import (
	"encoding/json"
	"time"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
)

const (
	TypeJobStart      = "job-start"
	TypePostingUpdate = "posting-update"
	TypeJobComplete   = "job-complete"
)

// Version of the payload shapes below.
const Version = 1

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	JobID     string          `json:"job_id"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type JobStart struct {
	JobID       string `json:"jobId"`
	TotalBoards int    `json:"totalBoards"`
}

type PostingUpdate struct {
	JobID          string               `json:"jobId"`
	PostingID      string               `json:"postingId"`
	BoardID        string               `json:"boardId"`
	Status         domain.PostingStatus `json:"status"`
	ExternalURL    string               `json:"externalUrl,omitempty"`
	ErrorMessage   string               `json:"errorMessage,omitempty"`
	ScreenshotPath string               `json:"screenshotPath,omitempty"`
	RetryCount     int                  `json:"retryCount"`
}

type JobComplete struct {
	JobID         string           `json:"jobId"`
	OverallStatus domain.JobStatus `json:"overallStatus"`
	SuccessCount  int              `json:"successCount"`
	FailureCount  int              `json:"failureCount"`
	TotalCount    int              `json:"totalCount"`
	Cost          float64          `json:"cost"`
}

// New builds an event for jobID with data marshaled into the envelope.
func New(reqID, jobID, typ string, data any) Event {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return Event{
		Type:      typ,
		Version:   Version,
		At:        time.Now().UTC(),
		JobID:     jobID,
		RequestID: reqID,
		Data:      raw,
	}
}

// MakeEvent returns the encoded envelope, as written to SSE streams.
func MakeEvent(reqID, jobID, typ string, data any) string {
	return New(reqID, jobID, typ, data).Encode()
}

func (e Event) Encode() string {
	b, _ := json.Marshal(e)
	return string(b)
}

func NewJobStart(jobID string, total int) Event {
	return New("", jobID, TypeJobStart, JobStart{JobID: jobID, TotalBoards: total})
}

func NewPostingUpdate(p domain.Posting) Event {
	return New("", p.JobID, TypePostingUpdate, PostingUpdate{
		JobID:          p.JobID,
		PostingID:      p.ID,
		BoardID:        p.BoardID,
		Status:         p.Status,
		ExternalURL:    p.ExternalURL,
		ErrorMessage:   p.ErrorMessage,
		ScreenshotPath: p.ScreenshotPath,
		RetryCount:     p.RetryCount,
	})
}

func NewJobComplete(jobID string, status domain.JobStatus, t domain.Tally, cost float64) Event {
	return New("", jobID, TypeJobComplete, JobComplete{
		JobID:         jobID,
		OverallStatus: status,
		SuccessCount:  t.Success,
		FailureCount:  t.Failed,
		TotalCount:    t.Total,
		Cost:          cost,
	})
}
