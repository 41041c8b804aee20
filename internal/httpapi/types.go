package httpapi

import (
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/discovery"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/scheduler"
)

type createJobReq struct {
	Job    domain.Job `json:"job"`
	Boards []string   `json:"boards"`
	// Enqueue defaults to true.
	Enqueue *bool `json:"enqueue,omitempty"`
}

type JobView struct {
	Job      domain.Job       `json:"job"`
	Postings []domain.Posting `json:"postings"`
	Success  int              `json:"successCount"`
	Failed   int              `json:"failureCount"`
	Total    int              `json:"totalCount"`
}

type TaskView struct {
	TaskID string `json:"taskId"`
	JobID  string `json:"jobId"`
	RunAt  string `json:"runAt"`
}

type QueueView struct {
	Stats     scheduler.Stats      `json:"stats"`
	Tasks     []scheduler.TaskInfo `json:"tasks"`
	Discovery *discovery.Totals    `json:"discovery,omitempty"`
}

type setCredentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}
