package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/glovejobs/POSTJOB-browser-sub000/internal/domain"
	"github.com/glovejobs/POSTJOB-browser-sub000/internal/scheduler"
)

type JobsHandler struct {
	Store  Store
	Queue  Queue
	Boards Boards
}

func taskView(h scheduler.TaskHandle) TaskView {
	return TaskView{TaskID: h.ID, JobID: h.JobID, RunAt: h.RunAt.UTC().Format(time.RFC3339)}
}

// Create stores a job with one pending posting per board and, unless told
// otherwise, queues it.
func (h JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobReq
	if !decodeJSON(w, r, &req) {
		return
	}
	for _, id := range req.Boards {
		if _, ok := h.Boards.Board(id); !ok {
			WriteError(w, r, http.StatusBadRequest, "unknown_board", "unknown board "+id)
			return
		}
	}

	job, postings, err := h.Store.CreateJob(r.Context(), req.Job, req.Boards)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := map[string]any{"job": job, "postings": postings}
	if req.Enqueue == nil || *req.Enqueue {
		th, err := h.Queue.Enqueue(job.ID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		resp["task"] = taskView(th)
	}
	WriteJSON(w, http.StatusCreated, resp)
}

func (h JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, err := h.Store.LoadJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ps, err := h.Store.LoadPostings(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	t := domain.TallyPostings(ps)
	WriteJSON(w, http.StatusOK, JobView{Job: job, Postings: ps, Success: t.Success, Failed: t.Failed, Total: t.Total})
}

func (h JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Store.LoadJob(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	th, err := h.Queue.Enqueue(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, taskView(th))
}

// RetryPosting is the operator reset for one failed posting.
func (h JobsHandler) RetryPosting(w http.ResponseWriter, r *http.Request) {
	th, err := h.Queue.RetryPosting(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, taskView(th))
}
