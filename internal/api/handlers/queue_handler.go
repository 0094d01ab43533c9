package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/verdicta-io/verdicta/internal/core/queue"
)

type QueueHandler struct {
	queue queue.Queue
}

func NewQueueHandler(q queue.Queue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// GetJob returns the current state of one job.
func (h *QueueHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := h.queue.GetJob(jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetStats returns aggregate queue counters.
func (h *QueueHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queue.Stats())
}
