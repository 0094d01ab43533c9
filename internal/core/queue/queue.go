package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/models"
)

// Processor is what the queue runs for each job. The ingestion pipeline
// satisfies it; tests substitute deterministic fakes.
type Processor interface {
	ProcessDocument(ctx context.Context, documentID string, progress func(int)) (*models.ExtractionSummary, error)
}

// Stats is the aggregate queue view exposed to callers.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Queue sequences asynchronous per-document ingestion. Implementations must
// enforce that at most one job is active at a time and that waiting jobs
// complete in FIFO order.
type Queue interface {
	// Enqueue schedules ingestion for a known document. It fails when the
	// document id is unknown or the queue's buffer (queueCapacity slots) is
	// saturated; processing failures are observed by polling, never thrown
	// from here.
	Enqueue(ctx context.Context, documentID string) (*models.Job, error)
	GetJob(id string) (*models.Job, error)
	// HasPending reports whether a waiting or active job exists for the
	// document. Callers use it to fence operations that must not overlap a
	// live run, such as reprocess.
	HasPending(documentID string) bool
	Stats() Stats
}

// IngestQueue is the default in-memory implementation: a buffered channel
// drained by a single worker goroutine. Jobs are ephemeral; a restart loses
// queue history.
type IngestQueue struct {
	store     core.Store
	processor Processor

	mu     sync.Mutex
	jobs   map[string]*models.Job
	byDoc  map[string]string // documentID -> id of its waiting/active job
	order  chan string
	active int
	done   int
	failed int
}

var _ Queue = (*IngestQueue)(nil)

// queueCapacity bounds the waiting backlog. Enqueue errors when it is full
// rather than blocking a request handler.
const queueCapacity = 256

func NewIngestQueue(store core.Store, processor Processor) *IngestQueue {
	return &IngestQueue{
		store:     store,
		processor: processor,
		jobs:      make(map[string]*models.Job),
		byDoc:     make(map[string]string),
		order:     make(chan string, queueCapacity),
	}
}

// Start launches the single worker loop. The one-worker discipline is the
// mechanism behind both queue invariants: one active job, FIFO completion.
func (q *IngestQueue) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Println("queue: worker shutting down")
				return
			case jobID := <-q.order:
				q.run(ctx, jobID)
			}
		}
	}()
}

func (q *IngestQueue) Enqueue(ctx context.Context, documentID string) (*models.Job, error) {
	doc, err := q.store.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", documentID, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// A document already waiting or active keeps its existing job; two jobs
	// must never operate on the same document concurrently.
	if jobID, ok := q.byDoc[documentID]; ok {
		return copyJob(q.jobs[jobID]), nil
	}

	job := &models.Job{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		CaseID:     doc.CaseID,
		FileName:   doc.FileName,
		Status:     models.JobWaiting,
		CreatedAt:  time.Now(),
	}
	q.jobs[job.ID] = job
	q.byDoc[documentID] = job.ID

	select {
	case q.order <- job.ID:
	default:
		delete(q.jobs, job.ID)
		delete(q.byDoc, documentID)
		return nil, fmt.Errorf("enqueue %s: queue is full", documentID)
	}
	return copyJob(job), nil
}

func (q *IngestQueue) HasPending(documentID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byDoc[documentID]
	return ok
}

func (q *IngestQueue) GetJob(id string) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, core.ErrNotFound)
	}
	return copyJob(job), nil
}

func (q *IngestQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Waiting:   len(q.order),
		Active:    q.active,
		Completed: q.done,
		Failed:    q.failed,
	}
}

// run executes one job to completion. Jobs are not cancellable mid-flight;
// once started they finish or fail.
func (q *IngestQueue) run(ctx context.Context, jobID string) {
	now := time.Now()
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = models.JobActive
	job.StartedAt = &now
	q.active = 1
	q.mu.Unlock()

	progress := func(pct int) {
		q.mu.Lock()
		job.Progress = pct
		q.mu.Unlock()
	}

	// Shutdown stops the worker from picking up new jobs but never cancels
	// an in-flight one: a started job runs to completion or failure.
	summary, err := q.processor.ProcessDocument(context.WithoutCancel(ctx), job.DocumentID, progress)

	end := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	job.CompletedAt = &end
	job.Progress = 100
	job.Result = summary
	q.active = 0
	delete(q.byDoc, job.DocumentID)

	switch {
	case err != nil:
		job.Status = models.JobFailed
		job.Error = err.Error()
		q.failed++
		log.Printf("queue: job %s (document %s) failed: %v", job.ID, job.DocumentID, err)
	case summary != nil && summary.Status == models.StatusFailed:
		job.Status = models.JobFailed
		job.Error = fmt.Sprintf("document extraction failed (%d pages)", summary.PageCount)
		q.failed++
	default:
		job.Status = models.JobCompleted
		q.done++
	}
}

func copyJob(j *models.Job) *models.Job {
	if j == nil {
		return nil
	}
	cp := *j
	return &cp
}
