package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verdicta-io/verdicta/internal/core"
	"github.com/verdicta-io/verdicta/internal/core/coretest"
	"github.com/verdicta-io/verdicta/internal/models"
)

// slowProcessor records the order documents are processed in and can hold a
// job open until released, to observe the single-active invariant.
type slowProcessor struct {
	mu      sync.Mutex
	order   []string
	hold    chan struct{} // when non-nil, each call blocks until a receive
	active  atomic.Int32
	maxSeen atomic.Int32
	fail    map[string]bool // documentID -> return an error
	summary map[string]*models.ExtractionSummary
}

func (p *slowProcessor) ProcessDocument(ctx context.Context, documentID string, progress func(int)) (*models.ExtractionSummary, error) {
	n := p.active.Add(1)
	if n > p.maxSeen.Load() {
		p.maxSeen.Store(n)
	}
	defer p.active.Add(-1)

	if p.hold != nil {
		<-p.hold
	}
	p.mu.Lock()
	p.order = append(p.order, documentID)
	p.mu.Unlock()

	if progress != nil {
		progress(100)
	}
	if p.fail[documentID] {
		return nil, errors.New("processing blew up")
	}
	if s, ok := p.summary[documentID]; ok {
		return s, nil
	}
	return &models.ExtractionSummary{Status: models.StatusCompleted, PageCount: 1, ProcessedPages: 1}, nil
}

func (p *slowProcessor) processedOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

func seedDocs(store *coretest.MemStore, ids ...string) {
	for _, id := range ids {
		store.Docs[id] = &models.Document{
			ID:        id,
			CaseID:    "case-1",
			FileName:  id + ".pdf",
			OCRStatus: models.StatusPending,
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEnqueueUnknownDocument(t *testing.T) {
	q := NewIngestQueue(coretest.NewMemStore(), &slowProcessor{})
	_, err := q.Enqueue(context.Background(), "ghost")
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestGetJobUnknown(t *testing.T) {
	q := NewIngestQueue(coretest.NewMemStore(), &slowProcessor{})
	if _, err := q.GetJob("nope"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestJobsCompleteInFIFOOrder(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a", "doc-b", "doc-c")
	proc := &slowProcessor{}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := make([]*models.Job, 0, 3)
	for _, id := range []string{"doc-a", "doc-b", "doc-c"} {
		job, err := q.Enqueue(ctx, id)
		if err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
		if job.Status != models.JobWaiting {
			t.Errorf("job %s status = %q, want waiting", id, job.Status)
		}
		jobs = append(jobs, job)
	}

	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Completed == 3 })

	got := proc.processedOrder()
	want := []string{"doc-a", "doc-b", "doc-c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed order = %v, want %v", got, want)
		}
	}
	for _, j := range jobs {
		final, err := q.GetJob(j.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if final.Status != models.JobCompleted {
			t.Errorf("job %s status = %q, want completed", j.ID, final.Status)
		}
		if final.Progress != 100 {
			t.Errorf("job %s progress = %d, want 100", j.ID, final.Progress)
		}
		if final.StartedAt == nil || final.CompletedAt == nil {
			t.Errorf("job %s missing timestamps", j.ID)
		}
		if final.Result == nil || final.Result.Status != models.StatusCompleted {
			t.Errorf("job %s result = %+v", j.ID, final.Result)
		}
	}
	if proc.maxSeen.Load() != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", proc.maxSeen.Load())
	}
}

func TestAtMostOneActiveJob(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a", "doc-b")
	proc := &slowProcessor{hold: make(chan struct{})}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobA, _ := q.Enqueue(ctx, "doc-a")
	jobB, _ := q.Enqueue(ctx, "doc-b")
	q.Start(ctx)

	waitFor(t, func() bool { return q.Stats().Active == 1 })
	stats := q.Stats()
	if stats.Active != 1 || stats.Waiting != 1 {
		t.Errorf("stats = %+v, want one active and one waiting", stats)
	}
	a, _ := q.GetJob(jobA.ID)
	b, _ := q.GetJob(jobB.ID)
	if a.Status != models.JobActive {
		t.Errorf("first job status = %q, want active", a.Status)
	}
	if b.Status != models.JobWaiting {
		t.Errorf("second job status = %q, want waiting", b.Status)
	}

	proc.hold <- struct{}{}
	proc.hold <- struct{}{}
	waitFor(t, func() bool { return q.Stats().Completed == 2 })
	if got := q.Stats(); got.Active != 0 || got.Waiting != 0 {
		t.Errorf("final stats = %+v", got)
	}
}

func TestEnqueueDeduplicatesPerDocument(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	q := NewIngestQueue(store, &slowProcessor{hold: make(chan struct{})})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := q.Enqueue(ctx, "doc-a")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := q.Enqueue(ctx, "doc-a")
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("re-enqueue created a new job: %s vs %s", first.ID, second.ID)
	}
	if q.Stats().Waiting != 1 {
		t.Errorf("waiting = %d, want 1", q.Stats().Waiting)
	}
}

func TestProcessorErrorFailsJob(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &slowProcessor{fail: map[string]bool{"doc-a": true}}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, _ := q.Enqueue(ctx, "doc-a")
	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Failed == 1 })

	final, _ := q.GetJob(job.ID)
	if final.Status != models.JobFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
	if final.Error == "" {
		t.Error("failed job carries no error message")
	}
}

func TestDocumentLevelFailureFailsJob(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &slowProcessor{summary: map[string]*models.ExtractionSummary{
		"doc-a": {Status: models.StatusFailed, PageCount: 3, FailedPages: 3},
	}}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, _ := q.Enqueue(ctx, "doc-a")
	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Failed == 1 })

	final, _ := q.GetJob(job.ID)
	if final.Status != models.JobFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
	if final.Result == nil || final.Result.Status != models.StatusFailed {
		t.Errorf("result = %+v", final.Result)
	}
}

func TestManualReviewCountsAsCompleted(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &slowProcessor{summary: map[string]*models.ExtractionSummary{
		"doc-a": {Status: models.StatusManualReview, PageCount: 3, ProcessedPages: 2, FailedPages: 1},
	}}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, _ := q.Enqueue(ctx, "doc-a")
	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Completed == 1 })

	final, _ := q.GetJob(job.ID)
	if final.Status != models.JobCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}
	if final.Result.Status != models.StatusManualReview {
		t.Errorf("result status = %q, want MANUAL_REVIEW", final.Result.Status)
	}
}

func TestHasPendingTracksJobLifetime(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &slowProcessor{hold: make(chan struct{})}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if q.HasPending("doc-a") {
		t.Error("no job enqueued yet")
	}
	if _, err := q.Enqueue(ctx, "doc-a"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !q.HasPending("doc-a") {
		t.Error("waiting job not reported")
	}

	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Active == 1 })
	if !q.HasPending("doc-a") {
		t.Error("active job not reported")
	}

	proc.hold <- struct{}{}
	waitFor(t, func() bool { return q.Stats().Completed == 1 })
	if q.HasPending("doc-a") {
		t.Error("finished job still reported")
	}
}

func TestEnqueueFailsWhenQueueFull(t *testing.T) {
	store := coretest.NewMemStore()
	ids := make([]string, queueCapacity+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("doc-%03d", i)
	}
	seedDocs(store, ids...)

	// Worker not started, so nothing drains the buffer.
	q := NewIngestQueue(store, &slowProcessor{})
	ctx := context.Background()
	for _, id := range ids[:queueCapacity] {
		if _, err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	_, err := q.Enqueue(ctx, ids[queueCapacity])
	if err == nil || !strings.Contains(err.Error(), "queue is full") {
		t.Errorf("got %v, want queue-is-full error", err)
	}
	if got := q.Stats().Waiting; got != queueCapacity {
		t.Errorf("waiting = %d, want %d", got, queueCapacity)
	}
}

// ctxWatchProcessor completes only when released and records whether its
// context was cancelled first.
type ctxWatchProcessor struct {
	release   chan struct{}
	sawCancel atomic.Bool
}

func (p *ctxWatchProcessor) ProcessDocument(ctx context.Context, documentID string, progress func(int)) (*models.ExtractionSummary, error) {
	select {
	case <-ctx.Done():
		p.sawCancel.Store(true)
		return nil, ctx.Err()
	case <-p.release:
	}
	return &models.ExtractionSummary{Status: models.StatusCompleted, PageCount: 1, ProcessedPages: 1}, nil
}

func TestShutdownDoesNotCancelActiveJob(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &ctxWatchProcessor{release: make(chan struct{})}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	job, err := q.Enqueue(ctx, "doc-a")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Start(ctx)
	waitFor(t, func() bool { return q.Stats().Active == 1 })

	// Shutdown while the job is mid-flight.
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(proc.release)

	waitFor(t, func() bool { return q.Stats().Completed == 1 })
	if proc.sawCancel.Load() {
		t.Error("in-flight job observed cancellation; started jobs must run to completion")
	}
	final, err := q.GetJob(job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if final.Status != models.JobCompleted {
		t.Errorf("status = %q, want completed", final.Status)
	}
}

func TestReEnqueueAfterCompletionCreatesNewJob(t *testing.T) {
	store := coretest.NewMemStore()
	seedDocs(store, "doc-a")
	proc := &slowProcessor{}
	q := NewIngestQueue(store, proc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	first, _ := q.Enqueue(ctx, "doc-a")
	waitFor(t, func() bool { return q.Stats().Completed == 1 })

	second, err := q.Enqueue(ctx, "doc-a")
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if second.ID == first.ID {
		t.Error("finished document should get a fresh job on re-enqueue")
	}
	waitFor(t, func() bool { return q.Stats().Completed == 2 })
}
