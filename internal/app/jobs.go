package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/tierlens/internal/adapters/mq/queue"
	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/pkg/logger"
)

// JobView is what a poller sees of an analysis job.
type JobView struct {
	ID          string          `json:"id"`
	Status      model.JobStatus `json:"status"`
	Category    string          `json:"category"`
	SubmittedAt time.Time       `json:"submitted_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	Error       string          `json:"error,omitempty"`
	Result      *Analysis       `json:"result,omitempty"`
}

type jobEntry struct {
	view    JobView
	request model.AnalysisRequest
}

// jobTable holds job state in memory. Finished jobs expire after retention.
type jobTable struct {
	mu        sync.Mutex
	entries   map[string]*jobEntry
	retention time.Duration
}

func newJobTable(retention time.Duration) *jobTable {
	return &jobTable{entries: make(map[string]*jobEntry), retention: retention}
}

func (t *jobTable) add(j model.Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[j.ID] = &jobEntry{
		view:    JobView{ID: j.ID, Status: model.JobQueued, Category: j.Request.Category, SubmittedAt: j.SubmittedAt},
		request: j.Request,
	}
}

func (t *jobTable) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// start marks a job running. It reports false for unknown or already started jobs.
func (t *jobTable) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok || e.view.Status != model.JobQueued {
		return false
	}
	e.view.Status = model.JobRunning
	return true
}

func (t *jobTable) finish(id string, result *Analysis, err error, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return
	}
	e.view.FinishedAt = &now
	if err != nil {
		e.view.Status = model.JobFailed
		e.view.Error = err.Error()
		return
	}
	e.view.Status = model.JobDone
	e.view.Result = result
}

func (t *jobTable) get(id string, viewer Viewer) (JobView, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return JobView{}, false
	}
	// a job's result is scoped to its submitter
	if !viewer.Admin && e.request.Viewer != viewer.ID {
		return JobView{}, false
	}
	return e.view, true
}

// expire drops jobs finished more than retention before now.
func (t *jobTable) expire(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, e := range t.entries {
		if e.view.FinishedAt != nil && now.Sub(*e.view.FinishedAt) > t.retention {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

// abandon fails every job still waiting in the queue.
func (t *jobTable) abandon(now time.Time, err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.view.Status != model.JobQueued {
			continue
		}
		finished := now
		e.view.Status = model.JobFailed
		e.view.Error = err.Error()
		e.view.FinishedAt = &finished
		n++
	}
	return n
}

func (t *jobTable) counts() map[model.JobStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[model.JobStatus]int{}
	for _, e := range t.entries {
		out[e.view.Status]++
	}
	return out
}

// SubmitAnalysis queues an analysis of category and returns the job id to poll.
func (s *Service) SubmitAnalysis(ctx context.Context, category string, viewer Viewer) (JobView, error) {
	category, err := normalizeCategory(category)
	if err != nil {
		return JobView{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return JobView{}, ErrNotStarted
	}

	j := model.Job{
		ID:          uuid.NewString(),
		Request:     model.AnalysisRequest{Viewer: viewer.ID, Admin: viewer.Admin, Category: category, Themes: s.themeCount},
		SubmittedAt: time.Now().UTC(),
	}
	s.jobs.add(j)
	if err := s.jobQueue.Enqueue(ctx, j); err != nil {
		s.jobs.remove(j.ID)
		if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
			return JobView{}, fmt.Errorf("%w: %w", ErrQueueFull, err)
		}
		return JobView{}, fmt.Errorf("enqueue analysis: %w", err)
	}

	s.logger.Info(ctx, "analysis job queued",
		logger.String("job", j.ID),
		logger.String("category", category),
		logger.Int64("viewer", viewer.ID),
	)
	view, _ := s.jobs.get(j.ID, viewer)
	return view, nil
}

// Job returns the state of a job submitted by viewer.
func (s *Service) Job(_ context.Context, id string, viewer Viewer) (JobView, error) {
	view, ok := s.jobs.get(id, viewer)
	if !ok {
		return JobView{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return view, nil
}

// runJob is the worker pool's processor.
func (s *Service) runJob(ctx context.Context, j model.Job) error {
	if !s.jobs.start(j.ID) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, j.ID)
	}
	viewer := Viewer{ID: j.Request.Viewer, Admin: j.Request.Admin}
	result, err := s.analyze(ctx, j.Request.Category, viewer, j.Request.Themes, true)
	s.jobs.finish(j.ID, result, err, time.Now().UTC())
	return err
}
