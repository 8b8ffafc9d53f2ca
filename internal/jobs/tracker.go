package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lessonloop/lessonloop/internal/api/tutor"
	"github.com/lessonloop/lessonloop/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second

	// maxConsecutivePollFailures bounds transient poll faults before a
	// watch gives up. A single failed poll never stops a running job.
	maxConsecutivePollFailures = 5
)

// StatusClient is the slice of the tutor API the tracker depends on.
type StatusClient interface {
	JobStatus(ctx context.Context, jobID string) (*tutor.JobStatusResponse, error)
	CancelJob(ctx context.Context, jobID string) (bool, error)
}

// TrackerOption configures the tracker.
type TrackerOption func(*Tracker)

// WithPollInterval sets the fixed interval between polls.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger }
}

// Tracker polls background jobs until they reach a terminal state. Each
// job's record is written only by its own watch loop; external callers
// read snapshots or request cancellation.
type Tracker struct {
	client   StatusClient
	interval time.Duration
	logger   *slog.Logger

	mu   sync.RWMutex
	jobs map[string]domain.Job
}

// NewTracker creates a tracker.
func NewTracker(client StatusClient, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		client:   client,
		interval: defaultPollInterval,
		logger:   slog.Default(),
		jobs:     make(map[string]domain.Job),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Watch polls the job at a fixed interval until a terminal status is
// observed, then returns the final snapshot. onUpdate, when non-nil, is
// invoked after every successful poll with the fresh snapshot. The id may
// be a bare job ID or a placeholder reference; the prefix is stripped
// before querying.
//
// Polling never stops while the job is non-terminal: a cancel request is
// advisory and transient poll faults are retried at the next tick, up to a
// consecutive-failure cap after which a retryable error is returned.
func (t *Tracker) Watch(ctx context.Context, id string, onUpdate func(domain.Job)) (domain.Job, error) {
	jobID := domain.JobReference(id).JobID()

	failures := 0
	for {
		status, err := t.client.JobStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return t.snapshotOrZero(jobID), domain.ErrCancelled().WithCause(ctx.Err())
			}
			failures++
			t.logger.Warn("job poll failed",
				slog.String("job_id", jobID),
				slog.Int("consecutive_failures", failures),
				slog.String("error", err.Error()))
			if failures >= maxConsecutivePollFailures {
				return t.snapshotOrZero(jobID), domain.ErrJob("lost contact with the generation job", true, err)
			}
		} else {
			failures = 0
			job := jobFromStatus(jobID, status)
			t.mu.Lock()
			t.jobs[jobID] = job
			t.mu.Unlock()

			if onUpdate != nil {
				onUpdate(job)
			}

			if job.Status.Terminal() {
				t.logger.Info("job reached terminal state",
					slog.String("job_id", jobID),
					slog.String("status", string(job.Status)))
				return job, nil
			}
		}

		select {
		case <-ctx.Done():
			return t.snapshotOrZero(jobID), domain.ErrCancelled().WithCause(ctx.Err())
		case <-time.After(t.interval):
		}
	}
}

// Cancel issues an advisory cancellation request. It does not stop any
// watch loop: the job may already be past a cancellable point, so polling
// continues until the backend reports a terminal state.
func (t *Tracker) Cancel(ctx context.Context, id string) (bool, error) {
	jobID := domain.JobReference(id).JobID()
	accepted, err := t.client.CancelJob(ctx, jobID)
	if err != nil {
		return false, domain.ErrJob("could not request cancellation", true, err)
	}
	t.logger.Info("job cancellation requested",
		slog.String("job_id", jobID),
		slog.Bool("accepted", accepted))
	return accepted, nil
}

// Snapshot returns the last observed state of a job.
func (t *Tracker) Snapshot(id string) (domain.Job, bool) {
	jobID := domain.JobReference(id).JobID()
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[jobID]
	return job, ok
}

// Forget drops a job's record once a consumer has acknowledged its
// terminal state.
func (t *Tracker) Forget(id string) {
	jobID := domain.JobReference(id).JobID()
	t.mu.Lock()
	delete(t.jobs, jobID)
	t.mu.Unlock()
}

func (t *Tracker) snapshotOrZero(jobID string) domain.Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.jobs[jobID]
}

// jobFromStatus converts a poll response, degrading gracefully on
// best-effort fields: a missing phase reads as "starting", a missing
// percentage as 0.
func jobFromStatus(jobID string, s *tutor.JobStatusResponse) domain.Job {
	job := domain.Job{
		JobID:        jobID,
		Status:       domain.JobStatus(s.Status),
		Phase:        s.Phase,
		Current:      s.Current,
		Total:        s.Total,
		ArtifactID:   s.ArtifactID,
		ErrorMessage: s.Error,
	}
	if job.Phase == "" {
		job.Phase = "starting"
	}
	if s.Percentage != nil {
		job.PhasePercentage = *s.Percentage
	}
	return job
}

// Progress returns the overall weighted percentage for a job snapshot.
func Progress(job domain.Job) float64 {
	if job.Status == domain.JobStatusCompleted {
		return 100
	}
	return OverallProgress(job.Phase, job.PhasePercentage)
}
