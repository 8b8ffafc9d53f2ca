package jobs

import (
	"log/slog"

	"github.com/lessonloop/lessonloop/internal/artifacts"
	"github.com/lessonloop/lessonloop/internal/domain"
)

// Resolver reconciles job placeholders in cached artifact collections.
// While a job runs its collection entry carries a JobReference ID; on
// completion the reference is substituted with the permanent artifact
// identifier, and on failure the placeholder is removed so no dangling
// reference stays visible.
type Resolver struct {
	collection *artifacts.Collection
	logger     *slog.Logger
}

// NewResolver creates a resolver bound to one artifact collection.
func NewResolver(collection *artifacts.Collection, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{collection: collection, logger: logger}
}

// Observe applies one job snapshot to the collection. Non-terminal
// snapshots are no-ops; wire it as a Watch onUpdate callback.
func (r *Resolver) Observe(job domain.Job) {
	if !job.Status.Terminal() {
		return
	}
	ref := domain.NewJobReference(job.JobID).String()

	switch job.Status {
	case domain.JobStatusCompleted:
		if job.ArtifactID == "" {
			// Completed without an artifact leaves the reference
			// unresolvable; treat like a failure.
			r.logger.Warn("job completed without artifact id, removing placeholder",
				slog.String("job_id", job.JobID))
			r.collection.Remove(ref)
			return
		}
		if r.collection.ReplaceID(ref, job.ArtifactID) {
			r.logger.Info("resolved job placeholder",
				slog.String("job_id", job.JobID),
				slog.String("artifact_id", job.ArtifactID))
		}

	case domain.JobStatusError, domain.JobStatusCancelled:
		if r.collection.Remove(ref) {
			r.logger.Info("removed placeholder for failed job",
				slog.String("job_id", job.JobID),
				slog.String("status", string(job.Status)))
		}
	}
}
