package jobs

import (
	"testing"
	"time"

	"github.com/lessonloop/lessonloop/internal/artifacts"
	"github.com/lessonloop/lessonloop/internal/domain"
)

func newCollectionWithPlaceholder(jobID string) *artifacts.Collection {
	col := artifacts.NewCollection()
	col.Add(artifacts.Artifact{ID: "ep_existing", Kind: "episode", Title: "Intro", CreatedAt: time.Now()})
	col.Add(artifacts.Artifact{
		ID:        domain.NewJobReference(jobID).String(),
		Kind:      "episode",
		Title:     "Chapter 2 (generating)",
		CreatedAt: time.Now(),
	})
	return col
}

func TestResolverSubstitutesOnCompleted(t *testing.T) {
	col := newCollectionWithPlaceholder("job_1")
	r := NewResolver(col, nil)

	r.Observe(domain.Job{JobID: "job_1", Status: domain.JobStatusCompleted, ArtifactID: "ep_42"})

	if !col.Contains("ep_42") {
		t.Fatal("permanent artifact id missing after resolution")
	}
	if col.Contains(domain.NewJobReference("job_1").String()) {
		t.Fatal("placeholder must be gone after resolution")
	}
	if got := len(col.Snapshot()); got != 2 {
		t.Fatalf("resolution must substitute in place, got %d artifacts", got)
	}
}

func TestResolverRemovesOnError(t *testing.T) {
	col := newCollectionWithPlaceholder("job_1")
	r := NewResolver(col, nil)

	r.Observe(domain.Job{JobID: "job_1", Status: domain.JobStatusError, ErrorMessage: "synthesis failed"})

	if col.Contains(domain.NewJobReference("job_1").String()) {
		t.Fatal("failed job must not leave a dangling placeholder")
	}
	if !col.Contains("ep_existing") {
		t.Fatal("other artifacts must be untouched")
	}
}

func TestResolverRemovesOnCancelled(t *testing.T) {
	col := newCollectionWithPlaceholder("job_1")
	NewResolver(col, nil).Observe(domain.Job{JobID: "job_1", Status: domain.JobStatusCancelled})

	if col.Contains(domain.NewJobReference("job_1").String()) {
		t.Fatal("cancelled job must not leave a placeholder")
	}
}

func TestResolverIgnoresNonTerminal(t *testing.T) {
	col := newCollectionWithPlaceholder("job_1")
	NewResolver(col, nil).Observe(domain.Job{JobID: "job_1", Status: domain.JobStatusProcessing, Phase: "audio"})

	if !col.Contains(domain.NewJobReference("job_1").String()) {
		t.Fatal("non-terminal snapshot must not alter the collection")
	}
}

func TestResolverCompletedWithoutArtifactRemoves(t *testing.T) {
	col := newCollectionWithPlaceholder("job_1")
	NewResolver(col, nil).Observe(domain.Job{JobID: "job_1", Status: domain.JobStatusCompleted})

	if col.Contains(domain.NewJobReference("job_1").String()) {
		t.Fatal("unresolvable placeholder must be removed")
	}
}

func TestJobReferenceShape(t *testing.T) {
	ref := domain.NewJobReference("job_7")
	if !domain.IsJobReference(ref.String()) {
		t.Fatal("reference must be recognizable by shape")
	}
	if domain.IsJobReference("ep_7") {
		t.Fatal("artifact ids must not look like references")
	}
	if ref.JobID() != "job_7" {
		t.Fatalf("unexpected bare id: %q", ref.JobID())
	}
}
