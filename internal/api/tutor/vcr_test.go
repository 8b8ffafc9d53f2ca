package tutor

import (
	"context"
	"testing"

	"github.com/lessonloop/lessonloop/internal/testutil"
)

func TestJobEndpointsAgainstFixture(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "job_status")
	defer cleanup()

	c := NewClient("test-token",
		WithBaseURL("https://api.lessonloop.dev"),
		WithHTTPClient(testutil.VCRHTTPClient(r)))

	status, err := c.JobStatus(context.Background(), "job_77")
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if status.Status != "completed" || status.ArtifactID != "ep_77" {
		t.Fatalf("unexpected status: %+v", status)
	}

	// Cancelling a finished job is acknowledged but not accepted.
	accepted, err := c.CancelJob(context.Background(), "job_77")
	if err != nil {
		t.Fatalf("CancelJob returned error: %v", err)
	}
	if accepted {
		t.Fatal("cancel of a terminal job must not be accepted")
	}
}
