package domain

import "strings"

// JobStatus is the lifecycle state of a background generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status ends the job's poll loop.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// Job is a snapshot of a long-running background task. Only the tracker's
// poll loop writes it; external callers read copies.
type Job struct {
	JobID           string
	Status          JobStatus
	Phase           string
	PhasePercentage float64
	Current         int
	Total           int
	ArtifactID      string
	ErrorMessage    string
}

// jobRefPrefix marks a placeholder identifier standing in for an artifact
// that a job has not produced yet.
const jobRefPrefix = "command:"

// JobReference is the placeholder identifier shown in artifact collections
// while a generation job is still running.
type JobReference string

// NewJobReference builds the placeholder identifier for a job.
func NewJobReference(jobID string) JobReference {
	return JobReference(jobRefPrefix + jobID)
}

// IsJobReference reports whether an identifier is a placeholder rather than
// an addressable artifact ID. Callers must check this before dereferencing.
func IsJobReference(id string) bool {
	return strings.HasPrefix(id, jobRefPrefix)
}

// JobID strips the placeholder prefix, returning the bare job identifier to
// poll. A non-reference value is returned unchanged so callers can pass
// either form.
func (r JobReference) JobID() string {
	return strings.TrimPrefix(string(r), jobRefPrefix)
}

func (r JobReference) String() string { return string(r) }
