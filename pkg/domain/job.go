package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward transition
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusSucceeded || next == JobStatusFailed
	default:
		return false
	}
}

// Job is the record the job manager keeps for one submitted request
type Job struct {
	ID          string     `json:"id"`
	Prompt      string     `json:"prompt"`
	Status      JobStatus  `json:"status"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a queued job record
func NewJob(id, prompt string) *Job {
	return &Job{
		ID:          id,
		Prompt:      prompt,
		Status:      JobStatusQueued,
		SubmittedAt: time.Now(),
	}
}

// Start moves the job from queued to running
func (j *Job) Start() error {
	if err := j.transition(JobStatusRunning); err != nil {
		return err
	}
	now := time.Now()
	j.StartedAt = &now
	return nil
}

// Succeed records the result and moves the job to succeeded
func (j *Job) Succeed(result string) error {
	if err := j.transition(JobStatusSucceeded); err != nil {
		return err
	}
	j.Result = result
	j.complete()
	return nil
}

// Fail records a caller-safe message and moves the job to failed
func (j *Job) Fail(message string) error {
	if err := j.transition(JobStatusFailed); err != nil {
		return err
	}
	j.Error = message
	j.complete()
	return nil
}

// Clone returns a copy that shares no pointers with j
func (j *Job) Clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (j *Job) transition(next JobStatus) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

func (j *Job) complete() {
	now := time.Now()
	j.CompletedAt = &now
}
