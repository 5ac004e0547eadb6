package http

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobSubmitRequest represents a job submission request
type JobSubmitRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// JobSubmitResponse represents a job submission response
type JobSubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse represents a job status response. Result holds the
// locator or direct reply once the job succeeded; Error holds the safe
// message once it failed.
type JobStatusResponse struct {
	JobID       string     `json:"job_id"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.jobs.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// handleSubmitJob handles job submission
func (s *Server) handleSubmitJob(c *gin.Context) {
	jobID, ok := s.submit(c)
	if !ok {
		return
	}

	c.JSON(http.StatusAccepted, JobSubmitResponse{
		JobID:  jobID,
		Status: string(domain.JobStatusQueued),
	})
}

// handleGetJob handles job status queries
func (s *Server) handleGetJob(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toStatusResponse(job))
}

// handleListJobs lists known jobs, newest first
func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.jobs.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "INTERNAL", domain.MessageInternal)
		return
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
	})

	out := make([]JobStatusResponse, len(jobs))
	for i, job := range jobs {
		out[i] = toStatusResponse(job)
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  out,
		"total": len(out),
	})
}

// handleRunTask is the task-style submission route
func (s *Server) handleRunTask(c *gin.Context) {
	jobID, ok := s.submit(c)
	if !ok {
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": jobID,
		"status":  "QUEUED",
		"message": "Task submitted. Use /status/" + jobID + " to poll for result.",
	})
}

// handleTaskStatus is the task-style status route
func (s *Server) handleTaskStatus(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}

	resp := gin.H{
		"task_id": job.ID,
		"status":  legacyStatus(job.Status),
		"result":  nil,
	}
	switch job.Status {
	case domain.JobStatusSucceeded:
		resp["result"] = job.Result
	case domain.JobStatusFailed:
		resp["result"] = job.Error
	default:
		resp["message"] = domain.MessageProcessing
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) submit(c *gin.Context) (string, bool) {
	var req JobSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON with a non-empty prompt")
		return "", false
	}

	jobID, err := s.jobs.Submit(c.Request.Context(), req.Prompt)
	switch {
	case err == nil:
		return jobID, true
	case errors.Is(err, domain.ErrEmptyPrompt):
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrShuttingDown):
		errorJSON(c, http.StatusServiceUnavailable, "UNAVAILABLE", "server is shutting down")
	default:
		s.logger.Error("failed to submit job", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "SUBMISSION_FAILED", domain.MessageInternal)
	}
	return "", false
}

func (s *Server) lookup(c *gin.Context) (*domain.Job, bool) {
	jobID := c.Param("id")

	job, err := s.jobs.GetStatus(c.Request.Context(), jobID)
	switch {
	case err == nil:
		return job, true
	case errors.Is(err, domain.ErrJobNotFound):
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", "Job not found")
	default:
		s.logger.Error("failed to get job", zap.String("job_id", jobID), zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "INTERNAL", domain.MessageInternal)
	}
	return nil, false
}

func toStatusResponse(job *domain.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		RetryCount:  job.RetryCount,
		SubmittedAt: job.SubmittedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	switch job.Status {
	case domain.JobStatusSucceeded:
		resp.Result = job.Result
	case domain.JobStatusFailed:
		resp.Error = job.Error
	default:
		resp.Message = domain.MessageProcessing
	}
	return resp
}

func legacyStatus(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusRunning:
		return "STARTED"
	case domain.JobStatusSucceeded:
		return "SUCCESS"
	case domain.JobStatusFailed:
		return "FAILURE"
	default:
		return "QUEUED"
	}
}
