package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"go.uber.org/zap/zaptest"
)

type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	submitErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*domain.Job)}
}

func (f *fakeJobs) Submit(ctx context.Context, prompt string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrEmptyPrompt
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "job-" + prompt
	f.jobs[id] = domain.NewJob(id, prompt)
	return id, nil
}

func (f *fakeJobs) GetStatus(ctx context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job.Clone(), nil
}

func (f *fakeJobs) List(ctx context.Context) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Job, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j.Clone())
	}
	return out, nil
}

func (f *fakeJobs) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeJobs) put(job *domain.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func newTestServer(t *testing.T, jobs JobService) *Server {
	t.Helper()
	return NewServer(&Config{
		Jobs:    jobs,
		Metrics: http.NotFoundHandler(),
		Logger:  zaptest.NewLogger(t),
	})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func TestSubmitJob(t *testing.T) {
	s := newTestServer(t, newFakeJobs())

	w := do(t, s, http.MethodPost, "/api/v1/jobs", `{"prompt": "circle"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp JobSubmitResponse
	decode(t, w, &resp)
	if resp.JobID != "job-circle" || resp.Status != "queued" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	s := newTestServer(t, newFakeJobs())

	for _, body := range []string{``, `{}`, `{"prompt": ""}`, `{"prompt": "   "}`, `not json`} {
		w := do(t, s, http.MethodPost, "/api/v1/jobs", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", body, w.Code)
		}
		var resp ErrorResponse
		decode(t, w, &resp)
		if resp.Error.Code != "INVALID_REQUEST" {
			t.Fatalf("body %q: code = %s", body, resp.Error.Code)
		}
	}
}

func TestSubmitJobErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrShuttingDown, http.StatusServiceUnavailable},
		{errors.New("redis: connection refused"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		jobs := newFakeJobs()
		jobs.submitErr = tt.err
		w := do(t, newTestServer(t, jobs), http.MethodPost, "/api/v1/jobs", `{"prompt": "x"}`)
		if w.Code != tt.status {
			t.Fatalf("%v: status = %d, want %d", tt.err, w.Code, tt.status)
		}
		if strings.Contains(w.Body.String(), "redis") {
			t.Fatalf("internal error leaked: %s", w.Body.String())
		}
	}
}

func TestGetJob(t *testing.T) {
	jobs := newFakeJobs()
	s := newTestServer(t, jobs)

	queued := domain.NewJob("q", "p")
	jobs.put(queued)

	done := domain.NewJob("done", "p")
	_ = done.Start()
	done.RetryCount = 2
	_ = done.Succeed("https://media.example.test/a.mp4")
	jobs.put(done)

	failed := domain.NewJob("failed", "p")
	_ = failed.Start()
	_ = failed.Fail(domain.MessageTooComplex)
	jobs.put(failed)

	tests := []struct {
		id      string
		status  string
		message string
		result  string
		errMsg  string
	}{
		{"q", "queued", domain.MessageProcessing, "", ""},
		{"done", "succeeded", "", "https://media.example.test/a.mp4", ""},
		{"failed", "failed", "", "", domain.MessageTooComplex},
	}

	for _, tt := range tests {
		w := do(t, s, http.MethodGet, "/api/v1/jobs/"+tt.id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.id, w.Code)
		}
		var resp JobStatusResponse
		decode(t, w, &resp)
		if resp.Status != tt.status || resp.Message != tt.message || resp.Result != tt.result || resp.Error != tt.errMsg {
			t.Fatalf("%s: resp = %+v", tt.id, resp)
		}
	}
}

func TestGetUnknownJob(t *testing.T) {
	s := newTestServer(t, newFakeJobs())

	for _, path := range []string{"/api/v1/jobs/nope", "/status/nope"} {
		w := do(t, s, http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", path, w.Code)
		}
	}
}

func TestTaskRoutes(t *testing.T) {
	jobs := newFakeJobs()
	s := newTestServer(t, jobs)

	w := do(t, s, http.MethodPost, "/run-task", `{"prompt": "square"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("run-task status = %d", w.Code)
	}
	var submitted map[string]interface{}
	decode(t, w, &submitted)
	if submitted["task_id"] != "job-square" || submitted["status"] != "QUEUED" {
		t.Fatalf("run-task resp = %v", submitted)
	}

	w = do(t, s, http.MethodGet, "/status/job-square", "")
	var status map[string]interface{}
	decode(t, w, &status)
	if status["status"] != "QUEUED" || status["message"] != domain.MessageProcessing || status["result"] != nil {
		t.Fatalf("status resp = %v", status)
	}

	job, _ := jobs.GetStatus(context.Background(), "job-square")
	_ = job.Start()
	_ = job.Succeed("https://media.example.test/s.mp4")
	jobs.put(job)

	w = do(t, s, http.MethodGet, "/status/job-square", "")
	decode(t, w, &status)
	if status["status"] != "SUCCESS" || status["result"] != "https://media.example.test/s.mp4" {
		t.Fatalf("status resp = %v", status)
	}
}

func TestListJobsNewestFirst(t *testing.T) {
	jobs := newFakeJobs()
	older := domain.NewJob("older", "p")
	older.SubmittedAt = time.Now().Add(-time.Minute)
	jobs.put(older)
	jobs.put(domain.NewJob("newer", "p"))

	w := do(t, newTestServer(t, jobs), http.MethodGet, "/api/v1/jobs", "")
	var resp struct {
		Jobs  []JobStatusResponse `json:"jobs"`
		Total int                 `json:"total"`
	}
	decode(t, w, &resp)
	if resp.Total != 2 || resp.Jobs[0].JobID != "newer" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthAndCORS(t *testing.T) {
	s := newTestServer(t, newFakeJobs())

	w := do(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}

	w = do(t, s, http.MethodOptions, "/api/v1/jobs", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
}
