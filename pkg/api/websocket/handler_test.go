package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aescanero/scenegen/pkg/adapters/events/memory"
	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

// fakeLookup serves one job and signals once the handler re-checks it
type fakeLookup struct {
	mu      sync.Mutex
	job     *domain.Job
	calls   int
	checked chan struct{}
}

func (f *fakeLookup) GetStatus(ctx context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.job == nil || f.job.ID != id {
		return nil, domain.ErrJobNotFound
	}
	f.calls++
	if f.calls == 2 {
		close(f.checked)
	}
	return f.job.Clone(), nil
}

func newStreamServer(t *testing.T, bus ports.EventBus, jobs JobLookup) *httptest.Server {
	t.Helper()
	return serve(t, NewHandler(bus, jobs, zaptest.NewLogger(t)))
}

func serve(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/jobs/:id/ws", h.HandleJobStream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// readUntilClose collects events until the server closes the stream
func readUntilClose(t *testing.T, conn *websocket.Conn) []domain.Event {
	t.Helper()
	var events []domain.Event
	for {
		var event domain.Event
		if err := conn.ReadJSON(&event); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("expected normal close, got %v", err)
			}
			return events
		}
		events = append(events, event)
	}
}

func dial(t *testing.T, srv *httptest.Server, jobID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/" + jobID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestStreamForwardsJobEventsUntilTerminal(t *testing.T) {
	bus := memory.NewEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	jobs := &fakeLookup{job: domain.NewJob("job-1", "p"), checked: make(chan struct{})}
	conn := dial(t, newStreamServer(t, bus, jobs), "job-1")

	select {
	case <-jobs.checked:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never subscribed")
	}

	ctx := context.Background()
	_ = bus.Publish(ctx, domain.TopicNodeEvents, domain.Event{Type: domain.EventTypeNodeStarted, JobID: "other", Node: "classify"})
	_ = bus.Publish(ctx, domain.TopicNodeEvents, domain.Event{Type: domain.EventTypeNodeStarted, JobID: "job-1", Node: "classify"})
	// the two topics are delivered independently, so let the node event land first
	time.Sleep(50 * time.Millisecond)
	_ = bus.Publish(ctx, domain.TopicJobEvents, domain.Event{Type: domain.EventTypeJobSucceeded, JobID: "job-1"})

	var first, second domain.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.JobID != "job-1" || first.Node != "classify" {
		t.Fatalf("first event = %+v", first)
	}
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read: %v", err)
	}
	if second.Type != domain.EventTypeJobSucceeded {
		t.Fatalf("second event = %+v", second)
	}

	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func TestStreamCompletedJob(t *testing.T) {
	bus := memory.NewEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	job := domain.NewJob("done", "p")
	_ = job.Start()
	_ = job.Succeed("https://media.example.test/done.mp4")
	conn := dial(t, newStreamServer(t, bus, &fakeLookup{job: job, checked: make(chan struct{})}), "done")

	var event domain.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != domain.EventTypeJobSucceeded || event.Data["result"] != "https://media.example.test/done.mp4" {
		t.Fatalf("event = %+v", event)
	}
}

func TestStreamUnknownJob(t *testing.T) {
	bus := memory.NewEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	srv := newStreamServer(t, bus, &fakeLookup{checked: make(chan struct{})})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/jobs/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("resp = %v", resp)
	}
}

func TestStreamSendsTrailingNodeEventsBeforeTerminal(t *testing.T) {
	bus := memory.NewEventBus(zaptest.NewLogger(t))
	defer bus.Close()

	jobs := &fakeLookup{job: domain.NewJob("job-2", "p"), checked: make(chan struct{})}
	conn := dial(t, newStreamServer(t, bus, jobs), "job-2")

	select {
	case <-jobs.checked:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never subscribed")
	}

	ctx := context.Background()
	_ = bus.Publish(ctx, domain.TopicJobEvents, domain.Event{Type: domain.EventTypeJobSucceeded, JobID: "job-2"})
	_ = bus.Publish(ctx, domain.TopicNodeEvents, domain.Event{Type: domain.EventTypeNodeCompleted, JobID: "job-2", Node: "execute"})

	events := readUntilClose(t, conn)
	if len(events) != 2 {
		t.Fatalf("events = %+v, want node completion then job success", events)
	}
	if events[0].Type != domain.EventTypeNodeCompleted || events[1].Type != domain.EventTypeJobSucceeded {
		t.Fatalf("events = %+v", events)
	}
}

// captureBus hands subscriptions to the test so it can deliver events itself
type captureBus struct {
	mu       sync.Mutex
	handlers map[string]ports.EventHandler
}

func (b *captureBus) Publish(context.Context, string, domain.Event) error { return nil }
func (b *captureBus) Close() error                                        { return nil }

func (b *captureBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *captureBus) deliver(topic string, event domain.Event) {
	b.mu.Lock()
	handler := b.handlers[topic]
	b.mu.Unlock()
	_ = handler(context.Background(), event)
}

// gatedLookup holds the handler's second lookup until released, and reports
// the job as finished from the third lookup on
type gatedLookup struct {
	mu         sync.Mutex
	calls      int
	subscribed chan struct{}
	release    chan struct{}
}

func (g *gatedLookup) GetStatus(ctx context.Context, id string) (*domain.Job, error) {
	g.mu.Lock()
	g.calls++
	calls := g.calls
	g.mu.Unlock()

	job := domain.NewJob(id, "p")
	_ = job.Start()
	switch {
	case calls == 2:
		close(g.subscribed)
		<-g.release
	case calls > 2:
		_ = job.Fail(domain.MessageTooComplex)
	}
	return job, nil
}

func TestStreamRecoversDroppedTerminalEvent(t *testing.T) {
	bus := &captureBus{handlers: make(map[string]ports.EventHandler)}
	jobs := &gatedLookup{subscribed: make(chan struct{}), release: make(chan struct{})}

	h := NewHandler(bus, jobs, zaptest.NewLogger(t))
	h.buffer = 1
	conn := dial(t, serve(t, h), "job-3")

	select {
	case <-jobs.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never subscribed")
	}

	// nothing drains the buffer yet, so the terminal event is dropped
	bus.deliver(domain.TopicNodeEvents, domain.Event{Type: domain.EventTypeNodeFailed, JobID: "job-3", Node: "execute"})
	bus.deliver(domain.TopicJobEvents, domain.Event{Type: domain.EventTypeJobFailed, JobID: "job-3"})
	close(jobs.release)

	events := readUntilClose(t, conn)
	if len(events) == 0 {
		t.Fatal("no events before close")
	}
	last := events[len(events)-1]
	if last.Type != domain.EventTypeJobFailed || last.Data["error"] != domain.MessageTooComplex {
		t.Fatalf("last event = %+v", last)
	}
}
