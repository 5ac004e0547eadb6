package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/aescanero/scenegen/pkg/domain"
	"github.com/aescanero/scenegen/pkg/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
	// drainWait is how long node events may trail the terminal job event,
	// the two topics being delivered independently
	drainWait = 250 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobLookup returns the current record of a job
type JobLookup interface {
	GetStatus(ctx context.Context, jobID string) (*domain.Job, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	jobs     JobLookup
	buffer   int
	drain    time.Duration
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, jobs JobLookup, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		jobs:     jobs,
		buffer:   eventBuffer,
		drain:    drainWait,
		logger:   logger,
	}
}

// HandleJobStream streams the events of one job until it completes or the
// client goes away
func (h *Handler) HandleJobStream(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.jobs.GetStatus(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Job not found"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	logger := h.logger.With(zap.String("job_id", jobID))
	logger.Info("WebSocket connection established", zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before re-reading the job so a completion in between is not lost
	events := make(chan domain.Event, h.buffer)
	dropped := make(chan struct{}, 1)
	h.subscribe(ctx, jobID, events, dropped)

	if job, err = h.jobs.GetStatus(ctx, jobID); err == nil && job.Status.IsTerminal() {
		_ = h.write(conn, terminalEvent(job))
		return
	}

	go h.readPump(conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if isTerminal(event.Type) {
				h.finish(conn, events, event, logger)
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug("failed to write event", zap.Error(err))
				return
			}
		case <-dropped:
			// the lost event may have been the terminal one
			job, err := h.jobs.GetStatus(ctx, jobID)
			if err == nil && job.Status.IsTerminal() {
				h.finish(conn, events, terminalEvent(job), logger)
				return
			}
		}
	}
}

// finish forwards node events still in flight, then sends the terminal
// event and closes the stream
func (h *Handler) finish(conn *websocket.Conn, events <-chan domain.Event, terminal domain.Event, logger *zap.Logger) {
	timer := time.NewTimer(h.drain)
	defer timer.Stop()

drain:
	for {
		select {
		case event := <-events:
			if isTerminal(event.Type) {
				continue
			}
			if err := h.write(conn, event); err != nil {
				logger.Debug("failed to write event", zap.Error(err))
				return
			}
		case <-timer.C:
			break drain
		}
	}

	if err := h.write(conn, terminal); err != nil {
		logger.Debug("failed to write event", zap.Error(err))
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job completed"),
		time.Now().Add(writeWait))
}

// subscribe forwards the job's events from both topics into ch and signals
// dropped when ch was full
func (h *Handler) subscribe(ctx context.Context, jobID string, ch chan<- domain.Event, dropped chan<- struct{}) {
	handler := func(ctx context.Context, event domain.Event) error {
		if event.JobID != jobID {
			return nil
		}
		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("job_id", jobID),
				zap.String("event_type", string(event.Type)))
			select {
			case dropped <- struct{}{}:
			default:
			}
		}
		return nil
	}

	for _, topic := range []string{domain.TopicJobEvents, domain.TopicNodeEvents} {
		if err := h.eventBus.Subscribe(ctx, topic, handler); err != nil {
			h.logger.Error("failed to subscribe to events",
				zap.String("topic", topic),
				zap.Error(err))
		}
	}
}

// readPump discards client messages and cancels the stream once the client closes
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(event)
}

func isTerminal(t domain.EventType) bool {
	return t == domain.EventTypeJobSucceeded || t == domain.EventTypeJobFailed
}

// terminalEvent describes a job that finished before the client connected
func terminalEvent(job *domain.Job) domain.Event {
	event := domain.Event{
		Type:  domain.EventTypeJobFailed,
		JobID: job.ID,
		Data:  map[string]interface{}{"error": job.Error, "retry_count": job.RetryCount},
	}
	if job.Status == domain.JobStatusSucceeded {
		event.Type = domain.EventTypeJobSucceeded
		event.Data = map[string]interface{}{"result": job.Result, "retry_count": job.RetryCount}
	}
	if job.CompletedAt != nil {
		event.Timestamp = *job.CompletedAt
	}
	return event
}
