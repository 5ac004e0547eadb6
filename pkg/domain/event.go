package domain

import "time"

// EventType identifies a job lifecycle event
type EventType string

const (
	EventTypeJobSubmitted  EventType = "job.submitted"
	EventTypeJobRunning    EventType = "job.running"
	EventTypeJobSucceeded  EventType = "job.succeeded"
	EventTypeJobFailed     EventType = "job.failed"
	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeCompleted EventType = "node.completed"
	EventTypeNodeFailed    EventType = "node.failed"
)

// Event topics
const (
	TopicJobEvents  = "job.events"
	TopicNodeEvents = "node.events"
)

// Event is published on the event bus while a job runs
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id"`
	Node      string                 `json:"node,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
