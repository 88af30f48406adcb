// internal/handler/event_bus.go
package handler

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"print-service/internal/model"
)

// JobEvent is one lifecycle notification of a print job.
type JobEvent struct {
	Type        string           `json:"type"` // job_started, job_resolved
	JobID       uuid.UUID        `json:"job_id"`
	Destination string           `json:"destination"`
	Family      string           `json:"family"`
	Result      model.ResultCode `json:"result,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// EventBus fans job events out to subscribers. Slow subscribers drop events
// rather than stalling the publisher.
type EventBus struct {
	subscribers map[uint64]chan JobEvent
	nextID      uint64
	events      chan JobEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]chan JobEvent),
		events:      make(chan JobEvent, 1000),
		logger:      logger,
	}
}

// Start starts the event bus
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distribute(event)
	}
}

// Publish publishes an event
func (eb *EventBus) Publish(event JobEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", event.Type),
			zap.String("job_id", event.JobID.String()),
		)
	}
}

// Subscribe registers a subscriber. The returned cancel func must be called
// to release it.
func (eb *EventBus) Subscribe() (<-chan JobEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := eb.nextID
	eb.nextID++
	ch := make(chan JobEvent, 100)
	eb.subscribers[id] = ch

	cancel := func() {
		eb.mutex.Lock()
		defer eb.mutex.Unlock()
		if sub, ok := eb.subscribers[id]; ok {
			delete(eb.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// distribute delivers an event to every subscriber
func (eb *EventBus) distribute(event JobEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}

// JobStarted builds the start-of-job event.
func JobStarted(job *model.PrintJob) JobEvent {
	return JobEvent{
		Type:        "job_started",
		JobID:       job.ID,
		Destination: job.Destination,
		Family:      string(job.Family),
		Timestamp:   time.Now(),
	}
}

// JobResolved builds the terminal event.
func JobResolved(job *model.PrintJob, result model.ResultCode) JobEvent {
	return JobEvent{
		Type:        "job_resolved",
		JobID:       job.ID,
		Destination: job.Destination,
		Family:      string(job.Family),
		Result:      result,
		Timestamp:   time.Now(),
	}
}
