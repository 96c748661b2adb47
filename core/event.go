package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entity types & actions carried by events.
const (
	EntityGrade      = "grade"
	EntityAttendance = "attendance"

	ActionCreated = "created"
	ActionUpdated = "updated"
)

// Event describes a committed write on a Grade or an Attendance record.
type Event struct {
	ID           string    `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityID     int64     `json:"entity_id"`
	Action       string    `json:"action"`
	StudentEmail string    `json:"student_email"`
	CourseName   string    `json:"course_name"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value"`
	ActorEmail   string    `json:"actor_email"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func NewEvent(entityType, action string, entityID int64) Event {
	return Event{
		ID:         uuid.New().String(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}

// EventHandler must not block: long work is handed to a JobQueue.
type EventHandler func(ctx context.Context, evt Event)

// EventBus delivers events synchronously to every subscribed handler, in subscription order.
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

func NewEventBus(handlers ...EventHandler) *EventBus {
	return &EventBus{handlers: handlers}
}

func (b *EventBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *EventBus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, evt)
	}
}

// NewAuditHandler logs every event.
func NewAuditHandler(logger Logger) EventHandler {
	return func(_ context.Context, evt Event) {
		var msg string
		switch evt.EntityType {
		case EntityGrade:
			msg = fmt.Sprintf("Grade %s: Student %s, Course %s, Grade %s, by %s",
				evt.Action, evt.StudentEmail, evt.CourseName, evt.NewValue, evt.ActorEmail)
		case EntityAttendance:
			msg = fmt.Sprintf("Attendance %s: Student %s, Course %s, Status %s, by %s",
				evt.Action, evt.StudentEmail, evt.CourseName, evt.NewValue, evt.ActorEmail)
		default:
			msg = fmt.Sprintf("%s %s: %s", evt.EntityType, evt.Action, evt.NewValue)
		}
		if evt.OldValue != "" {
			msg += " (was " + evt.OldValue + ")"
		}
		logger.Info(msg)
	}
}

// JobQueue runs named jobs asynchronously. Enqueue never blocks.
type JobQueue interface {
	Enqueue(name string, job func(ctx context.Context) error) error
}
