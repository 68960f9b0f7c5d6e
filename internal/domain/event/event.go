package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/docflow/internal/domain/entity"
)

// Event represents a domain event raised by a change to a request
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	RequestID     string                 `json:"request_id"`
	ActorID       string                 `json:"actor_id,omitempty"`
	Request       *entity.Request        `json:"request,omitempty"` // snapshot after the change
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event carrying a snapshot of req
func NewEvent(eventType Type, req *entity.Request, actorID string, payload map[string]interface{}) *Event {
	e := &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.NewString(),
	}
	if e.Payload == nil {
		e.Payload = make(map[string]interface{})
	}
	if req != nil {
		e.RequestID = req.ID
		e.Request = req.Clone()
	}
	return e
}

// WithCorrelation returns a copy of the event linked to an existing correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	c := *e
	c.CorrelationID = correlationID
	return &c
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	c := *e
	c.Payload = newPayload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
