package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is an in-process notification about something that happened to a process instance.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	ProcInstID int64                  `json:"proc_inst_id"`
	UserID     string                 `json:"userid,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and the current timestamp
func NewEvent(eventType Type, procInstID int64, userID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ProcInstID: procInstID,
		UserID:     userID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
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

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	switch v := e.Payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}
