package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"backlog changed", TypeBacklogChanged, true},
		{"dispatch completed", TypeDispatchCompleted, true},
		{"empty", Type(""), false},
		{"unknown", Type("process.deleted"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	evt := NewEvent(TypeBacklogChanged, 42, "u1", map[string]interface{}{"role": "reviewer"})

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, TypeBacklogChanged, evt.Type)
	assert.Equal(t, int64(42), evt.ProcInstID)
	assert.Equal(t, "u1", evt.UserID)
	assert.False(t, evt.Timestamp.Before(before))

	other := NewEvent(TypeBacklogChanged, 42, "u1", nil)
	assert.NotEqual(t, evt.ID, other.ID)
}

func TestPayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeDispatchCompleted, 1, "", map[string]interface{}{
		"transition": "pass",
		"sent":       3,
		"failed":     float64(2),
		"wrong":      "x",
	})

	assert.Equal(t, "pass", evt.GetPayloadString("transition"))
	assert.Equal(t, "", evt.GetPayloadString("sent"))
	assert.Equal(t, int64(3), evt.GetPayloadInt("sent"))
	assert.Equal(t, int64(2), evt.GetPayloadInt("failed"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("wrong"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("missing"))
}
