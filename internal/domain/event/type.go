package event

// Type identifies the type of domain event
type Type string

const (
	// TypeBacklogChanged fires after a reviewer was messaged about a pending task.
	TypeBacklogChanged Type = "backlog.changed"
	// TypeDispatchCompleted fires once every recipient of a transition was attempted.
	TypeDispatchCompleted Type = "dispatch.completed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeBacklogChanged, TypeDispatchCompleted:
		return true
	default:
		return false
	}
}
