package workflow

import "fmt"

// Transition is a lifecycle change of a process instance that triggers dispatch.
type Transition string

const (
	TransitionStart    Transition = "start"
	TransitionPass     Transition = "pass"
	TransitionRefuse   Transition = "refuse"
	TransitionWithdraw Transition = "withdraw"
)

// String returns the string representation of the transition
func (t Transition) String() string {
	return string(t)
}

// IsValid reports whether t is one of the defined transitions
func (t Transition) IsValid() bool {
	switch t {
	case TransitionStart, TransitionPass, TransitionRefuse, TransitionWithdraw:
		return true
	default:
		return false
	}
}

// ParseTransition validates a raw transition name.
func ParseTransition(s string) (Transition, error) {
	t := Transition(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, s)
	}
	return t, nil
}

// Role is the relation of a recipient to the process.
type Role string

const (
	// RoleReviewer is a user required to act on a pending task.
	RoleReviewer Role = "reviewer"
	// RoleSubmitter is the user who started the process.
	RoleSubmitter Role = "submitter"
	// RoleNotifier is a cc recipient.
	RoleNotifier Role = "notifier"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Roles lists every role in dispatch order.
func Roles() []Role {
	return []Role{RoleReviewer, RoleSubmitter, RoleNotifier}
}
