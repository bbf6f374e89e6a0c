package workflow

import "fmt"

// Action is what the dispatcher does for one recipient role on a transition.
type Action string

const (
	// ActionCreate sends a new message.
	ActionCreate Action = "create"
	// ActionUpdate edits the message recorded for the recipient, if any.
	ActionUpdate Action = "update"
	// ActionPromote treats the current candidates as reviewers of a new start.
	ActionPromote Action = "promote"
	// ActionSuppress sends nothing.
	ActionSuppress Action = "suppress"
)

type rule struct {
	finished Action
	running  Action
}

// Policy maps (transition, role, finished) to an Action.
type Policy struct {
	rules map[Transition]map[Role]rule
}

// PolicyBuilder assembles a Policy one transition at a time.
type PolicyBuilder struct {
	rules map[Transition]map[Role]rule
}

// TransitionRules configures the roles of a single transition.
type TransitionRules struct {
	rules map[Role]rule
}

// NewPolicyBuilder creates an empty builder; unconfigured pairs are suppressed.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{rules: make(map[Transition]map[Role]rule)}
}

// Configure returns the rule set of a transition, creating it on first use.
func (b *PolicyBuilder) Configure(t Transition) *TransitionRules {
	if _, ok := b.rules[t]; !ok {
		b.rules[t] = make(map[Role]rule)
	}
	return &TransitionRules{rules: b.rules[t]}
}

// Always applies the same action whether or not the process has finished.
func (tr *TransitionRules) Always(role Role, action Action) *TransitionRules {
	tr.rules[role] = rule{finished: action, running: action}
	return tr
}

// Split applies one action to finished processes and another to running ones.
func (tr *TransitionRules) Split(role Role, finished, running Action) *TransitionRules {
	tr.rules[role] = rule{finished: finished, running: running}
	return tr
}

// Build freezes the configured rules.
func (b *PolicyBuilder) Build() *Policy {
	rules := make(map[Transition]map[Role]rule, len(b.rules))
	for t, roles := range b.rules {
		copied := make(map[Role]rule, len(roles))
		for r, ru := range roles {
			copied[r] = ru
		}
		rules[t] = copied
	}
	return &Policy{rules: rules}
}

// Decide returns the action for a role on a transition.
func (p *Policy) Decide(t Transition, role Role, finished bool) (Action, error) {
	roles, ok := p.rules[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTransition, t)
	}
	ru, ok := roles[role]
	if !ok {
		return ActionSuppress, nil
	}
	if finished {
		return ru.finished, nil
	}
	return ru.running, nil
}

// DefaultPolicy is the dispatch table used in production.
func DefaultPolicy() *Policy {
	b := NewPolicyBuilder()

	b.Configure(TransitionStart).
		Always(RoleReviewer, ActionCreate).
		Always(RoleSubmitter, ActionSuppress).
		Always(RoleNotifier, ActionCreate)

	b.Configure(TransitionPass).
		Always(RoleReviewer, ActionUpdate).
		Split(RoleSubmitter, ActionCreate, ActionPromote).
		Always(RoleNotifier, ActionCreate)

	b.Configure(TransitionRefuse).
		Always(RoleReviewer, ActionUpdate).
		Split(RoleSubmitter, ActionCreate, ActionSuppress).
		Always(RoleNotifier, ActionSuppress)

	b.Configure(TransitionWithdraw).
		Always(RoleReviewer, ActionUpdate).
		Always(RoleSubmitter, ActionSuppress).
		Always(RoleNotifier, ActionSuppress)

	return b.Build()
}
