package policy

import (
	"context"

	"github.com/talgya/migration-sim/internal/lifecycle"
)

// Status represents the lifecycle state of a policy.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusExpired   Status = "expired"
)

// Valid returns true if the status is known.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusSuspended, StatusExpired:
		return true
	default:
		return false
	}
}

// Event represents an action that triggers a policy status change.
type Event string

const (
	EventActivate  Event = "activate"
	EventSuspend   Event = "suspend"
	EventReinstate Event = "reinstate"
	EventExpire    Event = "expire"
)

// Transitions defines all valid policy status changes.
var Transitions = []lifecycle.Transition{
	{Event: string(EventActivate), Src: string(StatusDraft), Dst: string(StatusActive)},
	{Event: string(EventSuspend), Src: string(StatusActive), Dst: string(StatusSuspended)},
	{Event: string(EventReinstate), Src: string(StatusSuspended), Dst: string(StatusActive)},
	{Event: string(EventExpire), Src: string(StatusActive), Dst: string(StatusExpired)},
	{Event: string(EventExpire), Src: string(StatusSuspended), Dst: string(StatusExpired)},
	{Event: string(EventExpire), Src: string(StatusDraft), Dst: string(StatusExpired)},
}

var machine = lifecycle.NewMachine("policy", Transitions)

// Transition returns the status reached by firing event from current.
func Transition(ctx context.Context, current Status, event Event) (Status, error) {
	dst, err := machine.Apply(ctx, string(current), string(event))
	if err != nil {
		return "", err
	}
	return Status(dst), nil
}
