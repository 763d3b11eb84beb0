package flows

import (
	"context"

	"github.com/talgya/migration-sim/internal/lifecycle"
)

// Status represents the lifecycle state of a flow.
type Status string

const (
	StatusPlanned     Status = "planned"
	StatusActive      Status = "active"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
)

// Event represents an action that triggers a flow status change.
type Event string

const (
	EventStart     Event = "start"
	EventInterrupt Event = "interrupt"
	EventResume    Event = "resume"
	EventComplete  Event = "complete"
)

// Transitions defines all valid flow status changes. Completed is terminal;
// flows are never deleted.
var Transitions = []lifecycle.Transition{
	{Event: string(EventStart), Src: string(StatusPlanned), Dst: string(StatusActive)},
	{Event: string(EventInterrupt), Src: string(StatusActive), Dst: string(StatusInterrupted)},
	{Event: string(EventResume), Src: string(StatusInterrupted), Dst: string(StatusActive)},
	{Event: string(EventComplete), Src: string(StatusActive), Dst: string(StatusCompleted)},
	{Event: string(EventComplete), Src: string(StatusInterrupted), Dst: string(StatusCompleted)},
	{Event: string(EventComplete), Src: string(StatusPlanned), Dst: string(StatusCompleted)},
}

var machine = lifecycle.NewMachine("flow", Transitions)

// Transition returns the status reached by firing event from current.
func Transition(ctx context.Context, current Status, event Event) (Status, error) {
	dst, err := machine.Apply(ctx, string(current), string(event))
	if err != nil {
		return "", err
	}
	return Status(dst), nil
}
