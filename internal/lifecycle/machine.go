// Package lifecycle validates status transitions for flows and policies
// using looplab/fsm.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	loopfsm "github.com/looplab/fsm"
)

// Transition defines a valid state change: an event moves an entity from Src to Dst.
type Transition struct {
	Event string
	Src   string
	Dst   string
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Machine string
	Event   string
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: event %q is not valid from state %q", e.Machine, e.Event, e.Current)
}

// Machine holds a transition table in looplab/fsm form.
type Machine struct {
	name   string
	events []loopfsm.EventDesc
}

// NewMachine groups transitions that share an event and destination into a
// single EventDesc with multiple sources.
func NewMachine(name string, transitions []Transition) *Machine {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: t.Event, dst: t.Dst}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], t.Src)
	}

	events := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		events = append(events, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return &Machine{name: name, events: events}
}

// Apply returns the destination state for event fired from current.
// A fresh FSM is built per call since looplab/fsm tracks its own state.
func (m *Machine) Apply(ctx context.Context, current, event string) (string, error) {
	machine := loopfsm.NewFSM(current, m.events, nil)

	if err := machine.Event(ctx, event); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &TransitionError{Machine: m.name, Event: event, Current: current}
		}
		return "", err
	}

	return machine.Current(), nil
}

// Can reports whether event is valid from current.
func (m *Machine) Can(current, event string) bool {
	return loopfsm.NewFSM(current, m.events, nil).Can(event)
}
