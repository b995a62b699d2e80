// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package recording

import "fmt"

// State is the recording session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateFailed    State = "failed"
	StateStopped   State = "stopped"
)

// IsTerminal reports whether no further event can leave the state.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// EventKind drives the lifecycle.
type EventKind string

const (
	EvStart        EventKind = "start"
	EvPause        EventKind = "pause"
	EvResume       EventKind = "resume"
	EvStop         EventKind = "stop"
	EvWriterFailed EventKind = "writer_failed"
)

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From  State
	To    State
	Event EventKind
}

var transitionsTable = []Transition{
	{From: StateIdle, To: StateRecording, Event: EvStart},

	{From: StateRecording, To: StatePaused, Event: EvPause},
	{From: StatePaused, To: StateRecording, Event: EvResume},

	{From: StateRecording, To: StateFailed, Event: EvWriterFailed},

	// stop releases the writer from every non-terminal state
	{From: StateIdle, To: StateStopped, Event: EvStop},
	{From: StateRecording, To: StateStopped, Event: EvStop},
	{From: StatePaused, To: StateStopped, Event: EvStop},
	{From: StateFailed, To: StateStopped, Event: EvStop},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

func illegalTransition(from State, ev EventKind) error {
	return fmt.Errorf("%w: %s + %s", ErrIllegalTransition, from, ev)
}
