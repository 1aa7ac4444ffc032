package player

import "sync"

// SegmentState represents where the current segment is in its lifecycle.
type SegmentState int

const (
	// StateAbsent indicates no resources exist for the segment.
	StateAbsent SegmentState = iota
	// StateLoading indicates the segment is current but its bytes are missing.
	StateLoading
	// StateReady indicates resources are built but not playing.
	StateReady
	// StatePlaying indicates playback was started on the segment's media.
	StatePlaying
	// StateEnded indicates the media reached its natural end.
	StateEnded
)

// String returns the string representation of the state.
func (s SegmentState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// StateMachine manages state transitions for the current segment.
type StateMachine struct {
	mu          sync.RWMutex
	current     SegmentState
	segment     SegmentID
	transitions map[SegmentState][]SegmentState
}

// NewStateMachine creates a new state machine with valid transitions.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateAbsent,
		transitions: map[SegmentState][]SegmentState{
			StateAbsent:  {StateLoading, StateReady},
			StateLoading: {StateReady, StateAbsent},
			StateReady:   {StatePlaying, StateAbsent},
			StatePlaying: {StateReady, StateEnded, StateAbsent},
			StateEnded:   {StateAbsent},
		},
	}
}

func (sm *StateMachine) canTransition(to SegmentState) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to move to the specified state for segment.
// A transition to the current state for the same segment is a no-op that
// succeeds. Moving to StateAbsent is always allowed.
func (sm *StateMachine) Transition(segment SegmentID, to SegmentState) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == to && sm.segment == segment {
		return true
	}
	if to != StateAbsent && !sm.canTransition(to) {
		return false
	}
	sm.current = to
	sm.segment = segment
	return true
}

// Current returns the current state and the segment it applies to.
func (sm *StateMachine) Current() (SegmentState, SegmentID) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current, sm.segment
}
