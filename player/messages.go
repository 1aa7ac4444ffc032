package player

import "time"

// Messages emitted by the synchronizer for UIs and other observers. They are
// plain values so they can be forwarded into a Bubble Tea program as-is.

// SegmentLoadingMsg indicates the current segment is waiting for its bytes.
type SegmentLoadingMsg struct {
	Segment SegmentID
}

// SegmentReadyMsg indicates resources were built for a segment.
type SegmentReadyMsg struct {
	Segment  SegmentID
	Position int
}

// SegmentPlayingMsg indicates playback started on a segment.
type SegmentPlayingMsg struct {
	Segment  SegmentID
	Position int
	Waited   time.Duration // Time spent waiting for readiness
}

// SegmentPausedMsg indicates playback was paused on a segment.
type SegmentPausedMsg struct {
	Segment SegmentID
}

// SegmentEndedMsg indicates a segment played to its natural end.
type SegmentEndedMsg struct {
	Segment  SegmentID
	Position int
	Advanced bool // Whether the next position was requested
}

// SegmentReleasedMsg indicates a segment's resources were torn down.
type SegmentReleasedMsg struct {
	Segment SegmentID
	Reason  string
}

// DecodeFailedMsg indicates a segment's bytes could not be decoded.
type DecodeFailedMsg struct {
	Segment SegmentID
	Err     error
}

// BufferingStalledMsg indicates the readiness wait timed out.
type BufferingStalledMsg struct {
	Segment SegmentID
	Waited  time.Duration
}

// StateChangedMsg indicates the segment state machine moved.
type StateChangedMsg struct {
	Segment   SegmentID
	State     SegmentState
	PrevState SegmentState
	Timestamp time.Time
}
