package player

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for the playback system.
var (
	// Segment errors
	ErrNotYetAvailable = errors.New("segment audio is not yet available")
	ErrDecodeFailure   = errors.New("segment audio could not be decoded")
	ErrStaleCompletion = errors.New("completion refers to a superseded segment")
	ErrBufferingStall  = errors.New("segment did not buffer enough data in time")

	// Media and context errors
	ErrContextClosed      = errors.New("audio context is closed")
	ErrContextUnavailable = errors.New("audio context is not available")
	ErrMediaClosed        = errors.New("media handle is closed")
	ErrSampleRateMismatch = errors.New("segment sample rate does not match output")
	ErrEmptyAudio         = errors.New("empty audio data")

	// Analyser errors
	ErrInvalidFFTSize   = errors.New("fft size must be a power of two between 32 and 32768")
	ErrInvalidDecibels  = errors.New("minimum decibels must be lower than maximum decibels")
	ErrInvalidSmoothing = errors.New("smoothing time constant must be between 0 and 1")

	// Store errors
	ErrNoDocument       = errors.New("no active document")
	ErrUnknownDocument  = errors.New("document is not the active document")
	ErrInvalidPosition  = errors.New("invalid segment position")
	ErrDocumentComplete = errors.New("document does not accept new tracks")

	// Synchronizer errors
	ErrSyncAlreadyStarted = errors.New("synchronizer already started")
	ErrSyncNotStarted     = errors.New("synchronizer not started")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// IsRecoverableError reports whether playback can continue after err.
// A decode failure only costs the current segment; a closed context or a bad
// configuration needs the caller to intervene.
func IsRecoverableError(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, ErrContextUnavailable),
		errors.Is(err, ErrInvalidConfig):
		return false
	}

	return true
}

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityInfo is for conditions that are expected, like waiting for bytes.
	SeverityInfo ErrorSeverity = iota
	// SeverityWarning is for conditions that degrade playback but keep it going.
	SeverityWarning
	// SeverityError is for errors that prevent a segment from playing.
	SeverityError
	// SeverityCritical is for errors that stop playback altogether.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PlaybackError provides detailed error information.
type PlaybackError struct {
	Err       error                  // The underlying error
	Component string                 // Component that generated the error
	Action    string                 // Action being performed when error occurred
	Segment   SegmentID              // Segment involved, if any
	Severity  ErrorSeverity          // Severity of the error
	Timestamp time.Time              // When the error occurred
	Context   map[string]interface{} // Additional context
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	if e.Err == nil {
		return "unknown playback error"
	}
	if e.Segment != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Component, e.Action, e.Segment, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Component, e.Action, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// IsRecoverable checks if the error is recoverable.
func (e *PlaybackError) IsRecoverable() bool {
	return IsRecoverableError(e.Err)
}

// NewPlaybackError creates a new playback error with context.
func NewPlaybackError(err error, component, action string) *PlaybackError {
	return &PlaybackError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// WithSegment records the segment the error belongs to.
func (e *PlaybackError) WithSegment(id SegmentID) *PlaybackError {
	e.Segment = id
	return e
}

// WithSeverity sets the error severity.
func (e *PlaybackError) WithSeverity(severity ErrorSeverity) *PlaybackError {
	e.Severity = severity
	return e
}

// WithContext adds context to the error.
func (e *PlaybackError) WithContext(key string, value interface{}) *PlaybackError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}
