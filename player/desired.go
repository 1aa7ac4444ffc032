package player

// PlayerState is the external, reactive player-state container.
// Implementations must be safe for concurrent use.
type PlayerState interface {
	// Snapshot returns one consistent view of the active document.
	Snapshot() Snapshot

	// Subscribe registers fn to be called after every state mutation.
	// The returned function removes the subscription.
	Subscribe(fn func()) (unsubscribe func())

	// GoToPosition requests the active document to move to position.
	// It has no guaranteed synchronous effect.
	GoToPosition(position int)
}

// Snapshot is a read-only view of the player state at one instant.
type Snapshot struct {
	Active     bool   // A document is active
	DocumentID string // Identity of the active document's audio
	Position   int    // Current segment position, never negative
	Playing    bool   // Playback is intended
	Audio      []byte // Encoded bytes of the track at Position, nil if not yet available
}

// SegmentID returns the identity of the segment the snapshot points at.
func (s Snapshot) SegmentID() SegmentID {
	if !s.Active {
		return ""
	}
	return NewSegmentID(s.DocumentID, s.Position)
}

// Desired derives the tuple the synchronizer reacts to.
func (s Snapshot) Desired() DesiredState {
	if !s.Active {
		return DesiredState{}
	}
	return DesiredState{
		Active:     true,
		DocumentID: s.DocumentID,
		Position:   s.Position,
		Playing:    s.Playing,
		HasAudio:   s.Audio != nil,
	}
}

// DesiredState is the tuple that determines what the synchronizer should do
// next. With no active document every field is zero.
type DesiredState struct {
	Active     bool
	DocumentID string
	Position   int
	Playing    bool
	HasAudio   bool
}

// SegmentID returns the identity of the desired segment.
func (d DesiredState) SegmentID() SegmentID {
	if !d.Active {
		return ""
	}
	return NewSegmentID(d.DocumentID, d.Position)
}

// ShallowEqual compares two desired states field by field.
func ShallowEqual(a, b DesiredState) bool {
	return a.Active == b.Active &&
		a.DocumentID == b.DocumentID &&
		a.Position == b.Position &&
		a.Playing == b.Playing &&
		a.HasAudio == b.HasAudio
}
