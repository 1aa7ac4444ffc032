package player

import "strconv"

// SegmentID identifies one position within one document's playback
// sequence. The text after the last '-' is always the decimal position.
type SegmentID string

// NewSegmentID derives the identity of the segment at position within
// documentID. Negative positions are clamped to 0 so the suffix is always
// digits and distinct pairs never collide.
func NewSegmentID(documentID string, position int) SegmentID {
	if position < 0 {
		position = 0
	}
	return SegmentID(documentID + "-" + strconv.Itoa(position))
}

// String implements fmt.Stringer.
func (id SegmentID) String() string {
	return string(id)
}
