package sync

import (
	"time"

	"github.com/dgnsrekt/narrate/player"
)

// Recorder receives lifecycle observations for metrics.
type Recorder interface {
	SegmentBuilt(id player.SegmentID)
	DecodeFailed(id player.SegmentID)
	SegmentCompleted(id player.SegmentID)
	StaleCompletion(kind string)
	BufferingStalled(id player.SegmentID)
	ActiveSets(n int)
	ReadinessWait(d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) SegmentBuilt(player.SegmentID)     {}
func (noopRecorder) DecodeFailed(player.SegmentID)     {}
func (noopRecorder) SegmentCompleted(player.SegmentID) {}
func (noopRecorder) StaleCompletion(string)            {}
func (noopRecorder) BufferingStalled(player.SegmentID) {}
func (noopRecorder) ActiveSets(int)                    {}
func (noopRecorder) ReadinessWait(time.Duration)       {}
