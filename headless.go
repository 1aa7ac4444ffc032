package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/narrate/internal/loader"
	"github.com/dgnsrekt/narrate/internal/store"
	"github.com/dgnsrekt/narrate/player"
)

// logMessage reports synchronizer messages when there is no TUI.
func logMessage(msg any) {
	switch m := msg.(type) {
	case player.SegmentPlayingMsg:
		log.Info("Playing", "segment", m.Segment, "position", m.Position, "waited", m.Waited.Round(time.Millisecond))
	case player.SegmentEndedMsg:
		log.Info("Segment ended", "segment", m.Segment, "advanced", m.Advanced)
	case player.DecodeFailedMsg:
		log.Error("Could not decode segment", "segment", m.Segment, "error", m.Err)
	case player.BufferingStalledMsg:
		log.Warn("Segment did not become playable", "segment", m.Segment, "waited", m.Waited)
	case player.SegmentLoadingMsg:
		log.Info("Waiting for audio", "segment", m.Segment)
	default:
		log.Debug("Player event", "msg", msg)
	}
}

// runHeadless plays until the document finishes or ctx is done.
func runHeadless(ctx context.Context, st *store.Store, ld *loader.Loader) error {
	changed := make(chan struct{}, 1)
	unsubscribe := st.Subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		if status := st.Status(); status.Finished {
			n, size := ld.Loaded()
			log.Info("Finished", "document", status.Title, "segments", n, "audio", humanize.Bytes(uint64(size))) //nolint:gosec
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}
