package audio

import "context"

// ReadyThreshold is the buffering level at which playback may start.
const ReadyThreshold = HaveFutureData

// WaitForEnoughData blocks until media reports at least ReadyThreshold, or
// ctx is done. A single canplay notification does not guarantee the
// threshold, so the level is checked again after every signal.
func WaitForEnoughData(ctx context.Context, media Media) error {
	for media.ReadyState() < ReadyThreshold {
		signal := make(chan struct{}, 1)
		off := media.Once(EventCanPlay, func() {
			select {
			case signal <- struct{}{}:
			default:
			}
		})

		// The level may have moved between the check and the subscription.
		if media.ReadyState() >= ReadyThreshold {
			off()
			return nil
		}

		select {
		case <-signal:
			off()
		case <-ctx.Done():
			off()
			return ctx.Err()
		}
	}
	return nil
}
