package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/dgnsrekt/narrate/player"
)

// ResourceSet bundles every resource backing one loaded segment. The fields
// are created together by a Builder and released together by Release.
type ResourceSet struct {
	ID       player.SegmentID
	Media    Media
	Analyser *Analyser
	Context  Context

	// ctx is cancelled on release so waits bound to the set stop
	ctx    context.Context
	cancel context.CancelFunc

	releaseOnce sync.Once
	releaseErr  error
	released    chan struct{}
}

func newResourceSet(id player.SegmentID, media Media, analyser *Analyser, audioCtx Context) *ResourceSet {
	ctx, cancel := context.WithCancel(context.Background())
	return &ResourceSet{
		ID:       id,
		Media:    media,
		Analyser: analyser,
		Context:  audioCtx,
		ctx:      ctx,
		cancel:   cancel,
		released: make(chan struct{}),
	}
}

// Done returns a context that is cancelled when the set is released.
func (r *ResourceSet) Done() context.Context {
	return r.ctx
}

// Released reports whether Release has run.
func (r *ResourceSet) Released() bool {
	select {
	case <-r.released:
		return true
	default:
		return false
	}
}

// Release tears the set down in fixed order: pause the media, suspend the
// context, close the context, then drop the media handle. Later calls return
// the first result.
func (r *ResourceSet) Release() error {
	r.releaseOnce.Do(func() {
		r.cancel()

		var errs []error
		r.Media.Pause()
		if err := r.Context.Suspend(); err != nil && !errors.Is(err, player.ErrContextClosed) {
			errs = append(errs, err)
		}
		if err := r.Context.Close(); err != nil && !errors.Is(err, player.ErrContextClosed) {
			errs = append(errs, err)
		}
		if err := r.Media.Close(); err != nil && !errors.Is(err, player.ErrMediaClosed) {
			errs = append(errs, err)
		}
		if r.Analyser != nil {
			r.Analyser.Reset()
		}

		r.releaseErr = errors.Join(errs...)
		close(r.released)
	})
	return r.releaseErr
}
