// Package loader reads segment files into the player store, optionally
// watching for files that appear after playback has started.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/narrate/internal/playlist"
	"github.com/dgnsrekt/narrate/internal/store"
)

// DefaultMaxSegmentSize bounds the bytes read for one segment.
const DefaultMaxSegmentSize = 64 << 20

// ErrSegmentTooLarge is returned for files over the size limit.
var ErrSegmentTooLarge = errors.New("segment file too large")

// Sink receives loaded bytes. *store.Store implements it.
type Sink interface {
	SetTrackAudio(docID string, position int, data []byte) error
	AppendTrack(docID string, track store.Track) (int, error)
}

// Options configures a Loader.
type Options struct {
	// Watch keeps the loader running and fills slots as files appear.
	Watch bool
	// Dir, when set with Watch, appends new segment files found in it.
	Dir string
	// Settle is how long a file's size must stay unchanged before it is
	// read while watching.
	Settle time.Duration
	// RescansPerSecond limits how often the watched paths are rescanned.
	RescansPerSecond float64
	// MaxSegmentSize bounds the bytes read for one segment.
	MaxSegmentSize int64
	Logger         *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Settle <= 0 {
		o.Settle = 250 * time.Millisecond
	}
	if o.RescansPerSecond <= 0 {
		o.RescansPerSecond = 4
	}
	if o.MaxSegmentSize <= 0 {
		o.MaxSegmentSize = DefaultMaxSegmentSize
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

type pendingFile struct {
	position int
	size     int64 // last observed size, -1 if never seen
}

// Loader fills a document's tracks from their source files.
type Loader struct {
	sink   Sink
	docID  string
	opts   Options
	logger *log.Logger

	limiter *rate.Limiter
	zstd    *zstd.Decoder

	mu      sync.Mutex
	pending map[string]*pendingFile
	known   map[string]bool
	loaded  int
	bytes   int64
}

// New creates a loader for doc. Tracks without a source are ignored.
func New(sink Sink, doc store.Document, opts Options) (*Loader, error) {
	opts = opts.withDefaults()

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	l := &Loader{
		sink:    sink,
		docID:   doc.ID,
		opts:    opts,
		logger:  opts.Logger.WithPrefix("loader"),
		limiter: rate.NewLimiter(rate.Limit(opts.RescansPerSecond), 1),
		zstd:    dec,
		pending: make(map[string]*pendingFile),
		known:   make(map[string]bool),
	}
	for i, t := range doc.Tracks {
		if t.Source == "" || t.Audio != nil {
			continue
		}
		path := filepath.Clean(t.Source)
		l.pending[path] = &pendingFile{position: i, size: -1}
		l.known[path] = true
	}
	return l, nil
}

// Run loads every available segment. Without Watch it returns once all
// present files are read; with Watch it keeps filling slots until ctx is
// done.
func (l *Loader) Run(ctx context.Context) error {
	defer l.zstd.Close()

	if l.opts.Watch {
		return l.watch(ctx)
	}

	l.scan(false)
	l.logProgress()
	if n := l.Pending(); n > 0 {
		l.logger.Warn("Some segments are missing", "missing", n)
	}
	return nil
}

// Pending returns how many slots still have no bytes.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Loaded returns how many segments were read and their total size.
func (l *Loader) Loaded() (int, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded, l.bytes
}

func (l *Loader) logProgress() {
	n, size := l.Loaded()
	l.logger.Info("Loaded segments", "count", n, "size", humanize.Bytes(uint64(size)), "pending", l.Pending())
}

// scan tries every pending file and, in watch mode, discovers new files in
// Dir. With settle set, a file is read only once its size is unchanged since
// the previous scan. It reports whether any file is still settling.
func (l *Loader) scan(settle bool) bool {
	if l.opts.Watch && l.opts.Dir != "" {
		l.discover()
	}

	l.mu.Lock()
	paths := make([]string, 0, len(l.pending))
	for path := range l.pending {
		paths = append(paths, path)
	}
	l.mu.Unlock()

	unsettled := false
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}

		l.mu.Lock()
		p, ok := l.pending[path]
		if !ok {
			l.mu.Unlock()
			continue
		}
		stable := !settle || p.size == info.Size()
		p.size = info.Size()
		position := p.position
		l.mu.Unlock()

		if !stable {
			unsettled = true
			continue
		}
		l.load(path, position)
	}
	return unsettled
}

// discover appends segment files in Dir that no track refers to yet.
func (l *Loader) discover() {
	p, err := playlist.ScanDir(l.opts.Dir)
	if err != nil {
		l.logger.Debug("Directory scan failed", "dir", l.opts.Dir, "error", err)
		return
	}

	for _, e := range p.Entries {
		path := filepath.Clean(e.Path)
		l.mu.Lock()
		seen := l.known[path]
		l.known[path] = true
		l.mu.Unlock()
		if seen {
			continue
		}

		position, err := l.sink.AppendTrack(l.docID, store.Track{Title: e.Title, Source: path})
		if err != nil {
			l.logger.Warn("Cannot append segment", "path", path, "error", err)
			continue
		}
		l.logger.Debug("Discovered segment", "path", path, "position", position)

		l.mu.Lock()
		l.pending[path] = &pendingFile{position: position, size: -1}
		l.mu.Unlock()
	}
}

func (l *Loader) load(path string, position int) {
	data, err := l.ReadSegment(path)
	if err != nil {
		l.logger.Warn("Failed to read segment", "path", path, "error", err)
		return
	}
	if err := l.sink.SetTrackAudio(l.docID, position, data); err != nil {
		l.logger.Warn("Failed to store segment", "path", path, "position", position, "error", err)
		return
	}

	l.mu.Lock()
	delete(l.pending, path)
	l.loaded++
	l.bytes += int64(len(data))
	l.mu.Unlock()

	l.logger.Debug("Loaded segment", "path", filepath.Base(path), "position", position, "size", humanize.Bytes(uint64(len(data))))
}

// ReadSegment reads a segment file, decompressing .zst files. It shares one
// decoder and must not be called concurrently with Run.
func (l *Loader) ReadSegment(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		if err := l.zstd.Reset(f); err != nil {
			return nil, fmt.Errorf("invalid zstd stream: %w", err)
		}
		r = l.zstd
	}

	data, err := io.ReadAll(io.LimitReader(r, l.opts.MaxSegmentSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.opts.MaxSegmentSize {
		return nil, fmt.Errorf("%w: over %s", ErrSegmentTooLarge, humanize.Bytes(uint64(l.opts.MaxSegmentSize)))
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// watch rescans on file events until ctx is done. Events are coalesced and
// rescans are rate limited. The first scan runs once the watchers are in
// place, so files written before then are still seen, and every file must
// settle before it is read.
func (l *Loader) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	for _, dir := range l.watchDirs() {
		if err := watcher.Add(dir); err != nil {
			l.logger.Error("Cannot watch directory", "dir", dir, "error", err)
			continue
		}
		l.logger.Info("Watching for segments", "dir", dir)
	}

	dirty := make(chan struct{}, 1)
	markDirty := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
	markDirty()

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			l.logProgress()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			markDirty()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Debug("fsnotify error", "error", err)

		case <-settle:
			settle = nil
			markDirty()

		case <-dirty:
			if err := l.limiter.Wait(ctx); err != nil {
				return nil
			}
			if l.scan(true) {
				settle = time.After(l.opts.Settle)
			}
		}
	}
}

func (l *Loader) watchDirs() []string {
	dirs := make(map[string]bool)
	if l.opts.Dir != "" {
		dirs[filepath.Clean(l.opts.Dir)] = true
	}
	l.mu.Lock()
	for path := range l.pending {
		dirs[filepath.Dir(path)] = true
	}
	l.mu.Unlock()

	out := make([]string, 0, len(dirs))
	for dir := range dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			out = append(out, dir)
		}
	}
	return out
}
