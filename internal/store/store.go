// Package store holds the player state: the active document, its tracks, the
// current position and whether playback is intended. It implements
// player.PlayerState and notifies subscribers after every mutation.
package store

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/narrate/player"
)

// Track is one segment slot of a document.
type Track struct {
	Title  string
	Source string // File or URL the bytes come from
	Audio  []byte // Encoded bytes, nil until available
}

// Document is an ordered sequence of tracks. A complete document gets no
// new tracks; an incomplete one is still growing.
type Document struct {
	ID       string
	Title    string
	Tracks   []Track
	Complete bool
}

// NewDocument creates a document with a fresh identity.
func NewDocument(title string, tracks []Track, complete bool) Document {
	return Document{
		ID:       uuid.NewString(),
		Title:    title,
		Tracks:   tracks,
		Complete: complete,
	}
}

// Status is a display-oriented view of the store.
type Status struct {
	Active     bool   `json:"active"`
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	TrackTitle string `json:"track_title,omitempty"`
	Position   int    `json:"position"`
	Total      int    `json:"total"`
	Playing    bool   `json:"playing"`
	Finished   bool   `json:"finished"`
	Complete   bool   `json:"complete"`
	HasAudio   bool   `json:"has_audio"`
	Available  int    `json:"available"` // Tracks with bytes
}

// Option configures a Store.
type Option func(*Store)

// WithWrap makes navigation past either end of a complete document wrap
// around instead of stopping.
func WithWrap(wrap bool) Option {
	return func(s *Store) {
		s.wrap = wrap
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the reference player state. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	doc      *Document
	position int
	playing  bool
	finished bool
	wrap     bool
	logger   *log.Logger

	subMu   sync.Mutex
	nextSub int
	subs    map[int]func()
}

var _ player.PlayerState = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		logger: log.Default(),
		subs:   make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("store")
	return s
}

// Load makes doc the active document at position 0, paused.
func (s *Store) Load(doc Document) {
	tracks := make([]Track, len(doc.Tracks))
	copy(tracks, doc.Tracks)
	doc.Tracks = tracks

	s.mu.Lock()
	s.doc = &doc
	s.position = 0
	s.playing = false
	s.finished = false
	s.mu.Unlock()

	s.logger.Debug("Loaded document", "id", doc.ID, "title", doc.Title, "tracks", len(tracks), "complete", doc.Complete)
	s.notify()
}

// Unload clears the active document.
func (s *Store) Unload() {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return
	}
	s.doc = nil
	s.position = 0
	s.playing = false
	s.finished = false
	s.mu.Unlock()

	s.notify()
}

// SetTrackAudio sets the bytes of the track at position in document docID.
func (s *Store) SetTrackAudio(docID string, position int, data []byte) error {
	s.mu.Lock()
	if err := s.checkDocument(docID); err != nil {
		s.mu.Unlock()
		return err
	}
	if position < 0 || position >= len(s.doc.Tracks) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", player.ErrInvalidPosition, position, len(s.doc.Tracks))
	}
	s.doc.Tracks[position].Audio = data
	s.mu.Unlock()

	s.notify()
	return nil
}

// AppendTrack adds a track to an incomplete document and returns its
// position.
func (s *Store) AppendTrack(docID string, track Track) (int, error) {
	s.mu.Lock()
	if err := s.checkDocument(docID); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	if s.doc.Complete {
		s.mu.Unlock()
		return 0, player.ErrDocumentComplete
	}
	s.doc.Tracks = append(s.doc.Tracks, track)
	position := len(s.doc.Tracks) - 1
	s.mu.Unlock()

	s.notify()
	return position, nil
}

// MarkComplete records that docID will get no more tracks.
func (s *Store) MarkComplete(docID string) error {
	s.mu.Lock()
	if err := s.checkDocument(docID); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.doc.Complete {
		s.mu.Unlock()
		return nil
	}
	s.doc.Complete = true
	s.mu.Unlock()

	s.notify()
	return nil
}

// checkDocument must be called with mu held.
func (s *Store) checkDocument(docID string) error {
	if s.doc == nil {
		return player.ErrNoDocument
	}
	if s.doc.ID != docID {
		return fmt.Errorf("%w: %s", player.ErrUnknownDocument, docID)
	}
	return nil
}

// Play sets the playback intent. Playing a finished document starts over.
func (s *Store) Play() {
	s.setPlaying(true)
}

// Pause clears the playback intent.
func (s *Store) Pause() {
	s.setPlaying(false)
}

// Toggle flips the playback intent.
func (s *Store) Toggle() {
	s.mu.RLock()
	playing := s.playing
	s.mu.RUnlock()
	s.setPlaying(!playing)
}

func (s *Store) setPlaying(playing bool) {
	s.mu.Lock()
	if s.doc == nil || s.playing == playing {
		s.mu.Unlock()
		return
	}
	s.playing = playing
	if playing {
		s.finished = false
	}
	s.mu.Unlock()

	s.notify()
}

// GoToPosition implements player.PlayerState. Negative positions clamp to 0.
// Past the end of a complete document playback stops and rewinds, or wraps
// to the start when wrapping is on; an incomplete document moves past the
// end and waits for the track to arrive. Subscribers are notified even when
// the position does not change.
func (s *Store) GoToPosition(position int) {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return
	}
	if position < 0 {
		position = 0
	}

	total := len(s.doc.Tracks)
	switch {
	case position < total || !s.doc.Complete:
		s.position = position
		s.finished = false
	case s.wrap && total > 0:
		s.position = 0
		s.finished = false
	default:
		s.logger.Debug("Reached end of document", "id", s.doc.ID, "tracks", total)
		s.position = 0
		s.playing = false
		s.finished = true
	}
	s.mu.Unlock()

	s.notify()
}

// Next moves to the following track.
func (s *Store) Next() {
	s.mu.RLock()
	position := s.position
	s.mu.RUnlock()
	s.GoToPosition(position + 1)
}

// Previous moves to the preceding track, wrapping to the last track of a
// complete document when wrapping is on.
func (s *Store) Previous() {
	s.mu.RLock()
	if s.doc == nil {
		s.mu.RUnlock()
		return
	}
	position := s.position - 1
	if position < 0 && s.wrap && s.doc.Complete && len(s.doc.Tracks) > 0 {
		position = len(s.doc.Tracks) - 1
	}
	s.mu.RUnlock()
	s.GoToPosition(position)
}

// Snapshot implements player.PlayerState.
func (s *Store) Snapshot() player.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return player.Snapshot{}
	}
	snap := player.Snapshot{
		Active:     true,
		DocumentID: s.doc.ID,
		Position:   s.position,
		Playing:    s.playing,
	}
	if s.position < len(s.doc.Tracks) {
		snap.Audio = s.doc.Tracks[s.position].Audio
	}
	return snap
}

// Status returns a display-oriented view of the store.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return Status{}
	}
	st := Status{
		Active:     true,
		DocumentID: s.doc.ID,
		Title:      s.doc.Title,
		Position:   s.position,
		Total:      len(s.doc.Tracks),
		Playing:    s.playing,
		Finished:   s.finished,
		Complete:   s.doc.Complete,
	}
	for i, t := range s.doc.Tracks {
		if t.Audio != nil {
			st.Available++
		}
		if i == s.position {
			st.TrackTitle = t.Title
			st.HasAudio = t.Audio != nil
		}
	}
	return st
}

// TrackInfo describes a track without its bytes.
type TrackInfo struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	Loaded bool   `json:"loaded"`
	Size   int    `json:"size"`
}

// Tracks describes the active document's track list.
func (s *Store) Tracks() []TrackInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.doc == nil {
		return nil
	}
	tracks := make([]TrackInfo, len(s.doc.Tracks))
	for i, t := range s.doc.Tracks {
		tracks[i] = TrackInfo{
			Title:  t.Title,
			Source: t.Source,
			Loaded: t.Audio != nil,
			Size:   len(t.Audio),
		}
	}
	return tracks
}

// Subscribe implements player.PlayerState.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
		})
	}
}

// notify runs subscribers outside every lock.
func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
