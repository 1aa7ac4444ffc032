// Package playlist turns M3U playlists and directories of segment files into
// ordered documents.
package playlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/narrate/internal/store"
)

var (
	// ErrEmptyPlaylist is returned when a playlist names no segments.
	ErrEmptyPlaylist = errors.New("playlist has no segments")

	// ErrNotPlaylist is returned when a file does not start with #EXTM3U and
	// contains no usable entries.
	ErrNotPlaylist = errors.New("not an m3u playlist")
)

// Segment file extensions, longest first.
var segmentExts = []string{".mp3.zst", ".mp3"}

// Entry is one segment of a playlist.
type Entry struct {
	Title    string
	Path     string
	Duration time.Duration // From #EXTINF, 0 when unknown
}

// Playlist is an ordered list of segments.
type Playlist struct {
	Title    string
	Entries  []Entry
	Complete bool // No more entries will be added
	Skipped  int  // Remote or unsupported entries that were dropped
}

// Parse reads an M3U or M3U8 playlist. Relative paths resolve against
// baseDir. Remote URIs are skipped. #EXT-X-ENDLIST marks the playlist
// complete; a plain M3U without HLS tags is always complete.
func Parse(r io.Reader, baseDir string) (*Playlist, error) {
	p := &Playlist{}

	var (
		pending  Entry
		extended bool
		hls      bool
	)

	scanner := bufio.NewScanner(r)
	for line := 0; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if line == 0 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if text == "" {
			continue
		}

		switch {
		case text == "#EXTM3U":
			extended = true
		case strings.HasPrefix(text, "#EXTINF:"):
			pending = parseExtInf(strings.TrimPrefix(text, "#EXTINF:"))
		case strings.HasPrefix(text, "#PLAYLIST:"):
			p.Title = strings.TrimSpace(strings.TrimPrefix(text, "#PLAYLIST:"))
		case text == "#EXT-X-ENDLIST":
			p.Complete = true
		case strings.HasPrefix(text, "#EXT-X-"):
			hls = true
		case strings.HasPrefix(text, "#"):
			// comment or unknown tag
		default:
			entry := pending
			pending = Entry{}

			if isRemote(text) {
				p.Skipped++
				continue
			}
			entry.Path = resolve(baseDir, text)
			if entry.Title == "" {
				entry.Title = TitleFromPath(entry.Path)
			}
			p.Entries = append(p.Entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	if !hls {
		p.Complete = true
	}
	if len(p.Entries) == 0 {
		if !extended && p.Skipped == 0 {
			return nil, ErrNotPlaylist
		}
		if p.Complete {
			return nil, ErrEmptyPlaylist
		}
	}
	return p, nil
}

// ParseFile parses the playlist at path. Entries resolve against its
// directory and the title defaults to the file name.
func ParseFile(path string) (*Playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close() //nolint:errcheck

	p, err := Parse(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Title == "" {
		p.Title = TitleFromPath(path)
	}
	return p, nil
}

// parseExtInf reads "duration,title" from an #EXTINF tag. Attributes
// between the duration and the comma are ignored.
func parseExtInf(v string) Entry {
	var e Entry
	head, title, _ := strings.Cut(v, ",")
	e.Title = strings.TrimSpace(title)

	if fields := strings.Fields(head); len(fields) > 0 {
		if secs, err := strconv.ParseFloat(fields[0], 64); err == nil && secs > 0 {
			e.Duration = time.Duration(secs * float64(time.Second))
		}
	}
	return e
}

func isRemote(uri string) bool {
	i := strings.Index(uri, "://")
	return i > 0 && !strings.ContainsAny(uri[:i], `/\`)
}

func resolve(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, filepath.FromSlash(p))
}

// IsSegmentFile reports whether name has a playable segment extension.
func IsSegmentFile(name string) bool {
	return segmentExt(name) != ""
}

// IsPlaylistFile reports whether name looks like an M3U playlist.
func IsPlaylistFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".m3u" || ext == ".m3u8"
}

func segmentExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range segmentExts {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return ext
		}
	}
	return ""
}

// TitleFromPath derives a display title from a file name.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	if ext := segmentExt(base); ext != "" {
		return base[:len(base)-len(ext)]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Document converts the playlist into a store document with a fresh
// identity. Track bytes are left empty for the loader.
func (p *Playlist) Document() store.Document {
	tracks := make([]store.Track, len(p.Entries))
	for i, e := range p.Entries {
		tracks[i] = store.Track{Title: e.Title, Source: e.Path}
	}
	return store.NewDocument(p.Title, tracks, p.Complete)
}
