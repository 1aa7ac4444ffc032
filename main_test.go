package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/narrate/internal/playlist"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestOpenDocumentDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "10.mp3", "2.mp3", "1.mp3.zst", "notes.txt")

	doc, gotDir, err := openDocument(dir, false)
	if err != nil {
		t.Fatalf("openDocument() error = %v", err)
	}
	if gotDir != dir {
		t.Errorf("dir = %q, want %q", gotDir, dir)
	}
	if !doc.Complete {
		t.Error("unwatched directory should be complete")
	}

	var titles []string
	for _, tr := range doc.Tracks {
		titles = append(titles, tr.Title)
	}
	if got := strings.Join(titles, ","); got != "1,2,10" {
		t.Errorf("titles = %s, want 1,2,10", got)
	}

	doc, _, err = openDocument(dir, true)
	if err != nil {
		t.Fatalf("openDocument() error = %v", err)
	}
	if doc.Complete {
		t.Error("watched directory should stay open")
	}
}

func TestOpenDocumentEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := openDocument(dir, false); !errors.Is(err, playlist.ErrEmptyPlaylist) {
		t.Errorf("openDocument() error = %v, want ErrEmptyPlaylist", err)
	}
	if _, _, err := openDocument(dir, true); err != nil {
		t.Errorf("watched empty directory error = %v", err)
	}
}

func TestOpenDocumentPlaylist(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp3", "b.mp3")
	m3u := filepath.Join(dir, "book.m3u")
	content := "#EXTM3U\n#EXTINF:3,Intro\na.mp3\n#EXTINF:4,Body\nb.mp3\n"
	if err := os.WriteFile(m3u, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	doc, gotDir, err := openDocument(m3u, false)
	if err != nil {
		t.Fatalf("openDocument() error = %v", err)
	}
	if gotDir != "" {
		t.Errorf("dir = %q, want empty for playlists", gotDir)
	}
	if len(doc.Tracks) != 2 || doc.Tracks[0].Title != "Intro" {
		t.Errorf("tracks = %+v", doc.Tracks)
	}
	if doc.Tracks[1].Source != filepath.Join(dir, "b.mp3") {
		t.Errorf("source = %q", doc.Tracks[1].Source)
	}
}

func TestOpenDocumentErrors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "readme.txt")

	if _, _, err := openDocument(filepath.Join(dir, "readme.txt"), false); err == nil {
		t.Error("expected an error for a non-playlist file")
	}
	if _, _, err := openDocument(filepath.Join(dir, "missing.m3u"), false); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestEnsureConfigFile(t *testing.T) {
	saved := configFile
	t.Cleanup(func() { configFile = saved })

	configFile = filepath.Join(t.TempDir(), "sub", "narrate.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("ensureConfigFile() error = %v", err)
	}
	b, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != defaultConfig {
		t.Error("new config file should hold the default config")
	}

	configFile = filepath.Join(t.TempDir(), "narrate.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("expected an error for a non-yaml config")
	}
}

func TestDirOrArg(t *testing.T) {
	if got := dirOrArg("/a", "b"); got != "/a" {
		t.Errorf("dirOrArg() = %q", got)
	}
	if got := dirOrArg("", "b.m3u"); got != "b.m3u" {
		t.Errorf("dirOrArg() = %q", got)
	}
}
