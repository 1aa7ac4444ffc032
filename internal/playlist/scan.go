package playlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// ScanDir lists the segment files in dir in natural order, so "2.mp3" sorts
// before "10.mp3". The result is complete; callers that watch the directory
// mark it otherwise.
func ScanDir(dir string) (*Playlist, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !IsSegmentFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	SortNatural(names)

	p := &Playlist{
		Title:    filepath.Base(filepath.Clean(dir)),
		Complete: true,
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		p.Entries = append(p.Entries, Entry{Title: TitleFromPath(name), Path: path})
	}
	return p, nil
}

// SortNatural sorts names comparing digit runs by value.
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})
}

// NaturalLess compares a and b case-insensitively, treating runs of digits
// as numbers.
func NaturalLess(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ar) && j < len(br) {
		ca, cb := ar[i], br[j]
		if unicode.IsDigit(ca) && unicode.IsDigit(cb) {
			si, sj := i, j
			for i < len(ar) && unicode.IsDigit(ar[i]) {
				i++
			}
			for j < len(br) && unicode.IsDigit(br[j]) {
				j++
			}
			na := strings.TrimLeft(string(ar[si:i]), "0")
			nb := strings.TrimLeft(string(br[sj:j]), "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			// Equal values: fewer leading zeros first.
			if i-si != j-sj {
				return i-si < j-sj
			}
			continue
		}

		la, lb := unicode.ToLower(ca), unicode.ToLower(cb)
		if la != lb {
			return la < lb
		}
		i++
		j++
	}
	if len(ar)-i != len(br)-j {
		return len(ar)-i < len(br)-j
	}
	return a < b
}
