package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// audioTags is the subset of tag metadata stored in the index.
type audioTags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Composer    string
	Genre       string
	Year        int
	Track       int
}

// readTags uses the dhowden/tag library to read embedded metadata
func readTags(path string) (*audioTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	track, _ := m.Track()
	return &audioTags{
		Title:       strings.TrimSpace(m.Title()),
		Artist:      strings.TrimSpace(m.Artist()),
		Album:       strings.TrimSpace(m.Album()),
		AlbumArtist: strings.TrimSpace(m.AlbumArtist()),
		Composer:    strings.TrimSpace(m.Composer()),
		Genre:       strings.TrimSpace(m.Genre()),
		Year:        m.Year(),
		Track:       track,
	}, nil
}

// tagsOrDefaults falls back to the file name as title and unknown artist
// and album when path carries no readable tags.
func tagsOrDefaults(path string) *audioTags {
	t, err := readTags(path)
	if err != nil {
		t = &audioTags{}
	}
	if t.Title == "" {
		base := filepath.Base(path)
		t.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if t.Artist == "" {
		t.Artist = unknown
	}
	if t.Album == "" {
		t.Album = unknown
	}
	return t
}

const unknown = "<unknown>"
