// Package media builds yt-dlp output templates and destination names.
package media

import (
	"fmt"
	"path/filepath"
	"strconv"

	"tubegrab/internal/util"
)

// IndexedTemplate returns a yt-dlp output template that prefixes the title
// with a zero-padded position, e.g. "007-%(title)s.%(ext)s". The padding is
// at least three digits and grows with total.
func IndexedTemplate(index, total int) string {
	width := len(strconv.Itoa(total))
	if width < 3 {
		width = 3
	}
	return fmt.Sprintf("%0*d-%%(title)s.%%(ext)s", width, index)
}

// PlaylistDir returns the directory a playlist titled title is saved into
// when a per-playlist folder is requested.
func PlaylistDir(base, title, id string) string {
	name := title
	if name == "" {
		name = id
	}
	return filepath.Join(base, util.SanitizeFilename(name))
}
