package media

import (
	"path/filepath"
	"testing"
)

func TestIndexedTemplate(t *testing.T) {
	tests := []struct {
		index, total int
		want         string
	}{
		{1, 5, "001-%(title)s.%(ext)s"},
		{42, 120, "042-%(title)s.%(ext)s"},
		{7, 1500, "0007-%(title)s.%(ext)s"},
	}
	for _, tt := range tests {
		if got := IndexedTemplate(tt.index, tt.total); got != tt.want {
			t.Errorf("IndexedTemplate(%d, %d) = %q, want %q", tt.index, tt.total, got, tt.want)
		}
	}
}

func TestPlaylistDir(t *testing.T) {
	if got := PlaylistDir("out", "My Mix: 2024", "PL1"); got != filepath.Join("out", "My_Mix_2024") {
		t.Errorf("PlaylistDir() = %q", got)
	}
	if got := PlaylistDir("out", "", "PL1"); got != filepath.Join("out", "PL1") {
		t.Errorf("PlaylistDir() without title = %q", got)
	}
}
