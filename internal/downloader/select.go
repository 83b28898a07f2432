package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SelectDownloadedFile finds the file a download most likely produced in dir.
// Only regular files modified at or after since are considered. Partial and
// per-format intermediate files are skipped. Among the rest it prefers common
// playable containers, then the most recently written file.
func SelectDownloadedFile(dir string, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// Filesystem timestamps can be coarser than the clock.
		if info.ModTime().Before(since.Add(-2 * time.Second)) {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, e.Name()), mod: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", errors.New("no output file found")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		pri := extPriority(filepath.Ext(candidates[i].path))
		prj := extPriority(filepath.Ext(candidates[j].path))
		if pri != prj {
			return pri < prj
		}
		if !candidates[i].mod.Equal(candidates[j].mod) {
			return candidates[i].mod.After(candidates[j].mod)
		}
		return candidates[i].path < candidates[j].path
	})
	return candidates[0].path, nil
}

// isPartial reports yt-dlp work files: *.part, *.ytdl, *.temp.* and the
// per-format pieces named like "Title.f137.mp4" before merging.
func isPartial(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return true
	}
	for _, suf := range []string{".part", ".ytdl", ".tmp"} {
		if strings.HasSuffix(lower, suf) {
			return true
		}
	}
	if strings.Contains(lower, ".temp.") || strings.Contains(lower, ".part-frag") {
		return true
	}
	stem := strings.TrimSuffix(lower, filepath.Ext(lower))
	sub := filepath.Ext(stem)
	if len(sub) > 2 && sub[1] == 'f' && isDigits(sub[2:]) {
		return true
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// extPriority returns a priority score for file extensions (lower = better).
func extPriority(ext string) int {
	switch strings.ToLower(ext) {
	case ".mp4":
		return 0
	case ".mkv":
		return 1
	case ".webm":
		return 2
	case ".mov":
		return 3
	case ".m4a":
		return 4
	case ".avi":
		return 5
	case ".flv":
		return 6
	default:
		return 100
	}
}
