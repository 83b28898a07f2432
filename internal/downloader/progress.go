package downloader

import (
	"strconv"
	"strings"
	"time"

	"tubegrab/internal/progress"
)

// ParseLine parses a yt-dlp console line into a raw progress payload.
// Lines look like:
//
//	[download]  45.2% of 10.00MiB at  1.50MiB/s ETA 00:04
//	[download] 100% of 10.00MiB in 00:00:07 at 1.41MiB/s
//	[Merger] Merging formats into "Title [1920x1080].mp4"
func ParseLine(line string) (progress.Raw, bool) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "[Merger]"), strings.HasPrefix(line, "[VideoConvertor]"), strings.HasPrefix(line, "[FixupM3u8]"):
		return progress.Raw{Status: "merging", Message: strings.TrimSpace(line[strings.Index(line, "]")+1:])}, true
	case !strings.HasPrefix(line, "[download]"):
		return progress.Raw{}, false
	}

	rest := strings.TrimSpace(strings.TrimPrefix(line, "[download]"))
	if strings.HasSuffix(rest, "has already been downloaded") {
		return progress.Raw{Status: "finished", PercentText: "100%", Message: "Already downloaded"}, true
	}

	idx := strings.Index(rest, "%")
	if idx == -1 {
		// "Destination: ..." and similar informational lines.
		return progress.Raw{}, false
	}
	raw := progress.Raw{Status: "downloading", PercentText: strings.TrimSpace(rest[:idx+1])}

	if i := strings.Index(rest, " of "); i != -1 {
		size := strings.TrimSpace(rest[i+4:])
		if j := strings.Index(size, " at "); j != -1 {
			size = size[:j]
		}
		if j := strings.Index(size, " in "); j != -1 {
			size = size[:j]
		}
		if j := strings.Index(size, " ETA"); j != -1 {
			size = size[:j]
		}
		raw.TotalBytesText = strings.TrimSpace(size)
	}

	if i := strings.Index(rest, " at "); i != -1 {
		speed := strings.TrimSpace(rest[i+4:])
		if j := strings.Index(speed, " "); j != -1 {
			speed = speed[:j]
		}
		raw.Speed = speed
	}

	if i := strings.Index(rest, "ETA "); i != -1 {
		etaStr := strings.TrimSpace(rest[i+4:])
		if j := strings.Index(etaStr, " "); j != -1 {
			etaStr = etaStr[:j]
		}
		if d, err := parseETA(etaStr); err == nil {
			raw.ETA = &d
		}
	}

	if strings.HasPrefix(raw.PercentText, "100") && strings.Contains(rest, " in ") {
		raw.Status = "finished"
	}
	return raw, true
}

// parseETA parses duration strings like "00:04", "01:23:45", etc.
func parseETA(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		m, err1 := strconv.Atoi(parts[0])
		sec, err2 := strconv.Atoi(parts[1])
		if err1 != nil {
			return 0, err1
		}
		if err2 != nil {
			return 0, err2
		}
		return time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	case 3:
		h, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		sec, err3 := strconv.Atoi(parts[2])
		for _, err := range []error{err1, err2, err3} {
			if err != nil {
				return 0, err
			}
		}
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
	default:
		sec, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return time.Duration(sec) * time.Second, nil
	}
}
