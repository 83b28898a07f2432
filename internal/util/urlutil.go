package util

import (
	"net/url"
	"regexp"
	"strings"
)

// referencePattern accepts the short-link (youtu.be/ID), watch-query
// (youtube.com/watch?v=ID) and embed (youtube.com/embed/ID, /v/ID) shapes,
// with or without scheme and www. A bare ID is only accepted after youtu.be.
// The ID must be exactly 11 URL-safe characters; trailing parameters such as
// &t=10 are allowed.
var referencePattern = regexp.MustCompile(
	`^(https?://)?(www\.|m\.)?` +
		`(?:youtu\.be/|(?:youtube|youtube-nocookie)\.com/(?:watch\?v=|embed/|v/|.+\?v=))` +
		`([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`,
)

// IsValidReference reports whether raw looks like a single-video reference.
// It performs no I/O.
func IsValidReference(raw string) bool {
	_, ok := VideoID(raw)
	return ok
}

// VideoID returns the 11-character identifier segment of a reference.
func VideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	m := referencePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return m[3], true
}

// PlaylistID extracts the list= parameter from a playlist URL.
func PlaylistID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		if u2, e2 := url.Parse("https://" + raw); e2 == nil {
			u = u2
		}
	}
	if err != nil || u == nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
	default:
		return "", false
	}
	id := u.Query().Get("list")
	if id == "" {
		return "", false
	}
	return id, true
}
