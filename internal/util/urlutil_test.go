package util

import "testing"

func TestIsValidReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "short link", raw: "https://youtu.be/abcdefghijk", want: true},
		{name: "short link without scheme", raw: "youtu.be/abcdefghijk", want: true},
		{name: "watch query", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: true},
		{name: "watch query without www", raw: "http://youtube.com/watch?v=dQw4w9WgXcQ", want: true},
		{name: "watch query with extra params", raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", want: true},
		{name: "embed", raw: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: true},
		{name: "nocookie embed", raw: "https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ", want: true},
		{name: "v path", raw: "youtube.com/v/dQw4w9WgXcQ", want: true},
		{name: "nested watch link", raw: "https://www.youtube.com/attribution_link?a=x&u=/watch?v=dQw4w9WgXcQ", want: true},
		{name: "v not first param", raw: "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ", want: false},
		{name: "empty", raw: "", want: false},
		{name: "whitespace", raw: "   ", want: false},
		{name: "other host", raw: "https://vimeo.com/123456789012", want: false},
		{name: "id too short", raw: "https://youtu.be/abc", want: false},
		{name: "watch without id", raw: "https://www.youtube.com/watch?v=", want: false},
		{name: "playlist only", raw: "https://www.youtube.com/playlist?list=PL1234567890", want: false},
		{name: "plain words", raw: "not a url at all", want: false},
		{name: "feed page", raw: "https://www.youtube.com/feed/trending", want: false},
		{name: "channel page", raw: "https://www.youtube.com/channel/UCabcdefgh", want: false},
		{name: "handle", raw: "https://youtube.com/@somechannelname", want: false},
		{name: "bare id on wrong host", raw: "https://youtu.com/abcdefghijk", want: false},
		{name: "bare id on youtube.com", raw: "https://www.youtube.com/abcdefghijk", want: false},
		{name: "id too long", raw: "https://youtu.be/abcdefghijkl", want: false},
		{name: "id with slash", raw: "https://www.youtube.com/watch?v=abc/defghij", want: false},
		{name: "mobile watch", raw: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: true},
		{name: "short link with timestamp", raw: "https://youtu.be/dQw4w9WgXcQ?t=10", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidReference(tt.raw); got != tt.want {
				t.Errorf("IsValidReference(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://youtu.be/abcdefghijk", "abcdefghijk"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		got, ok := VideoID(tt.raw)
		if !ok || got != tt.want {
			t.Errorf("VideoID(%q) = %q, %v; want %q, true", tt.raw, got, ok, tt.want)
		}
	}
}

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOk bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc123", "PLabc123", true},
		{"youtube.com/watch?v=dQw4w9WgXcQ&list=PLxyz", "PLxyz", true},
		{"https://youtu.be/abcdefghijk", "", false},
		{"https://example.com/playlist?list=PLabc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := PlaylistID(tt.raw)
		if ok != tt.wantOk || got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOk)
		}
	}
}
