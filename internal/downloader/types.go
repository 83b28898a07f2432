package downloader

import (
	"math"
	"strings"
	"time"

	"tubegrab/internal/model"
)

// YTDLPInfo mirrors fields from yt-dlp --dump-json output that we care about.
type YTDLPInfo struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Uploader       string        `json:"uploader"`
	Channel        string        `json:"channel"`
	Duration       float64       `json:"duration"`
	DurationString string        `json:"duration_string"`
	WebpageURL     string        `json:"webpage_url"`
	Height         int           `json:"height"`
	Formats        []YTDLPFormat `json:"formats"`
}

// YTDLPFormat is one entry of the formats array. Numeric fields are pointers
// because yt-dlp emits null for unknown values.
type YTDLPFormat struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	VCodec     string   `json:"vcodec"`
	ACodec     string   `json:"acodec"`
	Height     *float64 `json:"height"`
	TBR        *float64 `json:"tbr"`
	VBR        *float64 `json:"vbr"`
	ABR        *float64 `json:"abr"`
	FormatNote string   `json:"format_note"`
}

// YTDLPPlaylist is the flat-playlist JSON shape.
type YTDLPPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []YTDLPEntry `json:"entries"`
}

// YTDLPEntry is one flat playlist entry.
type YTDLPEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Metadata converts the dump into the resolver-neutral model.
func (info YTDLPInfo) Metadata(ref string) model.MediaMetadata {
	owner := info.Channel
	if owner == "" {
		owner = info.Uploader
	}
	meta := model.MediaMetadata{
		Reference: ref,
		ID:        info.ID,
		Title:     info.Title,
		Owner:     owner,
		Duration:  time.Duration(info.Duration * float64(time.Second)),
	}
	for _, f := range info.Formats {
		if s, ok := f.stream(); ok {
			meta.Streams = append(meta.Streams, s)
		}
	}
	return meta
}

// stream classifies a format. "none" marks an absent track; an empty codec
// field means yt-dlp did not report it. Storyboards and other formats with
// neither track are skipped.
func (f YTDLPFormat) stream() (model.StreamDescriptor, bool) {
	v := strings.ToLower(strings.TrimSpace(f.VCodec))
	a := strings.ToLower(strings.TrimSpace(f.ACodec))
	height := positiveInt(f.Height)

	var kind model.StreamKind
	switch {
	case v == "none" && a == "none":
		return model.StreamDescriptor{}, false
	case v != "" && v != "none" && a != "" && a != "none":
		kind = model.StreamMuxed
	case v != "" && v != "none":
		kind = model.StreamVideo
	case a != "" && a != "none":
		kind = model.StreamAudio
	case height > 0:
		// Codecs unreported but a picture size exists: treat as a complete file.
		kind = model.StreamMuxed
	default:
		return model.StreamDescriptor{}, false
	}

	codec := v
	if kind == model.StreamAudio || codec == "" || codec == "none" {
		codec = a
	}
	s := model.StreamDescriptor{
		FormatID:  f.FormatID,
		Kind:      kind,
		Container: f.Ext,
		Codec:     codec,
		Bitrate:   f.bitrate(kind),
	}
	if kind != model.StreamAudio {
		s.Height = height
	}
	return s, true
}

func (f YTDLPFormat) bitrate(kind model.StreamKind) float64 {
	if f.TBR != nil && *f.TBR > 0 {
		return *f.TBR
	}
	if kind == model.StreamAudio && f.ABR != nil && *f.ABR > 0 {
		return *f.ABR
	}
	if f.VBR != nil && *f.VBR > 0 {
		return *f.VBR
	}
	return 0
}

func positiveInt(v *float64) int {
	if v == nil || math.IsNaN(*v) || *v <= 0 {
		return 0
	}
	return int(*v)
}
