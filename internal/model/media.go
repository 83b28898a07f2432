package model

import (
	"fmt"
	"time"
)

// StreamKind classifies a single encoded track reported by the resolver.
type StreamKind string

const (
	StreamVideo StreamKind = "video" // video-only track
	StreamAudio StreamKind = "audio" // audio-only track
	StreamMuxed StreamKind = "muxed" // video and audio in one file
)

// HasVideo reports whether the stream carries a picture.
func (k StreamKind) HasVideo() bool {
	return k == StreamVideo || k == StreamMuxed
}

// StreamDescriptor describes one available encoding of a media item.
// Zero Height or Bitrate means the resolver did not report it.
type StreamDescriptor struct {
	FormatID  string
	Kind      StreamKind
	Height    int     // pixels, 0 if unknown
	Bitrate   float64 // kbit/s, 0 if unknown
	Container string  // e.g. "mp4", "webm", "m4a"
	Codec     string
}

// MediaMetadata is the result of a successful resolve call.
type MediaMetadata struct {
	Reference string
	ID        string
	Title     string
	Duration  time.Duration
	Owner     string
	Streams   []StreamDescriptor
}

// DurationString renders the duration the way yt-dlp prints duration_string
// (e.g. "3:05", "1:02:03"). Unknown durations render as "Unknown".
func (m MediaMetadata) DurationString() string {
	if m.Duration <= 0 {
		return "Unknown"
	}
	total := int(m.Duration.Round(time.Second) / time.Second)
	h, rem := total/3600, total%3600
	mm, s := rem/60, rem%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mm, s)
	}
	return fmt.Sprintf("%d:%02d", mm, s)
}

// SelectionPlan is the download recipe derived from a tier and resolved metadata.
// It is consumed exactly once by a download call.
type SelectionPlan struct {
	Reference     string
	TierLabel     string
	TargetHeight  int // tier ceiling
	Height        int // height of the chosen video-bearing stream
	VideoFormatID string
	AudioFormatID string
	Muxed         bool

	// Format is the yt-dlp format selector expression.
	Format          string
	OutputContainer string
	OutputTemplate  string
}

// OperationState is the lifecycle position of an orchestrator.
type OperationState int

const (
	StateIdle OperationState = iota
	StateResolving
	StateReady
	StateDownloading
	StateCompleted
	StateFailed
)

func (s OperationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	case StateDownloading:
		return "downloading"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsActive reports whether a background call is in flight in this state.
func (s OperationState) IsActive() bool {
	return s == StateResolving || s == StateDownloading
}

// IsFinished reports whether the state is terminal for a download.
func (s OperationState) IsFinished() bool {
	return s == StateCompleted || s == StateFailed
}

// MarshalText lets the state serialize as its name.
func (s OperationState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
