package quality

import (
	"fmt"

	"tubegrab/internal/model"
)

const (
	// DefaultContainer is the merge output format for split video+audio.
	DefaultContainer = "mp4"
	// DefaultTemplate names files after title and resolution.
	DefaultTemplate = "%(title)s [%(resolution)s].%(ext)s"
)

// ResolveMaxHeight returns the largest known height among video-bearing
// streams, or 0 when none report one.
func ResolveMaxHeight(meta model.MediaMetadata) int {
	maxHeight := 0
	for _, s := range meta.Streams {
		if s.Kind.HasVideo() && s.Height > maxHeight {
			maxHeight = s.Height
		}
	}
	return maxHeight
}

// BuildPlan selects the best stream combination at or below tier.Height.
// A tier taller than the resolved maximum is rejected.
//
// A separate video-only + audio-only pair is preferred; a muxed stream is used
// when no pair exists or when it is strictly taller than the best pairable
// video track. A lone video-only track is the last resort. Ties are broken by
// height, then bitrate.
func BuildPlan(tier Tier, meta model.MediaMetadata) (model.SelectionPlan, error) {
	video, hasVideo := best(meta.Streams, model.StreamVideo, tier.Height)
	muxed, hasMuxed := best(meta.Streams, model.StreamMuxed, tier.Height)
	audio, hasAudio := bestAudio(meta.Streams)

	if maxHeight := ResolveMaxHeight(meta); tier.Height > maxHeight {
		return model.SelectionPlan{}, model.Errorf(model.KindNoMatchingStream,
			"%s exceeds the best available quality (%dp)", tier.Label, maxHeight)
	}
	if !hasVideo && !hasMuxed {
		return model.SelectionPlan{}, model.Errorf(model.KindNoMatchingStream,
			"no stream at or below %dp (best available %dp)", tier.Height, ResolveMaxHeight(meta))
	}

	plan := model.SelectionPlan{
		Reference:       meta.Reference,
		TierLabel:       tier.Label,
		TargetHeight:    tier.Height,
		OutputContainer: DefaultContainer,
		OutputTemplate:  DefaultTemplate,
	}
	fallback := fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", tier.Height, tier.Height)

	switch {
	case hasVideo && hasAudio && (!hasMuxed || video.Height >= muxed.Height):
		plan.Height = video.Height
		plan.VideoFormatID = video.FormatID
		plan.AudioFormatID = audio.FormatID
		plan.Format = withFallback(joinIDs(video.FormatID, audio.FormatID), fallback)
	case hasMuxed:
		plan.Height = muxed.Height
		plan.VideoFormatID = muxed.FormatID
		plan.Muxed = true
		plan.Format = withFallback(muxed.FormatID, fallback)
	default:
		plan.Height = video.Height
		plan.VideoFormatID = video.FormatID
		plan.Format = withFallback(video.FormatID, fallback)
	}
	return plan, nil
}

func best(streams []model.StreamDescriptor, kind model.StreamKind, ceiling int) (model.StreamDescriptor, bool) {
	var pick model.StreamDescriptor
	found := false
	for _, s := range streams {
		if s.Kind != kind || s.Height <= 0 || s.Height > ceiling {
			continue
		}
		if !found || better(s, pick) {
			pick, found = s, true
		}
	}
	return pick, found
}

func bestAudio(streams []model.StreamDescriptor) (model.StreamDescriptor, bool) {
	var pick model.StreamDescriptor
	found := false
	for _, s := range streams {
		if s.Kind != model.StreamAudio {
			continue
		}
		if !found || s.Bitrate > pick.Bitrate {
			pick, found = s, true
		}
	}
	return pick, found
}

func better(a, b model.StreamDescriptor) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	return a.Bitrate > b.Bitrate
}

func joinIDs(video, audio string) string {
	if video == "" || audio == "" {
		return ""
	}
	return video + "+" + audio
}

// withFallback prefers the explicit format IDs and falls back to a
// height-capped selector when they are missing or rejected by yt-dlp.
func withFallback(ids, fallback string) string {
	if ids == "" {
		return fallback
	}
	return ids + "/" + fallback
}
