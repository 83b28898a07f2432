package quality

import (
	"errors"
	"testing"

	"tubegrab/internal/model"
)

func splitStreams(heights ...int) []model.StreamDescriptor {
	var out []model.StreamDescriptor
	for i, h := range heights {
		out = append(out, model.StreamDescriptor{
			FormatID: "v" + string(rune('0'+i)),
			Kind:     model.StreamVideo,
			Height:   h,
			Bitrate:  float64(h),
		})
	}
	out = append(out,
		model.StreamDescriptor{FormatID: "a-low", Kind: model.StreamAudio, Bitrate: 48},
		model.StreamDescriptor{FormatID: "a-high", Kind: model.StreamAudio, Bitrate: 160},
	)
	return out
}

func TestResolveMaxHeight(t *testing.T) {
	tests := []struct {
		name    string
		streams []model.StreamDescriptor
		want    int
	}{
		{name: "no streams", want: 0},
		{name: "audio only", streams: []model.StreamDescriptor{{Kind: model.StreamAudio, Bitrate: 128}}, want: 0},
		{name: "unknown heights", streams: []model.StreamDescriptor{{Kind: model.StreamVideo}, {Kind: model.StreamMuxed}}, want: 0},
		{name: "split", streams: splitStreams(240, 480, 720, 1080), want: 1080},
		{
			name: "muxed counts",
			streams: []model.StreamDescriptor{
				{Kind: model.StreamVideo, Height: 720},
				{Kind: model.StreamMuxed, Height: 1080},
			},
			want: 1080,
		},
		{
			name:    "audio height ignored",
			streams: []model.StreamDescriptor{{Kind: model.StreamVideo, Height: 360}, {Kind: model.StreamAudio, Height: 2160}},
			want:    360,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveMaxHeight(model.MediaMetadata{Streams: tt.streams})
			if got != tt.want {
				t.Errorf("ResolveMaxHeight() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildPlan_PrefersPair(t *testing.T) {
	meta := model.MediaMetadata{Reference: "https://youtu.be/abcdefghijk", Streams: splitStreams(240, 480, 720, 1080)}
	tier, _ := Default().Lookup("1080p")

	plan, err := BuildPlan(tier, meta)
	if err != nil {
		t.Fatalf("BuildPlan() error: %v", err)
	}
	if plan.Height != 1080 {
		t.Errorf("Height = %d, want 1080", plan.Height)
	}
	if plan.Muxed {
		t.Errorf("Muxed = true, want pair")
	}
	if plan.AudioFormatID != "a-high" {
		t.Errorf("AudioFormatID = %q, want a-high", plan.AudioFormatID)
	}
	want := "v3+a-high/bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	if plan.Format != want {
		t.Errorf("Format = %q, want %q", plan.Format, want)
	}
	if plan.OutputContainer != "mp4" || plan.OutputTemplate != DefaultTemplate {
		t.Errorf("container/template = %q/%q", plan.OutputContainer, plan.OutputTemplate)
	}
	if plan.Reference != meta.Reference {
		t.Errorf("Reference = %q", plan.Reference)
	}
}

func TestBuildPlan_NeverExceedsTier(t *testing.T) {
	meta := model.MediaMetadata{Streams: splitStreams(240, 480, 720, 1080, 1440, 2160)}
	for _, tier := range Default().Tiers() {
		plan, err := BuildPlan(tier, meta)
		if err != nil {
			if tier.Height <= 2160 {
				t.Errorf("BuildPlan(%s) unexpected error: %v", tier.Label, err)
			}
			continue
		}
		if plan.Height > tier.Height {
			t.Errorf("BuildPlan(%s) height %d exceeds %d", tier.Label, plan.Height, tier.Height)
		}
	}
}

func TestBuildPlan_NoMatchingStream(t *testing.T) {
	meta := model.MediaMetadata{Streams: splitStreams(240, 480, 720, 1080)}
	tier, _ := Default().Lookup("4K")
	_, err := BuildPlan(tier, meta)
	if !errors.Is(err, model.ErrNoMatchingStream) {
		t.Errorf("BuildPlan(4K) err = %v, want NoMatchingStream", err)
	}

	low := model.MediaMetadata{Streams: []model.StreamDescriptor{{Kind: model.StreamMuxed, Height: 360}}}
	tier240, _ := Default().Lookup("240p")
	if _, err := BuildPlan(tier240, low); !errors.Is(err, model.ErrNoMatchingStream) {
		t.Errorf("BuildPlan(240p) over 360p-only err = %v, want NoMatchingStream", err)
	}
}

func TestBuildPlan_MuxedFallback(t *testing.T) {
	meta := model.MediaMetadata{Streams: []model.StreamDescriptor{
		{FormatID: "18", Kind: model.StreamMuxed, Height: 360, Bitrate: 500},
		{FormatID: "22", Kind: model.StreamMuxed, Height: 720, Bitrate: 1500},
		{FormatID: "22b", Kind: model.StreamMuxed, Height: 720, Bitrate: 2500},
	}}
	tier, _ := Default().Lookup("720p")
	plan, err := BuildPlan(tier, meta)
	if err != nil {
		t.Fatalf("BuildPlan() error: %v", err)
	}
	if !plan.Muxed || plan.VideoFormatID != "22b" || plan.Height != 720 {
		t.Errorf("plan = %+v, want muxed 22b at 720", plan)
	}
}

func TestBuildPlan_TallerMuxedBeatsPair(t *testing.T) {
	meta := model.MediaMetadata{Streams: []model.StreamDescriptor{
		{FormatID: "v", Kind: model.StreamVideo, Height: 480},
		{FormatID: "a", Kind: model.StreamAudio, Bitrate: 128},
		{FormatID: "m", Kind: model.StreamMuxed, Height: 720},
	}}
	tier, _ := Default().Lookup("720p")
	plan, err := BuildPlan(tier, meta)
	if err != nil {
		t.Fatalf("BuildPlan() error: %v", err)
	}
	if !plan.Muxed || plan.Height != 720 {
		t.Errorf("plan = %+v, want muxed 720", plan)
	}
}

func TestBuildPlan_VideoOnlyLastResort(t *testing.T) {
	meta := model.MediaMetadata{Streams: []model.StreamDescriptor{{FormatID: "137", Kind: model.StreamVideo, Height: 1080}}}
	tier, _ := Default().Lookup("1080p")
	plan, err := BuildPlan(tier, meta)
	if err != nil {
		t.Fatalf("BuildPlan() error: %v", err)
	}
	if plan.Muxed || plan.AudioFormatID != "" || plan.Height != 1080 {
		t.Errorf("plan = %+v, want lone video track", plan)
	}
}

func TestBuildPlan_MissingFormatIDsUseSelector(t *testing.T) {
	meta := model.MediaMetadata{Streams: []model.StreamDescriptor{
		{Kind: model.StreamVideo, Height: 720},
		{Kind: model.StreamAudio},
	}}
	tier, _ := Default().Lookup("720p")
	plan, err := BuildPlan(tier, meta)
	if err != nil {
		t.Fatalf("BuildPlan() error: %v", err)
	}
	if want := "bestvideo[height<=720]+bestaudio/best[height<=720]"; plan.Format != want {
		t.Errorf("Format = %q, want %q", plan.Format, want)
	}
}
