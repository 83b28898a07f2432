package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
)

// Native resolves metadata with the pure-Go YouTube client and hands
// downloads to a yt-dlp Client. YouTube format IDs are itag numbers, so the
// plan's IDs are valid yt-dlp selectors.
type Native struct {
	client   *youtube.Client
	download *Client
	log      *zap.Logger
}

// NewNative returns a resolver that uses kkdai/youtube for metadata.
func NewNative(download *Client, timeout time.Duration, log *zap.Logger) *Native {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Native{
		client:   &youtube.Client{HTTPClient: &http.Client{Timeout: timeout}},
		download: download,
		log:      log.Named("native"),
	}
}

func (n *Native) Resolve(ctx context.Context, ref string) (model.MediaMetadata, error) {
	video, err := n.client.GetVideoContext(ctx, ref)
	if err != nil {
		if ctx.Err() != nil {
			return model.MediaMetadata{}, ctx.Err()
		}
		return model.MediaMetadata{}, wrapFetchError(err)
	}
	meta := model.MediaMetadata{
		Reference: ref,
		ID:        video.ID,
		Title:     video.Title,
		Owner:     video.Author,
		Duration:  video.Duration,
	}
	for _, f := range video.Formats {
		meta.Streams = append(meta.Streams, streamFromFormat(f))
	}
	n.log.Debug("resolved", zap.String("reference", ref), zap.Int("streams", len(meta.Streams)))
	return meta, nil
}

func (n *Native) Download(ctx context.Context, plan model.SelectionPlan, dir string, onProgress func(progress.Raw)) (string, error) {
	if n.download == nil {
		return "", errors.New("no download engine configured")
	}
	return n.download.Download(ctx, plan, dir, onProgress)
}

func wrapFetchError(err error) error {
	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("restricted content (login/age/private): %w", err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("invalid video id: %w", err)
	}
	var statusErr *youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusErr) {
		return fmt.Errorf("video not playable: %w", err)
	}
	return fmt.Errorf("metadata fetch failed: %w", err)
}

func streamFromFormat(f youtube.Format) model.StreamDescriptor {
	mime := strings.ToLower(f.MimeType)
	kind := model.StreamAudio
	if strings.HasPrefix(mime, "video/") {
		kind = model.StreamVideo
		if f.AudioChannels > 0 {
			kind = model.StreamMuxed
		}
	}
	s := model.StreamDescriptor{
		FormatID:  strconv.Itoa(f.ItagNo),
		Kind:      kind,
		Container: mimeToExt(mime),
		Codec:     mimeCodec(mime),
		Bitrate:   float64(f.Bitrate) / 1000,
	}
	if kind.HasVideo() && f.Height > 0 {
		s.Height = f.Height
	}
	return s
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(strings.TrimSpace(mime), "/")
	if len(parts) != 2 {
		return ""
	}
	switch parts[1] {
	case "3gpp":
		return "3gp"
	case "mp4":
		if parts[0] == "audio" {
			return "m4a"
		}
	}
	return parts[1]
}

// mimeCodec returns the first entry of the codecs parameter.
func mimeCodec(mime string) string {
	i := strings.Index(mime, "codecs=")
	if i < 0 {
		return ""
	}
	c := strings.Trim(mime[i+len("codecs="):], `"' `)
	if j := strings.IndexAny(c, `,"`); j >= 0 {
		c = c[:j]
	}
	return strings.TrimSpace(c)
}
