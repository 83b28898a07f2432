package downloader

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
)

func (c *Client) downloadLibrary(ctx context.Context, plan model.SelectionPlan, dir string, onProgress func(progress.Raw)) (string, error) {
	started := time.Now()
	dl := ytdlp.New().
		Format(plan.Format).
		MergeOutputFormat(plan.OutputContainer).
		RestrictFilenames().
		NoPlaylist().
		Output(filepath.Join(dir, plan.OutputTemplate))
	if c.opts.DownloaderPath != "" {
		dl.SetExecutable(c.opts.DownloaderPath)
	}

	dl.ProgressFunc(c.opts.ProgressInterval, func(update ytdlp.ProgressUpdate) {
		onProgress(rawFromUpdate(update))
	})

	result, err := dl.Run(ctx, plan.Reference)
	if err != nil {
		return "", fmt.Errorf("downloader failed: %w", err)
	}
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
			return *info[0].Filename, nil
		}
	}
	path, err := SelectDownloadedFile(dir, started)
	if err != nil {
		return "", fmt.Errorf("resolve download: %w", err)
	}
	return path, nil
}

// rawFromUpdate maps a go-ytdlp progress callback onto the raw payload shape.
func rawFromUpdate(u ytdlp.ProgressUpdate) progress.Raw {
	raw := progress.Raw{Status: string(u.Status)}
	if u.TotalBytes > 0 {
		total := int64(u.TotalBytes)
		done := int64(u.DownloadedBytes)
		raw.TotalBytes = &total
		raw.DownloadedBytes = &done
	}
	if eta := u.ETA(); eta > 0 {
		raw.ETA = &eta
	}
	if u.Filename != "" {
		raw.Message = filepath.Base(u.Filename)
	}
	return raw
}
