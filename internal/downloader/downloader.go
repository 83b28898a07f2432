package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
	"tubegrab/internal/quality"
	"tubegrab/internal/util"
)

// Engines accepted by Options.Engine.
const (
	EngineExec    = "exec"    // drive the yt-dlp binary directly and parse its console
	EngineLibrary = "library" // drive yt-dlp through go-ytdlp's progress hooks
)

// Options controls downloader behavior.
type Options struct {
	DownloaderPath string // Path to yt-dlp
	Verbose        bool
	Engine         string         // EngineExec (default) or EngineLibrary
	Runner         util.CmdRunner // nil uses the os/exec runner
	Logger         *zap.Logger
	// ProgressInterval throttles library engine callbacks; 0 means 250ms.
	ProgressInterval time.Duration
}

// Client resolves and downloads media through yt-dlp.
type Client struct {
	opts   Options
	runner util.CmdRunner
	log    *zap.Logger
}

// New returns a Client. An empty DownloaderPath is only valid for the
// library engine, which then lets go-ytdlp locate the binary.
func New(opts Options) *Client {
	if opts.Runner == nil {
		opts.Runner = util.NewDefaultRunner()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Engine == "" {
		opts.Engine = EngineExec
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 250 * time.Millisecond
	}
	return &Client{opts: opts, runner: opts.Runner, log: opts.Logger.Named("downloader")}
}

// Resolve fetches metadata and the stream list for a single reference.
func (c *Client) Resolve(ctx context.Context, ref string) (model.MediaMetadata, error) {
	info, err := c.fetchMetadata(ctx, ref)
	if err != nil {
		return model.MediaMetadata{}, err
	}
	meta := info.Metadata(ref)
	c.log.Debug("resolved",
		zap.String("reference", ref),
		zap.String("id", meta.ID),
		zap.Int("streams", len(meta.Streams)))
	return meta, nil
}

// ListEntries returns the entries of a playlist using flat extraction.
func (c *Client) ListEntries(ctx context.Context, ref string) (YTDLPPlaylist, error) {
	if c.opts.DownloaderPath == "" {
		return YTDLPPlaylist{}, errors.New("downloader path is required")
	}
	res, err := c.runner.Run(ctx, util.CmdSpec{
		Path:    c.opts.DownloaderPath,
		Args:    []string{"--flat-playlist", "-J", ref},
		Verbose: c.opts.Verbose,
		Log:     c.log,
	})
	if err != nil {
		return YTDLPPlaylist{}, fmt.Errorf("playlist listing failed: %w%s", err, stderrTail(res.Stderr))
	}
	var pl YTDLPPlaylist
	if err := json.Unmarshal(res.Stdout, &pl); err != nil {
		return YTDLPPlaylist{}, fmt.Errorf("parse playlist JSON: %w", err)
	}
	for i := range pl.Entries {
		if pl.Entries[i].URL == "" && pl.Entries[i].ID != "" {
			pl.Entries[i].URL = "https://www.youtube.com/watch?v=" + pl.Entries[i].ID
		}
	}
	return pl, nil
}

// Download executes plan into dir and returns the final file path.
// onProgress may be called from more than one goroutine.
func (c *Client) Download(ctx context.Context, plan model.SelectionPlan, dir string, onProgress func(progress.Raw)) (string, error) {
	if onProgress == nil {
		onProgress = func(progress.Raw) {}
	}
	if plan.OutputTemplate == "" {
		plan.OutputTemplate = quality.DefaultTemplate
	}
	if plan.OutputContainer == "" {
		plan.OutputContainer = quality.DefaultContainer
	}
	log := c.log.With(zap.String("reference", plan.Reference), zap.String("tier", plan.TierLabel))
	log.Info("download starting", zap.String("format", plan.Format), zap.String("dir", dir))

	var (
		path string
		err  error
	)
	switch c.opts.Engine {
	case EngineLibrary:
		path, err = c.downloadLibrary(ctx, plan, dir, onProgress)
	default:
		path, err = c.downloadExec(ctx, plan, dir, onProgress)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		log.Warn("download failed", zap.Error(err))
		return "", err
	}
	log.Info("download finished", zap.String("path", path))
	return path, nil
}

func (c *Client) downloadExec(ctx context.Context, plan model.SelectionPlan, dir string, onProgress func(progress.Raw)) (string, error) {
	if c.opts.DownloaderPath == "" {
		return "", errors.New("downloader path is required")
	}
	started := time.Now()
	args := []string{
		"-f", plan.Format,
		"--merge-output-format", plan.OutputContainer,
		"-o", plan.OutputTemplate,
		"-P", dir,
		"--restrict-filenames",
		"--no-playlist",
		"--newline",
		"--progress",
		"--no-simulate",
		"--print", "after_move:filepath",
		plan.Reference,
	}

	var printed string
	handle := func(line string) {
		if raw, ok := ParseLine(line); ok {
			onProgress(raw)
		}
	}
	res, runErr := c.runner.Run(ctx, util.CmdSpec{
		Path:    c.opts.DownloaderPath,
		Args:    args,
		Verbose: c.opts.Verbose,
		Log:     c.log,
		StdoutLine: func(line string) {
			handle(line)
			if t := strings.TrimSpace(line); t != "" && !strings.HasPrefix(t, "[") {
				printed = t
			}
		},
		StderrLine: handle,
	})
	if runErr != nil {
		return "", fmt.Errorf("downloader failed: %w%s", runErr, stderrTail(res.Stderr))
	}
	if printed != "" {
		return printed, nil
	}
	// Old yt-dlp builds ignore --print with --no-simulate.
	path, err := SelectDownloadedFile(dir, started)
	if err != nil {
		return "", fmt.Errorf("resolve download: %w", err)
	}
	return path, nil
}

func (c *Client) fetchMetadata(ctx context.Context, url string) (YTDLPInfo, error) {
	if c.opts.DownloaderPath == "" {
		return YTDLPInfo{}, errors.New("downloader path is required")
	}
	args := []string{
		"--dump-json",
		"--no-playlist",
		url,
	}
	res, runErr := c.runner.Run(ctx, util.CmdSpec{
		Path:    c.opts.DownloaderPath,
		Args:    args,
		Verbose: c.opts.Verbose,
		Log:     c.log,
	})
	if runErr != nil && len(res.Stdout) == 0 {
		if ctx.Err() != nil {
			return YTDLPInfo{}, ctx.Err()
		}
		return YTDLPInfo{}, fmt.Errorf("metadata fetch failed: %w%s", runErr, stderrTail(res.Stderr))
	}

	// Warnings can precede the JSON; the last JSON object wins.
	data := strings.TrimSpace(string(res.Stdout))
	var info YTDLPInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil || info.ID == "" {
		lastErr := err
		if lastErr == nil {
			lastErr = errors.New("no id in metadata")
		}
		lines := strings.Split(data, "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}
			var tmp YTDLPInfo
			if json.Unmarshal([]byte(line), &tmp) == nil && tmp.ID != "" {
				info = tmp
				lastErr = nil
				break
			}
		}
		if lastErr != nil {
			return YTDLPInfo{}, fmt.Errorf("parse metadata JSON: %w", lastErr)
		}
	}
	return info, nil
}

// stderrTail returns the last non-empty stderr line formatted as a suffix.
func stderrTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return " (" + l + ")"
		}
	}
	return ""
}
