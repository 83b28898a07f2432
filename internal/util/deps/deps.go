package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"github.com/gofrs/flock"

	"tubegrab/internal/dirs"
)

// ReleaseBaseURL is where Install fetches yt-dlp builds from.
var ReleaseBaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download"

// FindDownloader returns the path to yt-dlp or youtube-dl.
// If customPath is non-empty, it tries that path or looks it up in PATH.
// Otherwise PATH is searched first, then the managed bin directory.
func FindDownloader(customPath string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find downloader at %q", customPath)
	}
	for _, name := range []string{"yt-dlp", "youtube-dl"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	if bin, err := dirs.BinDir(); err == nil {
		p := filepath.Join(bin, binaryName())
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", errors.New("could not find yt-dlp or youtube-dl in PATH; run `tubegrab doctor --install`")
}

// FindFFmpeg returns the path to the ffmpeg binary in PATH.
func FindFFmpeg() (string, error) {
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", errors.New("could not find ffmpeg in PATH; separate audio and video streams cannot be merged without it")
}

// InstallProgress reports bytes fetched so far and the expected total
// (zero when unknown).
type InstallProgress func(done, total int64)

// Install downloads the latest yt-dlp release into dir and marks it
// executable. A file lock in dir serializes concurrent installs.
func Install(ctx context.Context, dir string, onProgress InstallProgress) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, ".install.lock"))
	ok, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("acquire install lock: %w", err)
	}
	if !ok {
		return "", errors.New("another install is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	dest := filepath.Join(dir, binaryName())
	req, err := grab.NewRequest(dest+".download", ReleaseBaseURL+"/"+releaseAsset())
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := grab.NewClient().Do(req)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
Loop:
	for {
		select {
		case <-ticker.C:
			if onProgress != nil {
				onProgress(resp.BytesComplete(), resp.Size())
			}
		case <-resp.Done:
			break Loop
		}
	}
	if err := resp.Err(); err != nil {
		_ = os.Remove(resp.Filename)
		return "", fmt.Errorf("download %s: %w", req.URL(), err)
	}
	if onProgress != nil {
		onProgress(resp.BytesComplete(), resp.Size())
	}
	if err := os.Chmod(resp.Filename, 0o755); err != nil {
		return "", fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(resp.Filename, dest); err != nil {
		return "", fmt.Errorf("install %s: %w", dest, err)
	}
	return dest, nil
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "yt-dlp.exe"
	}
	return "yt-dlp"
}

// releaseAsset picks the standalone build for the running platform.
func releaseAsset() string {
	switch runtime.GOOS {
	case "windows":
		return "yt-dlp.exe"
	case "darwin":
		return "yt-dlp_macos"
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "yt-dlp_linux_aarch64"
		}
		return "yt-dlp_linux"
	}
	return "yt-dlp"
}
