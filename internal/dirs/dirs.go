// Package dirs locates the per-user directories tubegrab reads and writes.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "tubegrab"

// HomeEnv, when set, roots every tubegrab directory under one folder
// (config/, data/, cache/), ignoring platform conventions.
const HomeEnv = "TUBEGRAB_HOME"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// location describes one directory role across platforms.
type location struct {
	sub      string   // folder under HomeEnv
	xdgEnv   string   // linux override variable
	xdgHome  []string // linux fallback below $HOME
	darwin   []string // macOS path below $HOME
	fallback func() (string, error)
}

var (
	configLoc = location{
		sub:      "config",
		xdgEnv:   "XDG_CONFIG_HOME",
		xdgHome:  []string{".config"},
		darwin:   []string{"Library", "Application Support"},
		fallback: os.UserConfigDir,
	}
	dataLoc = location{
		sub:      "data",
		xdgEnv:   "XDG_DATA_HOME",
		xdgHome:  []string{".local", "share"},
		darwin:   []string{"Library", "Application Support"},
		fallback: os.UserConfigDir,
	}
	cacheLoc = location{
		sub:      "cache",
		xdgEnv:   "XDG_CACHE_HOME",
		xdgHome:  []string{".cache"},
		darwin:   []string{"Library", "Caches"},
		fallback: os.UserCacheDir,
	}
)

func (l location) path() (string, error) {
	if root := os.Getenv(HomeEnv); root != "" {
		return filepath.Join(root, l.sub), nil
	}
	var parts []string
	switch runtime.GOOS {
	case "linux":
		if v := os.Getenv(l.xdgEnv); v != "" {
			return filepath.Join(v, appName), nil
		}
		parts = l.xdgHome
	case "darwin":
		parts = l.darwin
	default:
		base, err := l.fallback()
		if err != nil {
			return "", err
		}
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, parts...), appName)...), nil
}

// ConfigDir holds config.yaml. Linux honours XDG_CONFIG_HOME.
func ConfigDir() (string, error) { return configLoc.path() }

// DataDir holds installed tools and fallback downloads.
func DataDir() (string, error) { return dataLoc.path() }

// CacheDir returns the per-user cache directory.
func CacheDir() (string, error) { return cacheLoc.path() }

// BinDir is where `doctor --install` places a private yt-dlp.
func BinDir() (string, error) {
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "bin"), nil
}

// DefaultOutputDir returns ./downloads relative to the working directory,
// or a downloads folder under the data dir when the working directory is
// unknown.
func DefaultOutputDir() (string, error) {
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "downloads"), nil
	}
	d, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "downloads"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll creates the config and cache dirs. Roles whose location cannot
// be determined are skipped.
func EnsureAll() error {
	for _, l := range []location{configLoc, cacheLoc} {
		p, err := l.path()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}
