package dirs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestXDGOverrides(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG variables only apply on linux")
	}
	base := t.TempDir()
	t.Setenv(HomeEnv, "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "cfg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(base, "cache"))

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"config", ConfigDir, filepath.Join(base, "cfg", "tubegrab")},
		{"data", DataDir, filepath.Join(base, "data", "tubegrab")},
		{"cache", CacheDir, filepath.Join(base, "cache", "tubegrab")},
		{"bin", BinDir, filepath.Join(base, "data", "tubegrab", "bin")},
	}
	for _, tt := range tests {
		got, err := tt.fn()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}

	if err := EnsureAll(); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
}

func TestHomeOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv(HomeEnv, root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "ignored"))

	tests := []struct {
		name string
		fn   func() (string, error)
		want string
	}{
		{"config", ConfigDir, filepath.Join(root, "config")},
		{"data", DataDir, filepath.Join(root, "data")},
		{"cache", CacheDir, filepath.Join(root, "cache")},
		{"bin", BinDir, filepath.Join(root, "data", "bin")},
	}
	for _, tt := range tests {
		got, err := tt.fn()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
	if err := EnsureAll(); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "config")); err != nil {
		t.Errorf("config dir not created: %v", err)
	}
}

func TestDefaultOutputDir(t *testing.T) {
	got, err := DefaultOutputDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != "downloads" {
		t.Errorf("DefaultOutputDir() = %q", got)
	}
}

func TestEnsureEmpty(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Error("Ensure(\"\") expected error")
	}
}
