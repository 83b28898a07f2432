package deps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindDownloaderCustomPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "my-ytdlp")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := FindDownloader(bin)
	if err != nil {
		t.Fatalf("FindDownloader: %v", err)
	}
	if got != bin {
		t.Fatalf("got %q, want %q", got, bin)
	}

	if _, err := FindDownloader(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing custom path")
	}
}

func TestInstall(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	old := ReleaseBaseURL
	ReleaseBaseURL = srv.URL + "/latest"
	defer func() { ReleaseBaseURL = old }()

	dir := t.TempDir()
	var last int64
	path, err := Install(context.Background(), dir, func(done, total int64) { last = done })
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if path != filepath.Join(dir, binaryName()) {
		t.Fatalf("path = %q", path)
	}
	if requested != "/latest/"+releaseAsset() {
		t.Fatalf("requested %q", requested)
	}
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Size() != 4096 {
		t.Fatalf("size = %d", fi.Size())
	}
	if fi.Mode().Perm()&0o100 == 0 {
		t.Fatalf("binary not executable: %v", fi.Mode())
	}
	if last != 4096 {
		t.Fatalf("last progress = %d, want 4096", last)
	}
}

func TestInstallHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	old := ReleaseBaseURL
	ReleaseBaseURL = srv.URL
	defer func() { ReleaseBaseURL = old }()

	dir := t.TempDir()
	if _, err := Install(context.Background(), dir, nil); err == nil {
		t.Fatal("expected error on 404")
	}
	if _, err := os.Stat(filepath.Join(dir, binaryName())); !os.IsNotExist(err) {
		t.Fatalf("binary should not exist after failure, stat err = %v", err)
	}
}
