package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"tubegrab/internal/model"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/progress"
)

func isolateHome(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TUBEGRAB_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", home+"/.config")
	t.Setenv("XDG_DATA_HOME", home+"/.local/share")
	t.Setenv("XDG_CACHE_HOME", home+"/.cache")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateHome(t)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %T (%v)", err, err)
	}
	return ee.Code
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid reference", model.ErrInvalidReference, ExitCLIError},
		{"invalid tier", model.Errorf(model.KindInvalidTierSelection, "bad"), ExitCLIError},
		{"no matching stream", model.ErrNoMatchingStream, ExitDownloadError},
		{"resolution", model.NewError(model.KindResolution, "x", errors.New("y")), ExitDownloadError},
		{"cancelled", model.ErrCancelled, ExitDownloadError},
		{"plain", errors.New("boom"), ExitDownloadError},
		{"already classified", &ExitError{Code: ExitMissingDep}, ExitMissingDep},
		{"wrapped exit", fmt.Errorf("ctx: %w", &ExitError{Code: ExitMissingDep}), ExitMissingDep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(t, exitFor(tt.err)); got != tt.want {
				t.Fatalf("exit code = %d, want %d", got, tt.want)
			}
		})
	}
	if exitFor(nil) != nil {
		t.Fatal("exitFor(nil) should be nil")
	}
}

func TestTiersCommand(t *testing.T) {
	out, err := execute(t, "tiers")
	if err != nil {
		t.Fatalf("tiers: %v", err)
	}
	for _, want := range []string{"4320p", "7680x4320", "Ultra HD 8K", "240p", "Very Low Definition"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "4320p") > strings.Index(out, "240p") {
		t.Fatal("tiers not listed highest first")
	}
}

func TestInvalidInputsExitOne(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"download non-youtube", []string{"download", "https://vimeo.com/12345"}},
		{"info garbage", []string{"info", "not a url"}},
		{"playlist without list", []string{"playlist", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}},
		{"unknown quality", []string{"tiers", "--quality", "999p"}},
		{"unknown engine", []string{"tiers", "--engine", "curl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := exitCode(t, err); code != ExitCLIError {
				t.Fatalf("exit code = %d, want %d (%v)", code, ExitCLIError, err)
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(out, "tubegrab") {
		t.Fatalf("completion script does not mention tubegrab")
	}
}

func TestPlainReporter(t *testing.T) {
	var buf bytes.Buffer
	r := newPlainReporter(&buf)
	total := int64(10 * 1024 * 1024)
	ev := func(frac float64) *progress.Event {
		return &progress.Event{Phase: progress.PhaseDownloading, Fraction: frac, FractionKnown: true, TotalBytes: &total, Speed: "1.00MiB/s"}
	}

	r.listen(orchestrator.Notification{State: model.StateResolving})
	r.listen(orchestrator.Notification{State: model.StateDownloading})
	r.listen(orchestrator.Notification{State: model.StateDownloading, Progress: ev(0.10)})
	r.listen(orchestrator.Notification{State: model.StateDownloading, Progress: ev(0.12)}) // below step
	r.listen(orchestrator.Notification{State: model.StateDownloading, Progress: ev(0.50)})
	r.listen(orchestrator.Notification{State: model.StateDownloading, Progress: &progress.Event{Phase: progress.PhaseMerging}})
	r.listen(orchestrator.Notification{State: model.StateDownloading, Progress: &progress.Event{Phase: progress.PhaseMerging}})
	r.listen(orchestrator.Notification{State: model.StateFailed, Err: model.Errorf(model.KindDownload, "disk full")})

	want := strings.Join([]string{
		"Resolving…",
		"Downloading…",
		" 10.0% of 10.0 MB at 1.00MiB/s",
		" 50.0% of 10.0 MB at 1.00MiB/s",
		"Merging formats…",
		"Failed: disk full",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("output:\n%q\nwant:\n%q", buf.String(), want)
	}
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	printPlan(&buf, pipeline.Result{
		Reference: "https://youtu.be/dQw4w9WgXcQ",
		Metadata:  &model.MediaMetadata{Title: "Song", Owner: "Chan", Duration: 95 * time.Second},
		Planned:   true,
		Plan: &model.SelectionPlan{
			TierLabel: "720p", TargetHeight: 720, Height: 720,
			VideoFormatID: "136", AudioFormatID: "140",
			Format: "136+140", OutputContainer: "mp4", OutputTemplate: "%(title)s [%(resolution)s].%(ext)s",
		},
	})
	out := buf.String()
	for _, want := range []string{"Song", "1:35", "video 136 + audio 140", "136+140", "mp4"} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan missing %q:\n%s", want, out)
		}
	}
}
