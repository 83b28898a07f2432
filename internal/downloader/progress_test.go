package downloader

import (
	"testing"
	"time"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantOk      bool
		wantStatus  string
		wantPercent string
		wantTotal   string
		wantSpeed   string
		wantETA     *time.Duration
	}{
		{
			name:        "typical download progress",
			line:        "[download]  45.2% of 10.00MiB at  1.50MiB/s ETA 00:04",
			wantOk:      true,
			wantStatus:  "downloading",
			wantPercent: "45.2%",
			wantTotal:   "10.00MiB",
			wantSpeed:   "1.50MiB/s",
			wantETA:     durationPtr(4 * time.Second),
		},
		{
			name:        "progress without ETA",
			line:        "[download]  25.0% of 5.00MiB at  500.00KiB/s",
			wantOk:      true,
			wantStatus:  "downloading",
			wantPercent: "25.0%",
			wantTotal:   "5.00MiB",
			wantSpeed:   "500.00KiB/s",
		},
		{
			name:        "approximate size with HH:MM:SS ETA",
			line:        "[download]  10.5% of ~ 100.00MiB at  1.00MiB/s ETA 01:23:45",
			wantOk:      true,
			wantStatus:  "downloading",
			wantPercent: "10.5%",
			wantTotal:   "~ 100.00MiB",
			wantSpeed:   "1.00MiB/s",
			wantETA:     durationPtr(1*time.Hour + 23*time.Minute + 45*time.Second),
		},
		{
			name:        "final line",
			line:        "[download] 100% of 10.00MiB in 00:00:07 at 1.41MiB/s",
			wantOk:      true,
			wantStatus:  "finished",
			wantPercent: "100%",
			wantTotal:   "10.00MiB",
			wantSpeed:   "1.41MiB/s",
		},
		{
			name:        "already downloaded",
			line:        "[download] Clip.mp4 has already been downloaded",
			wantOk:      true,
			wantStatus:  "finished",
			wantPercent: "100%",
		},
		{
			name:       "merger",
			line:       `[Merger] Merging formats into "Clip [1920x1080].mp4"`,
			wantOk:     true,
			wantStatus: "merging",
		},
		{
			name:   "destination line",
			line:   "[download] Destination: Clip.f137.mp4",
			wantOk: false,
		},
		{
			name:   "non-download line",
			line:   "[ExtractorError] Unable to download webpage",
			wantOk: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := ParseLine(tt.line)
			if ok != tt.wantOk {
				t.Fatalf("ParseLine() ok = %v, want %v", ok, tt.wantOk)
			}
			if !tt.wantOk {
				return
			}
			if raw.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", raw.Status, tt.wantStatus)
			}
			if raw.PercentText != tt.wantPercent {
				t.Errorf("PercentText = %q, want %q", raw.PercentText, tt.wantPercent)
			}
			if raw.TotalBytesText != tt.wantTotal {
				t.Errorf("TotalBytesText = %q, want %q", raw.TotalBytesText, tt.wantTotal)
			}
			if raw.Speed != tt.wantSpeed {
				t.Errorf("Speed = %q, want %q", raw.Speed, tt.wantSpeed)
			}
			if tt.wantETA != nil {
				if raw.ETA == nil || *raw.ETA != *tt.wantETA {
					t.Errorf("ETA = %v, want %v", ptrDur(raw.ETA), *tt.wantETA)
				}
			}
		})
	}
}

func TestParseETA(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    time.Duration
		wantErr bool
	}{
		{name: "MM:SS format", s: "04:30", want: 4*time.Minute + 30*time.Second},
		{name: "HH:MM:SS format", s: "01:23:45", want: 1*time.Hour + 23*time.Minute + 45*time.Second},
		{name: "seconds only", s: "45", want: 45 * time.Second},
		{name: "zero seconds", s: "00:00", want: 0},
		{name: "invalid format", s: "invalid", wantErr: true},
		{name: "too many colons", s: "1:2:3:4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseETA(tt.s)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseETA(%q) expected error, got nil", tt.s)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseETA(%q) unexpected error: %v", tt.s, err)
			}
			if got != tt.want {
				t.Errorf("parseETA(%q) = %v, want %v", tt.s, got, tt.want)
			}
		})
	}
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

func ptrDur(d *time.Duration) string {
	if d == nil {
		return "<nil>"
	}
	return d.String()
}
