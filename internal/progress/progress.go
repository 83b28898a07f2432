// Package progress turns heterogeneous downloader progress payloads into a
// single canonical event shape.
package progress

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"tubegrab/internal/util/format"
)

// Phase identifies the coarse step of a download.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseMerging     Phase = "merging"
	PhaseFinished    Phase = "finished"
)

// Raw is a progress payload as reported by a downloader backend. Every field
// is optional and may be malformed.
type Raw struct {
	Status          string // downloading, finished, post_processing, merging, error
	PercentText     string // e.g. " 45.2%"
	DownloadedBytes *int64
	TotalBytes      *int64
	TotalBytesText  string // e.g. "10.00MiB", "~ 3.1GiB"
	Speed           string
	ETA             *time.Duration
	Message         string
}

// Event is the normalized progress of one download operation.
type Event struct {
	Phase         Phase          `json:"phase"`
	Fraction      float64        `json:"fraction"` // 0..1, meaningful when FractionKnown
	FractionKnown bool           `json:"fraction_known"`
	TotalBytes    *int64         `json:"total_bytes,omitempty"`
	Speed         string         `json:"speed,omitempty"`
	ETA           *time.Duration `json:"eta,omitempty"`
	Message       string         `json:"message"`
}

// Percent returns 0..100, or -1 when the fraction is unknown.
func (e Event) Percent() float64 {
	if !e.FractionKnown {
		return -1
	}
	return math.Round(e.Fraction*1e6) / 1e4
}

// Terminal reports whether the event carries a finished marker.
func (e Event) Terminal() bool {
	return e.Phase == PhaseFinished
}

// Normalizer converts Raw payloads of a single operation into Events.
// It keeps the highest fraction seen so the reported value never decreases.
// A Normalizer is not safe for concurrent use.
type Normalizer struct {
	log       *zap.Logger
	high      float64
	known     bool
	total     *int64
	malformed int

	parts    int     // files fetched one after another
	part     int     // index of the file being fetched
	partHigh float64 // highest raw fraction of the current file
}

// NewNormalizer returns a Normalizer for one operation. log may be nil.
func NewNormalizer(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// SetParts declares how many files the download fetches in sequence, e.g. 2
// for a separate video and audio stream. Each file then covers an equal
// share of the fraction, and a finished marker before the last file is not
// terminal.
func (n *Normalizer) SetParts(k int) {
	if k < 1 {
		k = 1
	}
	n.parts = k
}

// Finish returns the terminal event for a download that returned without error.
func (n *Normalizer) Finish() Event {
	if n.parts > 1 {
		n.part = n.parts - 1
	}
	return n.Normalize(Raw{Status: string(PhaseFinished)})
}

// Malformed returns how many payload fields could not be parsed.
func (n *Normalizer) Malformed() int { return n.malformed }

// Normalize never fails; unparseable fields are treated as unknown.
func (n *Normalizer) Normalize(r Raw) Event {
	ev := Event{
		Phase: phaseOf(r.Status),
		Speed: strings.TrimSpace(r.Speed),
		ETA:   r.ETA,
	}

	frac, ok := n.fraction(r)
	if n.parts > 1 {
		frac, ok, ev.Phase = n.spread(frac, ok, ev.Phase)
	}
	if !ok && ev.Phase == PhaseFinished {
		frac, ok = 1, true
	}
	if ok {
		frac = math.Max(0, math.Min(1, frac))
		if n.known && frac < n.high {
			frac = n.high
		}
		n.high, n.known = frac, true
	}
	ev.Fraction, ev.FractionKnown = n.high, n.known

	if total := n.totalBytes(r); total != nil {
		n.total = total
	}
	ev.TotalBytes = n.total

	ev.Message = strings.TrimSpace(r.Message)
	if ev.Message == "" {
		ev.Message = describe(ev)
	}
	return ev
}

// spread maps a per-file fraction onto the whole download.
func (n *Normalizer) spread(frac float64, ok bool, phase Phase) (float64, bool, Phase) {
	last := n.part >= n.parts-1
	// The next file started without a finished marker.
	if ok && !last && n.partHigh >= 0.99 && frac < n.partHigh-0.5 {
		n.part++
		n.partHigh = 0
		last = n.part >= n.parts-1
	}
	if phase == PhaseFinished && !last {
		n.part++
		n.partHigh = 0
		return float64(n.part) / float64(n.parts), true, PhaseDownloading
	}
	if !ok {
		return 0, false, phase
	}
	frac = math.Max(0, math.Min(1, frac))
	n.partHigh = math.Max(n.partHigh, frac)
	return (float64(n.part) + frac) / float64(n.parts), true, phase
}

func (n *Normalizer) fraction(r Raw) (float64, bool) {
	if txt := strings.TrimSpace(stripANSI(r.PercentText)); txt != "" {
		p, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(txt, "%")), 64)
		if err == nil && !math.IsNaN(p) && !math.IsInf(p, 0) {
			return p / 100, true
		}
		n.malformedField("percent", r.PercentText)
	}
	if r.DownloadedBytes != nil && r.TotalBytes != nil && *r.TotalBytes > 0 && *r.DownloadedBytes >= 0 {
		return float64(*r.DownloadedBytes) / float64(*r.TotalBytes), true
	}
	return 0, false
}

func (n *Normalizer) totalBytes(r Raw) *int64 {
	if r.TotalBytes != nil && *r.TotalBytes > 0 {
		v := *r.TotalBytes
		return &v
	}
	txt := strings.TrimSpace(stripANSI(r.TotalBytesText))
	if txt == "" || strings.EqualFold(txt, "unknown") || strings.EqualFold(txt, "N/A") {
		return nil
	}
	v, err := format.ParseSize(txt)
	if err != nil || v <= 0 {
		n.malformedField("total_bytes", r.TotalBytesText)
		return nil
	}
	return &v
}

func (n *Normalizer) malformedField(field, value string) {
	n.malformed++
	n.log.Debug("ignoring malformed progress field", zap.String("field", field), zap.String("value", value))
}

func phaseOf(status string) Phase {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "finished", "complete", "completed":
		return PhaseFinished
	case "merging", "post_process", "post_processing", "postprocessing", "processing":
		return PhaseMerging
	default:
		return PhaseDownloading
	}
}

func describe(ev Event) string {
	switch ev.Phase {
	case PhaseFinished:
		return "Download completed"
	case PhaseMerging:
		return "Merging formats"
	}
	size := "Unknown size"
	if ev.TotalBytes != nil {
		size = format.HumanizeBytes(*ev.TotalBytes)
	}
	if !ev.FractionKnown {
		return "Downloading: " + size
	}
	return fmt.Sprintf("Downloading: %.1f%% of %s", ev.Fraction*100, size)
}

// stripANSI drops terminal color sequences yt-dlp embeds in its _str fields.
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
