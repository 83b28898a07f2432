// Package quality holds the fixed quality tier table and the stream
// selection rules that map a tier onto resolved media.
package quality

import (
	"strconv"
	"strings"

	"tubegrab/internal/model"
)

// Tier is a named quality level.
type Tier struct {
	Label       string `json:"label"`      // e.g. "1080p"
	Resolution  string `json:"resolution"` // e.g. "1920x1080"
	Height      int    `json:"height"`
	Tag         string `json:"tag"` // SD, HD, 2K, 4K, 8K
	Description string `json:"description"`
}

// Catalog is an ordered, immutable list of tiers, highest first.
type Catalog struct {
	tiers []Tier
}

var standard = Catalog{tiers: []Tier{
	{Label: "4320p", Resolution: "7680x4320", Height: 4320, Tag: "8K", Description: "Ultra HD 8K"},
	{Label: "2160p", Resolution: "3840x2160", Height: 2160, Tag: "4K", Description: "Ultra HD 4K"},
	{Label: "1440p", Resolution: "2560x1440", Height: 1440, Tag: "2K", Description: "Quad HD"},
	{Label: "1080p", Resolution: "1920x1080", Height: 1080, Tag: "HD", Description: "Full HD"},
	{Label: "720p", Resolution: "1280x720", Height: 720, Tag: "HD", Description: "HD Ready"},
	{Label: "480p", Resolution: "854x480", Height: 480, Tag: "SD", Description: "Standard Definition"},
	{Label: "360p", Resolution: "640x360", Height: 360, Tag: "SD", Description: "Low Definition"},
	{Label: "240p", Resolution: "426x240", Height: 240, Tag: "SD", Description: "Very Low Definition"},
}}

// Default returns the process-wide catalog.
func Default() Catalog {
	return standard
}

// Tiers returns a copy of every tier, highest first.
func (c Catalog) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// TiersAvailableFor returns, highest first, every tier whose height does not
// exceed maxHeight. A non-positive maxHeight means the quality is unknown and
// yields an empty result.
func (c Catalog) TiersAvailableFor(maxHeight int) []Tier {
	if maxHeight <= 0 {
		return nil
	}
	var out []Tier
	for _, t := range c.tiers {
		if t.Height <= maxHeight {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds a tier by label ("1080p", "1080") or tag ("4K"). Matching is
// case-insensitive. Tags shared by several tiers (HD, SD) pick the highest.
func (c Catalog) Lookup(name string) (Tier, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Tier{}, model.Errorf(model.KindInvalidTierSelection, "empty quality")
	}
	if n, err := strconv.Atoi(key); err == nil {
		key = strconv.Itoa(n) + "p"
	}
	for _, t := range c.tiers {
		if strings.ToLower(t.Label) == key {
			return t, nil
		}
	}
	for _, t := range c.tiers {
		if strings.ToLower(t.Tag) == key {
			return t, nil
		}
	}
	return Tier{}, model.Errorf(model.KindInvalidTierSelection, "unknown quality %q (valid: %s)", name, strings.Join(c.Labels(), ", "))
}

// Labels lists tier labels, highest first.
func (c Catalog) Labels() []string {
	out := make([]string, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t.Label)
	}
	return out
}

// Contains reports whether tiers holds a tier with the given label.
func Contains(tiers []Tier, label string) bool {
	for _, t := range tiers {
		if t.Label == label {
			return true
		}
	}
	return false
}

// HighestAtMost returns the first tier in tiers (highest first) whose height
// does not exceed height.
func HighestAtMost(tiers []Tier, height int) (Tier, bool) {
	for _, t := range tiers {
		if t.Height <= height {
			return t, true
		}
	}
	return Tier{}, false
}
