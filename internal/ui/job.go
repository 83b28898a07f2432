package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
)

type jobState struct {
	ref    string
	tier   string
	state  model.OperationState
	phase  progress.Phase
	status string
	err    error
	done   bool

	title      string
	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown
	speed      string
	eta        string

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newJobState(ref, tier string, styles Styles) jobState {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	return jobState{
		ref:     ref,
		tier:    tier,
		state:   model.StateIdle,
		status:  "Queued",
		percent: -1,
		spinner: sp,
		bar:     bar,
	}
}
