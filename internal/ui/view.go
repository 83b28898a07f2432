package ui

import (
	"fmt"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
)

func (m Model) viewHeader() string {
	title := m.styles.Title.Render("tubegrab")
	hint := "q: cancel"
	if m.job.done {
		hint = "done"
	} else if m.cancelling {
		hint = "cancelling…"
	}
	sub := m.styles.Subtitle.Render(fmt.Sprintf("quality %s • %s", m.job.tier, hint))
	return title + " " + sub
}

func (m Model) viewJob() string {
	js := m.job
	stateStyle := m.styles.JobInfo
	label := js.state.String()
	switch js.state {
	case model.StateResolving:
		stateStyle = m.styles.StateRes
	case model.StateDownloading:
		stateStyle = m.styles.StateDL
		if js.phase == progress.PhaseMerging {
			stateStyle = m.styles.StateMerge
			label = string(progress.PhaseMerging)
		}
	case model.StateCompleted:
		stateStyle = m.styles.Success
	case model.StateFailed:
		stateStyle = m.styles.Error
	}

	name := js.ref
	if js.title != "" {
		name = js.title
	}
	line1 := fmt.Sprintf("%s  %s", m.styles.JobTitle.Render(truncate(name, 56)), stateStyle.Render(label))

	var line2 string
	switch {
	case js.done && js.err == nil:
		line2 = m.styles.Success.Render("✓ done")
	case js.err != nil:
		line2 = m.styles.Error.Render("✗ " + errorLabel(js.err))
	case js.state == model.StateDownloading && js.percent >= 0:
		line2 = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
		if js.speed != "" {
			line2 += "  " + m.styles.Faint.Render(js.speed)
		}
		if js.eta != "" {
			line2 += "  " + m.styles.Faint.Render("ETA "+js.eta)
		}
	default:
		line2 = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
	}

	line3 := m.styles.JobInfo.Render(js.status)
	return m.styles.Box.Render(line1 + "\n" + line2 + "\n" + line3)
}

func errorLabel(err error) string {
	if k := model.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
