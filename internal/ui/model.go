package ui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tubegrab/internal/model"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/util/format"
)

// Model is the bubbletea model for a single download job.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	svc     *pipeline.Service
	request pipeline.Job
	job     *jobState
	result  *pipeline.Result
	err     error

	cancelling bool
	width      int
	styles     Styles

	// eventCh carries orchestrator notifications from the bridge.
	eventCh chan tea.Msg
}

// NewModel builds the model and the service that feeds it. The service gets
// a listener that forwards notifications into the program, throttling
// progress updates to at most one per refresh interval.
func NewModel(ctx context.Context, job pipeline.Job, refresh time.Duration, opts ...pipeline.Option) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()
	js := newJobState(job.Reference, job.Quality, sty)
	ch := make(chan tea.Msg, 64)

	b := newBridge(c, ch, refresh)
	opts = append(opts, pipeline.WithListener(b.listen))
	return Model{
		ctx:     c,
		cancel:  cancel,
		svc:     pipeline.NewService(opts...),
		request: job,
		job:     &js,
		result:  &pipeline.Result{},
		styles:  sty,
		eventCh: ch,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.job.spinner.Tick, m.listenEventsCmd(), m.runJobCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.job.done {
				return m, tea.Quit
			}
			// The job goroutine observes the cancelled context and reports
			// back through jobDoneMsg, which ends the program.
			m.cancelling = true
			m.cancel()
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - 24; w > 10 && w < 80 {
			m.job.bar.Width = w
		}

	case notifyMsg:
		m.applyNotification(msg)
		return m, m.listenEventsCmd()

	case jobDoneMsg:
		m.finish(msg)
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.job.spinner, cmd = m.job.spinner.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	return m.viewHeader() + "\n\n" + m.viewJob() + "\n"
}

// Result returns the job outcome once the program has exited.
func (m Model) Result() (pipeline.Result, error) {
	return *m.result, m.err
}

func (m *Model) applyNotification(msg notifyMsg) {
	js := m.job
	if js.done {
		return
	}
	n := msg.N
	js.state = n.State
	if ev := n.Progress; ev != nil {
		js.phase = ev.Phase
		if p := ev.Percent(); p >= 0 {
			js.percent = p
		}
		js.speed = ev.Speed
		js.eta = ""
		if ev.ETA != nil {
			js.eta = ev.ETA.String()
		}
		if ev.Message != "" {
			js.status = ev.Message
		}
		return
	}
	switch n.State {
	case model.StateResolving:
		js.status = "Resolving metadata"
	case model.StateReady:
		js.status = "Selecting streams"
	case model.StateDownloading:
		js.status = "Starting download"
		js.percent = 0
	case model.StateCompleted:
		js.outputPath = n.OutputPath
		js.status = "Saved: " + n.OutputPath
	case model.StateFailed:
		js.err = n.Err
		if n.Err != nil {
			js.status = n.Err.Error()
		}
	}
}

func (m *Model) finish(msg jobDoneMsg) {
	js := m.job
	js.done = true
	*m.result = msg.Result
	m.err = msg.Err
	if msg.Result.Metadata != nil {
		js.title = msg.Result.Metadata.Title
	}
	if msg.Err != nil {
		js.err = msg.Err
		js.state = model.StateFailed
		js.status = msg.Err.Error()
		if errors.Is(msg.Err, model.ErrCancelled) {
			js.status = "Cancelled"
		}
		return
	}
	if msg.Result.Planned && msg.Result.Plan != nil {
		p := msg.Result.Plan
		js.state = model.StateReady
		js.status = fmt.Sprintf("Planned: %s at %dp (format %s) into %s", p.TierLabel, p.Height, p.Format, m.request.Dir)
		return
	}
	js.state = model.StateCompleted
	js.percent = 100
	js.outputPath = msg.Result.OutputPath
	js.bytes = msg.Result.Bytes
	js.status = fmt.Sprintf("Saved: %s (%s)", filepath.Base(js.outputPath), format.HumanizeBytes(js.bytes))
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) runJobCmd() tea.Cmd {
	return func() tea.Msg {
		res, err := m.svc.RunJob(m.ctx, m.request)
		// RunJob closes its orchestrator, so no listener call can follow.
		close(m.eventCh)
		return jobDoneMsg{Result: res, Err: err}
	}
}
