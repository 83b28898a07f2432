package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"tubegrab/internal/orchestrator"
)

// bridge adapts orchestrator notifications to tea messages. State changes are
// always delivered; intermediate progress is dropped when the limiter or the
// channel has no room.
type bridge struct {
	ctx     context.Context
	ch      chan<- tea.Msg
	limiter *rate.Limiter
}

func newBridge(ctx context.Context, ch chan<- tea.Msg, every time.Duration) *bridge {
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	return &bridge{ctx: ctx, ch: ch, limiter: rate.NewLimiter(rate.Every(every), 1)}
}

func (b *bridge) listen(n orchestrator.Notification) {
	msg := notifyMsg{N: n}
	if n.Progress != nil && !n.Progress.Terminal() {
		if !b.limiter.Allow() {
			return
		}
		select {
		case b.ch <- msg:
		default:
		}
		return
	}
	select {
	case b.ch <- msg:
	case <-b.ctx.Done():
		// Program is gone; fall back to a non-blocking send.
		select {
		case b.ch <- msg:
		default:
		}
	}
}
