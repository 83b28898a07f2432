package api

import (
	"context"
	"sync"

	"tubegrab/internal/orchestrator"
)

const clientBuffer = 32

// hub fans orchestrator notifications out to event-stream clients. A client
// that falls behind loses intermediate progress; state transitions wait for
// room until the client's request ends.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	ch   chan orchestrator.Notification
	ctx  context.Context
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) publish(n orchestrator.Notification) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	droppable := n.Progress != nil && !n.Progress.Terminal()
	for _, c := range targets {
		if droppable {
			select {
			case c.ch <- n:
			default:
			}
			continue
		}
		select {
		case c.ch <- n:
		case <-c.ctx.Done():
		case <-c.done:
		}
	}
}

// subscribe registers a client for the lifetime of ctx or until the returned
// func is called.
func (h *hub) subscribe(ctx context.Context) (<-chan orchestrator.Notification, func()) {
	c := &client{
		ch:   make(chan orchestrator.Notification, clientBuffer),
		ctx:  ctx,
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c.ch, func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
