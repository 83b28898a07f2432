package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubegrab/internal/model"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/progress"
)

func progressNote(f float64) orchestrator.Notification {
	return orchestrator.Notification{
		State:    model.StateDownloading,
		Progress: &progress.Event{Phase: progress.PhaseDownloading, Fraction: f, FractionKnown: true},
	}
}

func TestHubKeepsStateChangesForSlowClient(t *testing.T) {
	h := newHub()
	ch, unsubscribe := h.subscribe(context.Background())
	defer unsubscribe()

	// Overfill the buffer with progress; the excess is dropped without blocking.
	for i := 0; i < clientBuffer+8; i++ {
		h.publish(progressNote(float64(i) / 100))
	}
	require.Len(t, ch, clientBuffer)

	failed := orchestrator.Notification{
		State: model.StateFailed,
		Err:   model.Errorf(model.KindDownload, "HTTP Error 403"),
	}
	published := make(chan struct{})
	go func() {
		h.publish(failed)
		close(published)
	}()

	select {
	case <-published:
		t.Fatal("state change was not held for a full client")
	case <-time.After(50 * time.Millisecond):
	}

	var last orchestrator.Notification
	for i := 0; i < clientBuffer+1; i++ {
		select {
		case last = <-ch:
		case <-time.After(time.Second):
			t.Fatalf("only %d notifications delivered", i)
		}
	}
	<-published
	assert.Equal(t, model.StateFailed, last.State)
	assert.ErrorIs(t, last.Err, model.ErrDownload)
}

func TestHubStateSendEndsWithRequest(t *testing.T) {
	h := newHub()
	ctx, cancel := context.WithCancel(context.Background())
	_, unsubscribe := h.subscribe(ctx)
	defer unsubscribe()

	for i := 0; i < clientBuffer; i++ {
		h.publish(orchestrator.Notification{State: model.StateResolving})
	}

	published := make(chan struct{})
	go func() {
		h.publish(orchestrator.Notification{State: model.StateCompleted})
		close(published)
	}()
	cancel()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after the request ended")
	}
}

func TestHubUnsubscribeReleasesPublisher(t *testing.T) {
	h := newHub()
	_, unsubscribe := h.subscribe(context.Background())
	for i := 0; i < clientBuffer; i++ {
		h.publish(orchestrator.Notification{State: model.StateResolving})
	}

	published := make(chan struct{})
	go func() {
		h.publish(orchestrator.Notification{State: model.StateReady})
		close(published)
	}()
	time.Sleep(20 * time.Millisecond)
	unsubscribe()

	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish stayed blocked after unsubscribe")
	}
	assert.Equal(t, 0, h.size())
}
