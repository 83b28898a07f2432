package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tubegrab/internal/model"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/progress"
	"tubegrab/internal/quality"
)

// Handler exposes one orchestrator over HTTP.
type Handler struct {
	orch           *orchestrator.Orchestrator
	defaultDir     string
	defaultQuality string
	log            *zap.Logger
	hub            *hub
	version        string
}

// NewHandler subscribes to orch and returns the handler. The subscription
// lives as long as the orchestrator.
func NewHandler(orch *orchestrator.Orchestrator, defaultDir, defaultQuality, version string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		orch:           orch,
		defaultDir:     defaultDir,
		defaultQuality: defaultQuality,
		log:            log,
		hub:            newHub(),
		version:        version,
	}
	orch.Subscribe(h.hub.publish)
	return h
}

// StateResponse is the JSON view of an orchestrator snapshot.
type StateResponse struct {
	OperationID           string               `json:"operation_id,omitempty"`
	Generation            uint64               `json:"generation"`
	State                 model.OperationState `json:"state"`
	Reference             string               `json:"reference,omitempty"`
	Title                 string               `json:"title,omitempty"`
	Owner                 string               `json:"owner,omitempty"`
	Duration              string               `json:"duration,omitempty"`
	Tiers                 []quality.Tier       `json:"tiers,omitempty"`
	NoDownloadableQuality bool                 `json:"no_downloadable_quality,omitempty"`
	Plan                  *model.SelectionPlan `json:"plan,omitempty"`
	Progress              *progress.Event      `json:"progress,omitempty"`
	ErrorKind             model.ErrorKind      `json:"error_kind,omitempty"`
	Error                 string               `json:"error,omitempty"`
	OutputPath            string               `json:"output_path,omitempty"`
}

// FetchRequest is the body of POST /api/v1/fetch.
type FetchRequest struct {
	URL string `json:"url" binding:"required"`
}

// StartRequest is the body of POST /api/v1/start. Empty fields fall back to
// the server defaults.
type StartRequest struct {
	Quality string `json:"quality"`
	Dir     string `json:"dir"`
}

// NotificationEvent is one server-sent event payload.
type NotificationEvent struct {
	orchestrator.Notification
	ErrorKind model.ErrorKind `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"state":   h.orch.CurrentState(),
	})
}

// State handles GET /api/v1/state.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, stateResponse(h.orch.Snapshot()))
}

// Fetch handles POST /api/v1/fetch.
func (h *Handler) Fetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.Fetch(strings.TrimSpace(req.URL)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, stateResponse(h.orch.Snapshot()))
}

// Tiers handles GET /api/v1/tiers.
func (h *Handler) Tiers(c *gin.Context) {
	snap := h.orch.Snapshot()
	tiers := h.orch.AvailableTiers()
	if tiers == nil {
		tiers = []quality.Tier{}
	}
	c.JSON(http.StatusOK, gin.H{
		"state":                   snap.State,
		"tiers":                   tiers,
		"no_downloadable_quality": snap.NoDownloadableQuality,
	})
}

// Start handles POST /api/v1/start.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Quality == "" {
		req.Quality = h.defaultQuality
	}
	if req.Dir == "" {
		req.Dir = h.defaultDir
	}
	if err := h.orch.Start(req.Quality, req.Dir); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, stateResponse(h.orch.Snapshot()))
}

// Cancel handles POST /api/v1/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	cancelled := h.orch.Cancel()
	c.JSON(http.StatusOK, gin.H{
		"cancelled": cancelled,
		"state":     h.orch.CurrentState(),
	})
}

// Events handles GET /api/v1/events as a server-sent event stream.
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	ch, unsubscribe := h.hub.subscribe(ctx)
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// Prime the stream with the current state so clients need no extra call.
	c.SSEvent("state", stateResponse(h.orch.Snapshot()))
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n := <-ch:
			c.SSEvent("notification", notificationEvent(n))
			return true
		}
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusInsufficientStorage {
		h.log.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error_kind": model.KindOf(err),
		"error":      err.Error(),
	})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidReference, model.KindInvalidTierSelection:
		return http.StatusBadRequest
	case model.KindOperationInProgress, model.KindNoDownloadableQuality:
		return http.StatusConflict
	case model.KindNoMatchingStream:
		return http.StatusUnprocessableEntity
	case model.KindDestinationUnavailable:
		return http.StatusInsufficientStorage
	}
	if errors.Is(err, orchestrator.ErrClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func stateResponse(s orchestrator.Snapshot) StateResponse {
	resp := StateResponse{
		OperationID:           s.OperationID,
		Generation:            s.Generation,
		State:                 s.State,
		Reference:             s.Reference,
		Tiers:                 s.Tiers,
		NoDownloadableQuality: s.NoDownloadableQuality,
		Plan:                  s.Plan,
		Progress:              s.Progress,
		OutputPath:            s.OutputPath,
	}
	if m := s.Metadata; m != nil {
		resp.Title = m.Title
		resp.Owner = m.Owner
		resp.Duration = m.DurationString()
	}
	if s.Err != nil {
		resp.ErrorKind = model.KindOf(s.Err)
		resp.Error = s.Err.Error()
	}
	return resp
}

func notificationEvent(n orchestrator.Notification) NotificationEvent {
	ev := NotificationEvent{Notification: n}
	if n.Err != nil {
		ev.ErrorKind = model.KindOf(n.Err)
		ev.Error = n.Err.Error()
	}
	return ev
}
