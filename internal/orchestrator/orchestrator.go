// Package orchestrator drives one fetch/download lifecycle at a time against
// a Resolver, reporting state transitions and progress to subscribers.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tubegrab/internal/model"
	"tubegrab/internal/progress"
	"tubegrab/internal/quality"
	"tubegrab/internal/util"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("orchestrator closed")

// Resolver is the external media service. Both calls block and must return
// promptly once ctx is cancelled. Download may call onProgress from any
// goroutine until it returns.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (model.MediaMetadata, error)
	Download(ctx context.Context, plan model.SelectionPlan, dir string, onProgress func(progress.Raw)) (string, error)
}

// Notification is delivered to listeners on every state transition and
// every accepted progress update.
type Notification struct {
	OperationID string               `json:"operation_id"`
	Generation  uint64               `json:"generation"`
	State       model.OperationState `json:"state"`
	Progress    *progress.Event      `json:"progress,omitempty"`
	Err         error                `json:"-"`
	OutputPath  string               `json:"output_path,omitempty"`
}

// Listener receives notifications in order from a single goroutine.
type Listener func(Notification)

// Snapshot is a consistent copy of the orchestrator's state.
type Snapshot struct {
	OperationID           string
	Generation            uint64
	State                 model.OperationState
	Reference             string
	Metadata              *model.MediaMetadata
	Tiers                 []quality.Tier
	NoDownloadableQuality bool
	Plan                  *model.SelectionPlan
	Progress              *progress.Event
	Err                   error
	OutputPath            string
}

// Orchestrator owns the state machine for one reference at a time.
type Orchestrator struct {
	resolver Resolver
	catalog  quality.Catalog
	log      *zap.Logger
	minFree  uint64
	template string
	base     context.Context

	mu        sync.RWMutex
	state     model.OperationState
	gen       uint64
	opID      string
	ref       string
	meta      *model.MediaMetadata
	tiers     []quality.Tier
	noQuality bool
	plan      *model.SelectionPlan
	progress  *progress.Event
	err       error
	outPath   string
	cancel    context.CancelFunc
	norm      *progress.Normalizer
	settled   chan struct{} // closed whenever the state is not active
	closed    bool

	wg sync.WaitGroup

	lsMu      sync.Mutex
	listeners []subscription
	nextSub   int

	qmu        sync.Mutex
	qcond      *sync.Cond
	queue      []Notification
	delivering bool
	stopped    bool
	drained    chan struct{}
}

type subscription struct {
	id int
	fn Listener
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithCatalog replaces the standard tier catalog.
func WithCatalog(c quality.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// WithMinFreeBytes rejects destinations with less free space than n.
func WithMinFreeBytes(n uint64) Option {
	return func(o *Orchestrator) { o.minFree = n }
}

// WithOutputTemplate overrides the yt-dlp output template of every plan.
func WithOutputTemplate(t string) Option {
	return func(o *Orchestrator) { o.template = t }
}

// WithContext sets the parent of every operation context.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) {
		if ctx != nil {
			o.base = ctx
		}
	}
}

// New returns an idle orchestrator.
func New(r Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: r,
		catalog:  quality.Default(),
		log:      zap.NewNop(),
		template: quality.DefaultTemplate,
		base:     context.Background(),
		state:    model.StateIdle,
		settled:  make(chan struct{}),
		drained:  make(chan struct{}),
	}
	close(o.settled)
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("orchestrator")
	o.qcond = sync.NewCond(&o.qmu)
	go o.dispatch()
	return o
}

// Fetch validates ref and starts resolving it in the background. A fetch
// while resolving supersedes the earlier one; a fetch while downloading is
// rejected.
func (o *Orchestrator) Fetch(ref string) error {
	ref = strings.TrimSpace(ref)
	if !util.IsValidReference(ref) {
		return model.Errorf(model.KindInvalidReference, "not a recognized video reference: %q", ref)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.state == model.StateDownloading {
		return model.Errorf(model.KindOperationInProgress, "a download is running; cancel it before fetching")
	}
	if o.cancel != nil {
		o.log.Debug("superseding fetch", zap.String("op_id", o.opID), zap.Uint64("generation", o.gen))
		o.cancel()
	}

	o.gen++
	o.opID = uuid.NewString()
	o.resetLocked()
	o.ref = ref
	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel
	o.transitionLocked(model.StateResolving)

	o.log.Info("resolving", o.fieldsLocked()...)
	o.wg.Add(1)
	go o.runResolve(ctx, o.gen, ref)
	return nil
}

// AvailableTiers returns the tiers computed by the last successful fetch,
// highest first.
func (o *Orchestrator) AvailableTiers() []quality.Tier {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]quality.Tier(nil), o.tiers...)
}

// Start downloads the tier named tierName into dir. The tier must be one of
// AvailableTiers.
func (o *Orchestrator) Start(tierName, dir string) error {
	o.mu.RLock()
	gen, plan, err := o.planLocked(tierName)
	o.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := o.prepareDestination(dir); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if o.gen != gen || o.state != model.StateReady {
		return model.Errorf(model.KindOperationInProgress, "state changed to %s while starting", o.state)
	}

	o.gen++
	o.plan = &plan
	o.norm = progress.NewNormalizer(o.log.With(zap.String("op_id", o.opID)))
	if !plan.Muxed && plan.VideoFormatID != "" && plan.AudioFormatID != "" {
		o.norm.SetParts(2)
	}
	ctx, cancel := context.WithCancel(o.base)
	o.cancel = cancel
	o.transitionLocked(model.StateDownloading)

	o.log.Info("download dispatched", append(o.fieldsLocked(), zap.String("tier", plan.TierLabel), zap.String("format", plan.Format))...)
	o.wg.Add(1)
	go o.runDownload(ctx, o.gen, plan, dir)
	return nil
}

func (o *Orchestrator) planLocked(tierName string) (uint64, model.SelectionPlan, error) {
	if o.closed {
		return 0, model.SelectionPlan{}, ErrClosed
	}
	switch o.state {
	case model.StateReady:
	case model.StateResolving, model.StateDownloading:
		return 0, model.SelectionPlan{}, model.Errorf(model.KindOperationInProgress, "cannot start while %s", o.state)
	default:
		return 0, model.SelectionPlan{}, model.Errorf(model.KindInvalidTierSelection, "no tiers available in state %s; fetch first", o.state)
	}
	if o.noQuality {
		return 0, model.SelectionPlan{}, model.Errorf(model.KindNoDownloadableQuality, "%q reports no stream with a known height", o.ref)
	}
	tier, err := o.catalog.Lookup(tierName)
	if err != nil {
		return 0, model.SelectionPlan{}, err
	}
	// Catalog tiers above the resolved maximum surface as NoMatchingStream.
	plan, err := quality.BuildPlan(tier, *o.meta)
	if err != nil {
		return 0, model.SelectionPlan{}, err
	}
	if o.template != "" {
		plan.OutputTemplate = o.template
	}
	return o.gen, plan, nil
}

func (o *Orchestrator) prepareDestination(dir string) error {
	if err := util.EnsureDir(dir); err != nil {
		return model.NewError(model.KindDestinationUnavailable, "destination "+dir+" is not usable", err)
	}
	if o.minFree == 0 {
		return nil
	}
	free, err := util.FreeBytes(dir)
	if err != nil {
		o.log.Warn("free space check failed", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	if free < o.minFree {
		return model.Errorf(model.KindDestinationUnavailable, "destination %s has %d bytes free, need %d", dir, free, o.minFree)
	}
	return nil
}

// Cancel stops the active resolve or download. The operation ends Failed
// with a Cancelled error. It returns false when nothing was running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelLocked("cancelled by caller")
}

func (o *Orchestrator) cancelLocked(reason string) bool {
	if !o.state.IsActive() {
		return false
	}
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.err = model.NewError(model.KindCancelled, reason, nil)
	o.log.Info("operation cancelled", o.fieldsLocked()...)
	o.transitionLocked(model.StateFailed)
	return true
}

// CurrentState returns the live state.
func (o *Orchestrator) CurrentState() model.OperationState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Snapshot{
		OperationID:           o.opID,
		Generation:            o.gen,
		State:                 o.state,
		Reference:             o.ref,
		Tiers:                 append([]quality.Tier(nil), o.tiers...),
		NoDownloadableQuality: o.noQuality,
		Err:                   o.err,
		OutputPath:            o.outPath,
	}
	if o.meta != nil {
		m := *o.meta
		m.Streams = append([]model.StreamDescriptor(nil), o.meta.Streams...)
		s.Metadata = &m
	}
	if o.plan != nil {
		p := *o.plan
		s.Plan = &p
	}
	if o.progress != nil {
		ev := *o.progress
		s.Progress = &ev
	}
	return s
}

// Await blocks until no operation is active or ctx is done.
func (o *Orchestrator) Await(ctx context.Context) (Snapshot, error) {
	o.mu.RLock()
	ch := o.settled
	o.mu.RUnlock()
	select {
	case <-ch:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// Subscribe registers l and returns a function that removes it.
func (o *Orchestrator) Subscribe(l Listener) func() {
	o.lsMu.Lock()
	defer o.lsMu.Unlock()
	o.nextSub++
	id := o.nextSub
	o.listeners = append(o.listeners, subscription{id: id, fn: l})
	return func() {
		o.lsMu.Lock()
		defer o.lsMu.Unlock()
		for i, s := range o.listeners {
			if s.id == id {
				o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// Wait blocks until every background call has returned and every
// notification queued so far has been delivered. It must not be called from
// a Listener.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
	o.qmu.Lock()
	for len(o.queue) > 0 || o.delivering {
		o.qcond.Wait()
	}
	o.qmu.Unlock()
}

// Close cancels any active operation, waits for workers and stops delivery.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.cancelLocked("orchestrator closed")
	o.closed = true
	o.mu.Unlock()

	o.Wait()
	o.qmu.Lock()
	o.stopped = true
	o.qcond.Broadcast()
	o.qmu.Unlock()
	<-o.drained
}

func (o *Orchestrator) runResolve(ctx context.Context, gen uint64, ref string) {
	defer o.wg.Done()
	meta, err := o.resolver.Resolve(ctx, ref)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.state != model.StateResolving {
		o.log.Debug("discarding stale resolve result", zap.Uint64("generation", gen), zap.Uint64("current", o.gen))
		return
	}
	o.cancel = nil

	if err != nil {
		if ctx.Err() != nil {
			o.err = model.NewError(model.KindCancelled, "resolve cancelled", err)
		} else {
			o.err = model.Ensure(model.KindResolution, "resolve failed", err)
		}
		o.log.Warn("resolve failed", append(o.fieldsLocked(), zap.Error(err))...)
		o.transitionLocked(model.StateFailed)
		return
	}

	meta.Reference = ref
	o.meta = &meta
	o.tiers = o.catalog.TiersAvailableFor(quality.ResolveMaxHeight(meta))
	o.noQuality = len(o.tiers) == 0
	o.log.Info("resolved", append(o.fieldsLocked(),
		zap.String("title", meta.Title),
		zap.Int("streams", len(meta.Streams)),
		zap.Int("tiers", len(o.tiers)))...)
	o.transitionLocked(model.StateReady)
}

func (o *Orchestrator) runDownload(ctx context.Context, gen uint64, plan model.SelectionPlan, dir string) {
	defer o.wg.Done()
	path, err := o.resolver.Download(ctx, plan, dir, func(r progress.Raw) {
		o.onProgress(gen, r)
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.state != model.StateDownloading {
		o.log.Debug("discarding stale download result", zap.Uint64("generation", gen), zap.Uint64("current", o.gen))
		return
	}
	o.cancel = nil

	switch {
	case err == nil:
		ev := o.norm.Finish()
		o.progress = &ev
		o.outPath = path
		o.log.Info("download completed", append(o.fieldsLocked(), zap.String("path", path))...)
		o.transitionLocked(model.StateCompleted)
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		o.err = model.NewError(model.KindCancelled, "download cancelled", err)
		o.log.Info("download cancelled", o.fieldsLocked()...)
		o.transitionLocked(model.StateFailed)
	default:
		o.err = model.Ensure(model.KindDownload, "download failed", err)
		o.log.Warn("download failed", append(o.fieldsLocked(), zap.Error(err))...)
		o.transitionLocked(model.StateFailed)
	}
}

func (o *Orchestrator) onProgress(gen uint64, r progress.Raw) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || o.state != model.StateDownloading {
		return
	}
	ev := o.norm.Normalize(r)
	o.progress = &ev
	n := o.notificationLocked()
	p := ev
	n.Progress = &p
	o.enqueue(n)
}

// transitionLocked moves to s and queues the notification. Callers hold mu.
func (o *Orchestrator) transitionLocked(s model.OperationState) {
	wasActive := o.state.IsActive()
	o.state = s
	switch {
	case s.IsActive() && !wasActive:
		o.settled = make(chan struct{})
	case !s.IsActive() && wasActive:
		close(o.settled)
	}
	n := o.notificationLocked()
	if o.progress != nil {
		p := *o.progress
		n.Progress = &p
	}
	o.enqueue(n)
}

func (o *Orchestrator) resetLocked() {
	o.meta = nil
	o.tiers = nil
	o.noQuality = false
	o.plan = nil
	o.progress = nil
	o.err = nil
	o.outPath = ""
	o.norm = nil
}

func (o *Orchestrator) notificationLocked() Notification {
	return Notification{
		OperationID: o.opID,
		Generation:  o.gen,
		State:       o.state,
		Err:         o.err,
		OutputPath:  o.outPath,
	}
}

func (o *Orchestrator) fieldsLocked() []zap.Field {
	return []zap.Field{
		zap.String("op_id", o.opID),
		zap.Uint64("generation", o.gen),
		zap.Stringer("state", o.state),
		zap.String("reference", o.ref),
	}
}

func (o *Orchestrator) enqueue(n Notification) {
	o.qmu.Lock()
	o.queue = append(o.queue, n)
	o.qcond.Broadcast()
	o.qmu.Unlock()
}

// dispatch delivers queued notifications in order until Close.
func (o *Orchestrator) dispatch() {
	defer close(o.drained)
	for {
		o.qmu.Lock()
		for len(o.queue) == 0 && !o.stopped {
			o.delivering = false
			o.qcond.Broadcast()
			o.qcond.Wait()
		}
		if len(o.queue) == 0 {
			o.delivering = false
			o.qcond.Broadcast()
			o.qmu.Unlock()
			return
		}
		batch := o.queue
		o.queue = nil
		o.delivering = true
		o.qmu.Unlock()

		o.lsMu.Lock()
		ls := make([]Listener, len(o.listeners))
		for i, s := range o.listeners {
			ls[i] = s.fn
		}
		o.lsMu.Unlock()

		for _, n := range batch {
			for _, l := range ls {
				l(n)
			}
		}
	}
}
