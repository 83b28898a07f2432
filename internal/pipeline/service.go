// Package pipeline runs complete fetch → start → finish cycles on top of the
// orchestrator for single videos and playlists.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"tubegrab/internal/downloader"
	"tubegrab/internal/model"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/quality"
	"tubegrab/internal/util/media"
)

// Lister enumerates playlist entries.
type Lister interface {
	ListEntries(ctx context.Context, ref string) (downloader.YTDLPPlaylist, error)
}

// Service drives one orchestrator per job.
type Service struct {
	resolver orchestrator.Resolver
	lister   Lister
	log      *zap.Logger
	listener orchestrator.Listener
	orchOpts []orchestrator.Option
}

// Option configures a Service.
type Option func(*Service)

// WithResolver sets the media resolver used for every job.
func WithResolver(r orchestrator.Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

// WithLister sets the playlist lister.
func WithLister(l Lister) Option {
	return func(s *Service) {
		s.lister = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithListener attaches a listener to every orchestrator the service creates.
func WithListener(l orchestrator.Listener) Option {
	return func(s *Service) {
		s.listener = l
	}
}

// WithOrchestratorOptions passes options through to each orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(s *Service) {
		s.orchOpts = append(s.orchOpts, opts...)
	}
}

// NewService constructs a Service with the provided options.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.lister == nil {
		if l, ok := s.resolver.(Lister); ok {
			s.lister = l
		}
	}
	return s
}

// Job describes one single-video run.
type Job struct {
	Reference string
	Quality   string
	Dir       string
	Template  string // optional yt-dlp output template
	DryRun    bool   // resolve and plan only
	// CapQuality downloads at the highest available tier not above Quality
	// when the media does not offer Quality itself.
	CapQuality bool
}

// Result returns the outcome of RunJob.
type Result struct {
	Reference   string
	OperationID string
	Quality     string // tier label the download was started with
	Substituted bool   // Quality differs from the requested tier
	Metadata    *model.MediaMetadata
	Tiers       []quality.Tier
	Planned     bool
	Plan        *model.SelectionPlan
	OutputPath  string
	Bytes       int64
}

// Inspect resolves ref and reports its metadata and available tiers.
func (s *Service) Inspect(ctx context.Context, ref string) (Result, error) {
	if s.resolver == nil {
		return Result{Reference: ref}, errors.New("no resolver configured")
	}
	orch := s.newOrchestrator("")
	defer orch.Close()
	res := Result{Reference: ref}
	snap, err := s.fetch(ctx, orch, ref)
	res.fill(snap)
	return res, err
}

// RunJob executes a full resolve and download for job.Reference.
// It never prints; progress reaches the configured listener.
func (s *Service) RunJob(ctx context.Context, job Job) (Result, error) {
	if s.resolver == nil {
		return Result{Reference: job.Reference}, errors.New("no resolver configured")
	}
	orch := s.newOrchestrator(job.Template)
	defer orch.Close()
	res := Result{Reference: job.Reference}
	log := s.log.With(zap.String("reference", job.Reference), zap.String("tier", job.Quality))

	snap, err := s.fetch(ctx, orch, job.Reference)
	res.fill(snap)
	if err != nil {
		return res, err
	}

	tierName := job.Quality
	if job.CapQuality {
		tier, lowered := cappedTier(snap, job.Quality)
		tierName = tier
		if lowered {
			res.Substituted = true
			log.Info("quality lowered to best available", zap.String("requested", job.Quality), zap.String("using", tier))
		}
	}
	res.Quality = tierName

	if job.DryRun {
		plan, err := planFor(snap, tierName)
		if err != nil {
			return res, err
		}
		if job.Template != "" {
			plan.OutputTemplate = job.Template
		}
		res.Planned = true
		res.Plan = &plan
		return res, nil
	}

	if err := orch.Start(tierName, job.Dir); err != nil {
		return res, err
	}
	snap, err = s.await(ctx, orch)
	res.fill(snap)
	if err != nil {
		return res, err
	}
	if snap.State != model.StateCompleted {
		return res, snap.Err
	}
	if fi, statErr := os.Stat(snap.OutputPath); statErr == nil {
		res.Bytes = fi.Size()
	}
	log.Info("job finished", zap.String("path", res.OutputPath), zap.Int64("bytes", res.Bytes))
	return res, nil
}

func (s *Service) newOrchestrator(template string) *orchestrator.Orchestrator {
	opts := append([]orchestrator.Option{orchestrator.WithLogger(s.log)}, s.orchOpts...)
	if template != "" {
		opts = append(opts, orchestrator.WithOutputTemplate(template))
	}
	orch := orchestrator.New(s.resolver, opts...)
	if s.listener != nil {
		orch.Subscribe(s.listener)
	}
	return orch
}

func (s *Service) fetch(ctx context.Context, orch *orchestrator.Orchestrator, ref string) (orchestrator.Snapshot, error) {
	if err := orch.Fetch(ref); err != nil {
		return orch.Snapshot(), err
	}
	snap, err := s.await(ctx, orch)
	if err != nil {
		return snap, err
	}
	if snap.State == model.StateFailed {
		return snap, snap.Err
	}
	return snap, nil
}

// await waits for the active operation. When ctx ends first the operation
// is cancelled and its Cancelled error returned.
func (s *Service) await(ctx context.Context, orch *orchestrator.Orchestrator) (orchestrator.Snapshot, error) {
	snap, err := orch.Await(ctx)
	if err == nil {
		if snap.State == model.StateFailed {
			return snap, snap.Err
		}
		return snap, nil
	}
	orch.Cancel()
	snap, _ = orch.Await(context.Background())
	if snap.Err != nil {
		return snap, snap.Err
	}
	return snap, model.NewError(model.KindCancelled, "interrupted", err)
}

// planFor mirrors the checks Start performs without dispatching a download.
func planFor(snap orchestrator.Snapshot, tierName string) (model.SelectionPlan, error) {
	if snap.NoDownloadableQuality || snap.Metadata == nil {
		return model.SelectionPlan{}, model.Errorf(model.KindNoDownloadableQuality, "%q reports no stream with a known height", snap.Reference)
	}
	tier, err := quality.Default().Lookup(tierName)
	if err != nil {
		return model.SelectionPlan{}, err
	}
	return quality.BuildPlan(tier, *snap.Metadata)
}

// cappedTier picks the requested tier when the media offers it, otherwise the
// highest offered tier below it. Unknown names and media without tiers are
// passed through so Start reports them.
func cappedTier(snap orchestrator.Snapshot, name string) (string, bool) {
	want, err := quality.Default().Lookup(name)
	if err != nil || len(snap.Tiers) == 0 || quality.Contains(snap.Tiers, want.Label) {
		return name, false
	}
	t, ok := quality.HighestAtMost(snap.Tiers, want.Height)
	if !ok {
		return name, false
	}
	return t.Label, true
}

func (r *Result) fill(snap orchestrator.Snapshot) {
	if snap.OperationID != "" {
		r.OperationID = snap.OperationID
	}
	if snap.Metadata != nil {
		r.Metadata = snap.Metadata
		r.Tiers = snap.Tiers
	}
	if snap.Plan != nil {
		r.Plan = snap.Plan
	}
	if snap.OutputPath != "" {
		r.OutputPath = snap.OutputPath
	}
}

// PlaylistJob describes a playlist run.
type PlaylistJob struct {
	Reference string
	Quality   string
	Dir       string
	Subdir    bool // save into a folder named after the playlist
}

// PlaylistItem is the outcome of one entry. Quality is the tier the entry
// was downloaded at, lower than requested when Substituted is set.
type PlaylistItem struct {
	Index       int
	Title       string
	Quality     string
	Substituted bool
	Result      Result
	Err         error
}

// PlaylistSummary aggregates a playlist run.
type PlaylistSummary struct {
	ID        string
	Title     string
	Dir       string
	Items     []PlaylistItem
	Succeeded int
	Failed    int
}

// RunPlaylist downloads every entry sequentially, one orchestrator
// operation per entry. Entries whose best quality is below the requested
// tier are downloaded at their highest tier instead. Entry failures are
// recorded and the run continues.
func (s *Service) RunPlaylist(ctx context.Context, job PlaylistJob) (PlaylistSummary, error) {
	if s.lister == nil {
		return PlaylistSummary{}, errors.New("no playlist lister configured")
	}
	pl, err := s.lister.ListEntries(ctx, job.Reference)
	if err != nil {
		return PlaylistSummary{}, model.Ensure(model.KindResolution, "list playlist", err)
	}
	sum := PlaylistSummary{ID: pl.ID, Title: pl.Title, Dir: job.Dir}
	if job.Subdir {
		sum.Dir = media.PlaylistDir(job.Dir, pl.Title, pl.ID)
	}
	log := s.log.With(zap.String("playlist", pl.ID))
	log.Info("playlist listed", zap.String("title", pl.Title), zap.Int("entries", len(pl.Entries)))

	total := len(pl.Entries)
	for i, e := range pl.Entries {
		if ctx.Err() != nil {
			break
		}
		idx := i + 1
		res, err := s.RunJob(ctx, Job{
			Reference:  e.URL,
			Quality:    job.Quality,
			Dir:        sum.Dir,
			Template:   media.IndexedTemplate(idx, total),
			CapQuality: true,
		})
		item := PlaylistItem{Index: idx, Title: e.Title, Quality: res.Quality, Substituted: res.Substituted, Result: res, Err: err}
		if res.Substituted {
			log.Info("entry quality lowered", zap.Int("index", idx), zap.String("requested", job.Quality), zap.String("using", res.Quality))
		}
		if err != nil {
			sum.Failed++
			log.Warn("entry failed", zap.Int("index", idx), zap.String("reference", e.URL), zap.Error(err))
		} else {
			sum.Succeeded++
		}
		sum.Items = append(sum.Items, item)
	}
	if err := ctx.Err(); err != nil {
		return sum, fmt.Errorf("playlist interrupted after %d of %d entries: %w", len(sum.Items), total, err)
	}
	return sum, nil
}
