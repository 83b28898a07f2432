package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tubegrab/internal/config"
	"tubegrab/internal/downloader"
	"tubegrab/internal/logging"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/util/deps"
)

type ctxKey string

const appKey ctxKey = "app"

// app carries what every command needs once flags and config are parsed.
type app struct {
	cfg config.Config
	log *zap.Logger
}

func withApp(ctx context.Context, a *app) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, appKey, a)
}

func appFrom(ctx context.Context) *app {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(appKey).(*app)
	return a
}

// mustApp returns the app for cmd, falling back to defaults when the
// persistent pre-run did not execute (e.g. commands built in tests).
func mustApp(cmd *cobra.Command) *app {
	if a := appFrom(cmd.Context()); a != nil {
		return a
	}
	return &app{cfg: config.Config{Quality: "1080p", Engine: "exec", Resolver: "ytdlp", ProgressInterval: 250 * time.Millisecond}, log: logging.NewDefault()}
}

// backend builds the resolver (and playlist lister) selected by config.
// A missing yt-dlp is fatal for the exec engine; the library engine lets
// go-ytdlp locate the binary itself.
func (a *app) backend() (orchestrator.Resolver, pipeline.Lister, error) {
	path, err := deps.FindDownloader(a.cfg.DLBinary)
	if err != nil && (a.cfg.Engine != downloader.EngineLibrary || a.cfg.DLBinary != "") {
		return nil, nil, &ExitError{Code: ExitMissingDep, Err: err}
	}
	client := downloader.New(downloader.Options{
		DownloaderPath:   path,
		Verbose:          a.cfg.Verbose,
		Engine:           a.cfg.Engine,
		Logger:           a.log,
		ProgressInterval: a.cfg.ProgressInterval,
	})
	if a.cfg.Resolver == "native" {
		return downloader.NewNative(client, 30*time.Second, a.log), client, nil
	}
	return client, client, nil
}

func (a *app) orchestratorOptions() []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithLogger(a.log),
		orchestrator.WithMinFreeBytes(a.cfg.MinFreeBytes()),
	}
}

func (a *app) service(extra ...pipeline.Option) (*pipeline.Service, []pipeline.Option, error) {
	r, l, err := a.backend()
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithResolver(r),
		pipeline.WithLister(l),
		pipeline.WithLogger(a.log),
		pipeline.WithOrchestratorOptions(a.orchestratorOptions()...),
	}
	opts = append(opts, extra...)
	return pipeline.NewService(opts...), opts, nil
}
