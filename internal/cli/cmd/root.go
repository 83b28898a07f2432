package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"tubegrab/internal/config"
	"tubegrab/internal/logging"
	"tubegrab/internal/model"
)

const (
	ExitOK            = 0
	ExitCLIError      = 1
	ExitMissingDep    = 2
	ExitDownloadError = 3
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor classifies err: caller mistakes exit 1, everything that went
// wrong while resolving or downloading exits 3.
func exitFor(err error) error {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	switch model.KindOf(err) {
	case model.KindInvalidReference, model.KindInvalidTierSelection:
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	return &ExitError{Code: ExitDownloadError, Err: err}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tubegrab [url]",
		Short:         "Download YouTube videos at a chosen quality",
		Long:          "tubegrab resolves a YouTube video, lists the quality tiers it actually offers, and downloads the best streams at or below the tier you pick.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupApp(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// `tubegrab <url>` behaves like `tubegrab download <url>`.
			if len(args) == 0 {
				return cmd.Help()
			}
			return runDownload(cmd, args[0], downloadMode{})
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("out-dir", "o", "", "Output directory (default ./downloads)")
	pf.StringP("quality", "q", "1080p", "Quality tier: 4320p, 2160p, 1440p, 1080p, 720p, 480p, 360p, 240p (or 8K, 4K, 2K)")
	pf.BoolP("verbose", "v", false, "Show subprocess commands/output and debug logs")
	pf.String("dl-binary", "", "Path to yt-dlp or youtube-dl")
	pf.String("engine", "exec", "Download engine: exec (yt-dlp console) or library (go-ytdlp)")
	pf.String("resolver", "ytdlp", "Metadata resolver: ytdlp or native")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("log-format", "console", "Log format: console or json")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.Int("min-free-mb", 0, "Refuse to start when the destination has less free space (MB)")

	bindDownloadFlags(root.Flags())

	root.AddCommand(newDownloadCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newTiersCmd())
	root.AddCommand(newPlaylistCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

// setupApp loads configuration (flag > env > file > default), builds the
// logger and stores both on the command context.
func setupApp(cmd *cobra.Command) error {
	if err := config.Init(cmd.Root()); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cfg, err := config.Load()
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cmd.SetContext(withApp(cmd.Context(), &app{cfg: cfg, log: log}))
	return nil
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}
