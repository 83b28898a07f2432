package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tubegrab/internal/model"
	"tubegrab/internal/orchestrator"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/progress"
	"tubegrab/internal/ui"
	"tubegrab/internal/util"
	"tubegrab/internal/util/format"
)

type downloadMode struct {
	ForceTUI   bool
	DryRunOnly bool
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "download <url>",
		Aliases:       []string{"get", "dl"},
		Short:         "Resolve a video and download it at the chosen quality",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0], downloadMode{})
		},
	}
	bindDownloadFlags(cmd.Flags())
	return cmd
}

func bindDownloadFlags(fs *pflag.FlagSet) {
	fs.Bool("dry-run", false, "Resolve and show the selection plan without downloading")
	fs.Bool("no-ui", false, "Disable TUI; use plain textual output")
	fs.String("template", "", "yt-dlp output template (default \"%(title)s [%(resolution)s].%(ext)s\")")
}

func runDownload(cmd *cobra.Command, ref string, mode downloadMode) error {
	a := mustApp(cmd)
	if !util.IsValidReference(ref) {
		return &ExitError{Code: ExitCLIError, Err: model.Errorf(model.KindInvalidReference, "not a recognized video reference: %q", ref)}
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noUI, _ := cmd.Flags().GetBool("no-ui")
	template, _ := cmd.Flags().GetString("template")
	if mode.DryRunOnly {
		dryRun = true
	}

	job := pipeline.Job{
		Reference: ref,
		Quality:   a.cfg.Quality,
		Dir:       filepath.Clean(a.cfg.OutDir),
		Template:  template,
		DryRun:    dryRun,
	}

	useTUI := mode.ForceTUI || (!noUI && !dryRun && ui.Interactive(os.Stdout))
	if useTUI {
		_, opts, err := a.service()
		if err != nil {
			return err
		}
		res, err := ui.Run(cmd.Context(), job, a.cfg.ProgressInterval, opts...)
		if err != nil {
			return exitFor(err)
		}
		if res.Planned {
			printPlan(cmd.OutOrStdout(), res)
		}
		return nil
	}

	rep := newPlainReporter(cmd.ErrOrStderr())
	svc, _, err := a.service(pipeline.WithListener(rep.listen))
	if err != nil {
		return err
	}
	res, err := svc.RunJob(cmd.Context(), job)
	if err != nil {
		return exitFor(err)
	}
	if res.Planned {
		printPlan(cmd.OutOrStdout(), res)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (%s)\n", res.OutputPath, format.HumanizeBytes(res.Bytes))
	return nil
}

// printPlan outputs a dry-run plan of actions without executing them.
func printPlan(w io.Writer, res pipeline.Result) {
	fmt.Fprintln(w, "Dry-run plan:")
	if m := res.Metadata; m != nil {
		fmt.Fprintf(w, "- Title:          %s\n", m.Title)
		fmt.Fprintf(w, "- Channel:        %s\n", m.Owner)
		fmt.Fprintf(w, "- Duration:       %s\n", m.DurationString())
	}
	fmt.Fprintf(w, "- URL:            %s\n", res.Reference)
	if p := res.Plan; p != nil {
		fmt.Fprintf(w, "- Tier:           %s (≤ %dp)\n", p.TierLabel, p.TargetHeight)
		fmt.Fprintf(w, "- Chosen height:  %dp\n", p.Height)
		switch {
		case p.Muxed:
			fmt.Fprintf(w, "- Streams:        %s (muxed)\n", p.VideoFormatID)
		case p.VideoFormatID != "":
			fmt.Fprintf(w, "- Streams:        video %s + audio %s\n", p.VideoFormatID, p.AudioFormatID)
		}
		fmt.Fprintf(w, "- Format:         %s\n", p.Format)
		fmt.Fprintf(w, "- Container:      %s\n", p.OutputContainer)
		fmt.Fprintf(w, "- Template:       %s\n", p.OutputTemplate)
	}
}

// plainReporter prints state changes and whole-percent progress steps.
type plainReporter struct {
	mu   sync.Mutex
	w    io.Writer
	last float64
}

func newPlainReporter(w io.Writer) *plainReporter {
	return &plainReporter{w: w, last: -1}
}

func (r *plainReporter) listen(n orchestrator.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev := n.Progress; ev != nil {
		r.progress(*ev)
		return
	}
	switch n.State {
	case model.StateResolving:
		r.last = -1
		fmt.Fprintln(r.w, "Resolving…")
	case model.StateDownloading:
		fmt.Fprintln(r.w, "Downloading…")
	case model.StateFailed:
		if n.Err != nil {
			fmt.Fprintf(r.w, "Failed: %v\n", n.Err)
		}
	}
}

func (r *plainReporter) progress(ev progress.Event) {
	if ev.Phase == progress.PhaseMerging {
		if r.last != -2 {
			fmt.Fprintln(r.w, "Merging formats…")
			r.last = -2
		}
		return
	}
	p := ev.Percent()
	if p < 0 || (p < r.last+5 && !ev.Terminal()) {
		return
	}
	if ev.Terminal() && r.last >= 100 {
		return
	}
	r.last = p
	line := fmt.Sprintf("%5.1f%%", p)
	if ev.TotalBytes != nil {
		line += " of " + format.HumanizeBytes(*ev.TotalBytes)
	}
	if ev.Speed != "" {
		line += " at " + ev.Speed
	}
	if ev.ETA != nil {
		line += " ETA " + ev.ETA.String()
	}
	fmt.Fprintln(r.w, line)
}
