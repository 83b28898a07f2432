package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubegrab/internal/dirs"
	"tubegrab/internal/util"
	"tubegrab/internal/util/deps"
	"tubegrab/internal/util/format"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (yt-dlp, ffmpeg)",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := mustApp(cmd)
			out := cmd.OutOrStdout()
			install, _ := cmd.Flags().GetBool("install")

			dl, derr := deps.FindDownloader(a.cfg.DLBinary)
			if derr != nil && install {
				bin, err := dirs.BinDir()
				if err != nil {
					return &ExitError{Code: ExitMissingDep, Err: err}
				}
				fmt.Fprintf(out, "Installing yt-dlp into %s\n", bin)
				dl, derr = deps.Install(cmd.Context(), bin, func(done, total int64) {
					if total > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s / %s\n", format.HumanizeBytes(done), format.HumanizeBytes(total))
					}
				})
			}
			if derr != nil {
				return &ExitError{Code: ExitMissingDep, Err: derr}
			}
			fmt.Fprintf(out, "Downloader: %s", dl)
			if v := toolVersion(cmd.Context(), dl, "--version"); v != "" {
				fmt.Fprintf(out, " (%s)", v)
			}
			fmt.Fprintln(out)

			ff, ferr := deps.FindFFmpeg()
			if ferr != nil {
				return &ExitError{Code: ExitMissingDep, Err: ferr}
			}
			fmt.Fprintf(out, "FFmpeg:     %s\n", ff)
			if dir, err := dirs.ConfigDir(); err == nil {
				fmt.Fprintf(out, "Config dir: %s\n", dir)
			}
			fmt.Fprintf(out, "Output dir: %s\n", a.cfg.OutDir)
			return nil
		},
	}
	cmd.Flags().Bool("install", false, "Download the latest yt-dlp release when none is found")
	return cmd
}

func toolVersion(ctx context.Context, path string, args ...string) string {
	res, err := util.Run(ctx, util.CmdSpec{Path: path, Args: args, CaptureStdout: true})
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(res.Stdout)), "\n")
	return line
}
