package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"tubegrab/internal/model"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/util"
)

func newPlaylistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "playlist <url>",
		Short:         "Download every video of a playlist at the chosen quality",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp(cmd)
			ref := args[0]
			if _, ok := util.PlaylistID(ref); !ok {
				return &ExitError{Code: ExitCLIError, Err: model.Errorf(model.KindInvalidReference, "not a playlist URL (no list= parameter): %q", ref)}
			}
			subdir, _ := cmd.Flags().GetBool("subdir")

			rep := newPlainReporter(cmd.ErrOrStderr())
			svc, _, err := a.service(pipeline.WithListener(rep.listen))
			if err != nil {
				return err
			}
			sum, err := svc.RunPlaylist(cmd.Context(), pipeline.PlaylistJob{
				Reference: ref,
				Quality:   a.cfg.Quality,
				Dir:       filepath.Clean(a.cfg.OutDir),
				Subdir:    subdir,
			})
			if len(sum.Items) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), playlistTable(sum))
			}
			if err != nil {
				return exitFor(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d downloaded, %d failed (saved to %s)\n", sum.Title, sum.Succeeded, sum.Failed, sum.Dir)
			if sum.Failed > 0 {
				return &ExitError{Code: ExitDownloadError, Err: fmt.Errorf("%d of %d playlist entries failed", sum.Failed, len(sum.Items))}
			}
			return nil
		},
	}
	cmd.Flags().Bool("subdir", true, "Save into a folder named after the playlist")
	return cmd
}

func playlistTable(sum pipeline.PlaylistSummary) string {
	rows := make([][]string, 0, len(sum.Items))
	for _, it := range sum.Items {
		status := "ok"
		detail := filepath.Base(it.Result.OutputPath)
		if it.Err != nil {
			status = string(model.KindOf(it.Err))
			if status == "" {
				status = "error"
			}
			detail = it.Err.Error()
		}
		q := it.Quality
		if it.Substituted {
			q += " (best available)"
		}
		rows = append(rows, []string{strconv.Itoa(it.Index), it.Title, q, status, detail})
	}
	return renderTable(
		[]string{"#", "Title", "Quality", "Status", "File / Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
