package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tubegrab/internal/model"
	"tubegrab/internal/pipeline"
	"tubegrab/internal/quality"
	"tubegrab/internal/util"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "info <url>",
		Short:         "Show video metadata and the quality tiers it offers",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := mustApp(cmd)
			ref := args[0]
			if !util.IsValidReference(ref) {
				return &ExitError{Code: ExitCLIError, Err: model.Errorf(model.KindInvalidReference, "not a recognized video reference: %q", ref)}
			}
			svc, _, err := a.service()
			if err != nil {
				return err
			}
			res, err := svc.Inspect(cmd.Context(), ref)
			if err != nil {
				return exitFor(err)
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infoJSON(res))
			}
			printInfo(cmd, res)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print metadata and tiers as JSON")
	cmd.Flags().Bool("streams", false, "Also list every stream the video reports")
	return cmd
}

type infoOutput struct {
	ID       string                   `json:"id"`
	Title    string                   `json:"title"`
	Channel  string                   `json:"channel"`
	Duration string                   `json:"duration"`
	URL      string                   `json:"url"`
	Tiers    []quality.Tier           `json:"tiers"`
	Streams  []model.StreamDescriptor `json:"streams"`
}

func infoJSON(res pipeline.Result) infoOutput {
	out := infoOutput{URL: res.Reference, Tiers: res.Tiers}
	if m := res.Metadata; m != nil {
		out.ID = m.ID
		out.Title = m.Title
		out.Channel = m.Owner
		out.Duration = m.DurationString()
		out.Streams = m.Streams
	}
	if out.Tiers == nil {
		out.Tiers = []quality.Tier{}
	}
	return out
}

func printInfo(cmd *cobra.Command, res pipeline.Result) {
	w := cmd.OutOrStdout()
	m := res.Metadata
	if m == nil {
		return
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Title", m.Title},
			{"Channel", m.Owner},
			{"Duration", m.DurationString()},
			{"ID", m.ID},
			{"URL", res.Reference},
		},
		nil,
	))
	if len(res.Tiers) == 0 {
		fmt.Fprintln(w, "No downloadable quality: the video reports no stream with a known height.")
	} else {
		fmt.Fprintln(w, "Available qualities:")
		fmt.Fprintln(w, tierTable(res.Tiers))
	}

	if showStreams, _ := cmd.Flags().GetBool("streams"); showStreams {
		rows := make([][]string, 0, len(m.Streams))
		for _, s := range m.Streams {
			height := ""
			if s.Height > 0 {
				height = strconv.Itoa(s.Height)
			}
			bitrate := ""
			if s.Bitrate > 0 {
				bitrate = strconv.FormatFloat(s.Bitrate, 'f', 0, 64)
			}
			rows = append(rows, []string{s.FormatID, string(s.Kind), height, bitrate, s.Container, s.Codec})
		}
		fmt.Fprintln(w, renderTable(
			[]string{"Format", "Kind", "Height", "kbit/s", "Container", "Codec"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
		))
	}
}
