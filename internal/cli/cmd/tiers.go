package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tubegrab/internal/quality"
)

func newTiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "tiers",
		Short:         "List the quality tiers tubegrab knows about",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), tierTable(quality.Default().Tiers()))
			return nil
		},
	}
}

func tierTable(tiers []quality.Tier) string {
	rows := make([][]string, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, []string{t.Label, t.Resolution, strconv.Itoa(t.Height), t.Tag, t.Description})
	}
	return renderTable(
		[]string{"Tier", "Resolution", "Height", "Tag", "Description"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}
