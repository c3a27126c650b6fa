package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newRegionsCmd creates the 'regions' subcommand, which prints the normalized
// region catalog the crawl would walk.
func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "Prints the normalized region catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			regions, err := appInstance.Catalog().Regions(cmd.Context())
			if err != nil {
				return fmt.Errorf("load region catalog: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			total := 0
			for _, r := range regions {
				total += len(r.Subregions)
				fmt.Fprintf(tw, "%s\t%d\t%s\n", r.ID, len(r.Subregions), strings.Join(r.Subregions, ","))
			}
			fmt.Fprintf(tw, "total\t%d\t\n", total)
			return tw.Flush()
		},
	}
}
