package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/pkg/printer"
)

// exploreSummaryWidth bounds printed summaries, ellipsis included.
const exploreSummaryWidth = 50

var (
	searchLimitFlag  int
	exploreLimitFlag int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search skills on the registry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		results, err := c.Search(cmd.Context(), strings.Join(args, " "), searchLimitFlag, false)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			printer.PrintInfo("No results")
			return nil
		}
		table := printer.NewTablePrinter(nil)
		table.SetHeaders("SLUG", "NAME", "VERSION", "SUMMARY")
		for _, r := range results {
			table.AddRow(r.Slug, r.DisplayName, r.Version, printer.Truncate(r.Summary, exploreSummaryWidth))
		}
		return table.Render()
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse highlighted skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exploreLimitFlag < 1 || exploreLimitFlag > 50 {
			return fmt.Errorf("--limit must be in [1, 50]")
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		page, err := c.ListSkills(cmd.Context(), "trending", "", exploreLimitFlag)
		if err != nil {
			return err
		}
		if len(page.Skills) == 0 {
			printer.PrintInfo("Nothing to explore yet")
			return nil
		}
		table := printer.NewTablePrinter(nil)
		table.SetHeaders("SLUG", "NAME", "SUMMARY", "STARS", "UPDATED")
		for _, s := range page.Skills {
			table.AddRow(s.Slug, s.DisplayName, printer.Truncate(s.Summary, exploreSummaryWidth), s.Stats.Stars, printer.FormatAge(s.UpdatedAt))
		}
		return table.Render()
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimitFlag, "limit", 10, "Maximum number of results")
	exploreCmd.Flags().IntVar(&exploreLimitFlag, "limit", 20, "Maximum number of results (1-50)")
}
