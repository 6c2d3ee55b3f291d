package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/pkg/printer"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills installed in the workdir",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lock, err := LoadLockfile(workdir())
		if err != nil {
			return err
		}
		if len(lock.Skills) == 0 {
			printer.PrintInfo("No skills installed")
			return nil
		}

		slugs := make([]string, 0, len(lock.Skills))
		for slug := range lock.Skills {
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)

		table := printer.NewTablePrinter(nil)
		table.SetHeaders("SLUG", "VERSION", "INSTALLED")
		for _, slug := range slugs {
			entry := lock.Skills[slug]
			table.AddRow(slug, entry.Version, printer.FormatAge(entry.InstalledAt))
		}
		return table.Render()
	},
}
