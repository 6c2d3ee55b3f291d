package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/pkg/printer"
)

var (
	deleteYesFlag   bool
	undeleteYesFlag bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Soft-delete a skill you own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		if !deleteYesFlag {
			if !interactive() {
				return fmt.Errorf("pass --yes to delete without confirmation")
			}
			if !confirm(fmt.Sprintf("Soft-delete %s? It disappears from all public reads.", slug)) {
				return fmt.Errorf("aborted")
			}
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Delete(cmd.Context(), slug); err != nil {
			return err
		}
		printer.PrintSuccess(fmt.Sprintf("Deleted %s", slug))
		return nil
	},
}

var undeleteCmd = &cobra.Command{
	Use:   "undelete <slug>",
	Short: "Restore a soft-deleted skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		if !undeleteYesFlag && interactive() {
			if !confirm(fmt.Sprintf("Restore %s?", slug)) {
				return fmt.Errorf("aborted")
			}
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.Undelete(cmd.Context(), slug); err != nil {
			return err
		}
		printer.PrintSuccess(fmt.Sprintf("Restored %s", slug))
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteYesFlag, "yes", false, "Skip the confirmation prompt")
	undeleteCmd.Flags().BoolVar(&undeleteYesFlag, "yes", false, "Skip the confirmation prompt")
}
