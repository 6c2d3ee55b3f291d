package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/client"
	"github.com/clawdhub/clawdhub/pkg/printer"
)

var (
	updateAllFlag     bool
	updateVersionFlag string
	updateForceFlag   bool
)

var updateCmd = &cobra.Command{
	Use:   "update [slug]",
	Short: "Update installed skills to their latest version",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var slugs []string
		switch {
		case len(args) == 1:
			slugs = []string{args[0]}
		case updateAllFlag:
			lock, err := LoadLockfile(workdir())
			if err != nil {
				return err
			}
			for slug := range lock.Skills {
				slugs = append(slugs, slug)
			}
			sort.Strings(slugs)
		default:
			return fmt.Errorf("pass a slug or --all")
		}

		for _, slug := range slugs {
			if err := updateSkill(cmd.Context(), c, slug); err != nil {
				return fmt.Errorf("update %s: %w", slug, err)
			}
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateAllFlag, "all", false, "Update every skill in the lockfile")
	updateCmd.Flags().StringVar(&updateVersionFlag, "version", "", "Install this exact version instead of latest")
	updateCmd.Flags().BoolVar(&updateForceFlag, "force", false, "Overwrite local folders that match no published version")
}

func updateSkill(ctx context.Context, c *client.Client, slug string) error {
	dir := filepath.Join(workdir(), dirFlag, slug)

	local, err := HashFolder(dir)
	if err != nil {
		return fmt.Errorf("not installed at %s: %w", dir, err)
	}

	detail, err := c.GetSkill(ctx, slug)
	if err != nil {
		return err
	}
	latest := ""
	if detail.LatestVersion != nil {
		latest = detail.LatestVersion.Version
	}

	resolved, err := c.Resolve(ctx, slug, local.Fingerprint)
	if err != nil {
		return err
	}

	switch {
	case resolved.Match != nil && latest != "" && !versionLess(resolved.Match.Version, latest):
		printer.PrintInfo(fmt.Sprintf("%s is up to date (%s)", slug, resolved.Match.Version))
		return nil
	case resolved.Match == nil:
		// Local folder matches no published version; do not clobber edits
		// silently.
		if !updateForceFlag {
			if !interactive() {
				return fmt.Errorf("local copy has unpublished changes; pass --force to overwrite")
			}
			if !confirm(fmt.Sprintf("Local copy of %s matches no published version. Overwrite?", slug)) {
				return fmt.Errorf("aborted")
			}
		}
	}

	return installSkill(ctx, c, slug, updateVersionFlag, true)
}
