package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/client"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/pkg/printer"
)

var (
	publishSlugFlag      string
	publishNameFlag      string
	publishVersionFlag   string
	publishChangelogFlag string
	publishTagsFlag      string
	publishForkOfFlag    string
)

var publishCmd = &cobra.Command{
	Use:   "publish <path>",
	Short: "Publish one skill folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		local, err := HashFolder(args[0])
		if err != nil {
			return err
		}
		if publishSlugFlag != "" {
			local.Slug = publishSlugFlag
		}
		if !bundle.ValidSlug(local.Slug) {
			return fmt.Errorf("invalid slug %q; pass --slug", local.Slug)
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		version := publishVersionFlag
		if version == "" {
			detail, err := c.GetSkill(ctx, local.Slug)
			switch {
			case client.IsNotFound(err):
				version = "1.0.0"
			case err != nil:
				return err
			case detail.LatestVersion == nil:
				version = "1.0.0"
			default:
				version, err = BumpVersion(detail.LatestVersion.Version, "patch")
				if err != nil {
					return err
				}
			}
		}

		name := publishNameFlag
		if name == "" {
			name = displayNameFor(local)
		}

		req := &models.PublishRequest{
			Slug:        local.Slug,
			DisplayName: name,
			Version:     version,
			Changelog:   publishChangelogFlag,
			Source:      "cli",
		}
		if publishForkOfFlag != "" {
			upstream, upstreamVersion, _ := strings.Cut(publishForkOfFlag, "@")
			req.ForkOf = &models.PublishForkOf{Slug: upstream, Version: upstreamVersion}
		}

		item := &PlanItem{Skill: local, NextVersion: version}
		if err := publishItemWith(ctx, c, item, req, publishTagsFlag); err != nil {
			return err
		}
		printer.PrintSuccess(fmt.Sprintf("Published %s@%s", local.Slug, version))
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishSlugFlag, "slug", "", "Slug to publish under (default derived from the folder name)")
	publishCmd.Flags().StringVar(&publishNameFlag, "name", "", "Display name (default SKILL.md frontmatter name)")
	publishCmd.Flags().StringVar(&publishVersionFlag, "version", "", "Version to publish (default next patch, or 1.0.0 for new skills)")
	publishCmd.Flags().StringVar(&publishChangelogFlag, "changelog", "", "Changelog text (blank lets the server auto-generate)")
	publishCmd.Flags().StringVar(&publishTagsFlag, "tags", "", "Comma-separated tags pointed at the published version")
	publishCmd.Flags().StringVar(&publishForkOfFlag, "fork-of", "", "Declare the upstream as slug or slug@version")
}
