package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/client"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/pkg/printer"
)

var (
	syncRootsFlag       []string
	syncAllFlag         bool
	syncDryRunFlag      bool
	syncBumpFlag        string
	syncChangelogFlag   string
	syncTagsFlag        string
	syncConcurrencyFlag int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Publish local skill folders that differ from the registry",
	Long: `sync scans skill folders, fingerprints them the way the registry does,
and publishes the ones that are new or changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().StringArrayVar(&syncRootsFlag, "root", nil, "Extra directories to scan (repeatable)")
	syncCmd.Flags().BoolVar(&syncAllFlag, "all", false, "Select every actionable skill without prompting")
	syncCmd.Flags().BoolVar(&syncDryRunFlag, "dry-run", false, "Print the plan without publishing")
	syncCmd.Flags().StringVar(&syncBumpFlag, "bump", "patch", "Version bump for updates: patch, minor or major")
	syncCmd.Flags().StringVar(&syncChangelogFlag, "changelog", "", "Changelog applied to every published version")
	syncCmd.Flags().StringVar(&syncTagsFlag, "tags", "", "Comma-separated tags pointed at each published version")
	syncCmd.Flags().IntVar(&syncConcurrencyFlag, "concurrency", 4, "Parallel registry lookups (1-32)")
}

func runSync(ctx context.Context) error {
	wd := workdir()
	roots := DiscoverRoots(wd, dirFlag, syncRootsFlag)
	dirs, err := ScanRoots(roots, wd)
	if err != nil {
		return err
	}

	kept, skipped := DedupeBySlug(dirs)
	for _, d := range skipped {
		printer.PrintWarning(fmt.Sprintf("skipping %s: duplicate slug", d))
	}

	var skills []*LocalSkill
	for _, d := range kept {
		sk, err := HashFolder(d)
		if err != nil {
			printer.PrintWarning(err.Error())
			continue
		}
		skills = append(skills, sk)
	}
	if len(skills) == 0 {
		return fmt.Errorf("nothing to sync")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	items, err := Classify(ctx, c, skills, syncConcurrencyFlag)
	if err != nil {
		return err
	}

	var actionable []*PlanItem
	synced := 0
	for _, item := range items {
		switch item.State {
		case StateSynced:
			synced++
		default:
			actionable = append(actionable, item)
		}
	}
	if synced > 0 {
		printer.PrintInfo(fmt.Sprintf("%d skill(s) already in sync", synced))
	}
	if len(actionable) == 0 {
		printer.PrintSuccess("Everything is up to date")
		return nil
	}

	// Compute target versions up front so the plan and the prompt agree.
	for _, item := range actionable {
		if item.State == StateNew {
			item.NextVersion = "1.0.0"
			continue
		}
		next, err := BumpVersion(item.LatestVersion, syncBumpFlag)
		if err != nil {
			return fmt.Errorf("%s: %w", item.Skill.Slug, err)
		}
		item.NextVersion = next
	}

	selected, err := selectItems(actionable)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		printer.PrintInfo("Nothing selected")
		return nil
	}

	if syncDryRunFlag {
		printer.PrintInfo("Dry run")
		for _, item := range selected {
			printer.PrintInfo(fmt.Sprintf("  would publish %s@%s (%s)", item.Skill.Slug, item.NextVersion, item.State))
		}
		return nil
	}

	changelog := syncChangelogFlag
	if changelog == "" && interactive() {
		changelog, err = TextPrompt("Changelog: ", "blank to auto-generate")
		if err != nil {
			return err
		}
	}

	for _, item := range selected {
		if err := publishItem(ctx, c, item, changelog, syncTagsFlag); err != nil {
			return fmt.Errorf("failed to publish %s: %w", item.Skill.Slug, err)
		}
		printer.PrintSuccess(fmt.Sprintf("Published %s@%s", item.Skill.Slug, item.NextVersion))
	}
	return nil
}

func selectItems(actionable []*PlanItem) ([]*PlanItem, error) {
	if syncAllFlag || !interactive() {
		return actionable, nil
	}
	labels := make([]string, len(actionable))
	pre := make([]bool, len(actionable))
	for i, item := range actionable {
		labels[i] = fmt.Sprintf("%s  %s → %s", item.Skill.Slug, item.State, item.NextVersion)
		pre[i] = true
	}
	chosen, err := MultiSelect("Select skills to publish", labels, pre)
	if err != nil {
		return nil, err
	}
	var out []*PlanItem
	for i, ok := range chosen {
		if ok {
			out = append(out, actionable[i])
		}
	}
	return out, nil
}

func publishItem(ctx context.Context, c *client.Client, item *PlanItem, changelog, tags string) error {
	req := &models.PublishRequest{
		Slug:        item.Skill.Slug,
		DisplayName: displayNameFor(item.Skill),
		Version:     item.NextVersion,
		Changelog:   changelog,
		Source:      "cli",
	}
	return publishItemWith(ctx, c, item, req, tags)
}

// publishItemWith uploads one skill and optionally points extra tags at the
// new version.
func publishItemWith(ctx context.Context, c *client.Client, item *PlanItem, req *models.PublishRequest, tags string) error {
	sk := item.Skill

	c.ShowProgress = interactive()
	resp, err := c.Publish(ctx, req, sk.Files)
	if err != nil {
		return err
	}

	if tags != "" {
		tagMap := map[string]string{}
		for _, name := range strings.Split(tags, ",") {
			name = strings.TrimSpace(name)
			if name != "" && name != models.TagLatest {
				tagMap[name] = resp.VersionID
			}
		}
		if len(tagMap) > 0 {
			if err := c.UpdateTags(ctx, sk.Slug, tagMap); err != nil {
				printer.PrintWarning(fmt.Sprintf("published but failed to set tags: %v", err))
			}
		}
	}
	return nil
}

// displayNameFor reads the frontmatter name, falling back to the slug.
func displayNameFor(sk *LocalSkill) string {
	for p, data := range sk.Files {
		if !strings.Contains(p, "/") && isSkillMdName(p) {
			if name := frontmatterName(data); name != "" {
				return name
			}
		}
	}
	return sk.Slug
}

func isSkillMdName(p string) bool {
	lower := strings.ToLower(p)
	return lower == "skill.md" || lower == "skills.md"
}

func promptLine(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
