package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/client"
	"github.com/clawdhub/clawdhub/pkg/printer"
)

var (
	installVersionFlag string
	installForceFlag   bool
)

var installCmd = &cobra.Command{
	Use:   "install <slug>",
	Short: "Install a skill into the workdir",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		return installSkill(cmd.Context(), c, args[0], installVersionFlag, installForceFlag)
	},
}

func init() {
	installCmd.Flags().StringVar(&installVersionFlag, "version", "", "Exact version to install (default latest)")
	installCmd.Flags().BoolVar(&installForceFlag, "force", false, "Overwrite an existing folder without confirmation")
}

func installSkill(ctx context.Context, c *client.Client, slug, version string, force bool) error {
	detail, err := c.GetSkill(ctx, slug)
	if err != nil {
		return err
	}
	if version == "" {
		if detail.LatestVersion == nil {
			return fmt.Errorf("skill %s has no published version", slug)
		}
		version = detail.LatestVersion.Version
	}

	target := filepath.Join(workdir(), dirFlag, slug)
	if occupied(target) && !force {
		if !interactive() {
			return fmt.Errorf("%s already exists; pass --force to overwrite", target)
		}
		if !confirm(fmt.Sprintf("%s already exists. Overwrite?", target)) {
			return fmt.Errorf("aborted")
		}
	}

	data, err := c.DownloadZip(ctx, slug, version)
	if err != nil {
		return err
	}
	if err := extractZip(data, target); err != nil {
		return err
	}

	now := time.Now()
	lock, err := LoadLockfile(workdir())
	if err != nil {
		return err
	}
	lock.Skills[slug] = LockEntry{Version: version, InstalledAt: now}
	if err := SaveLockfile(workdir(), lock); err != nil {
		return err
	}
	if err := WriteOriginMarker(target, &OriginMarker{
		Version:          1,
		Registry:         c.BaseURL,
		Slug:             slug,
		InstalledVersion: version,
		InstalledAt:      now,
	}); err != nil {
		return err
	}

	printer.PrintSuccess(fmt.Sprintf("Installed %s@%s into %s", slug, version, target))
	if site := siteURL(); site != "" {
		printer.PrintInfo(fmt.Sprintf("  %s/skills/%s", strings.TrimRight(site, "/"), slug))
	}
	return nil
}

// occupied reports whether dir exists and contains anything.
func occupied(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// extractZip writes a downloaded version archive into dir. Entry paths are
// validated the same way publish validates them.
func extractZip(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("bad archive: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range zr.File {
		clean, err := bundle.SanitizePath(f.Name)
		if err != nil {
			return fmt.Errorf("bad archive entry: %w", err)
		}
		dest := filepath.Join(dir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		content, err := io.ReadAll(io.LimitReader(rc, bundle.MaxBundleSize+1))
		_ = rc.Close()
		if err != nil {
			return err
		}
		if int64(len(content)) > bundle.MaxBundleSize {
			return fmt.Errorf("archive entry %s too large", clean)
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func confirm(prompt string) bool {
	answer := promptLine(prompt + " [y/N]: ")
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}
