// Package cli implements the clawdhub command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/client"
)

var (
	workdirFlag  string
	dirFlag      string
	siteFlag     string
	registryFlag string
	noInputFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "clawdhub",
	Short: "ClawdHub skill registry client",
	Long: `clawdhub publishes, installs and keeps local skill folders in sync
with a ClawdHub registry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI; any failure exits with code 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workdirFlag, "workdir", "", "Work directory (default $CLAWDHUB_WORKDIR or .)")
	rootCmd.PersistentFlags().StringVar(&dirFlag, "dir", "skills", "Install directory inside the workdir")
	rootCmd.PersistentFlags().StringVar(&siteFlag, "site", "", "Site URL used in printed links (default $CLAWDHUB_SITE)")
	rootCmd.PersistentFlags().StringVar(&registryFlag, "registry", "", "Registry URL (default $CLAWDHUB_REGISTRY or the public registry)")
	rootCmd.PersistentFlags().BoolVar(&noInputFlag, "no-input", false, "Never prompt; assume defaults")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(undeleteCmd)
}

// workdir resolves the effective work directory.
func workdir() string {
	if workdirFlag != "" {
		return workdirFlag
	}
	if wd := os.Getenv("CLAWDHUB_WORKDIR"); wd != "" {
		return wd
	}
	return "."
}

// siteURL resolves the site base URL used in printed links.
func siteURL() string {
	if siteFlag != "" {
		return siteFlag
	}
	return os.Getenv("CLAWDHUB_SITE")
}

// registryURL resolves the registry base URL from flag, env, then config.
func registryURL(cfg *ConfigFile) string {
	if registryFlag != "" {
		return registryFlag
	}
	if env := os.Getenv("CLAWDHUB_REGISTRY"); env != "" {
		return env
	}
	if cfg != nil && cfg.Registry != "" {
		return cfg.Registry
	}
	return ""
}

// newClient builds an API client carrying the saved token, if any.
func newClient() (*client.Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	c := client.New(registryURL(cfg), cfg.Token)
	return c, nil
}

// interactive reports whether prompting is allowed.
func interactive() bool {
	return !noInputFlag
}
