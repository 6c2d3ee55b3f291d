package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clawdhub/clawdhub/internal/client"
	"github.com/clawdhub/clawdhub/pkg/printer"
)

var loginTokenFlag string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save an API token for the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(loginTokenFlag)
		if token == "" {
			if !interactive() {
				return fmt.Errorf("--token is required with --no-input")
			}
			entered, err := TextPrompt("API token: ", "")
			if err != nil {
				return err
			}
			token = entered
		}
		if token == "" {
			return fmt.Errorf("no token provided")
		}

		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		base := registryURL(cfg)

		// Verify before persisting
		c := client.New(base, token)
		user, err := c.Whoami(cmd.Context())
		if err != nil {
			return fmt.Errorf("token rejected by registry: %w", err)
		}

		cfg.Token = token
		if registryFlag != "" {
			cfg.Registry = registryFlag
		}
		if err := SaveConfig(cfg); err != nil {
			return err
		}
		printer.PrintSuccess(fmt.Sprintf("Logged in as %s", user.Handle))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved API token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Token == "" {
			printer.PrintInfo("Not logged in")
			return nil
		}
		cfg.Token = ""
		if err := SaveConfig(cfg); err != nil {
			return err
		}
		printer.PrintSuccess("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user owning the saved token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		user, err := c.Whoami(cmd.Context())
		if err != nil {
			return err
		}
		name := user.Handle
		if user.DisplayName != "" {
			name = fmt.Sprintf("%s (%s)", user.Handle, user.DisplayName)
		}
		printer.PrintInfo(name)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginTokenFlag, "token", "", "API token to save")
}
