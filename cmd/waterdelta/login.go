package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/waterdelta/internal/config"
	"github.com/jgoulah/waterdelta/internal/scraper"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through a browser and save the auth token",
	Long: `Opens a browser window on the WaterSmart login page for you to log in manually.
After login, the auth_session cookie is extracted and saved to the config file
as portal.auth_token.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Fprintln(out, "Opening browser for WaterSmart login...")
	fmt.Fprintln(out, "Please log in manually in the browser window.")
	fmt.Fprintln(out, "Then press Enter here to save...")

	token, err := scraper.CaptureAuthToken(cmd.Context(), cfg.GetLoginURL(), func() error {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		return err
	})
	if err != nil {
		return fmt.Errorf("capturing auth token: %w", err)
	}

	// Save on top of the file as written so env credentials stay out of it
	fileCfg, err := config.LoadFile(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fileCfg.Portal.AuthToken = token
	if err := saveConfig(fileCfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(out, "✓ Saved auth token to %s\n", getConfigPath())
	return nil
}
