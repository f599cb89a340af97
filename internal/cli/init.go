package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/rcavanagh/sitesentry/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the connector configuration",
	Example: `  # Minimum viable setup
  sitesentry init --site-url https://example.com --hub-url https://hub.example.net \
      --site-key abc123 --domain example.com

  # With an operator API token and key pages
  sitesentry init --site-url https://example.com --token s3cret \
      --key-pages shop,contact`,
	RunE: runInit,
}

func init() {
	f := initCmd.Flags()
	f.String("site-url", "", "Base URL of the managed site (required)")
	f.String("hub-url", "", "Remote hub base URL")
	f.String("site-key", "", "Tenant site key issued by the hub")
	f.String("domain", "", "Site domain reported to the hub")
	f.String("error-log", "", "Path of the site's error log")
	f.String("key-pages", "", "Comma-separated page slugs to probe")
	f.String("token", "", "Operator API token (stored as a bcrypt hash)")
	f.String("listen", ":8089", "API listen address")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	siteURL, _ := cmd.Flags().GetString("site-url")
	if siteURL == "" {
		return fmt.Errorf("--site-url is required")
	}

	dir, _ := rootCmd.PersistentFlags().GetString("config-dir")
	if config.Exists(dir) {
		return fmt.Errorf("config already exists; edit it directly or remove it first")
	}

	hubURL, _ := cmd.Flags().GetString("hub-url")
	siteKey, _ := cmd.Flags().GetString("site-key")
	domain, _ := cmd.Flags().GetString("domain")
	errorLog, _ := cmd.Flags().GetString("error-log")
	keyPages, _ := cmd.Flags().GetString("key-pages")
	listen, _ := cmd.Flags().GetString("listen")

	newCfg := &config.Config{
		SiteURL:      siteURL,
		ErrorLogPath: errorLog,
		ListenAddr:   listen,
		Hub: config.HubConfig{
			URL:     hubURL,
			SiteKey: siteKey,
			Domain:  domain,
		},
		Guard: config.GuardConfig{
			Enabled:      true,
			AutoRollback: true,
		},
		ConfigDir: dir,
	}
	if keyPages != "" {
		newCfg.KeyPages = strings.Split(keyPages, ",")
	}

	if token, _ := cmd.Flags().GetString("token"); token != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		newCfg.APITokenHash = string(hash)
	}

	if err := newCfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Initialized sitesentry for %s\n", siteURL)
	if hubURL == "" {
		fmt.Println("No hub configured: guard events will only be logged locally.")
	}
	return nil
}
