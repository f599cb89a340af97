// Package config manages sitesentry configuration
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
)

// SelfSlug is the connector's own plugin identifier on the managed site.
// The rollback executor must never deactivate it.
const SelfSlug = "sitesentry-connector"

// HubConfig holds the remote hub connection settings.
type HubConfig struct {
	URL     string `json:"url"`
	SiteKey string `json:"site_key"`
	Domain  string `json:"domain"`
}

// GuardConfig holds update-guard tunables. Zero values fall back to the
// documented defaults at point of use.
type GuardConfig struct {
	Enabled bool `json:"enabled"`

	// Verification delays, in seconds.
	VerifyDelay           int `json:"verify_delay,omitempty"`            // after a manual update (default 30)
	AutoUpdateVerifyDelay int `json:"auto_update_verify_delay,omitempty"` // after a batched auto-update (default 60)
	ActivationVerifyDelay int `json:"activation_verify_delay,omitempty"`  // after component activation (default 15)
	WarningRecheckDelay   int `json:"warning_recheck_delay,omitempty"`    // re-verify after a warning verdict (default 300)
	RollbackVerifyDelay   int `json:"rollback_verify_delay,omitempty"`    // verify after a rollback (default 60)

	// AutoRollback enables the rollback executor on critical verdicts.
	AutoRollback bool `json:"auto_rollback"`
}

// CommandsConfig holds command-queue processor settings.
type CommandsConfig struct {
	PollInterval  int `json:"poll_interval,omitempty"`  // seconds, default 60
	ExecuteBudget int `json:"execute_budget,omitempty"` // seconds per poll cycle, default 25
}

// Config represents the sitesentry configuration
type Config struct {
	// Managed site
	SiteURL      string   `json:"site_url"`
	AdminPath    string   `json:"admin_path,omitempty"`    // default /wp-admin/
	RESTPath     string   `json:"rest_path,omitempty"`     // default /wp-json/
	KeyPages     []string `json:"key_pages,omitempty"`     // up to 5 path slugs probed beyond the fixed set
	ErrorLogPath string   `json:"error_log_path,omitempty"`

	// Hub
	Hub HubConfig `json:"hub"`

	// Operator API
	ListenAddr   string `json:"listen_addr,omitempty"`
	APITokenHash string `json:"api_token_hash,omitempty"` // bcrypt hash of the operator token

	// Subsystems
	Guard    GuardConfig    `json:"guard"`
	Commands CommandsConfig `json:"commands"`

	// Logging
	LogLevel string `json:"log_level,omitempty"`
	LogJSON  bool   `json:"log_json,omitempty"`

	// Paths (not serialized)
	ConfigDir string `json:"-"`
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sitesentry")
}

// Load loads configuration from the config directory
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	configPath := filepath.Join(configDir, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrNotInitialized
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ConfigDir = configDir
	return &cfg, nil
}

// Exists checks if a config exists
func Exists(configDir string) bool {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	configPath := filepath.Join(configDir, "config.json")
	_, err := os.Stat(configPath)
	return err == nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir()
	}

	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	configPath := filepath.Join(c.ConfigDir, "config.json")
	return os.WriteFile(configPath, data, 0600)
}

// StorePath returns the path of the kv store database.
func (c *Config) StorePath() string {
	dir := c.ConfigDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return filepath.Join(dir, "sitesentry.db")
}

// --- Defaults ---

func (c *Config) AdminURL() string {
	path := c.AdminPath
	if path == "" {
		path = "/wp-admin/"
	}
	return c.SiteURL + path
}

func (c *Config) RESTURL() string {
	path := c.RESTPath
	if path == "" {
		path = "/wp-json/"
	}
	return c.SiteURL + path
}

func seconds(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func (g GuardConfig) VerifyDelaySeconds() int           { return seconds(g.VerifyDelay, 30) }
func (g GuardConfig) AutoUpdateVerifyDelaySeconds() int { return seconds(g.AutoUpdateVerifyDelay, 60) }
func (g GuardConfig) ActivationVerifyDelaySeconds() int { return seconds(g.ActivationVerifyDelay, 15) }
func (g GuardConfig) WarningRecheckDelaySeconds() int   { return seconds(g.WarningRecheckDelay, 300) }
func (g GuardConfig) RollbackVerifyDelaySeconds() int   { return seconds(g.RollbackVerifyDelay, 60) }

func (cc CommandsConfig) PollIntervalSeconds() int  { return seconds(cc.PollInterval, 60) }
func (cc CommandsConfig) ExecuteBudgetSeconds() int { return seconds(cc.ExecuteBudget, 25) }
