// Package config loads application configuration from environment variables
// and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable the tool reads.
const EnvPrefix = "REPO_OBSERVER"

// Configuration keys. Flags bound to these keys override the environment.
const (
	KeyGitHubToken        = "github_token"
	KeyTargetUser         = "target_user"
	KeyRepository         = "repository"
	KeyProjectNumber      = "project_number"
	KeyProjectStatusField = "project_status_field"
	KeyIncludePrivate     = "include_private"
	KeyIncludeArchived    = "include_archived"
	KeyExportSummary      = "export_summary"
	KeyOutputPath         = "output_path"
	KeyInputPath          = "input_path"
	KeyStoreBackend       = "store_backend"
	KeyDBPath             = "db_path"
	KeyPreviewDir         = "preview_dir"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeyPacing             = "pacing"
	KeyCooldown           = "cooldown"
	KeyMaxRetries         = "max_retries"
	KeyInitialDelay       = "initial_delay"
)

// Snapshot store backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config holds the resolved configuration of one invocation.
type Config struct {
	GitHubToken        string        `mapstructure:"github_token"`
	TargetUser         string        `mapstructure:"target_user"`
	Repository         string        `mapstructure:"repository"`
	ProjectNumber      int           `mapstructure:"project_number"`
	ProjectStatusField string        `mapstructure:"project_status_field"`
	IncludePrivate     bool          `mapstructure:"include_private"`
	IncludeArchived    bool          `mapstructure:"include_archived"`
	ExportSummary      bool          `mapstructure:"export_summary"`
	OutputPath         string        `mapstructure:"output_path"`
	InputPath          string        `mapstructure:"input_path"`
	StoreBackend       string        `mapstructure:"store_backend"`
	DBPath             string        `mapstructure:"db_path"`
	PreviewDir         string        `mapstructure:"preview_dir"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFormat          string        `mapstructure:"log_format"`
	Pacing             time.Duration `mapstructure:"pacing"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	MaxRetries         int           `mapstructure:"max_retries"`
	InitialDelay       time.Duration `mapstructure:"initial_delay"`
}

var defaults = map[string]any{
	KeyGitHubToken:        "",
	KeyTargetUser:         "",
	KeyRepository:         "",
	KeyProjectNumber:      0,
	KeyProjectStatusField: "Status",
	KeyIncludePrivate:     false,
	KeyIncludeArchived:    false,
	KeyExportSummary:      false,
	KeyOutputPath:         "./output/repositories.csv",
	KeyInputPath:          "",
	KeyStoreBackend:       BackendCSV,
	KeyDBPath:             "repoobserver.db",
	KeyPreviewDir:         "",
	KeyLogLevel:           "info",
	KeyLogFormat:          "text",
	KeyPacing:             "3s",
	KeyCooldown:           "5m",
	KeyMaxRetries:         6,
	KeyInitialDelay:       "60s",
}

// New returns a viper instance with defaults and environment binding set up.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// The bare GITHUB_TOKEN is honored when the prefixed one is unset.
	_ = v.BindEnv(KeyGitHubToken, EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")

	return v
}

// Load decodes v into a Config and applies derived defaults. It validates
// only what every command needs; see ValidateExport and ValidateSync.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	cfg.GitHubToken = strings.TrimSpace(cfg.GitHubToken)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.InputPath == "" {
		cfg.InputPath = cfg.OutputPath
	}
	if cfg.ProjectStatusField == "" {
		cfg.ProjectStatusField = "Status"
	}

	switch cfg.StoreBackend {
	case BackendCSV, BackendSQLite:
	default:
		return nil, fmt.Errorf("%s_STORE_BACKEND must be %q or %q, got %q", EnvPrefix, BackendCSV, BackendSQLite, cfg.StoreBackend)
	}

	if cfg.Pacing < 0 || cfg.Cooldown < 0 || cfg.InitialDelay < 0 {
		return nil, errors.New("pacing, cooldown and initial delay must not be negative")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%s_MAX_RETRIES must not be negative, got %d", EnvPrefix, cfg.MaxRetries)
	}
	if cfg.ProjectNumber < 0 {
		return nil, fmt.Errorf("%s_PROJECT_NUMBER must not be negative, got %d", EnvPrefix, cfg.ProjectNumber)
	}

	return &cfg, nil
}

// ValidateExport checks the fields the export command requires.
func (c *Config) ValidateExport() error {
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN (or %s_GITHUB_TOKEN) is required", EnvPrefix)
	}
	if c.TargetUser == "" {
		return fmt.Errorf("%s_TARGET_USER is required for export", EnvPrefix)
	}
	return nil
}

// ValidateSync checks the fields the sync-issues command requires. A preview
// run never calls the remote API and needs no token.
func (c *Config) ValidateSync() error {
	if c.GitHubToken == "" && c.PreviewDir == "" {
		return fmt.Errorf("GITHUB_TOKEN (or %s_GITHUB_TOKEN) is required", EnvPrefix)
	}
	if _, _, err := c.RepositoryParts(); err != nil {
		return err
	}
	return nil
}

// RepositoryParts splits Repository into owner and name.
func (c *Config) RepositoryParts() (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(c.Repository), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%s_REPOSITORY must be in owner/repo form, got %q", EnvPrefix, c.Repository)
	}
	return owner, repo, nil
}

// HasBoard reports whether sync runs should place items on a board.
func (c *Config) HasBoard() bool {
	return c.ProjectNumber > 0
}
