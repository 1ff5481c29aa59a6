package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ericfisherdev/repoobserver/internal/application"
	"github.com/ericfisherdev/repoobserver/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}

	var cfgErr *application.ConfigurationError
	if errors.As(err, &cfgErr) {
		slog.Error("configuration error", "error", cfgErr)
		os.Exit(2)
	}
	slog.Error("fatal error", "error", err)
	os.Exit(1)
}

// app carries state shared by every command of one invocation.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"token":            config.KeyGitHubToken,
	"user":             config.KeyTargetUser,
	"repository":       config.KeyRepository,
	"project":          config.KeyProjectNumber,
	"status-field":     config.KeyProjectStatusField,
	"include-private":  config.KeyIncludePrivate,
	"include-archived": config.KeyIncludeArchived,
	"summary":          config.KeyExportSummary,
	"output":           config.KeyOutputPath,
	"input":            config.KeyInputPath,
	"store":            config.KeyStoreBackend,
	"db-path":          config.KeyDBPath,
	"preview-dir":      config.KeyPreviewDir,
	"log-level":        config.KeyLogLevel,
	"log-format":       config.KeyLogFormat,
	"pacing":           config.KeyPacing,
	"cooldown":         config.KeyCooldown,
	"max-retries":      config.KeyMaxRetries,
	"initial-delay":    config.KeyInitialDelay,
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "repoobserver",
		Short: "Snapshot an account's repositories and mirror them as tracked issues",
		Long: `repoobserver records periodic snapshots of every repository owned by an
account, classifies each by how recently it saw activity, and mirrors the
latest snapshot into one issue per repository, optionally placed on a
project board by activity status.

Configuration is read from REPO_OBSERVER_* environment variables (and
GITHUB_TOKEN); flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, os.Stderr)
		},
	}

	pf := root.PersistentFlags()
	pf.String("token", "", "GitHub access token")
	pf.String("store", "", "snapshot backend: csv or sqlite (default csv)")
	pf.String("output", "", "base path of snapshot files (default ./output/repositories.csv)")
	pf.String("input", "", "snapshot file or base path to read from (default: --output)")
	pf.String("db-path", "", "SQLite database path when --store=sqlite (default repoobserver.db)")
	pf.String("log-level", "", "log level: debug, info, warn, error (default info)")
	pf.String("log-format", "", "log format: text or json (default text)")
	pf.Int("max-retries", 0, "retries per remote call before giving up (default 6)")
	pf.Duration("initial-delay", 0, "first secondary rate limit backoff (default 1m)")

	root.AddCommand(newExportCmd(a), newSyncCmd(a), newLatestCmd(a), newDatesCmd(a))
	return root
}

// load binds the executing command's flags, decodes the configuration and
// installs the default logger.
func (a *app) load(cmd *cobra.Command, logOut io.Writer) error {
	var bindErr error
	bind := func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(key, f)
	}
	cmd.Flags().VisitAll(bind)
	cmd.InheritedFlags().VisitAll(bind)
	if bindErr != nil {
		return bindErr
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// executor builds the retry executor from configuration.
func (a *app) executor() *application.Executor {
	policy := application.DefaultRetryPolicy()
	policy.MaxRetries = a.cfg.MaxRetries
	if a.cfg.InitialDelay > 0 {
		policy.InitialDelay = a.cfg.InitialDelay
	}
	return application.NewExecutor(policy)
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, errors.New("log level must be one of debug, info, warn, error")
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("log format must be text or json")
	}
}
