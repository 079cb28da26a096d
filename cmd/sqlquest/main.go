// Package main provides the CLI entrypoint for sqlquest.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sqlquest/internal/account"
	"github.com/verte-zerg/sqlquest/internal/catalog"
	"github.com/verte-zerg/sqlquest/internal/config"
	"github.com/verte-zerg/sqlquest/internal/grading"
	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/model"
	"github.com/verte-zerg/sqlquest/internal/progress"
	"github.com/verte-zerg/sqlquest/internal/reminder"
	"github.com/verte-zerg/sqlquest/internal/runner"
	"github.com/verte-zerg/sqlquest/internal/store"
	"github.com/verte-zerg/sqlquest/internal/tui"
)

const (
	defaultCurveWindow = 10
	secretFileName     = "secret"
	dotEnvPath         = ".env"
)

var (
	rootDriver     string
	rootCatalog    string
	rootCatalogURL string
	rootGuest      string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sqlquest",
		Short:         "Interactive SQL lessons in the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runPlayCmd,
	}

	rootCmd.PersistentFlags().StringVar(&rootDriver, "driver", runner.DefaultDriver, fmt.Sprintf("SQL engine (%s)", strings.Join(runner.Drivers(), ", ")))
	rootCmd.PersistentFlags().StringVar(&rootCatalog, "catalog", "", "load lessons from a TOML file")
	rootCmd.PersistentFlags().StringVar(&rootCatalogURL, "catalog-url", "", "download lessons from a URL")
	rootCmd.PersistentFlags().StringVar(&rootGuest, "account", model.LocalAccountID, "account that owns progress while signed out")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLessonsCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newAckCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newRemindCmd())

	return rootCmd
}

// app holds everything a command needs once configuration is resolved.
type app struct {
	cfg      model.Config
	guestID  string
	store    *store.Store
	tracker  *progress.Tracker
	accounts *account.Service
	catalog  *catalog.Catalog
	runner   *runner.Runner
	engine   *grading.Engine
}

func loadFileConfig(cmd *cobra.Command) (config.FileConfig, error) {
	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return config.FileConfig{}, err
	}
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "driver", &rootDriver, fileCfg.Runner.Driver)
	applyStringConfig(cmd, "catalog", &rootCatalog, fileCfg.Catalog.Path)
	applyStringConfig(cmd, "catalog-url", &rootCatalogURL, fileCfg.Catalog.URL)
	applyStringConfig(cmd, "account", &rootGuest, fileCfg.Player.Account)
	return fileCfg, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return nil, err
	}
	ttl, err := fileCfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	cfg := model.Config{
		Driver:        strings.TrimSpace(rootDriver),
		CatalogPath:   strings.TrimSpace(rootCatalog),
		CatalogURL:    strings.TrimSpace(rootCatalogURL),
		ReminderTimes: fileCfg.Reminders.Times,
		TokenTTL:      ttl,
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	guestID := strings.TrimSpace(rootGuest)
	if guestID == "" {
		guestID = model.LocalAccountID
	}

	cfg.AuthSecret = fileCfg.AuthSecret("")
	if cfg.AuthSecret == "" {
		secretPath := filepath.Join(filepath.Dir(config.DefaultDBPath()), secretFileName)
		cfg.AuthSecret, err = account.LoadOrCreateSecret(secretPath)
		if err != nil {
			return nil, err
		}
	}

	cat, err := catalog.Open(ctx, catalogSource(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to load lessons: %w", err)
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a := &app{cfg: cfg, guestID: guestID, store: st, catalog: cat}

	a.tracker, err = progress.Load(ctx, st, guestID)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.accounts, err = account.NewService(st, a.tracker, cfg.AuthSecret,
		account.WithTTL(cfg.TokenTTL),
		account.WithSessionPath(config.DefaultSessionPath()),
		account.WithGuestID(guestID),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	if _, err := a.accounts.Resume(ctx); err != nil && !errors.Is(err, account.ErrNotSignedIn) {
		logx.Errf("signed out: %v\n", err)
	}

	a.runner, err = runner.New(cfg.Driver)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = grading.NewEngine(cat, a.runner, a.tracker, grading.WithRecorder(st))
	return a, nil
}

func (a *app) Close() {
	if a.runner != nil {
		if err := a.runner.Close(); err != nil {
			logx.Errf("failed to close runner: %v\n", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logx.Errf("failed to close db: %v\n", err)
	}
}

// flushMessages prints pending account notices for non-interactive commands.
func (a *app) flushMessages() {
	for {
		msg, ok := a.accounts.Messages.Next()
		if !ok {
			return
		}
		logx.Errln(msg)
	}
}

func catalogSource(cfg model.Config) catalog.Source {
	switch {
	case cfg.CatalogPath != "":
		return catalog.FileSource{Path: cfg.CatalogPath}
	case cfg.CatalogURL != "":
		return catalog.HTTPSource{URL: cfg.CatalogURL, CacheDir: config.DefaultCatalogCacheDir()}
	default:
		return catalog.BuiltinSource{}
	}
}

func validateConfig(cfg model.Config) error {
	if err := runner.ValidateDriver(cfg.Driver); err != nil {
		return fmt.Errorf("--driver: %w", err)
	}
	if cfg.CatalogPath != "" && cfg.CatalogURL != "" {
		return fmt.Errorf("--catalog and --catalog-url are mutually exclusive")
	}
	return nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	a, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	alerts := make(chan reminder.Alert, 4)
	sched := reminder.NewScheduler(func(alert reminder.Alert) {
		select {
		case alerts <- alert:
		default:
		}
	})
	clocks, err := reminder.ParseTimes(a.cfg.ReminderTimes)
	if err != nil {
		logx.Errf("ignoring reminder times: %v\n", err)
	}
	sched.Schedule(ctx, clocks)
	defer sched.Wait()
	defer cancel()

	deps := tui.Deps{
		Engine:  a.engine,
		Catalog: a.catalog,
		Tracker: a.tracker,
		Account: a.accounts,
		Alerts:  alerts,
	}
	if err := tui.Run(deps); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Template(runner.DefaultDriver)), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}
