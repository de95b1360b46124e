// Package main provides the CLI entrypoint for shadowshield.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/shadowshield/internal/backend"
	"github.com/verte-zerg/shadowshield/internal/config"
	"github.com/verte-zerg/shadowshield/internal/historyui"
	"github.com/verte-zerg/shadowshield/internal/keystroke"
	"github.com/verte-zerg/shadowshield/internal/logging"
	"github.com/verte-zerg/shadowshield/internal/login"
	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/session"
	"github.com/verte-zerg/shadowshield/internal/stats"
	"github.com/verte-zerg/shadowshield/internal/store"
	"github.com/verte-zerg/shadowshield/internal/tui"
	"github.com/verte-zerg/shadowshield/internal/vault"
)

const (
	defaultTimeout = 0
	defaultHistory = true
)

var (
	lockBackendURL string
	lockTimeout    time.Duration
	lockPacing     time.Duration
	lockHistory    bool
	lockLogFile    string
	lockKiosk      bool
	lockDevKeys    bool

	historySince string
	historyLast  int
	historyTUI   bool

	decryptOut string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "shadowshield",
		Short:         "Terminal lock screen with keystroke-dynamics login",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runLockCmd,
	}

	rootCmd.PersistentFlags().StringVar(&lockBackendURL, "backend-url", backend.DefaultBaseURL, "scoring backend base URL")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "timeout", defaultTimeout, "backend request timeout (0 uses the transport default)")
	rootCmd.PersistentFlags().StringVar(&lockLogFile, "log-file", config.DefaultLogPath(), "diagnostic log file")
	rootCmd.Flags().DurationVar(&lockPacing, "pacing", login.DefaultPacing, "delay before a login result is revealed")
	rootCmd.Flags().BoolVar(&lockHistory, "history", defaultHistory, "record attempts in the history database")
	rootCmd.Flags().BoolVar(&lockKiosk, "kiosk", false, "disable ctrl+c on the login screen")
	rootCmd.Flags().BoolVar(&lockDevKeys, "dev-keys", false, "enable ctrl+r to reset attempts without a passcode")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVaultCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

// resolveConfig merges the config file under the flags the user did not set.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "backend-url", &lockBackendURL, fileCfg.Lock.BackendURL)
	applyStringConfig(cmd, "log-file", &lockLogFile, fileCfg.Lock.LogFile)
	applyBoolConfig(cmd, "history", &lockHistory, fileCfg.Lock.History)
	if err := applyDurationConfig(cmd, "timeout", &lockTimeout, fileCfg.Lock.Timeout); err != nil {
		return model.Config{}, err
	}
	if err := applyDurationConfig(cmd, "pacing", &lockPacing, fileCfg.Lock.Pacing); err != nil {
		return model.Config{}, err
	}

	cfg := model.Config{
		BackendURL: lockBackendURL,
		Timeout:    lockTimeout,
		Pacing:     lockPacing,
		History:    lockHistory,
		LogFile:    lockLogFile,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runLockCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the lock screen needs an interactive terminal")
	}

	log, err := logging.Open(cfg.LogFile, slog.LevelInfo)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		if cerr := log.Close(); cerr != nil {
			logErrf("failed to close log: %v\n", cerr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionOpts := []session.Option{session.WithLogger(log)}
	if cfg.History {
		st, err := store.Open(config.DefaultDBPath())
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		sessionOpts = append(sessionOpts, session.WithRecorder(st))
	}

	client := backend.New(cfg.BackendURL, cfg.Timeout)
	capture := keystroke.New()
	bridge := tui.NewBridge()
	ctrl := session.New(bridge, bridge, sessionOpts...)

	reporter := login.ReporterFunc(func(r login.Report) {
		err := ctrl.Send(session.LoginResult{
			Status:      r.Status,
			Username:    r.Username,
			VectorValid: r.VectorValid,
		})
		if err != nil {
			log.Warn("login result not delivered", "err", err)
		}
	})
	flow := login.New(client, capture, reporter, login.WithPacing(cfg.Pacing), login.WithLogger(log))
	ops := vault.New(client, ctrl.DialogClient(), log)

	startDir, err := os.Getwd()
	if err != nil {
		startDir = "."
	}
	m := tui.NewModel(ctx, tui.Deps{
		Controller: ctrl,
		Login:      flow,
		Capture:    capture,
		Vault:      ops,
		Log:        log,
	}, tui.Options{
		Kiosk:    lockKiosk,
		DevKeys:  lockDevKeys,
		StartDir: startDir,
	})

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(program)

	log.Info("lock screen starting", "backend", client.BaseURL(), "history", cfg.History)
	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- ctrl.Run(ctx)
	}()

	_, runErr := program.Run()
	cancel()
	<-sessionDone

	state, attempts := ctrl.Snapshot()
	log.Info("lock screen stopped", "state", state.String(), "attempts", attempts)
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
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
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
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

func newVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Encrypt, list and decrypt files in the backend vault",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <file>",
		Short: "Encrypt a file into the vault",
		Args:  cobra.ExactArgs(1),
		RunE:  runVaultEncryptCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List vault artifacts",
		Args:  cobra.NoArgs,
		RunE:  runVaultListCmd,
	})
	decrypt := &cobra.Command{
		Use:   "decrypt <name>",
		Short: "Decrypt a vault artifact to a local file",
		Args:  cobra.ExactArgs(1),
		RunE:  runVaultDecryptCmd,
	}
	decrypt.Flags().StringVar(&decryptOut, "out", "", "output path (default: name without .enc)")
	cmd.AddCommand(decrypt)
	return cmd
}

// openVault builds non-interactive vault operations. The caller closes the log.
func openVault(cmd *cobra.Command) (*vault.Ops, *logging.Logger, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.Open(cfg.LogFile, slog.LevelInfo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log: %w", err)
	}
	client := backend.New(cfg.BackendURL, cfg.Timeout)
	return vault.New(client, nil, log), log, nil
}

func closeLog(log *logging.Logger) {
	if cerr := log.Close(); cerr != nil {
		logErrf("failed to close log: %v\n", cerr)
	}
}

func runVaultEncryptCmd(cmd *cobra.Command, args []string) error {
	ops, log, err := openVault(cmd)
	if err != nil {
		return err
	}
	defer closeLog(log)
	msg, err := ops.EncryptPath(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	logErrln(msg)
	return nil
}

func runVaultListCmd(cmd *cobra.Command, _ []string) error {
	ops, log, err := openVault(cmd)
	if err != nil {
		return err
	}
	defer closeLog(log)
	files, err := ops.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, name := range files {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func runVaultDecryptCmd(cmd *cobra.Command, args []string) error {
	ops, log, err := openVault(cmd)
	if err != nil {
		return err
	}
	defer closeLog(log)
	msg, err := ops.DecryptTo(cmd.Context(), args[0], decryptOut)
	if err != nil {
		return err
	}
	logErrln(msg)
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show login attempt history",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N events")
	cmd.Flags().BoolVar(&historyTUI, "tui", false, "browse history interactively")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := parseHistoryConfig(historySince, historyLast)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if historyTUI {
		program := tea.NewProgram(historyui.NewModel(st, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run history TUI: %w", err)
		}
		return nil
	}

	report, err := stats.BuildReport(cmd.Context(), st, cfg)
	if err != nil {
		return err
	}
	if err := report.Render(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func parseHistoryConfig(since string, last int) (model.HistoryConfig, error) {
	if last < 0 {
		return model.HistoryConfig{}, fmt.Errorf("--last must be >= 0")
	}
	cfg := model.HistoryConfig{Last: last}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.HistoryConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = &parsed
	}
	return cfg, nil
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

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil {
		return nil
	}
	if cmd.Flags().Lookup(name) == nil || cmd.Flags().Changed(name) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid %s in config: %w", name, err)
	}
	*target = d
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# shadowshield configuration
# Uncomment a value to enable it. CLI flags override config values.

[lock]
# backend-url = %q   # Scoring backend base URL
# timeout = "%s"                        # Backend request timeout, 0s uses the transport default
# pacing = "%s"                         # Delay before a login result is revealed
# history = %t                          # Record attempts in the history database
# log-file = %q
`,
		backend.DefaultBaseURL,
		time.Duration(defaultTimeout),
		login.DefaultPacing,
		defaultHistory,
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.BackendURL == "" {
		return fmt.Errorf("--backend-url must not be empty")
	}
	u, err := url.Parse(cfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("--backend-url must be an http(s) URL")
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("--timeout must be >= 0")
	}
	if cfg.Pacing < 0 {
		return fmt.Errorf("--pacing must be >= 0")
	}
	if cfg.LogFile == "" {
		return fmt.Errorf("--log-file must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
