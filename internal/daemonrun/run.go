package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/daemon"
	"reelforge/internal/history"
	"reelforge/internal/logging"
	"reelforge/internal/logs"
	"reelforge/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelforge daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("reelforged-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update reelforged.log link: %v\n", err)
	}
	if pruned := logging.PruneOldLogs(logger, cfg.Paths.LogDir, "reelforged-*.log", cfg.Logging.RetentionDays, logPath); pruned > 0 {
		logger.Info("old daemon logs pruned", logging.Int("files", pruned))
	}
	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "reelforged.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}
	defer store.Close()

	engine, err := NewEngine(cfg, logger, store)
	if err != nil {
		return err
	}
	d, err := daemon.New(cfg, engine.Registry, logger, daemon.WithHistory(store))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	logger.Info("reelforge daemon starting",
		logging.String("work_dir", cfg.Paths.WorkDir),
		logging.String("output_dir", cfg.Paths.OutputDir),
		logging.String("font", engine.FontFile),
		logging.String("log_path", logPath),
	)
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and the lock file under log_dir"),
		)
		return err
	}
	logger.Info("reelforge daemon shut down")
	return nil
}

// runPreflight logs every failed check. Unusable work or output directories
// abort startup; low disk space only warns.
func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		switch r.Name {
		case "Work directory", "Output directory":
			return fmt.Errorf("preflight %s: %s", r.Name, r.Detail)
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, "renders may fail for lack of space or access"),
		)
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
