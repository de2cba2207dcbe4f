package brokerrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"framebroker/internal/config"
	"framebroker/internal/daemon"
	"framebroker/internal/deps"
	"framebroker/internal/faults"
	"framebroker/internal/ipc"
	"framebroker/internal/logging"
	"framebroker/internal/staging"
)

const (
	// housekeepingInterval is how often history and scratch directories are
	// trimmed while the broker runs.
	housekeepingInterval = 24 * time.Hour
	// staleWorkDirAge is how old an encoder scratch directory must be before
	// it is treated as left behind by a crash.
	staleWorkDirAge = 24 * time.Hour
)

// Options configures broker process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the broker and blocks until SIGINT, SIGTERM, or cancellation of
// cmdCtx.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(opts.LogLevel) != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.Development {
		cfg.Logging.Level = "debug"
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return faults.Wrap(faults.ErrConfiguration, "brokerrun", "prepare directories", "", err)
	}
	if err := preflight(cfg); err != nil {
		return err
	}

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("framebroker-%s.log", runStamp))
	logger, err := logging.NewFromConfig(cfg, logPath, runID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update framebroker.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "framebroker-*.log", Exclude: []string{logPath}},
	)

	workDir := scratchDir(cfg)
	staging.CleanStale(signalCtx, workDir, staleWorkDirAge, logger)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, daemon.WithLogPath(logPath))
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start broker: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		select {
		case <-groupCtx.Done():
			return nil
		case <-d.Done():
			return fmt.Errorf("broker stopped unexpectedly")
		}
	})
	group.Go(func() error {
		ticker := time.NewTicker(housekeepingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				d.PruneHistory(groupCtx)
				staging.CleanStale(groupCtx, workDir, staleWorkDirAge, logger)
			}
		}
	})

	err = group.Wait()
	logger.Info("framebroker shutting down")
	return err
}

// preflight fails fast when the state directories are unusable or the
// configured codec cannot run.
func preflight(cfg *config.Config) error {
	checks := []deps.Status{
		deps.CheckWritableDir("state directory", cfg.Paths.StateDir),
		deps.CheckWritableDir("log directory", cfg.Paths.LogDir),
	}
	checks = append(checks, deps.CheckBinaries(deps.CodecRequirements(cfg))...)
	missing := deps.Missing(checks)
	if len(missing) == 0 {
		return nil
	}
	details := make([]string, 0, len(missing))
	for _, status := range missing {
		details = append(details, fmt.Sprintf("%s: %s", status.Name, status.Detail))
	}
	return faults.Wrap(faults.ErrConfiguration, "brokerrun", "preflight", strings.Join(details, "; "), nil)
}

// scratchDir is where the assemblers create their temporary directories.
func scratchDir(cfg *config.Config) string {
	if dir := strings.TrimSpace(cfg.Codec.WorkDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "framebroker.log")
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

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := deps.CheckBinaries(deps.CodecRequirements(cfg))
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("codec_format", cfg.Codec.Format),
		logging.String("listen", cfg.ListenAddress()),
		logging.Int64("max_payload_bytes", cfg.Broker.MaxPayloadBytes),
		logging.Bool("history_enabled", cfg.History.Enabled),
	}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
