package cmd

import (
	"context"
	"fmt"
	"time"

	"duet-backup/core/config"
	"duet-backup/core/exclude"
	"duet-backup/core/logger"
	"duet-backup/core/reconcile"
	"duet-backup/core/remote"
	"duet-backup/core/schedule"
	"duet-backup/core/source"
	"duet-backup/core/storage"
	"duet-backup/core/transport"
	"duet-backup/feature/github"
	"duet-backup/feature/localfs"
	"duet-backup/feature/objectstore"
	"duet-backup/feature/printer"

	"go.uber.org/zap"
)

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	source   source.Source
	tree     remote.Tree
	engine   *reconcile.Engine
	notifier source.Notifier
	printer  *printer.Client
}

// loadConfig loads and validates the configuration and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configDir, configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logg)
	return cfg, logg, nil
}

// newApp wires the configured source, remote and engine.
func newApp() (*app, error) {
	cfg, logg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logg, notifier: source.Nop{}}

	switch cfg.Backup.Source {
	case config.SourcePrinter:
		client, err := printer.NewClient(cfg.Printer, nil, logg)
		if err != nil {
			return nil, fmt.Errorf("failed to create printer client: %w", err)
		}
		a.printer = client
		a.source = printer.NewSource(client, logg)
		if cfg.Printer.Notify {
			a.notifier = printer.NewNotifier(client)
		}
	case config.SourceLocal:
		a.source = localfs.NewSource(nil, cfg.Backup.TopDir, logg)
	}

	if a.tree, err = newTree(cfg, logg); err != nil {
		return nil, err
	}

	excl, err := exclude.New(cfg.Backup.Ignore)
	if err != nil {
		return nil, err
	}

	a.engine = reconcile.NewEngine(a.source, a.tree, reconcile.Options{
		Branch:   cfg.Backup.Branch,
		Roots:    cfg.Backup.Dirs,
		Exclude:  excl,
		Protect:  cfg.Backup.Protect,
		Delete:   cfg.Backup.Delete,
		Reserved: cfg.Backup.Reserved,
		Notifier: a.notifier,
	}, logg)

	logg.Debug("Components ready",
		zap.String("source", a.source.Name()),
		zap.String("remote", cfg.Backup.Remote),
		zap.String("branch", cfg.Backup.Branch))
	return a, nil
}

func newTree(cfg *config.Config, logg *zap.Logger) (remote.Tree, error) {
	switch cfg.Backup.Remote {
	case config.RemoteObjectStore:
		return newObjectTree(cfg, logg)
	default:
		tree, err := github.NewTree(cfg.GitHub, nil, logg)
		if err != nil {
			return nil, fmt.Errorf("failed to create github client: %w", err)
		}
		return tree, nil
	}
}

func newObjectTree(cfg *config.Config, logg *zap.Logger) (*objectstore.Tree, error) {
	client, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	policy := transport.DefaultPolicy()
	if cfg.Storage.TimeoutSeconds > 0 {
		policy.Timeout = time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	}
	return objectstore.NewTree(client, cfg.Storage.Bucket, policy, logg)
}

// scheduler builds a scheduler over the engine. A negative interval keeps the
// configured one.
func (a *app) scheduler(interval time.Duration) *schedule.Scheduler {
	if interval < 0 {
		interval = a.cfg.Backup.Interval
	}
	opts := schedule.Options{
		Interval:        interval,
		RetryAfterEmpty: a.cfg.Backup.RetryAfterEmpty,
		Branch:          a.cfg.Backup.Branch,
		Notifier:        a.notifier,
	}
	if r, ok := a.tree.(remote.LastBackupReader); ok {
		opts.LastBackup = r
	}
	return schedule.New(a.engine, opts, a.logger)
}

// close ends the printer session and flushes the logger.
func (a *app) close(ctx context.Context) {
	if a.printer != nil {
		if err := a.printer.Close(ctx); err != nil {
			a.logger.Debug("Printer disconnect failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
