package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"duet-backup/core/reconcile"
	"duet-backup/core/remote"
	"duet-backup/core/report"
	"duet-backup/core/source"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	passKey = "pass"
	// startNoticeTimeout closes the single-pass start message on its own.
	startNoticeTimeout = 20 * time.Second
)

// Passer runs one reconciliation pass.
type Passer interface {
	RunPass(ctx context.Context) (*reconcile.Run, error)
}

// Options configures a Scheduler.
type Options struct {
	// Interval between two passes. Zero runs a single pass.
	Interval time.Duration
	// RetryAfterEmpty is the delay after an empty source. Defaults to Interval/4.
	RetryAfterEmpty time.Duration
	// Branch is passed to the LastBackupReader.
	Branch string
	// LastBackup reports when the branch was last written. Optional.
	LastBackup remote.LastBackupReader
	// Notifier receives progress messages. Optional.
	Notifier source.Notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

// Status is a snapshot of the scheduler.
type Status struct {
	Running bool           `json:"running"`
	NextRun time.Time      `json:"next_run,omitzero"`
	LastRun *reconcile.Run `json:"last_run,omitempty"`
}

// Scheduler runs passes on an interval and on demand.
type Scheduler struct {
	passer Passer
	opts   Options
	logger *zap.Logger
	group  singleflight.Group

	mu      sync.RWMutex
	running bool
	nextRun time.Time
	lastRun *reconcile.Run
}

// New creates a Scheduler.
func New(passer Passer, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = source.Nop{}
	}
	if opts.RetryAfterEmpty <= 0 {
		opts.RetryAfterEmpty = opts.Interval / 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{passer: passer, opts: opts, logger: logger}
}

// Trigger runs a pass now, or joins the pass already in progress.
func (s *Scheduler) Trigger(ctx context.Context) (*reconcile.Run, error) {
	v, err, shared := s.group.Do(passKey, func() (any, error) {
		s.setRunning(true)
		defer s.setRunning(false)

		run, err := s.passer.RunPass(ctx)
		if run != nil {
			s.mu.Lock()
			s.lastRun = run
			s.mu.Unlock()
		}
		return run, err
	})
	if shared {
		s.logger.Debug("Joined backup pass already in progress")
	}
	run, _ := v.(*reconcile.Run)
	return run, err
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Running: s.running, NextRun: s.nextRun, LastRun: s.lastRun}
}

// Run blocks until ctx is cancelled, running passes on the configured
// interval. With a zero interval it runs one pass and returns its error.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.opts.Interval <= 0 {
		return s.single(ctx)
	}

	next := s.firstDue(ctx)
	for {
		s.setNext(next)
		if wait := next.Sub(s.opts.Now()); wait > 0 {
			s.logger.Info("Next backup scheduled",
				zap.String("local", next.Local().Format(stampLayout)),
				zap.String("tz", report.OffsetHours(next.Local())),
				zap.Duration("in", wait.Round(time.Second)))
			if err := sleep(ctx, wait); err != nil {
				return nil
			}
		}

		s.notify(ctx, "Interval backup starting")
		run, err := s.Trigger(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.reportFailures(ctx, run, err)

		delay := s.opts.Interval
		switch {
		case errors.Is(err, reconcile.ErrEmptySource):
			delay = s.opts.RetryAfterEmpty
			s.logger.Info("Could not get file list from source, retrying later", zap.Duration("retry_in", delay))
		case err != nil:
			s.notify(ctx, fmt.Sprintf("Backup failed: %v", err))
		}
		next = s.opts.Now().Add(delay)
	}
}

// single runs one pass. An empty source is not an error: nothing was
// written and the process exits normally.
func (s *Scheduler) single(ctx context.Context) error {
	if err := source.NotifyFor(ctx, s.opts.Notifier, "Single backup starting.", startNoticeTimeout); err != nil {
		s.logger.Warn("Notification failed", zap.String("message", "Single backup starting."), zap.Error(err))
	}
	run, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, reconcile.ErrEmptySource):
		s.logger.Warn("Could not get file list from source, nothing backed up", zap.Error(err))
	case err != nil:
		s.notify(ctx, fmt.Sprintf("Backup failed: %v", err))
		return err
	default:
		s.reportFailures(ctx, run, nil)
	}
	s.logger.Info("Exiting normally after single backup")
	s.notify(ctx, "Exiting normally after single backup")
	return nil
}

// firstDue returns the last backup time plus the interval, or now when the
// last backup is unknown.
func (s *Scheduler) firstDue(ctx context.Context) time.Time {
	now := s.opts.Now()
	if s.opts.LastBackup == nil {
		return now
	}
	last, err := s.opts.LastBackup.LastBackup(ctx, s.opts.Branch)
	if err != nil {
		s.logger.Warn("Could not determine last backup time", zap.Error(err))
		return now
	}
	if last.IsZero() {
		return now
	}
	s.logger.Info("Last backup found",
		zap.String("local", last.Local().Format(stampLayout)),
		zap.String("tz", report.OffsetHours(last.Local())))
	return last.Add(s.opts.Interval)
}

// reportFailures sums up a finished pass that left files behind.
func (s *Scheduler) reportFailures(ctx context.Context, run *reconcile.Run, err error) {
	if err != nil || run == nil || len(run.Failed) == 0 {
		return
	}
	s.notify(ctx, fmt.Sprintf("Backup finished with %d failed file(s)", len(run.Failed)))
}

func (s *Scheduler) notify(ctx context.Context, msg string) {
	if err := s.opts.Notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("Notification failed", zap.String("message", msg), zap.Error(err))
	}
}

func (s *Scheduler) setRunning(v bool) {
	s.mu.Lock()
	s.running = v
	s.mu.Unlock()
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRun = t
	s.mu.Unlock()
}

const stampLayout = "02 Jan 2006 15:04"

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
