package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duet-backup/core/remote"
	"duet-backup/core/report"
	"duet-backup/core/source"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const commitLayout = "02 Jan 2006 15:04"

// Engine runs reconciliation passes of one source against one branch.
type Engine struct {
	src    source.Source
	tree   remote.Tree
	opts   Options
	logger *zap.Logger
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(src source.Source, tree remote.Tree, opts Options, logger *zap.Logger) *Engine {
	if opts.StatusPath == "" {
		opts.StatusPath = report.FileName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = source.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{src: src, tree: tree, opts: opts, logger: logger}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// RunPass performs one complete pass: enumerate, list, diff, apply, report.
//
// Individual file failures are recorded in the returned Run and do not stop
// the pass. An empty source returns ErrEmptySource before anything is listed
// or written. Listing failures and authentication failures abort the pass.
// Cancelling ctx stops the pass between two file operations; the operation
// in flight completes.
func (e *Engine) RunPass(ctx context.Context) (*Run, error) {
	run := e.newRun()
	log := e.logger.With(zap.String("run_id", run.ID))

	log.Info("Backup pass starting",
		zap.String("source", e.src.Name()),
		zap.String("branch", e.opts.Branch),
		zap.Strings("dirs", e.opts.Roots),
		zap.Strings("ignore", e.opts.Exclude.Patterns()),
		zap.Strings("protect", e.opts.Protect),
		zap.Bool("delete", e.opts.Delete))

	plan, err := e.plan(ctx, run, log)
	if err != nil {
		return e.abort(run, err, log)
	}
	run.Skipped = plan.Skipped
	run.Failed = append(run.Failed, plan.Failed...)

	e.transition(run, StateApplying, log)
	opCtx := context.WithoutCancel(ctx)
	for _, f := range plan.Failed {
		e.notifyFailure(opCtx, f, log)
	}
	for _, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return e.abort(run, fmt.Errorf("pass cancelled: %w", err), log)
		}

		if err := e.apply(opCtx, action, run.StartedAt); err != nil {
			log.Error("File operation failed",
				zap.String("path", action.Path),
				zap.String("op", string(action.Op)),
				zap.Error(err))
			failure := Failure{Op: action.Op, Path: action.Path, Error: err.Error()}
			run.Failed = append(run.Failed, failure)
			e.notifyFailure(opCtx, failure, log)
			if errors.Is(err, remote.ErrAuth) || errors.Is(err, source.ErrAuth) {
				return e.abort(run, fmt.Errorf("failed to %s %s: %w", action.Op, action.Path, err), log)
			}
			continue
		}

		log.Debug("File operation applied", zap.String("path", action.Path), zap.String("op", string(action.Op)))
		switch action.Op {
		case OpAdd:
			run.Added = append(run.Added, action.Path)
		case OpUpdate:
			run.Updated = append(run.Updated, action.Path)
		case OpDelete:
			run.Deleted = append(run.Deleted, action.Path)
		}
	}

	if err := ctx.Err(); err != nil {
		return e.abort(run, fmt.Errorf("pass cancelled: %w", err), log)
	}

	e.transition(run, StateReporting, log)
	if err := e.writeStatus(opCtx, plan, run); err != nil {
		log.Error("Failed to write status file",
			zap.String("path", e.opts.StatusPath),
			zap.String("op", string(OpStatus)),
			zap.Error(err))
		failure := Failure{Op: OpStatus, Path: e.opts.StatusPath, Error: err.Error()}
		run.Failed = append(run.Failed, failure)
		e.notifyFailure(opCtx, failure, log)
		if errors.Is(err, remote.ErrAuth) {
			return e.abort(run, fmt.Errorf("failed to write status file: %w", err), log)
		}
	}

	e.transition(run, StateDone, log)
	run.FinishedAt = e.opts.Now()
	log.Info("Backup pass finished",
		zap.Int("added", len(run.Added)),
		zap.Int("updated", len(run.Updated)),
		zap.Int("deleted", len(run.Deleted)),
		zap.Int("skipped", len(run.Skipped)),
		zap.Int("failed", len(run.Failed)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

// apply performs a single planned write.
func (e *Engine) apply(ctx context.Context, action Action, at time.Time) error {
	msg := CommitMessage(action.Op, at)
	branch := e.opts.Branch

	switch action.Op {
	case OpAdd:
		content, err := e.src.ReadFile(ctx, action.Path)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		return e.tree.Create(ctx, action.Path, msg, content, branch)
	case OpUpdate:
		content := action.content
		if content == nil {
			var err error
			if content, err = e.src.ReadFile(ctx, action.Path); err != nil {
				return fmt.Errorf("failed to read source file: %w", err)
			}
		}
		return e.tree.Update(ctx, action.Path, msg, content, action.ExpectedHash, branch)
	case OpDelete:
		return e.tree.Delete(ctx, action.Path, msg, action.ExpectedHash, branch)
	default:
		return fmt.Errorf("unknown operation %q", action.Op)
	}
}

// writeStatus creates or updates the status file depending on whether it was
// present in the listing.
func (e *Engine) writeStatus(ctx context.Context, plan *Plan, run *Run) error {
	content := report.Build(e.opts.Now(), report.Outcome{
		Added:   run.Added,
		Updated: run.Updated,
		Deleted: run.Deleted,
	})

	if entry, ok := plan.Remote(e.opts.StatusPath); ok {
		return e.tree.Update(ctx, e.opts.StatusPath, CommitMessage(OpUpdate, run.StartedAt), content, entry.Hash, e.opts.Branch)
	}
	return e.tree.Create(ctx, e.opts.StatusPath, CommitMessage(OpAdd, run.StartedAt), content, e.opts.Branch)
}

// CommitMessage returns the message used for a write at backup time at.
// Updates carry the bare UTC time; creates and deletes are prefixed.
func CommitMessage(op Op, at time.Time) string {
	stamp := at.UTC().Format(commitLayout) + " UTC"
	switch op {
	case OpAdd:
		return "Add " + stamp
	case OpDelete:
		return "Delete " + stamp
	default:
		return stamp
	}
}

func (e *Engine) newRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: e.opts.Now(),
		Added:     []string{},
		Updated:   []string{},
		Deleted:   []string{},
		Skipped:   []string{},
		Failed:    []Failure{},
	}
}

// notifyFailure puts a failed file on the operator's display.
func (e *Engine) notifyFailure(ctx context.Context, f Failure, log *zap.Logger) {
	var msg string
	switch f.Op {
	case OpRead:
		msg = fmt.Sprintf("Could not get content of file %s", f.Path)
	case OpDelete:
		msg = fmt.Sprintf("Error trying to delete %s", f.Path)
	default:
		msg = fmt.Sprintf("Error applying %s to file %s", f.Op, f.Path)
	}
	if err := e.opts.Notifier.Notify(ctx, msg); err != nil {
		log.Warn("Notification failed", zap.String("message", msg), zap.Error(err))
	}
}

func (e *Engine) transition(run *Run, state State, log *zap.Logger) {
	log.Debug("Pass state changed", zap.String("from", string(run.State)), zap.String("to", string(state)))
	run.State = state
}

func (e *Engine) abort(run *Run, err error, log *zap.Logger) (*Run, error) {
	from := run.State
	run.State = StateAborted
	run.Error = err.Error()
	run.FinishedAt = e.opts.Now()

	if errors.Is(err, ErrEmptySource) {
		log.Warn("Source is empty, skipping pass", zap.Error(err))
	} else {
		log.Error("Backup pass aborted", zap.String("state", string(from)), zap.Error(err))
	}
	return run, err
}
