package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"duet-backup/core/blobhash"
	"duet-backup/core/exclude"
	"duet-backup/core/remote"
	"duet-backup/core/source"

	"go.uber.org/zap"
)

// Plan enumerates the source, lists the branch and diffs the two without
// writing anything.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	run := e.newRun()
	plan, err := e.plan(ctx, run, e.logger.With(zap.String("run_id", run.ID)))
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (e *Engine) plan(ctx context.Context, run *Run, log *zap.Logger) (*Plan, error) {
	e.transition(run, StateEnumerating, log)
	paths, err := e.src.List(ctx, e.opts.Roots, e.opts.Exclude)
	switch {
	case errors.Is(err, source.ErrAuth):
		return nil, fmt.Errorf("failed to list %s source: %w", e.src.Name(), err)
	case len(paths) == 0:
		if err != nil {
			return nil, errors.Join(ErrEmptySource, err)
		}
		return nil, ErrEmptySource
	case err != nil:
		log.Warn("Source listing incomplete", zap.String("source", e.src.Name()), zap.Error(err))
	}
	log.Info("Source files enumerated", zap.Int("count", len(paths)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.transition(run, StateListing, log)
	entries, err := e.tree.ListFiles(ctx, e.opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to list branch %s: %w", e.opts.Branch, err)
	}
	log.Info("Remote files listed", zap.String("branch", e.opts.Branch), zap.Int("count", len(entries)))

	e.transition(run, StateDiffing, log)
	return e.diff(ctx, paths, entries, log)
}

// diff classifies every source path as add, update or skip, and every remote
// path missing from the source as delete or retained.
func (e *Engine) diff(ctx context.Context, paths []string, entries []remote.Entry, log *zap.Logger) (*Plan, error) {
	idx := remote.Index(entries)
	plan := &Plan{
		Branch:   e.opts.Branch,
		Actions:  []Action{},
		Skipped:  []string{},
		Retained: []Retained{},
		Failed:   []Failure{},
		remote:   idx,
	}

	inSource := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		inSource[p] = struct{}{}

		if e.reserved(p) {
			log.Warn("Source file shadows a reserved path, ignoring", zap.String("path", p))
			continue
		}

		entry, ok := idx[p]
		if !ok {
			plan.Actions = append(plan.Actions, Action{Op: OpAdd, Path: p})
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := e.src.ReadFile(ctx, p)
		if err != nil {
			log.Error("Failed to read source file", zap.String("path", p), zap.String("op", string(OpRead)), zap.Error(err))
			plan.Failed = append(plan.Failed, Failure{Op: OpRead, Path: p, Error: err.Error()})
			continue
		}

		local := blobhash.Sum(content)
		if !blobhash.Differs(local, entry.Hash) {
			plan.Skipped = append(plan.Skipped, p)
			continue
		}
		plan.Actions = append(plan.Actions, Action{
			Op:           OpUpdate,
			Path:         p,
			ExpectedHash: entry.Hash,
			LocalHash:    local,
			content:      content,
		})
	}

	orphans := make([]remote.Entry, 0)
	for _, entry := range entries {
		if _, ok := inSource[entry.Path]; !ok {
			orphans = append(orphans, entry)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })

	for _, entry := range orphans {
		if reason, keep := e.retain(entry.Path); keep {
			plan.Retained = append(plan.Retained, Retained{Path: entry.Path, Reason: reason})
			continue
		}
		plan.Actions = append(plan.Actions, Action{Op: OpDelete, Path: entry.Path, ExpectedHash: entry.Hash})
	}

	plan.Summary = summarize(plan, len(paths), len(entries))
	return plan, nil
}

// retain reports whether a remote file missing from the source is kept.
func (e *Engine) retain(path string) (string, bool) {
	if e.reserved(path) {
		return "reserved", true
	}
	if prefix, ok := exclude.ProtectedBy(path, e.opts.Protect); ok {
		return "protected by " + prefix, true
	}
	if !e.opts.Delete {
		return "deletion disabled", true
	}
	return "", false
}

func (e *Engine) reserved(path string) bool {
	if path == e.opts.StatusPath {
		return true
	}
	for _, r := range e.opts.Reserved {
		if path == r {
			return true
		}
	}
	return false
}

func summarize(plan *Plan, sourceFiles, remoteFiles int) PlanSummary {
	s := PlanSummary{
		SourceFiles: sourceFiles,
		RemoteFiles: remoteFiles,
		Skip:        len(plan.Skipped),
		Retained:    len(plan.Retained),
		Failed:      len(plan.Failed),
	}
	for _, a := range plan.Actions {
		switch a.Op {
		case OpAdd:
			s.Add++
		case OpUpdate:
			s.Update++
		case OpDelete:
			s.Delete++
		}
	}
	return s
}
