// Package reconcile mirrors a source file set onto a branch of a remote tree.
//
// A pass moves through Enumerating, Listing, Diffing, Applying and Reporting
// before reaching Done, or stops in Aborted.
//
//  1. Enumerate: the source lists its files, already filtered by the
//     exclusion patterns. An empty set ends the pass with ErrEmptySource
//     before anything is listed or written.
//  2. List: the branch is listed with the blob hash of every file. A missing
//     branch or any listing error aborts the pass.
//  3. Diff: a source path absent remotely is added. A present path is read,
//     hashed and compared with the listed hash; differing files are updated,
//     equal files are skipped without any remote call. Remote files missing
//     from the source are deleted unless they are reserved, protected by a
//     prefix, or deletion is disabled.
//  4. Apply: adds and updates run in plan order, deletes afterwards, one at a
//     time. A failing file is logged and left out of the outcome lists; the
//     pass moves on. Authentication failures abort.
//  5. Report: the status file (README.md) is created or updated with the
//     outcome lists.
//
// Writes are optimistic. Update and Delete carry the hash seen at listing
// time, so a file changed behind the engine's back yields remote.ErrConflict
// and is simply retried on the next pass.
//
// # Usage
//
//	engine := reconcile.NewEngine(src, tree, reconcile.Options{
//	    Branch: "main",
//	    Roots:  []string{"sd/sys", "sd/macros"},
//	    Delete: true,
//	}, logger)
//
//	// Dry run
//	plan, err := engine.Plan(ctx)
//
//	// One pass
//	run, err := engine.RunPass(ctx)
package reconcile
