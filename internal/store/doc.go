// Package store persists alignment outputs.
//
// Two concerns live here:
//
//   - Timestamps: the archive-then-overwrite protocol for per-stream
//     timestamp arrays. The pre-alignment array is archived exactly once;
//     later runs replace only the current file and never touch the
//     archive. This makes re-running idempotent at the file level, though
//     not at the numeric level: re-aligning an already-aligned current
//     file re-derives from transformed data, which callers must surface.
//
//   - RunLog: a SQLite log of runs and per-stream outcomes, so a QC batch
//     leaves an auditable record of what was aligned, skipped, or failed
//     and why.
//
// All writes are synchronous and strictly sequential; there are no
// concurrent writers to the same files.
package store
