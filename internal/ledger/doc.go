// Package ledger persists ingest jobs, acquired media metadata, and
// transcript segments in SQLite, including the full-text search index the
// query surfaces read from.
//
// Jobs move through single-claimer status transitions: ClaimNext hands a
// queued job to exactly one worker, and Advance applies optimistic
// concurrency so a control action that changed the job underneath a worker
// surfaces as a stale-state error rather than a silent overwrite.
package ledger
