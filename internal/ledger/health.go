package ledger

import (
	"context"
	"fmt"
	"os"

	"murmur/internal/stage"
)

// Health captures diagnostic information about the ledger database.
type Health struct {
	DBPath         string
	DatabaseExists bool
	SchemaVersion  int
	IntegrityCheck bool
	TotalJobs      int
	IndexedMedia   int
	Error          string
}

// Stats aggregates job counts per lifecycle bucket.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return Stats{}, fmt.Errorf("scan job count: %w", err)
		}
		status := stage.Status(statusStr)
		switch {
		case status == stage.StatusQueued:
			stats.Queued += count
		case status == stage.StatusDone:
			stats.Done += count
		case status == stage.StatusFailed:
			stats.Failed += count
		case status.Paused():
			stats.Paused += count
		case status.Active():
			stats.Processing += count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

// CheckHealth inspects the database file and schema, never returning an
// error for a broken database: problems land in the report instead.
func (s *Store) CheckHealth(ctx context.Context) Health {
	ctx = ensureContext(ctx)
	health := Health{DBPath: s.path}

	if _, err := os.Stat(s.path); err == nil {
		health.DatabaseExists = true
	} else {
		health.Error = fmt.Sprintf("database file: %v", err)
		return health
	}

	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = fmt.Sprintf("schema version: %v", err)
		return health
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = fmt.Sprintf("integrity check reported %q", integrity)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&health.TotalJobs); err != nil {
		health.Error = fmt.Sprintf("count jobs: %v", err)
		return health
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM media WHERE indexed_at IS NOT NULL").Scan(&health.IndexedMedia); err != nil {
		health.Error = fmt.Sprintf("count indexed media: %v", err)
	}
	return health
}
