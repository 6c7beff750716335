package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"murmur/internal/services"
)

// PersistMedia upserts the metadata row for an acquired source.
func (s *Store) PersistMedia(ctx context.Context, media Media) error {
	if strings.TrimSpace(media.ID) == "" {
		return services.Wrap(services.ErrValidation, "acquire", "persist media", "media id required", nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithoutResultRetry(ctx,
		`INSERT INTO media (id, job_id, source_url, title, channel, duration_seconds, upload_date, metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     job_id = excluded.job_id,
		     source_url = excluded.source_url,
		     title = excluded.title,
		     channel = excluded.channel,
		     duration_seconds = excluded.duration_seconds,
		     upload_date = excluded.upload_date,
		     metadata_json = excluded.metadata_json`,
		media.ID, media.JobID, media.SourceURL,
		nullableString(media.Title), nullableString(media.Channel),
		media.DurationSeconds, nullableString(media.UploadDate),
		nullableString(media.MetadataJSON), now,
	)
}

// PersistSegments replaces the transcript segments for a media row and
// stamps indexed_at in the same transaction, so a search can never observe
// a partially indexed transcript.
func (s *Store) PersistSegments(ctx context.Context, mediaID string, segments []Segment) error {
	if strings.TrimSpace(mediaID) == "" {
		return services.Wrap(services.ErrValidation, "index", "persist segments", "media id required", nil)
	}
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin segments tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM segments WHERE media_id = ?`, mediaID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO segments (media_id, start_ms, end_ms, text) VALUES (?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare segment insert: %w", err)
		}
		defer stmt.Close()

		for _, segment := range segments {
			if strings.TrimSpace(segment.Text) == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, mediaID, segment.StartMS, segment.EndMS, segment.Text); err != nil {
				return fmt.Errorf("insert segment: %w", err)
			}
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := tx.ExecContext(ctx, `UPDATE media SET indexed_at = ? WHERE id = ?`, now, mediaID)
		if err != nil {
			return fmt.Errorf("stamp indexed_at: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return services.Wrap(services.ErrNotFound, "index", "persist segments",
				fmt.Sprintf("media %s not found", mediaID), nil)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit segments: %w", err)
		}
		return nil
	})
}

// GetMedia loads one media row.
func (s *Store) GetMedia(ctx context.Context, id string) (*Media, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_id, source_url, title, channel, duration_seconds, upload_date, metadata_json, indexed_at, created_at
		 FROM media WHERE id = ?`, id)

	var (
		media      Media
		jobID      sql.NullInt64
		title      sql.NullString
		channel    sql.NullString
		uploadDate sql.NullString
		metadata   sql.NullString
		indexedRaw sql.NullString
		createdRaw sql.NullString
	)
	err := row.Scan(&media.ID, &jobID, &media.SourceURL, &title, &channel,
		&media.DurationSeconds, &uploadDate, &metadata, &indexedRaw, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "get media", fmt.Sprintf("media %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load media %s: %w", id, err)
	}

	media.JobID = jobID.Int64
	media.Title = title.String
	media.Channel = channel.String
	media.UploadDate = uploadDate.String
	media.MetadataJSON = metadata.String
	if indexedRaw.Valid {
		if indexed, err := parseTimeString(indexedRaw.String); err == nil {
			media.IndexedAt = &indexed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		media.CreatedAt = created
	}
	return &media, nil
}

// SegmentCount returns how many segments a media row has.
func (s *Store) SegmentCount(ctx context.Context, mediaID string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM segments WHERE media_id = ?`, mediaID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}

// Search runs a full-text query over indexed transcripts. Hits come back
// best match first, ties broken by earlier start time, and only media
// stamped indexed_at participates.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "", "search", "query required", nil)
	}
	if limit <= 0 {
		limit = 20
	}
	ctx = ensureContext(ctx)

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.title, m.channel, m.source_url, seg.start_ms, seg.end_ms, seg.text,
		        bm25(segments_fts) AS rank
		 FROM segments_fts
		 JOIN segments seg ON seg.id = segments_fts.rowid
		 JOIN media m ON m.id = seg.media_id
		 WHERE segments_fts MATCH ? AND m.indexed_at IS NOT NULL
		 ORDER BY rank, seg.start_ms ASC
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search transcripts: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit     SearchHit
			title   sql.NullString
			channel sql.NullString
		)
		if err := rows.Scan(&hit.MediaID, &title, &channel, &hit.SourceURL,
			&hit.StartMS, &hit.EndMS, &hit.Text, &hit.Rank); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.Title = title.String
		hit.Channel = channel.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
