// Package store implements the durable record store on SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/voicebrief/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS summaries (
	id                TEXT PRIMARY KEY,
	user_id           INTEGER NOT NULL,
	chat_id           INTEGER NOT NULL,
	source_message_id INTEGER NOT NULL,
	artifact_id       TEXT NOT NULL,
	audio_file_id     TEXT NOT NULL,
	mime_type         TEXT NOT NULL,
	duration_ms       INTEGER NOT NULL,
	size_bytes        INTEGER NOT NULL,
	uploaded_at       INTEGER NOT NULL,
	mode              TEXT NOT NULL,
	summary_text      TEXT NOT NULL,
	transcript_text   TEXT NOT NULL DEFAULT '',
	created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_owner_created
	ON summaries (user_id, chat_id, created_at DESC, id DESC);
`

// Store is a SQLite-backed types.RecordStore. Records are append-only;
// there is no update path by design.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path with WAL enabled and
// applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append inserts a record, assigning an ID and created_at when unset.
func (s *Store) Append(ctx context.Context, rec *types.SummaryRecord) (types.RecordID, error) {
	if rec.ID == "" {
		rec.ID = types.NewRecordID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (
			id, user_id, chat_id, source_message_id,
			artifact_id, audio_file_id, mime_type, duration_ms, size_bytes, uploaded_at,
			mode, summary_text, transcript_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.ID), rec.Owner.UserID, rec.Owner.ChatID, rec.SourceMessageID,
		string(rec.Artifact.ID), rec.Artifact.FileID, rec.Artifact.MimeType,
		rec.Artifact.Duration.Milliseconds(), rec.Artifact.Size, rec.Artifact.UploadedAt.UnixMilli(),
		string(rec.Mode), rec.Summary, rec.Transcript, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert summary: %w", err)
	}
	return rec.ID, nil
}

const selectColumns = `
	id, user_id, chat_id, source_message_id,
	artifact_id, audio_file_id, mime_type, duration_ms, size_bytes, uploaded_at,
	mode, summary_text, transcript_text, created_at`

func scanRecord(row interface{ Scan(...any) error }) (*types.SummaryRecord, error) {
	var rec types.SummaryRecord
	var id, artifactID, mode string
	var durationMS, uploadedAt, createdAt int64
	if err := row.Scan(
		&id, &rec.Owner.UserID, &rec.Owner.ChatID, &rec.SourceMessageID,
		&artifactID, &rec.Artifact.FileID, &rec.Artifact.MimeType,
		&durationMS, &rec.Artifact.Size, &uploadedAt,
		&mode, &rec.Summary, &rec.Transcript, &createdAt,
	); err != nil {
		return nil, err
	}
	rec.ID = types.RecordID(id)
	rec.Artifact.ID = types.ArtifactID(artifactID)
	rec.Artifact.Owner = rec.Owner
	rec.Artifact.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Artifact.UploadedAt = time.UnixMilli(uploadedAt)
	rec.Mode = types.Mode(mode)
	rec.CreatedAt = time.UnixMilli(createdAt)
	return &rec, nil
}

// GetByID returns a single record, or types.ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id types.RecordID) (*types.SummaryRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM summaries WHERE id = ?`, string(id))
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan summary: %w", err)
	}
	return rec, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]*types.SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var records []*types.SummaryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListNewest returns up to limit records for the owner, newest first.
func (s *Store) ListNewest(ctx context.Context, owner types.OwnerKey, limit int) ([]*types.SummaryRecord, error) {
	return s.queryRecords(ctx, `
		SELECT `+selectColumns+`
		FROM summaries
		WHERE user_id = ? AND chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		owner.UserID, owner.ChatID, limit)
}

// ListBefore returns records strictly older than the (createdAt, id)
// keyset position, newest first.
func (s *Store) ListBefore(ctx context.Context, owner types.OwnerKey, createdAt time.Time, id types.RecordID, limit int) ([]*types.SummaryRecord, error) {
	ts := createdAt.UnixMilli()
	return s.queryRecords(ctx, `
		SELECT `+selectColumns+`
		FROM summaries
		WHERE user_id = ? AND chat_id = ?
		  AND (created_at < ? OR (created_at = ? AND id < ?))
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		owner.UserID, owner.ChatID, ts, ts, string(id), limit)
}

// ListAfter returns records strictly newer than the keyset position,
// oldest first so the caller can walk toward the present.
func (s *Store) ListAfter(ctx context.Context, owner types.OwnerKey, createdAt time.Time, id types.RecordID, limit int) ([]*types.SummaryRecord, error) {
	ts := createdAt.UnixMilli()
	return s.queryRecords(ctx, `
		SELECT `+selectColumns+`
		FROM summaries
		WHERE user_id = ? AND chat_id = ?
		  AND (created_at > ? OR (created_at = ? AND id > ?))
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		owner.UserID, owner.ChatID, ts, ts, string(id), limit)
}

// Count returns the number of records for the owner.
func (s *Store) Count(ctx context.Context, owner types.OwnerKey) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM summaries WHERE user_id = ? AND chat_id = ?`,
		owner.UserID, owner.ChatID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count summaries: %w", err)
	}
	return n, nil
}
