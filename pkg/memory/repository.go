package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Repository persists observations and serves exact lookups, ranked
// full-text search and timeline slicing. Errors are fatal to the calling
// operation and propagate as-is.
type Repository interface {
	Store(ctx context.Context, obs *Observation) error
	FindByHash(ctx context.Context, contentHash string) (*Observation, error)
	Get(ctx context.Context, id string) (*Observation, error)
	GetByIDs(ctx context.Context, ids []string) ([]Observation, error)
	SearchFTS(ctx context.Context, query string, limit int) ([]FtsCandidate, error)
	Timeline(ctx context.Context, anchorID string, before, after int, filter *MemoryFilter) ([]Observation, error)
	Delete(ctx context.Context, id string) error
	StoreSessionSummary(ctx context.Context, summary *SessionSummary) error
	GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	CountObservations(ctx context.Context) (int, error)
}

// OpenDatabase opens the backing SQLite database with WAL journaling. The
// returned handle is shared by the repository and the vector index. The
// schema needs FTS5, which mattn/go-sqlite3 compiles in only under the
// sqlite_fts5 build tag (see the Makefile).
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	return db, nil
}

// SQLiteRepository implements Repository on a SQLite database with an FTS5
// index over observation content. Deduplication is enforced by the UNIQUE
// constraint on content_hash plus upsert-on-conflict.
type SQLiteRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteRepository initializes the schema and returns a repository
// bound to db.
func NewSQLiteRepository(db *sql.DB, logger zerolog.Logger) (*SQLiteRepository, error) {
	r := &SQLiteRepository{db: db, logger: logger}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS observations (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			content TEXT NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			tags TEXT,
			observation_type TEXT,
			metadata TEXT,
			created_at INTEGER NOT NULL,
			embedding_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_obs_hash ON observations(content_hash);
		CREATE INDEX IF NOT EXISTS idx_obs_created ON observations(created_at);

		CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
			id UNINDEXED,
			content,
			tokenize='porter unicode61'
		);

		CREATE TRIGGER IF NOT EXISTS observations_fts_insert
		AFTER INSERT ON observations BEGIN
			INSERT INTO observations_fts (id, content) VALUES (new.id, new.content);
		END;

		CREATE TRIGGER IF NOT EXISTS observations_fts_delete
		AFTER DELETE ON observations BEGIN
			DELETE FROM observations_fts WHERE id = old.id;
		END;

		CREATE TABLE IF NOT EXISTS session_summaries (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			topics TEXT,
			decisions TEXT,
			next_steps TEXT,
			key_files TEXT,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_summary_session ON session_summaries(session_id);
	`
	_, err := r.db.Exec(schema)
	return err
}

// Store persists an observation. A row with the same content hash already
// present absorbs the write: tags and metadata are refreshed, id and
// created_at stay with the original row. The FTS insert trigger only fires
// for genuinely new rows, so duplicates are never double-indexed.
func (r *SQLiteRepository) Store(ctx context.Context, obs *Observation) error {
	tagsJSON, err := json.Marshal(obs.Tags)
	if err != nil {
		return fmt.Errorf("failed to serialize tags: %w", err)
	}
	metadataJSON, err := json.Marshal(obs.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	var embeddingID any
	if obs.EmbeddingID != "" {
		embeddingID = obs.EmbeddingID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO observations (id, project_id, content, content_hash, tags, observation_type, metadata, created_at, embedding_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			tags = excluded.tags,
			metadata = excluded.metadata
	`, obs.ID, obs.ProjectID, obs.Content, obs.ContentHash, string(tagsJSON),
		string(obs.Type), string(metadataJSON), obs.CreatedAt, embeddingID)
	if err != nil {
		return fmt.Errorf("failed to store observation: %w", err)
	}

	r.logger.Debug().Str("id", obs.ID).Msg("Stored observation")
	return nil
}

const observationColumns = "id, project_id, content, content_hash, tags, observation_type, metadata, created_at, embedding_id"

func scanObservation(row interface{ Scan(...any) error }) (*Observation, error) {
	var obs Observation
	var tagsJSON, metadataJSON sql.NullString
	var embeddingID sql.NullString
	var obsType sql.NullString

	err := row.Scan(&obs.ID, &obs.ProjectID, &obs.Content, &obs.ContentHash,
		&tagsJSON, &obsType, &metadataJSON, &obs.CreatedAt, &embeddingID)
	if err != nil {
		return nil, err
	}

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &obs.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &obs.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	obs.Type = ObservationType(obsType.String)
	obs.EmbeddingID = embeddingID.String
	return &obs, nil
}

func (r *SQLiteRepository) queryOne(ctx context.Context, where string, arg any) (*Observation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+observationColumns+" FROM observations WHERE "+where, arg)
	obs, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// FindByHash returns the observation with the given content hash, or nil.
func (r *SQLiteRepository) FindByHash(ctx context.Context, contentHash string) (*Observation, error) {
	return r.queryOne(ctx, "content_hash = ?", contentHash)
}

// Get returns the observation with the given id, or nil.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Observation, error) {
	return r.queryOne(ctx, "id = ?", id)
}

// GetByIDs fetches all matching observations in a single query. Missing
// ids are skipped; order follows the database, not the input.
func (r *SQLiteRepository) GetByIDs(ctx context.Context, ids []string) ([]Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+observationColumns+" FROM observations WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// SearchFTS runs a ranked lexical search. The candidate rank is the 0-based
// position in BM25 relevance order, stable for a fixed query and corpus.
func (r *SQLiteRepository) SearchFTS(ctx context.Context, query string, limit int) ([]FtsCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM observations_fts
		WHERE observations_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []FtsCandidate
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		candidates = append(candidates, FtsCandidate{ID: id, Rank: len(candidates)})
	}
	return candidates, rows.Err()
}

// timelineWhere builds the shared WHERE clause for the two timeline legs,
// pushing every filter constraint down into SQL so each leg fills its limit
// with matching rows only.
func timelineWhere(filter *MemoryFilter) (string, []any) {
	sqlText := "1=1"
	var args []any
	if filter == nil {
		return sqlText, args
	}
	if filter.SessionID != "" {
		sqlText += " AND json_extract(metadata, '$.session_id') = ?"
		args = append(args, filter.SessionID)
	}
	if filter.RepoID != "" {
		sqlText += " AND json_extract(metadata, '$.repo_id') = ?"
		args = append(args, filter.RepoID)
	}
	if filter.Branch != "" {
		sqlText += " AND json_extract(metadata, '$.branch') = ?"
		args = append(args, filter.Branch)
	}
	if filter.Commit != "" {
		sqlText += " AND json_extract(metadata, '$.commit') = ?"
		args = append(args, filter.Commit)
	}
	if filter.Type != "" {
		sqlText += " AND observation_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.TimeRange != nil {
		sqlText += " AND created_at >= ? AND created_at <= ?"
		args = append(args, filter.TimeRange.Start, filter.TimeRange.End)
	}
	for _, tag := range filter.Tags {
		sqlText += " AND EXISTS (SELECT 1 FROM json_each(observations.tags) WHERE json_each.value = ?)"
		args = append(args, tag)
	}
	return sqlText, args
}

// Timeline returns up to `before` observations preceding the anchor, the
// anchor itself, and up to `after` following it, in ascending chronological
// order. A missing anchor yields an empty slice.
func (r *SQLiteRepository) Timeline(ctx context.Context, anchorID string, before, after int, filter *MemoryFilter) ([]Observation, error) {
	anchor, err := r.Get(ctx, anchorID)
	if err != nil {
		return nil, err
	}
	if anchor == nil {
		return nil, nil
	}

	// SQLite treats LIMIT -1 as unlimited; negative legs mean "none".
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}

	where, baseArgs := timelineWhere(filter)
	base := "SELECT " + observationColumns + " FROM observations WHERE " + where

	beforeRows, err := r.queryRange(ctx,
		base+" AND created_at < ? ORDER BY created_at DESC LIMIT ?",
		append(append([]any{}, baseArgs...), anchor.CreatedAt, before))
	if err != nil {
		return nil, err
	}
	afterRows, err := r.queryRange(ctx,
		base+" AND created_at > ? ORDER BY created_at ASC LIMIT ?",
		append(append([]any{}, baseArgs...), anchor.CreatedAt, after))
	if err != nil {
		return nil, err
	}

	timeline := make([]Observation, 0, len(beforeRows)+1+len(afterRows))
	// Before-leg comes back nearest-first; reverse into chronological order.
	for i := len(beforeRows) - 1; i >= 0; i-- {
		timeline = append(timeline, beforeRows[i])
	}
	timeline = append(timeline, *anchor)
	timeline = append(timeline, afterRows...)
	return timeline, nil
}

func (r *SQLiteRepository) queryRange(ctx context.Context, query string, args []any) ([]Observation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}
	return observations, rows.Err()
}

// Delete hard-removes an observation. The FTS delete trigger keeps the
// lexical index consistent.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM observations WHERE id = ?", id)
	return err
}

// StoreSessionSummary upserts a session summary by id.
func (r *SQLiteRepository) StoreSessionSummary(ctx context.Context, summary *SessionSummary) error {
	topicsJSON, err := json.Marshal(summary.Topics)
	if err != nil {
		return fmt.Errorf("failed to serialize topics: %w", err)
	}
	decisionsJSON, err := json.Marshal(summary.Decisions)
	if err != nil {
		return fmt.Errorf("failed to serialize decisions: %w", err)
	}
	nextStepsJSON, err := json.Marshal(summary.NextSteps)
	if err != nil {
		return fmt.Errorf("failed to serialize next steps: %w", err)
	}
	keyFilesJSON, err := json.Marshal(summary.KeyFiles)
	if err != nil {
		return fmt.Errorf("failed to serialize key files: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO session_summaries (id, project_id, session_id, topics, decisions, next_steps, key_files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topics = excluded.topics,
			decisions = excluded.decisions,
			next_steps = excluded.next_steps,
			key_files = excluded.key_files
	`, summary.ID, summary.ProjectID, summary.SessionID, string(topicsJSON),
		string(decisionsJSON), string(nextStepsJSON), string(keyFilesJSON), summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store session summary: %w", err)
	}
	return nil
}

// GetSessionSummary returns the latest summary for a session, or nil.
func (r *SQLiteRepository) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, session_id, topics, decisions, next_steps, key_files, created_at
		FROM session_summaries
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, sessionID)

	var summary SessionSummary
	var topicsJSON, decisionsJSON, nextStepsJSON, keyFilesJSON sql.NullString
	err := row.Scan(&summary.ID, &summary.ProjectID, &summary.SessionID,
		&topicsJSON, &decisionsJSON, &nextStepsJSON, &keyFilesJSON, &summary.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, col := range []struct {
		raw  sql.NullString
		dest *[]string
	}{
		{topicsJSON, &summary.Topics},
		{decisionsJSON, &summary.Decisions},
		{nextStepsJSON, &summary.NextSteps},
		{keyFilesJSON, &summary.KeyFiles},
	} {
		if col.raw.Valid && col.raw.String != "" {
			if err := json.Unmarshal([]byte(col.raw.String), col.dest); err != nil {
				return nil, fmt.Errorf("failed to decode session summary: %w", err)
			}
		}
	}
	return &summary, nil
}

// CountObservations returns the number of stored observations.
func (r *SQLiteRepository) CountObservations(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&count)
	return count, err
}
