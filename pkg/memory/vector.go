package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// VectorIndex is the semantic search collaborator. Implementations store
// vectors under named collections and return nearest neighbors by content,
// not by observation id.
type VectorIndex interface {
	Insert(ctx context.Context, collection string, vector []float32, payload map[string]any) (string, error)
	SearchSimilar(ctx context.Context, collection string, vector []float32, limit int) ([]VectorCandidate, error)
	Remove(ctx context.Context, collection string, id string) error
}

// payloadContentKey is the payload field carrying the original text, used
// to re-identify hits against the repository.
const payloadContentKey = "content"

var collectionNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// SQLiteVectorIndex implements VectorIndex on sqlite-vec vec0 virtual
// tables with cosine distance. Each collection gets a vec0 table plus a
// payload sidecar table keyed by a generated vector id.
type SQLiteVectorIndex struct {
	db        *sql.DB
	dimension int
	logger    zerolog.Logger

	mu       sync.Mutex
	prepared map[string]bool
}

// NewSQLiteVectorIndex returns a vector index storing vectors of the given
// dimension in db.
func NewSQLiteVectorIndex(db *sql.DB, dimension int, logger zerolog.Logger) (*SQLiteVectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	return &SQLiteVectorIndex{
		db:        db,
		dimension: dimension,
		logger:    logger,
		prepared:  make(map[string]bool),
	}, nil
}

func (v *SQLiteVectorIndex) ensureCollection(collection string) error {
	if !collectionNameRe.MatchString(collection) {
		return fmt.Errorf("invalid collection name: %q", collection)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.prepared[collection] {
		return nil
	}

	schema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_%[1]s USING vec0(
			vector_id TEXT PRIMARY KEY,
			embedding float[%[2]d] distance_metric=cosine
		);
		CREATE TABLE IF NOT EXISTS vec_%[1]s_payloads (
			vector_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		);
	`, collection, v.dimension)
	if _, err := v.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create vector collection %s: %w", collection, err)
	}

	v.prepared[collection] = true
	return nil
}

// Insert stores a vector with its payload and returns the generated
// vector id.
func (v *SQLiteVectorIndex) Insert(ctx context.Context, collection string, vector []float32, payload map[string]any) (string, error) {
	if len(vector) != v.dimension {
		return "", fmt.Errorf("vector dimension mismatch: got %d, want %d", len(vector), v.dimension)
	}
	if err := v.ensureCollection(collection); err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate vector id: %w", err)
	}

	embeddingJSON, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO vec_%s (vector_id, embedding) VALUES (?, ?)", collection),
		id, string(embeddingJSON)); err != nil {
		return "", fmt.Errorf("failed to insert vector: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO vec_%s_payloads (vector_id, payload) VALUES (?, ?)", collection),
		id, string(payloadJSON)); err != nil {
		return "", fmt.Errorf("failed to insert vector payload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}

	return id, nil
}

// SearchSimilar returns the nearest neighbors of vector in cosine distance
// order. Rank is the 0-based position in that order.
func (v *SQLiteVectorIndex) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int) ([]VectorCandidate, error) {
	if err := v.ensureCollection(collection); err != nil {
		return nil, err
	}

	embeddingJSON, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query embedding: %w", err)
	}

	rows, err := v.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.payload, vec_distance_cosine(e.embedding, ?) AS distance
		FROM vec_%[1]s e
		JOIN vec_%[1]s_payloads p ON p.vector_id = e.vector_id
		ORDER BY distance ASC
		LIMIT ?
	`, collection), string(embeddingJSON), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []VectorCandidate
	for rows.Next() {
		var payloadJSON string
		var distance float64
		if err := rows.Scan(&payloadJSON, &distance); err != nil {
			return nil, err
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			v.logger.Warn().Err(err).Msg("Skipping vector hit with undecodable payload")
			continue
		}
		content, _ := payload[payloadContentKey].(string)
		candidates = append(candidates, VectorCandidate{Content: content, Rank: len(candidates)})
	}
	return candidates, rows.Err()
}

// Remove deletes a vector and its payload.
func (v *SQLiteVectorIndex) Remove(ctx context.Context, collection string, id string) error {
	if err := v.ensureCollection(collection); err != nil {
		return err
	}
	if _, err := v.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM vec_%s WHERE vector_id = ?", collection), id); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	if _, err := v.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM vec_%s_payloads WHERE vector_id = ?", collection), id); err != nil {
		return fmt.Errorf("failed to delete vector payload: %w", err)
	}
	return nil
}
