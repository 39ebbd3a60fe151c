package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mnemo/internal/observability"
)

// Collection is the logical vector collection holding observation
// embeddings.
const Collection = "memories"

// previewLength bounds content previews in search index entries.
const previewLength = 200

// defaultSearchLimit applies when a caller passes a non-positive limit.
const defaultSearchLimit = 10

// Service orchestrates hybrid storage and retrieval: content-hash
// deduplication on store, concurrent FTS + vector fetch fused via
// reciprocal rank fusion on search. All collaborators are injected.
type Service struct {
	projectID string
	repo      Repository
	embedder  EmbeddingProvider
	vectors   VectorIndex
	fusion    *FusionEngine
	logger    zerolog.Logger
}

// ServiceConfig holds the collaborators for a Service.
type ServiceConfig struct {
	ProjectID   string
	Repository  Repository
	Embedding   EmbeddingProvider
	VectorIndex VectorIndex
	Logger      zerolog.Logger
}

// NewService creates a memory service from injected collaborators.
func NewService(cfg ServiceConfig) (*Service, error) {
	observability.EnsureRegistered()

	if cfg.ProjectID == "" {
		return nil, errors.New("project id is required")
	}
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Embedding == nil {
		return nil, errors.New("embedding provider is required")
	}
	if cfg.VectorIndex == nil {
		return nil, errors.New("vector index is required")
	}

	return &Service{
		projectID: cfg.ProjectID,
		repo:      cfg.Repository,
		embedder:  cfg.Embedding,
		vectors:   cfg.VectorIndex,
		fusion:    NewFusionEngine(cfg.Repository),
		logger:    cfg.Logger,
	}, nil
}

// StoreObservationInput carries the caller-provided fields of a new
// observation. Provenance (session, repo, branch, commit) is supplied by
// the caller; the service never captures it itself.
type StoreObservationInput struct {
	Content  string
	Type     ObservationType
	Tags     []string
	Metadata ObservationMetadata
}

// StoreObservation persists content once. The dedup check runs before
// embedding generation so duplicate input never pays for the most
// expensive step. Returns the canonical observation id and whether the
// content was already stored.
func (s *Service) StoreObservation(ctx context.Context, input StoreObservationInput) (string, bool, error) {
	start := time.Now()

	if input.Content == "" {
		return "", false, errors.New("content is required")
	}
	if !input.Type.Valid() {
		return "", false, fmt.Errorf("unknown observation type: %s", input.Type)
	}

	contentHash := ContentHash(input.Content)

	existing, err := s.repo.FindByHash(ctx, contentHash)
	if err != nil {
		return "", false, &RepositoryError{Op: "dedup check", Err: err}
	}
	if existing != nil {
		observability.RecordMemoryStore(time.Since(start), true)
		s.logger.Debug().Str("id", existing.ID).Msg("Deduplicated observation")
		return existing.ID, true, nil
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, input.Content)
	if err != nil {
		return "", false, &EmbeddingError{Op: "store", Err: err}
	}

	payload := map[string]any{
		payloadContentKey: input.Content,
		"observation_type": string(input.Type),
		"tags":             input.Tags,
		"project_id":       s.projectID,
	}
	if input.Metadata.SessionID != "" {
		payload["session_id"] = input.Metadata.SessionID
	}

	embeddingID, err := s.vectors.Insert(ctx, Collection, embedding, payload)
	if err != nil {
		return "", false, &VectorIndexError{Op: "store", Err: err}
	}

	obs := &Observation{
		ID:          uuid.NewString(),
		ProjectID:   s.projectID,
		Content:     input.Content,
		ContentHash: contentHash,
		Tags:        input.Tags,
		Type:        input.Type,
		Metadata:    input.Metadata,
		CreatedAt:   time.Now().Unix(),
		EmbeddingID: embeddingID,
	}

	if err := s.repo.Store(ctx, obs); err != nil {
		// All-or-nothing: drop the vector we just inserted so a failed
		// store leaves no orphaned index entry.
		if rmErr := s.vectors.Remove(ctx, Collection, embeddingID); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("vector_id", embeddingID).
				Msg("Failed to roll back vector after store failure")
		}
		return "", false, &RepositoryError{Op: "store", Err: err}
	}

	// Two stores of identical content can race past the dedup check; the
	// unique constraint on content_hash absorbs the loser into the
	// existing row. Re-read by hash so the id we hand back is the one
	// that actually lives in the repository.
	stored, err := s.repo.FindByHash(ctx, contentHash)
	if err != nil {
		return "", false, &RepositoryError{Op: "post-store lookup", Err: err}
	}
	if stored != nil && stored.ID != obs.ID {
		if rmErr := s.vectors.Remove(ctx, Collection, embeddingID); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("vector_id", embeddingID).
				Msg("Failed to remove vector for absorbed duplicate")
		}
		observability.RecordMemoryStore(time.Since(start), true)
		return stored.ID, true, nil
	}

	observability.RecordMemoryStore(time.Since(start), false)
	s.updateObservationGauge(ctx)
	s.logger.Debug().Str("id", obs.ID).Str("type", string(obs.Type)).Msg("Stored observation")
	return obs.ID, false, nil
}

// updateObservationGauge refreshes the observation count metric;
// best-effort.
func (s *Service) updateObservationGauge(ctx context.Context) {
	total, err := s.repo.CountObservations(ctx)
	if err != nil {
		return
	}
	observability.SetObservations(total)
}

// SearchMemories runs the hybrid search: embed the query, fetch lexical
// and semantic candidates concurrently, fuse, filter, truncate. An
// embedding or FTS failure is fatal; a vector index failure degrades to
// FTS-only scoring.
func (s *Service) SearchMemories(ctx context.Context, query string, filter *MemoryFilter, limit int) ([]SearchResult, error) {
	start := time.Now()

	if query == "" {
		return []SearchResult{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	candidateLimit := limit * hybridSearchMultiplier

	queryEmbedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, &EmbeddingError{Op: "search", Err: err}
	}

	var (
		ftsResults    []FtsCandidate
		vectorResults []VectorCandidate
		ftsErr        error
		vectorErr     error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ftsResults, ftsErr = s.repo.SearchFTS(ctx, query, candidateLimit)
	}()
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = s.vectors.SearchSimilar(ctx, Collection, queryEmbedding, candidateLimit)
	}()
	wg.Wait()

	if ftsErr != nil {
		return nil, &RepositoryError{Op: "fts search", Err: ftsErr}
	}

	mode := "hybrid"
	if vectorErr != nil {
		s.logger.Warn().Err(vectorErr).Msg("Vector search failed, falling back to FTS-only results")
		vectorResults = nil
		mode = "fts_only"
	}

	scores, err := s.fusion.Fuse(ctx, ftsResults, vectorResults)
	if err != nil {
		return nil, &RepositoryError{Op: "fusion", Err: err}
	}

	results, err := s.rankAndFilter(ctx, scores, filter, limit)
	if err != nil {
		return nil, err
	}

	observability.RecordMemorySearch(time.Since(start), mode)
	s.logger.Debug().Str("query", query).Int("results", len(results)).Msg("Search completed")
	return results, nil
}

// rankAndFilter resolves fused ids to observations, applies the filter to
// every fused candidate before any truncation, then sorts by score
// descending (ties by ascending id) and cuts to limit.
func (s *Service) rankAndFilter(ctx context.Context, scores map[string]float64, filter *MemoryFilter, limit int) ([]SearchResult, error) {
	if len(scores) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	observations, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, &RepositoryError{Op: "resolve fused ids", Err: err}
	}

	results := make([]SearchResult, 0, len(observations))
	for _, obs := range observations {
		if !filter.Matches(&obs) {
			continue
		}
		score := scores[obs.ID]
		results = append(results, SearchResult{
			Observation: obs,
			Score:       score,
			Relevance:   normalizeRRF(score),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Observation.ID < results[j].Observation.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// MemorySearch returns token-light index entries for the
// search -> timeline -> details workflow.
func (s *Service) MemorySearch(ctx context.Context, query string, filter *MemoryFilter, limit int) ([]SearchIndexEntry, error) {
	results, err := s.SearchMemories(ctx, query, filter, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]SearchIndexEntry, 0, len(results))
	for _, r := range results {
		preview := r.Observation.Content
		if runes := []rune(preview); len(runes) > previewLength {
			preview = string(runes[:previewLength]) + "..."
		}
		entries = append(entries, SearchIndexEntry{
			ID:             r.Observation.ID,
			Type:           string(r.Observation.Type),
			RelevanceScore: r.Relevance,
			Tags:           r.Observation.Tags,
			ContentPreview: preview,
			SessionID:      r.Observation.Metadata.SessionID,
			RepoID:         r.Observation.Metadata.RepoID,
			FilePath:       r.Observation.Metadata.FilePath,
			CreatedAt:      r.Observation.CreatedAt,
		})
	}
	return entries, nil
}

// GetTimeline returns up to `before` observations preceding the anchor,
// the anchor, and up to `after` following it, each leg filtered
// independently, in ascending chronological order.
func (s *Service) GetTimeline(ctx context.Context, anchorID string, before, after int, filter *MemoryFilter) ([]Observation, error) {
	start := time.Now()

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	anchor, err := s.repo.Get(ctx, anchorID)
	if err != nil {
		return nil, &RepositoryError{Op: "timeline anchor lookup", Err: err}
	}
	if anchor == nil {
		return nil, fmt.Errorf("timeline anchor %s: %w", anchorID, ErrNotFound)
	}

	timeline, err := s.repo.Timeline(ctx, anchorID, before, after, filter)
	if err != nil {
		return nil, &RepositoryError{Op: "timeline", Err: err}
	}

	observability.RecordTimeline(time.Since(start))
	return timeline, nil
}

// GetObservation returns a single observation or ErrNotFound.
func (s *Service) GetObservation(ctx context.Context, id string) (*Observation, error) {
	obs, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, &RepositoryError{Op: "get", Err: err}
	}
	if obs == nil {
		return nil, fmt.Errorf("observation %s: %w", id, ErrNotFound)
	}
	return obs, nil
}

// GetObservationsByIDs batch-fetches observations; missing ids are skipped.
func (s *Service) GetObservationsByIDs(ctx context.Context, ids []string) ([]Observation, error) {
	observations, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, &RepositoryError{Op: "batch get", Err: err}
	}
	return observations, nil
}

// DeleteObservation hard-removes an observation and, when it carries an
// embedding reference, its vector index entry.
func (s *Service) DeleteObservation(ctx context.Context, id string) error {
	obs, err := s.repo.Get(ctx, id)
	if err != nil {
		return &RepositoryError{Op: "delete lookup", Err: err}
	}
	if obs == nil {
		return fmt.Errorf("observation %s: %w", id, ErrNotFound)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return &RepositoryError{Op: "delete", Err: err}
	}

	if obs.EmbeddingID != "" {
		if err := s.vectors.Remove(ctx, Collection, obs.EmbeddingID); err != nil {
			s.logger.Warn().Err(err).Str("vector_id", obs.EmbeddingID).
				Msg("Failed to remove vector for deleted observation")
		}
	}

	s.updateObservationGauge(ctx)
	return nil
}

// EmbedContent exposes the embedding provider for callers that need raw
// vectors.
func (s *Service) EmbedContent(ctx context.Context, content string) ([]float32, error) {
	embedding, err := s.embedder.GenerateEmbedding(ctx, content)
	if err != nil {
		return nil, &EmbeddingError{Op: "embed", Err: err}
	}
	return embedding, nil
}

// StoreErrorPattern stores a recurring error pattern as an error
// observation so it participates in hybrid search.
func (s *Service) StoreErrorPattern(ctx context.Context, pattern ErrorPattern) (string, error) {
	content, err := json.Marshal(pattern)
	if err != nil {
		return "", fmt.Errorf("failed to serialize error pattern: %w", err)
	}

	id, _, err := s.StoreObservation(ctx, StoreObservationInput{
		Content: string(content),
		Type:    TypeError,
		Tags:    pattern.Tags,
	})
	return id, err
}

// SearchErrorPatterns searches stored error patterns. Hits that do not
// decode as patterns are skipped.
func (s *Service) SearchErrorPatterns(ctx context.Context, query string, limit int) ([]ErrorPattern, error) {
	results, err := s.SearchMemories(ctx, query, &MemoryFilter{Type: TypeError}, limit)
	if err != nil {
		return nil, err
	}

	patterns := make([]ErrorPattern, 0, len(results))
	for _, r := range results {
		var pattern ErrorPattern
		if err := json.Unmarshal([]byte(r.Observation.Content), &pattern); err != nil {
			continue
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

// CreateSessionSummaryInput carries the fields of a new session summary.
type CreateSessionSummaryInput struct {
	SessionID string
	Topics    []string
	Decisions []string
	NextSteps []string
	KeyFiles  []string
}

// CreateSessionSummary persists a high-level summary of one session and
// returns its id.
func (s *Service) CreateSessionSummary(ctx context.Context, input CreateSessionSummaryInput) (string, error) {
	if input.SessionID == "" {
		return "", errors.New("session id is required")
	}

	summary := &SessionSummary{
		ID:        uuid.NewString(),
		ProjectID: s.projectID,
		SessionID: input.SessionID,
		Topics:    input.Topics,
		Decisions: input.Decisions,
		NextSteps: input.NextSteps,
		KeyFiles:  input.KeyFiles,
		CreatedAt: time.Now().Unix(),
	}

	if err := s.repo.StoreSessionSummary(ctx, summary); err != nil {
		return "", &RepositoryError{Op: "store session summary", Err: err}
	}
	return summary.ID, nil
}

// GetSessionSummary returns the latest summary for a session, or nil.
func (s *Service) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	summary, err := s.repo.GetSessionSummary(ctx, sessionID)
	if err != nil {
		return nil, &RepositoryError{Op: "get session summary", Err: err}
	}
	return summary, nil
}
