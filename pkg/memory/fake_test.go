package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// fakeRepository is an in-memory Repository for service-level tests. FTS is
// simulated by a canned candidate list set per test.
type fakeRepository struct {
	mu           sync.Mutex
	observations map[string]*Observation
	byHash       map[string]string
	summaries    map[string]*SessionSummary

	ftsCandidates []FtsCandidate
	ftsErr        error
	storeErr      error

	lastFTSLimit int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		observations: make(map[string]*Observation),
		byHash:       make(map[string]string),
		summaries:    make(map[string]*SessionSummary),
	}
}

func (f *fakeRepository) Store(ctx context.Context, obs *Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	if existingID, ok := f.byHash[obs.ContentHash]; ok {
		// Conflict on content hash absorbs the write into the original row.
		existing := f.observations[existingID]
		existing.Tags = obs.Tags
		existing.Metadata = obs.Metadata
		return nil
	}
	clone := *obs
	f.observations[obs.ID] = &clone
	f.byHash[obs.ContentHash] = obs.ID
	return nil
}

func (f *fakeRepository) FindByHash(ctx context.Context, contentHash string) (*Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byHash[contentHash]
	if !ok {
		return nil, nil
	}
	clone := *f.observations[id]
	return &clone, nil
}

func (f *fakeRepository) Get(ctx context.Context, id string) (*Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obs, ok := f.observations[id]
	if !ok {
		return nil, nil
	}
	clone := *obs
	return &clone, nil
}

func (f *fakeRepository) GetByIDs(ctx context.Context, ids []string) ([]Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Observation
	for _, id := range ids {
		if obs, ok := f.observations[id]; ok {
			out = append(out, *obs)
		}
	}
	return out, nil
}

func (f *fakeRepository) SearchFTS(ctx context.Context, query string, limit int) ([]FtsCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFTSLimit = limit
	if f.ftsErr != nil {
		return nil, f.ftsErr
	}
	if len(f.ftsCandidates) > limit {
		return f.ftsCandidates[:limit], nil
	}
	return f.ftsCandidates, nil
}

func (f *fakeRepository) Timeline(ctx context.Context, anchorID string, before, after int, filter *MemoryFilter) ([]Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	anchor, ok := f.observations[anchorID]
	if !ok {
		return nil, nil
	}

	var all []Observation
	for _, obs := range f.observations {
		if filter.Matches(obs) || obs.ID == anchorID {
			all = append(all, *obs)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt < all[j].CreatedAt })

	anchorIdx := -1
	for i, obs := range all {
		if obs.ID == anchor.ID {
			anchorIdx = i
			break
		}
	}
	start := anchorIdx - before
	if start < 0 {
		start = 0
	}
	end := anchorIdx + after + 1
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeRepository) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obs, ok := f.observations[id]; ok {
		delete(f.byHash, obs.ContentHash)
		delete(f.observations, id)
	}
	return nil
}

func (f *fakeRepository) StoreSessionSummary(ctx context.Context, summary *SessionSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *summary
	f.summaries[summary.SessionID] = &clone
	return nil
}

func (f *fakeRepository) GetSessionSummary(ctx context.Context, sessionID string) (*SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary, ok := f.summaries[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *summary
	return &clone, nil
}

func (f *fakeRepository) CountObservations(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observations), nil
}

// fakeVectorIndex is an in-memory VectorIndex with canned search results.
type fakeVectorIndex struct {
	mu      sync.Mutex
	stored  map[string]string // vector id -> content
	nextID  int
	removed []string

	searchResults []VectorCandidate
	searchErr     error
	insertErr     error

	lastSearchLimit int
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{stored: make(map[string]string)}
}

func (f *fakeVectorIndex) Insert(ctx context.Context, collection string, vector []float32, payload map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.nextID++
	id := "vec-" + strconv.Itoa(f.nextID)
	content, _ := payload[payloadContentKey].(string)
	f.stored[id] = content
	return id, nil
}

func (f *fakeVectorIndex) SearchSimilar(ctx context.Context, collection string, vector []float32, limit int) ([]VectorCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSearchLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.searchResults) > limit {
		return f.searchResults[:limit], nil
	}
	return f.searchResults, nil
}

func (f *fakeVectorIndex) Remove(ctx context.Context, collection string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, id)
	f.removed = append(f.removed, id)
	return nil
}
