package memory

import (
	"fmt"
	"slices"
)

// MemoryFilter is a predicate over observations. Every set field is an
// equality constraint (range containment for TimeRange, subset containment
// for Tags); all set fields are ANDed; an unset field imposes nothing.
type MemoryFilter struct {
	SessionID string          `json:"session_id,omitempty"`
	RepoID    string          `json:"repo_id,omitempty"`
	Branch    string          `json:"branch,omitempty"`
	Commit    string          `json:"commit,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	Type      ObservationType `json:"observation_type,omitempty"`
	TimeRange *TimeRange      `json:"time_range,omitempty"`
}

// Validate rejects malformed filters before any I/O is issued.
func (f *MemoryFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("%w: unknown observation type %q", ErrInvalidFilter, f.Type)
	}
	if f.TimeRange != nil && f.TimeRange.Start > f.TimeRange.End {
		return fmt.Errorf("%w: time range start %d after end %d",
			ErrInvalidFilter, f.TimeRange.Start, f.TimeRange.End)
	}
	return nil
}

// Matches reports whether the observation satisfies every set constraint.
// A nil filter matches everything.
func (f *MemoryFilter) Matches(obs *Observation) bool {
	if f == nil {
		return true
	}
	if f.SessionID != "" && obs.Metadata.SessionID != f.SessionID {
		return false
	}
	if f.RepoID != "" && obs.Metadata.RepoID != f.RepoID {
		return false
	}
	if f.Branch != "" && obs.Metadata.Branch != f.Branch {
		return false
	}
	if f.Commit != "" && obs.Metadata.Commit != f.Commit {
		return false
	}
	if f.Type != "" && obs.Type != f.Type {
		return false
	}
	if f.TimeRange != nil && (obs.CreatedAt < f.TimeRange.Start || obs.CreatedAt > f.TimeRange.End) {
		return false
	}
	for _, tag := range f.Tags {
		if !slices.Contains(obs.Tags, tag) {
			return false
		}
	}
	return true
}
