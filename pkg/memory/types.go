package memory

import (
	"fmt"
	"strings"
)

// ObservationType classifies what a stored observation records.
type ObservationType string

const (
	TypeCode        ObservationType = "code"
	TypeDecision    ObservationType = "decision"
	TypeContext     ObservationType = "context"
	TypeError       ObservationType = "error"
	TypeSummary     ObservationType = "summary"
	TypeExecution   ObservationType = "execution"
	TypeQualityGate ObservationType = "quality_gate"
)

func (t ObservationType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known observation types.
func (t ObservationType) Valid() bool {
	switch t {
	case TypeCode, TypeDecision, TypeContext, TypeError, TypeSummary, TypeExecution, TypeQualityGate:
		return true
	}
	return false
}

// ParseObservationType converts a string into an ObservationType.
func ParseObservationType(s string) (ObservationType, error) {
	t := ObservationType(strings.ToLower(s))
	if !t.Valid() {
		return "", fmt.Errorf("unknown observation type: %s", s)
	}
	return t, nil
}

// ExecutionType classifies tracked command executions.
type ExecutionType string

const (
	ExecutionTest  ExecutionType = "test"
	ExecutionLint  ExecutionType = "lint"
	ExecutionBuild ExecutionType = "build"
	ExecutionCI    ExecutionType = "ci"
)

// QualityGateStatus is the outcome of a quality gate run.
type QualityGateStatus string

const (
	GatePassed  QualityGateStatus = "passed"
	GateFailed  QualityGateStatus = "failed"
	GateWarning QualityGateStatus = "warning"
	GateSkipped QualityGateStatus = "skipped"
)

// ExecutionMetadata captures the result of a command execution attached to
// an execution observation.
type ExecutionMetadata struct {
	Command       string        `json:"command"`
	ExecutionType ExecutionType `json:"execution_type"`
	Success       bool          `json:"success"`
	ExitCode      int           `json:"exit_code,omitempty"`
	DurationMs    int64         `json:"duration_ms,omitempty"`
	Coverage      float64       `json:"coverage,omitempty"`
	FilesAffected []string      `json:"files_affected,omitempty"`
	OutputSummary string        `json:"output_summary,omitempty"`
	WarningsCount int           `json:"warnings_count,omitempty"`
	ErrorsCount   int           `json:"errors_count,omitempty"`
}

// QualityGateResult captures a quality gate outcome attached to a
// quality gate observation.
type QualityGateResult struct {
	GateName    string            `json:"gate_name"`
	Status      QualityGateStatus `json:"status"`
	Message     string            `json:"message,omitempty"`
	Timestamp   int64             `json:"timestamp"`
	ExecutionID string            `json:"execution_id,omitempty"`
}

// ObservationMetadata holds optional provenance attached to an observation
// at creation time. Empty string fields mean "not set".
type ObservationMetadata struct {
	SessionID   string             `json:"session_id,omitempty"`
	RepoID      string             `json:"repo_id,omitempty"`
	FilePath    string             `json:"file_path,omitempty"`
	Branch      string             `json:"branch,omitempty"`
	Commit      string             `json:"commit,omitempty"`
	Execution   *ExecutionMetadata `json:"execution,omitempty"`
	QualityGate *QualityGateResult `json:"quality_gate,omitempty"`
}

// Observation is an immutable stored memory unit. Rows are deduplicated on
// ContentHash; the first writer's ID and CreatedAt win.
type Observation struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"project_id"`
	Content     string              `json:"content"`
	ContentHash string              `json:"content_hash"`
	Tags        []string            `json:"tags"`
	Type        ObservationType     `json:"observation_type"`
	Metadata    ObservationMetadata `json:"metadata"`
	CreatedAt   int64               `json:"created_at"`
	EmbeddingID string              `json:"embedding_id,omitempty"`
}

// TimeRange is an inclusive [Start, End] range of unix seconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// FtsCandidate is one hit from lexical search. Rank is the 0-based position
// in relevance order.
type FtsCandidate struct {
	ID   string
	Rank int
}

// VectorCandidate is one hit from semantic search. The hit carries content,
// not an observation id; re-identification goes through ContentHash.
type VectorCandidate struct {
	Content string
	Rank    int
}

// SearchResult pairs an observation with its fused relevance.
// Score is the raw reciprocal rank fusion value; Relevance is the same
// value normalized into [0, 1] for display.
type SearchResult struct {
	Observation Observation `json:"observation"`
	Score       float64     `json:"score"`
	Relevance   float64     `json:"relevance"`
}

// SearchIndexEntry is a token-light projection of a search result for the
// search -> timeline -> details workflow.
type SearchIndexEntry struct {
	ID             string   `json:"id"`
	Type           string   `json:"observation_type"`
	RelevanceScore float64  `json:"relevance_score"`
	Tags           []string `json:"tags"`
	ContentPreview string   `json:"content_preview"`
	SessionID      string   `json:"session_id,omitempty"`
	RepoID         string   `json:"repo_id,omitempty"`
	FilePath       string   `json:"file_path,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}

// SessionSummary is a compiled high-level summary of one session.
type SessionSummary struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	SessionID string   `json:"session_id"`
	Topics    []string `json:"topics"`
	Decisions []string `json:"decisions"`
	NextSteps []string `json:"next_steps"`
	KeyFiles  []string `json:"key_files"`
	CreatedAt int64    `json:"created_at"`
}

// ErrorPatternCategory classifies recurring error patterns.
type ErrorPatternCategory string

const (
	CategoryCompilation ErrorPatternCategory = "compilation"
	CategoryRuntime     ErrorPatternCategory = "runtime"
	CategoryTest        ErrorPatternCategory = "test"
	CategoryLint        ErrorPatternCategory = "lint"
	CategoryBuild       ErrorPatternCategory = "build"
	CategoryConfig      ErrorPatternCategory = "config"
	CategoryNetwork     ErrorPatternCategory = "network"
	CategoryOther       ErrorPatternCategory = "other"
)

// ErrorPattern is a recurring error with known solutions, stored as an
// error observation and recovered on search.
type ErrorPattern struct {
	ID               string               `json:"id"`
	ProjectID        string               `json:"project_id"`
	PatternSignature string               `json:"pattern_signature"`
	Description      string               `json:"description"`
	Category         ErrorPatternCategory `json:"category"`
	Solutions        []string             `json:"solutions"`
	AffectedFiles    []string             `json:"affected_files,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
	OccurrenceCount  int64                `json:"occurrence_count"`
	FirstSeenAt      int64                `json:"first_seen_at"`
	LastSeenAt       int64                `json:"last_seen_at"`
}
