package ports

import (
	"context"
	"io"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// ArtifactStore stores raw artifact bytes.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ArtifactRepository persists artifact metadata.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByID(ctx context.Context, id string) (*domain.Artifact, error)
}

// JobRepository persists pipeline jobs and their append-only stage
// transition history.
type JobRepository interface {
	// CreateExclusive inserts a pending job unless the artifact already
	// has a pending or running one, in which case it returns
	// domain.ErrDuplicateJob.
	CreateExclusive(ctx context.Context, job *domain.PipelineJob) error
	GetByID(ctx context.Context, id string) (*domain.PipelineJob, error)
	GetLatestByArtifact(ctx context.Context, artifactID string) (*domain.PipelineJob, error)
	// Advance moves the job to a later stage, sets status running, and
	// appends a transition row in the same transaction.
	Advance(ctx context.Context, jobID string, to domain.JobStage, detail string) error
	Complete(ctx context.Context, jobID string, degraded bool) error
	Fail(ctx context.Context, jobID string, at domain.JobStage, errMessage string) error
	ListTransitions(ctx context.Context, jobID string) ([]domain.StageTransition, error)
}

// WarrantyRepository persists versioned canonical records, parsed-field
// audit rows, and generated summaries.
type WarrantyRepository interface {
	SaveVersion(ctx context.Context, record *domain.WarrantyRecord) error
	GetLatest(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error)
	GetMostConfident(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error)
	SaveParsedFields(ctx context.Context, jobID, warrantyID string, candidates map[string]domain.FieldCandidate, rawText string) error
	GetParsedFields(ctx context.Context, warrantyID string) (map[string]domain.FieldCandidate, error)
	SaveSummary(ctx context.Context, summary *domain.WarrantySummary) error
	GetLatestSummary(ctx context.Context, warrantyID string) (*domain.WarrantySummary, error)
}

// TermsCacheRepository is the shared read-mostly terms cache. Get returns
// domain.ErrWarrantyNotFound-free semantics: a miss is (nil, nil).
type TermsCacheRepository interface {
	Get(ctx context.Context, brand, model string) (*domain.TermsEntry, error)
	Put(ctx context.Context, entry *domain.TermsEntry) error
}

// EventRepository is the append-only behaviour log.
type EventRepository interface {
	Append(ctx context.Context, event *domain.BehaviourEvent) error
	ListByWarranty(ctx context.Context, warrantyID, userID string) ([]domain.BehaviourEvent, error)
}

// MessageQueue dispatches created jobs to pipeline workers.
type MessageQueue interface {
	PublishJobCreated(ctx context.Context, jobID string) error
	SubscribeJobCreated(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor is the direct (non-optical) text extraction path.
type TextExtractor interface {
	Extract(ctx context.Context, artifact *domain.Artifact) (string, error)
}

// OCREngine is the optical recognition capability. Implementations
// declare their own availability via Health.
type OCREngine interface {
	Recognize(ctx context.Context, artifact *domain.Artifact) (string, error)
	Health(ctx context.Context) error
}

// TermsSource fetches warranty terms from an external source.
type TermsSource interface {
	Fetch(ctx context.Context, brand, model string) (*domain.TermsEntry, error)
}

// FallbackTerms supplies the generic rule set used when the external
// source is unreachable or has no data.
type FallbackTerms interface {
	Defaults(brand, model string) *domain.TermsEntry
}

// SummaryRenderer is the optional inference-backed summary path, with
// availability independent of the always-available template renderer.
type SummaryRenderer interface {
	Render(ctx context.Context, record *domain.WarrantyRecord) (string, error)
	Health(ctx context.Context) error
}

// Clock abstracts "now" so risk and advisory derivation stays
// deterministic under test.
type Clock func() time.Time
