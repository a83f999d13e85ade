package ports

import (
	"context"
	"io"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

// SubmitArtifact carries one upload request through the inbound boundary.
type SubmitArtifact struct {
	Type       domain.ArtifactType
	Filename   string
	MimeType   string
	Body       io.Reader
	UploadedBy string
}

// ArtifactSubmitter is the inbound contract for artifact submission.
// Submit returns the created job; Reprocess starts a fresh job for an
// already-stored artifact and rejects it while one is active.
type ArtifactSubmitter interface {
	Submit(ctx context.Context, req SubmitArtifact) (*domain.PipelineJob, error)
	Reprocess(ctx context.Context, artifactID string) (*domain.PipelineJob, error)
}

// JobProcessor is the inbound contract for asynchronous pipeline runs.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// JobReader exposes job status polling.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.PipelineJob, error)
	ListTransitions(ctx context.Context, jobID string) ([]domain.StageTransition, error)
}

// WarrantyReader exposes canonical record and summary reads.
type WarrantyReader interface {
	GetLatest(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error)
	GetMostConfident(ctx context.Context, warrantyID string) (*domain.WarrantyRecord, error)
	GetLatestSummary(ctx context.Context, warrantyID string) (*domain.WarrantySummary, error)
}

// OverrideApplier applies a caller-supplied field correction, producing a
// new canonical record version.
type OverrideApplier interface {
	Apply(ctx context.Context, warrantyID, field, value, userID string) (*domain.WarrantyRecord, error)
}

// EventRecorder appends behaviour events.
type EventRecorder interface {
	Record(ctx context.Context, userID, warrantyID string, eventType domain.EventType) (*domain.BehaviourEvent, error)
}

// RiskAssessor derives risk and advisories on demand.
type RiskAssessor interface {
	Risk(ctx context.Context, warrantyID, userID string) (*domain.RiskResult, error)
	Advisories(ctx context.Context, warrantyID, userID string) (*domain.AdvisoryBundle, error)
}
