package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// SubmitArtifactUseCase stores the raw bytes, creates the artifact row
// and an exclusive pending job, and hands the job to the worker queue.
type SubmitArtifactUseCase struct {
	artifacts ports.ArtifactRepository
	jobs      ports.JobRepository
	store     ports.ArtifactStore
	queue     ports.MessageQueue
	now       ports.Clock
}

func NewSubmitArtifactUseCase(
	artifacts ports.ArtifactRepository,
	jobs ports.JobRepository,
	store ports.ArtifactStore,
	queue ports.MessageQueue,
	now ports.Clock,
) *SubmitArtifactUseCase {
	if now == nil {
		now = time.Now
	}
	return &SubmitArtifactUseCase{
		artifacts: artifacts,
		jobs:      jobs,
		store:     store,
		queue:     queue,
		now:       now,
	}
}

func (uc *SubmitArtifactUseCase) Submit(ctx context.Context, req ports.SubmitArtifact) (*domain.PipelineJob, error) {
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit artifact", fmt.Errorf("empty body"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename))
	createdAt := uc.now().UTC()

	if err := uc.store.Save(ctx, storageKey, req.Body); err != nil {
		return nil, fmt.Errorf("save artifact bytes: %w", err)
	}

	artifact := &domain.Artifact{
		ID:          id,
		Type:        req.Type,
		Filename:    req.Filename,
		MimeType:    req.MimeType,
		StoragePath: storageKey,
		UploadedBy:  req.UploadedBy,
		UploadedAt:  createdAt,
	}
	if err := uc.artifacts.Create(ctx, artifact); err != nil {
		return nil, fmt.Errorf("create artifact metadata: %w", err)
	}

	return uc.startJob(ctx, artifact.ID, uuid.NewString())
}

// Reprocess starts a fresh job for an already-stored artifact, reusing
// the warranty identity of the previous run so re-canonicalization
// produces a new record version instead of a new warranty. A busy
// artifact is rejected with domain.ErrDuplicateJob.
func (uc *SubmitArtifactUseCase) Reprocess(ctx context.Context, artifactID string) (*domain.PipelineJob, error) {
	if _, err := uc.artifacts.GetByID(ctx, artifactID); err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}

	warrantyID := uuid.NewString()
	if prev, err := uc.jobs.GetLatestByArtifact(ctx, artifactID); err == nil && prev != nil {
		warrantyID = prev.WarrantyID
	}

	return uc.startJob(ctx, artifactID, warrantyID)
}

func (uc *SubmitArtifactUseCase) startJob(ctx context.Context, artifactID, warrantyID string) (*domain.PipelineJob, error) {
	createdAt := uc.now().UTC()
	job := &domain.PipelineJob{
		ID:         uuid.NewString(),
		ArtifactID: artifactID,
		WarrantyID: warrantyID,
		Stage:      domain.StageUploaded,
		Status:     domain.JobPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if err := uc.jobs.CreateExclusive(ctx, job); err != nil {
		return nil, fmt.Errorf("create pipeline job: %w", err)
	}
	if err := uc.queue.PublishJobCreated(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish job created: %w", err)
	}
	return job, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "artifact.bin"
	}
	return base
}
