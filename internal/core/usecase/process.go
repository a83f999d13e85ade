package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

// ProcessJobUseCase drives one artifact through the pipeline stages.
// Stage transitions are monotonic and append-only; a failed stage moves
// the job to failed with the originating stage recorded and is never
// silently retried here; retry is an explicit re-submission producing a
// new job.
type ProcessJobUseCase struct {
	jobs       ports.JobRepository
	artifacts  ports.ArtifactRepository
	warranties ports.WarrantyRepository
	extraction *ExtractionEngine
	fields     *FieldExtractor
	terms      *TermsResolver
	canonical  *Canonicalizer
	summarizer *Summarizer
	now        ports.Clock
}

func NewProcessJobUseCase(
	jobs ports.JobRepository,
	artifacts ports.ArtifactRepository,
	warranties ports.WarrantyRepository,
	extraction *ExtractionEngine,
	fields *FieldExtractor,
	terms *TermsResolver,
	canonical *Canonicalizer,
	summarizer *Summarizer,
	now ports.Clock,
) *ProcessJobUseCase {
	if now == nil {
		now = time.Now
	}
	return &ProcessJobUseCase{
		jobs:       jobs,
		artifacts:  artifacts,
		warranties: warranties,
		extraction: extraction,
		fields:     fields,
		terms:      terms,
		canonical:  canonical,
		summarizer: summarizer,
		now:        now,
	}
}

func (uc *ProcessJobUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job: %w", err)
	}
	// Re-invocation on a finished job is a no-op, not a re-run.
	if job.Terminal() {
		return nil
	}

	artifact, err := uc.artifacts.GetByID(ctx, job.ArtifactID)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageUploaded, fmt.Errorf("fetch artifact: %w", err))
	}

	if err := uc.jobs.Advance(ctx, job.ID, domain.StageExtractingText, ""); err != nil {
		return fmt.Errorf("advance to extracting_text: %w", err)
	}
	extracted, err := uc.extraction.ExtractText(ctx, artifact)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageExtractingText, err)
	}
	if err := uc.jobs.Advance(ctx, job.ID, domain.StageOCRIfNeeded, extracted.Detail); err != nil {
		return fmt.Errorf("advance to ocr_if_needed: %w", err)
	}

	source := domain.SourceRegex
	if extracted.UsedFallback {
		source = domain.SourceOCR
	}
	candidates := uc.fields.Extract(extracted.Text, source)
	if err := uc.jobs.Advance(ctx, job.ID, domain.StageParsedFields, fmt.Sprintf("%d field(s)", len(candidates))); err != nil {
		return fmt.Errorf("advance to parsed_fields: %w", err)
	}
	if err := uc.warranties.SaveParsedFields(ctx, job.ID, job.WarrantyID, candidates, truncate(extracted.Text, 4000)); err != nil {
		return uc.fail(ctx, job.ID, domain.StageParsedFields, fmt.Errorf("save parsed fields: %w", err))
	}

	if err := uc.jobs.Advance(ctx, job.ID, domain.StageTermsLookup, ""); err != nil {
		return fmt.Errorf("advance to terms_lookup: %w", err)
	}
	terms := uc.terms.Resolve(ctx, candidateValue(candidates, domain.FieldBrand), candidateValue(candidates, domain.FieldModel))

	record, err := uc.canonical.Canonicalize(candidates, terms, nil)
	if err != nil {
		return uc.fail(ctx, job.ID, domain.StageTermsLookup, fmt.Errorf("canonicalize: %w", err))
	}
	record.ID = job.WarrantyID
	record.ArtifactID = job.ArtifactID
	record.CreatedAt = uc.now().UTC()
	if err := uc.warranties.SaveVersion(ctx, record); err != nil {
		return uc.fail(ctx, job.ID, domain.StageTermsLookup, fmt.Errorf("save record version: %w", err))
	}

	if err := uc.jobs.Advance(ctx, job.ID, domain.StageSummarized, ""); err != nil {
		return fmt.Errorf("advance to summarized: %w", err)
	}
	summary := uc.summarizer.Summarize(ctx, record)
	if err := uc.warranties.SaveSummary(ctx, summary); err != nil {
		return uc.fail(ctx, job.ID, domain.StageSummarized, fmt.Errorf("save summary: %w", err))
	}

	if err := uc.jobs.Complete(ctx, job.ID, extracted.Degraded); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) fail(ctx context.Context, jobID string, at domain.JobStage, cause error) error {
	if failErr := uc.jobs.Fail(ctx, jobID, at, cause.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", cause, failErr)
	}
	return cause
}

func candidateValue(candidates map[string]domain.FieldCandidate, field string) string {
	if c, ok := candidates[field]; ok {
		return c.Value
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
