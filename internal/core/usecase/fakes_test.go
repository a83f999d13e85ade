package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type artifactRepoFake struct {
	artifacts map[string]*domain.Artifact
	createErr error
}

func newArtifactRepoFake() *artifactRepoFake {
	return &artifactRepoFake{artifacts: make(map[string]*domain.Artifact)}
}

func (f *artifactRepoFake) Create(_ context.Context, artifact *domain.Artifact) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *artifact
	f.artifacts[artifact.ID] = &copied
	return nil
}

func (f *artifactRepoFake) GetByID(_ context.Context, id string) (*domain.Artifact, error) {
	artifact, ok := f.artifacts[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrArtifactNotFound, "get artifact", errors.New(id))
	}
	copied := *artifact
	return &copied, nil
}

type jobRepoFake struct {
	jobs        map[string]*domain.PipelineJob
	transitions []domain.StageTransition
	busy        bool
	createErr   error
	advanceErr  error
}

func newJobRepoFake() *jobRepoFake {
	return &jobRepoFake{jobs: make(map[string]*domain.PipelineJob)}
}

func (f *jobRepoFake) CreateExclusive(_ context.Context, job *domain.PipelineJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.busy {
		return domain.WrapError(domain.ErrDuplicateJob, "create job", errors.New(job.ArtifactID))
	}
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, id string) (*domain.PipelineJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", errors.New(id))
	}
	copied := *job
	return &copied, nil
}

func (f *jobRepoFake) GetLatestByArtifact(_ context.Context, artifactID string) (*domain.PipelineJob, error) {
	var latest *domain.PipelineJob
	for _, job := range f.jobs {
		if job.ArtifactID != artifactID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get latest job", errors.New(artifactID))
	}
	copied := *latest
	return &copied, nil
}

func (f *jobRepoFake) Advance(_ context.Context, jobID string, to domain.JobStage, detail string) error {
	if f.advanceErr != nil {
		return f.advanceErr
	}
	job := f.jobs[jobID]
	f.transitions = append(f.transitions, domain.StageTransition{JobID: jobID, From: job.Stage, To: to, Detail: detail})
	job.Stage = to
	job.Status = domain.JobRunning
	return nil
}

func (f *jobRepoFake) Complete(_ context.Context, jobID string, degraded bool) error {
	job := f.jobs[jobID]
	f.transitions = append(f.transitions, domain.StageTransition{JobID: jobID, From: job.Stage, To: domain.StageDone})
	job.Stage = domain.StageDone
	job.Status = domain.JobDone
	job.Degraded = degraded
	return nil
}

func (f *jobRepoFake) Fail(_ context.Context, jobID string, at domain.JobStage, errMessage string) error {
	job := f.jobs[jobID]
	job.Status = domain.JobFailed
	job.FailedStage = at
	job.Error = errMessage
	return nil
}

func (f *jobRepoFake) ListTransitions(_ context.Context, jobID string) ([]domain.StageTransition, error) {
	var out []domain.StageTransition
	for _, tr := range f.transitions {
		if tr.JobID == jobID {
			out = append(out, tr)
		}
	}
	return out, nil
}

type warrantyRepoFake struct {
	versions   map[string][]*domain.WarrantyRecord
	parsed     map[string]map[string]domain.FieldCandidate
	summaries  map[string][]*domain.WarrantySummary
	saveErr    error
	summaryErr error
	parsedErr  error
}

func newWarrantyRepoFake() *warrantyRepoFake {
	return &warrantyRepoFake{
		versions:  make(map[string][]*domain.WarrantyRecord),
		parsed:    make(map[string]map[string]domain.FieldCandidate),
		summaries: make(map[string][]*domain.WarrantySummary),
	}
}

func (f *warrantyRepoFake) SaveVersion(_ context.Context, record *domain.WarrantyRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	record.Version = len(f.versions[record.ID]) + 1
	copied := *record
	f.versions[record.ID] = append(f.versions[record.ID], &copied)
	return nil
}

func (f *warrantyRepoFake) GetLatest(_ context.Context, warrantyID string) (*domain.WarrantyRecord, error) {
	versions := f.versions[warrantyID]
	if len(versions) == 0 {
		return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get latest", errors.New(warrantyID))
	}
	copied := *versions[len(versions)-1]
	return &copied, nil
}

func (f *warrantyRepoFake) GetMostConfident(_ context.Context, warrantyID string) (*domain.WarrantyRecord, error) {
	versions := f.versions[warrantyID]
	if len(versions) == 0 {
		return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get most confident", errors.New(warrantyID))
	}
	best := versions[0]
	for _, v := range versions[1:] {
		if v.MinConfidence() > best.MinConfidence() {
			best = v
		}
	}
	copied := *best
	return &copied, nil
}

func (f *warrantyRepoFake) SaveParsedFields(_ context.Context, _, warrantyID string, candidates map[string]domain.FieldCandidate, _ string) error {
	if f.parsedErr != nil {
		return f.parsedErr
	}
	copied := make(map[string]domain.FieldCandidate, len(candidates))
	for k, v := range candidates {
		copied[k] = v
	}
	f.parsed[warrantyID] = copied
	return nil
}

func (f *warrantyRepoFake) GetParsedFields(_ context.Context, warrantyID string) (map[string]domain.FieldCandidate, error) {
	copied := make(map[string]domain.FieldCandidate, len(f.parsed[warrantyID]))
	for k, v := range f.parsed[warrantyID] {
		copied[k] = v
	}
	return copied, nil
}

func (f *warrantyRepoFake) SaveSummary(_ context.Context, summary *domain.WarrantySummary) error {
	if f.summaryErr != nil {
		return f.summaryErr
	}
	copied := *summary
	f.summaries[summary.WarrantyID] = append(f.summaries[summary.WarrantyID], &copied)
	return nil
}

func (f *warrantyRepoFake) GetLatestSummary(_ context.Context, warrantyID string) (*domain.WarrantySummary, error) {
	summaries := f.summaries[warrantyID]
	if len(summaries) == 0 {
		return nil, domain.WrapError(domain.ErrWarrantyNotFound, "get summary", errors.New(warrantyID))
	}
	copied := *summaries[len(summaries)-1]
	return &copied, nil
}

type termsCacheFake struct {
	entries map[string]*domain.TermsEntry
	getErr  error
	puts    int
}

func newTermsCacheFake() *termsCacheFake {
	return &termsCacheFake{entries: make(map[string]*domain.TermsEntry)}
}

func (f *termsCacheFake) Get(_ context.Context, brand, model string) (*domain.TermsEntry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[brand+"|"+model]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (f *termsCacheFake) Put(_ context.Context, entry *domain.TermsEntry) error {
	copied := *entry
	f.entries[entry.Brand+"|"+entry.Model] = &copied
	f.puts++
	return nil
}

type termsSourceFake struct {
	entry *domain.TermsEntry
	err   error
	calls int
}

func (f *termsSourceFake) Fetch(_ context.Context, _, _ string) (*domain.TermsEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.entry == nil {
		return nil, errors.New("no data")
	}
	copied := *f.entry
	return &copied, nil
}

type artifactStoreFake struct {
	saved map[string]string
	err   error
}

func newArtifactStoreFake() *artifactStoreFake {
	return &artifactStoreFake{saved: make(map[string]string)}
}

func (f *artifactStoreFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.saved[key] = string(raw)
	return nil
}

func (f *artifactStoreFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, errors.New("missing key " + key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishJobCreated(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *queueFake) SubscribeJobCreated(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type directExtractorFake struct {
	text string
	err  error
}

func (f *directExtractorFake) Extract(context.Context, *domain.Artifact) (string, error) {
	return f.text, f.err
}

type ocrEngineFake struct {
	text      string
	healthErr error
	recErr    error
	calls     int
}

func (f *ocrEngineFake) Recognize(context.Context, *domain.Artifact) (string, error) {
	f.calls++
	if f.recErr != nil {
		return "", f.recErr
	}
	return f.text, nil
}

func (f *ocrEngineFake) Health(context.Context) error {
	return f.healthErr
}

type inferenceFake struct {
	text      string
	err       error
	healthErr error
	calls     int
}

func (f *inferenceFake) Render(context.Context, *domain.WarrantyRecord) (string, error) {
	f.calls++
	return f.text, f.err
}

func (f *inferenceFake) Health(context.Context) error {
	return f.healthErr
}

type eventRepoFake struct {
	events    []domain.BehaviourEvent
	appendErr error
}

func (f *eventRepoFake) Append(_ context.Context, event *domain.BehaviourEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *eventRepoFake) ListByWarranty(_ context.Context, warrantyID, userID string) ([]domain.BehaviourEvent, error) {
	var out []domain.BehaviourEvent
	for _, event := range f.events {
		if event.WarrantyID == warrantyID && event.UserID == userID {
			out = append(out, event)
		}
	}
	return out, nil
}
