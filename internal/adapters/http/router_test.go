package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

type submitterFake struct {
	lastSubmit    ports.SubmitArtifact
	submitJob     *domain.PipelineJob
	submitErr     error
	reprocessJob  *domain.PipelineJob
	reprocessErr  error
	reprocessedID string
}

func (f *submitterFake) Submit(_ context.Context, req ports.SubmitArtifact) (*domain.PipelineJob, error) {
	f.lastSubmit = req
	return f.submitJob, f.submitErr
}

func (f *submitterFake) Reprocess(_ context.Context, artifactID string) (*domain.PipelineJob, error) {
	f.reprocessedID = artifactID
	return f.reprocessJob, f.reprocessErr
}

type jobReaderFake struct {
	job         *domain.PipelineJob
	jobErr      error
	transitions []domain.StageTransition
}

func (f *jobReaderFake) GetByID(context.Context, string) (*domain.PipelineJob, error) {
	return f.job, f.jobErr
}

func (f *jobReaderFake) ListTransitions(context.Context, string) ([]domain.StageTransition, error) {
	return f.transitions, nil
}

type warrantyReaderFake struct {
	latest        *domain.WarrantyRecord
	confident     *domain.WarrantyRecord
	readErr       error
	summary       *domain.WarrantySummary
	summaryErr    error
	confidentHits int
}

func (f *warrantyReaderFake) GetLatest(context.Context, string) (*domain.WarrantyRecord, error) {
	return f.latest, f.readErr
}

func (f *warrantyReaderFake) GetMostConfident(context.Context, string) (*domain.WarrantyRecord, error) {
	f.confidentHits++
	return f.confident, f.readErr
}

func (f *warrantyReaderFake) GetLatestSummary(context.Context, string) (*domain.WarrantySummary, error) {
	return f.summary, f.summaryErr
}

type overrideFake struct {
	record *domain.WarrantyRecord
	err    error
	field  string
	value  string
	userID string
}

func (f *overrideFake) Apply(_ context.Context, _ string, field, value, userID string) (*domain.WarrantyRecord, error) {
	f.field, f.value, f.userID = field, value, userID
	return f.record, f.err
}

type eventRecorderFake struct {
	event  *domain.BehaviourEvent
	err    error
	userID string
}

func (f *eventRecorderFake) Record(_ context.Context, userID, warrantyID string, eventType domain.EventType) (*domain.BehaviourEvent, error) {
	f.userID = userID
	if f.err != nil {
		return nil, f.err
	}
	if f.event != nil {
		return f.event, nil
	}
	return &domain.BehaviourEvent{ID: "evt-1", UserID: userID, WarrantyID: warrantyID, Type: eventType}, nil
}

type assessorFake struct {
	risk   *domain.RiskResult
	bundle *domain.AdvisoryBundle
	err    error
}

func (f *assessorFake) Risk(context.Context, string, string) (*domain.RiskResult, error) {
	return f.risk, f.err
}

func (f *assessorFake) Advisories(context.Context, string, string) (*domain.AdvisoryBundle, error) {
	return f.bundle, f.err
}

type exporterFake struct {
	payload []byte
	err     error
}

func (f *exporterFake) Export(*domain.WarrantyRecord, *domain.WarrantySummary) ([]byte, error) {
	return f.payload, f.err
}

type routerFixture struct {
	submitter  *submitterFake
	jobs       *jobReaderFake
	warranties *warrantyReaderFake
	overrides  *overrideFake
	events     *eventRecorderFake
	assessor   *assessorFake
	exporter   *exporterFake
	handler    http.Handler
}

func newRouterFixture() *routerFixture {
	fx := &routerFixture{
		submitter:  &submitterFake{},
		jobs:       &jobReaderFake{},
		warranties: &warrantyReaderFake{},
		overrides:  &overrideFake{},
		events:     &eventRecorderFake{},
		assessor:   &assessorFake{},
		exporter:   &exporterFake{},
	}
	fx.handler = NewRouter(
		fx.submitter, fx.jobs, fx.warranties, fx.overrides,
		fx.events, fx.assessor, fx.exporter, TrafficPolicy{},
	).Handler()
	return fx
}

func multipartUpload(t *testing.T, artifactType string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "invoice.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fmt.Fprint(part, "%PDF-1.7 fake invoice body")
	if artifactType != "" {
		_ = writer.WriteField("type", artifactType)
	}
	_ = writer.Close()
	return body, writer.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	fx := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
}

func TestHealthzReportsBackendProbes(t *testing.T) {
	fx := newRouterFixture()
	handler := NewRouter(
		fx.submitter, fx.jobs, fx.warranties, fx.overrides,
		fx.events, fx.assessor, fx.exporter, TrafficPolicy{},
	).WithHealthChecks(map[string]func(context.Context) error{
		"ocr":       func(context.Context) error { return nil },
		"inference": func(context.Context) error { return fmt.Errorf("connection refused") },
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	var payload struct {
		Status   string            `json:"status"`
		Backends map[string]string `json:"backends"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", payload.Status)
	}
	if payload.Backends["ocr"] != "ok" || payload.Backends["inference"] != "unreachable" {
		t.Fatalf("backends = %v", payload.Backends)
	}
}

func TestSubmitArtifactAccepted(t *testing.T) {
	fx := newRouterFixture()
	fx.submitter.submitJob = &domain.PipelineJob{
		ID: "job-1", ArtifactID: "art-1", WarrantyID: "war-1",
		Stage: domain.StageUploaded, Status: domain.JobPending,
	}

	body, contentType := multipartUpload(t, "invoice")
	req := httptest.NewRequest(http.MethodPost, "/v1/artifacts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", "user-1")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", res.Code, res.Body.String())
	}
	if fx.submitter.lastSubmit.UploadedBy != "user-1" {
		t.Fatalf("uploaded_by = %q", fx.submitter.lastSubmit.UploadedBy)
	}
	if fx.submitter.lastSubmit.Type != domain.ArtifactInvoice {
		t.Fatalf("type = %q", fx.submitter.lastSubmit.Type)
	}

	var job domain.PipelineJob
	if err := json.Unmarshal(res.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "job-1" || job.Stage != domain.StageUploaded {
		t.Fatalf("job = %+v", job)
	}
}

func TestSubmitArtifactRequiresFile(t *testing.T) {
	fx := newRouterFixture()

	req := httptest.NewRequest(http.MethodPost, "/v1/artifacts", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestSubmitArtifactRejectsUnknownType(t *testing.T) {
	fx := newRouterFixture()

	body, contentType := multipartUpload(t, "selfie")
	req := httptest.NewRequest(http.MethodPost, "/v1/artifacts", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestReprocessBusyArtifactConflicts(t *testing.T) {
	fx := newRouterFixture()
	fx.submitter.reprocessErr = domain.WrapError(domain.ErrDuplicateJob, "create job", fmt.Errorf("busy"))

	req := httptest.NewRequest(http.MethodPost, "/v1/artifacts/art-1/reprocess", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", res.Code)
	}
	if fx.submitter.reprocessedID != "art-1" {
		t.Fatalf("reprocessed id = %q", fx.submitter.reprocessedID)
	}
}

func TestGetJobNotFound(t *testing.T) {
	fx := newRouterFixture()
	fx.jobs.jobErr = domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("key missing"))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.Code)
	}
}

func TestGetJobIncludesTransitions(t *testing.T) {
	fx := newRouterFixture()
	fx.jobs.job = &domain.PipelineJob{ID: "job-1", Stage: domain.StageDone, Status: domain.JobDone}
	fx.jobs.transitions = []domain.StageTransition{
		{JobID: "job-1", From: domain.StageUploaded, To: domain.StageExtractingText, At: time.Now()},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/job-1", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	var payload struct {
		Job         domain.PipelineJob       `json:"job"`
		Transitions []domain.StageTransition `json:"transitions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Job.ID != "job-1" || len(payload.Transitions) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestGetWarrantyPickConfident(t *testing.T) {
	fx := newRouterFixture()
	fx.warranties.latest = &domain.WarrantyRecord{ID: "war-1", Version: 3}
	fx.warranties.confident = &domain.WarrantyRecord{ID: "war-1", Version: 2}

	req := httptest.NewRequest(http.MethodGet, "/v1/warranties/war-1?pick=confident", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	if fx.warranties.confidentHits != 1 {
		t.Fatalf("confident hits = %d, want 1", fx.warranties.confidentHits)
	}
	var record domain.WarrantyRecord
	if err := json.Unmarshal(res.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.Version != 2 {
		t.Fatalf("version = %d, want confident pick 2", record.Version)
	}
}

func TestApplyOverrideMalformedValue(t *testing.T) {
	fx := newRouterFixture()
	fx.overrides.err = domain.WrapError(domain.ErrMalformedOverride, "apply override", fmt.Errorf("bad date"))

	body := strings.NewReader(`{"field":"purchase_date","value":"not-a-date"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/warranties/war-1/overrides", body)
	req.Header.Set("X-User-Id", "user-1")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
	if fx.overrides.userID != "user-1" {
		t.Fatalf("user id = %q", fx.overrides.userID)
	}
}

func TestRecordEventRejectsUnknownType(t *testing.T) {
	fx := newRouterFixture()

	body := strings.NewReader(`{"warranty_id":"war-1","type":"abandoned_cart"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/events", body)
	req.Header.Set("X-User-Id", "user-1")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestRecordEventAccepted(t *testing.T) {
	fx := newRouterFixture()

	body := strings.NewReader(`{"warranty_id":"war-1","type":"issue_reported"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/events", body)
	req.Header.Set("X-User-Id", "user-1")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", res.Code, res.Body.String())
	}
	if fx.events.userID != "user-1" {
		t.Fatalf("user id = %q", fx.events.userID)
	}
}

func TestGetRisk(t *testing.T) {
	fx := newRouterFixture()
	fx.assessor.risk = &domain.RiskResult{WarrantyID: "war-1", Score: 0.45, Band: domain.BandMedium}

	req := httptest.NewRequest(http.MethodGet, "/v1/warranties/war-1/risk", nil)
	req.Header.Set("X-User-Id", "user-1")
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
	var result domain.RiskResult
	if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Band != domain.BandMedium {
		t.Fatalf("band = %q", result.Band)
	}
}

func TestExportWarrantyDownload(t *testing.T) {
	fx := newRouterFixture()
	fx.warranties.latest = &domain.WarrantyRecord{ID: "war-1", Version: 1}
	fx.warranties.summaryErr = domain.WrapError(domain.ErrWarrantyNotFound, "get summary", fmt.Errorf("none yet"))
	fx.exporter.payload = []byte("PK\x03\x04stub")

	req := httptest.NewRequest(http.MethodGet, "/v1/warranties/war-1/export", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("content type = %q", got)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "war-1.xlsx") {
		t.Fatalf("content disposition = %q", got)
	}
	if res.Body.String() != "PK\x03\x04stub" {
		t.Fatalf("body = %q", res.Body.String())
	}
}

func TestTemporaryErrorsMapToServiceUnavailable(t *testing.T) {
	fx := newRouterFixture()
	fx.assessor.err = domain.WrapError(domain.ErrTemporary, "risk", fmt.Errorf("store offline"))

	req := httptest.NewRequest(http.MethodGet, "/v1/warranties/war-1/risk", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", res.Code)
	}
}

func TestResponsesCarryRequestID(t *testing.T) {
	fx := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	fx.handler.ServeHTTP(res, req)

	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated X-Request-Id header")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req2.Header.Set("X-Request-Id", "req-42")
	res2 := httptest.NewRecorder()
	fx.handler.ServeHTTP(res2, req2)

	if got := res2.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("request id = %q, want propagated req-42", got)
	}
}
