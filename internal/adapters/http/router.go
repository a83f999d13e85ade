package httpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/antonkom/warranty-pilot/internal/core/domain"
	"github.com/antonkom/warranty-pilot/internal/core/ports"
)

const maxUploadBytes = 32 << 20

// WarrantyExporter renders a canonical record as a spreadsheet download.
type WarrantyExporter interface {
	Export(record *domain.WarrantyRecord, summary *domain.WarrantySummary) ([]byte, error)
}

// TrafficPolicy bounds the inbound request flow before any handler runs.
type TrafficPolicy struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration
}

// UsageRecorder receives business-level counters from the handlers. A nil
// recorder disables them.
type UsageRecorder interface {
	RecordSubmission(service string, err error)
	RecordOverride(service, field string)
	RecordAssessment(service, band string)
	RecordExport(service string)
}

type Router struct {
	submitter  ports.ArtifactSubmitter
	jobs       ports.JobReader
	warranties ports.WarrantyReader
	overrides  ports.OverrideApplier
	events     ports.EventRecorder
	assessor   ports.RiskAssessor
	exporter   WarrantyExporter
	traffic    TrafficPolicy
	usage      UsageRecorder
	service    string
	health     map[string]func(context.Context) error
}

func NewRouter(
	submitter ports.ArtifactSubmitter,
	jobs ports.JobReader,
	warranties ports.WarrantyReader,
	overrides ports.OverrideApplier,
	events ports.EventRecorder,
	assessor ports.RiskAssessor,
	exporter WarrantyExporter,
	traffic TrafficPolicy,
) *Router {
	return &Router{
		submitter:  submitter,
		jobs:       jobs,
		warranties: warranties,
		overrides:  overrides,
		events:     events,
		assessor:   assessor,
		exporter:   exporter,
		traffic:    traffic,
		service:    "api",
	}
}

// WithUsageRecorder attaches business metrics to the handlers.
func (rt *Router) WithUsageRecorder(service string, usage UsageRecorder) *Router {
	rt.service = service
	rt.usage = usage
	return rt
}

// WithHealthChecks adds optional backend probes to /healthz. Probe
// failures degrade the report without failing liveness.
func (rt *Router) WithHealthChecks(checks map[string]func(context.Context) error) *Router {
	rt.health = checks
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("POST /v1/artifacts", rt.submitArtifact)
	mux.HandleFunc("POST /v1/artifacts/{id}/reprocess", rt.reprocessArtifact)
	mux.HandleFunc("GET /v1/jobs/{id}", rt.getJob)

	mux.HandleFunc("GET /v1/warranties/{id}", rt.getWarranty)
	mux.HandleFunc("GET /v1/warranties/{id}/summary", rt.getSummary)
	mux.HandleFunc("POST /v1/warranties/{id}/overrides", rt.applyOverride)
	mux.HandleFunc("GET /v1/warranties/{id}/risk", rt.getRisk)
	mux.HandleFunc("GET /v1/warranties/{id}/advisories", rt.getAdvisories)
	mux.HandleFunc("GET /v1/warranties/{id}/export", rt.exportWarranty)

	mux.HandleFunc("POST /v1/events", rt.recordEvent)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.QueueWait)
	handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	backends := make(map[string]string, len(rt.health))
	for name, probe := range rt.health {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := probe(ctx); err != nil {
			backends[name] = "unreachable"
			status = "degraded"
		} else {
			backends[name] = "ok"
		}
		cancel()
	}

	payload := map[string]any{"status": status}
	if len(backends) > 0 {
		payload["backends"] = backends
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) submitArtifact(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "submit artifact", fmt.Errorf("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	artifactType, err := domain.ParseArtifactType(r.FormValue("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	job, err := rt.submitter.Submit(r.Context(), ports.SubmitArtifact{
		Type:       artifactType,
		Filename:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
		Body:       file,
		UploadedBy: callerID(r),
	})
	if rt.usage != nil {
		rt.usage.RecordSubmission(rt.service, err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) reprocessArtifact(w http.ResponseWriter, r *http.Request) {
	job, err := rt.submitter.Reprocess(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	transitions, err := rt.jobs.ListTransitions(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":         job,
		"transitions": transitions,
	})
}

// getWarranty returns the latest record version by default; pick=confident
// selects the version whose weakest field is the strongest.
func (rt *Router) getWarranty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var record *domain.WarrantyRecord
	var err error
	if r.URL.Query().Get("pick") == "confident" {
		record, err = rt.warranties.GetMostConfident(r.Context(), id)
	} else {
		record, err = rt.warranties.GetLatest(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) getSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.warranties.GetLatestSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) applyOverride(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "apply override", fmt.Errorf("invalid json")))
		return
	}

	record, err := rt.overrides.Apply(r.Context(), r.PathValue("id"), req.Field, req.Value, callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.usage != nil {
		rt.usage.RecordOverride(rt.service, req.Field)
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WarrantyID string `json:"warranty_id"`
		Type       string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "record event", fmt.Errorf("invalid json")))
		return
	}

	eventType, err := domain.ParseEventType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := rt.events.Record(r.Context(), callerID(r), req.WarrantyID, eventType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, event)
}

func (rt *Router) getRisk(w http.ResponseWriter, r *http.Request) {
	result, err := rt.assessor.Risk(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.usage != nil {
		rt.usage.RecordAssessment(rt.service, string(result.Band))
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getAdvisories(w http.ResponseWriter, r *http.Request) {
	bundle, err := rt.assessor.Advisories(r.Context(), r.PathValue("id"), callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (rt *Router) exportWarranty(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	record, err := rt.warranties.GetLatest(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The summary is optional in the export; a record can be exported
	// before its summary was ever generated.
	summary, err := rt.warranties.GetLatestSummary(r.Context(), id)
	if err != nil && !domain.IsKind(err, domain.ErrWarrantyNotFound) {
		writeError(w, r, err)
		return
	}

	payload, err := rt.exporter.Export(record, summary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.usage != nil {
		rt.usage.RecordExport(rt.service)
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "warranty_"+id+".xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// callerID identifies the caller from the X-User-Id header. Handlers that
// need a real identity reject the blank value downstream.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
