package domain

import "time"

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

type JobStage string

const (
	StageUploaded       JobStage = "uploaded"
	StageExtractingText JobStage = "extracting_text"
	StageOCRIfNeeded    JobStage = "ocr_if_needed"
	StageParsedFields   JobStage = "parsed_fields"
	StageTermsLookup    JobStage = "terms_lookup"
	StageSummarized     JobStage = "summarized"
	StageDone           JobStage = "done"
)

var stageOrder = map[JobStage]int{
	StageUploaded:       0,
	StageExtractingText: 1,
	StageOCRIfNeeded:    2,
	StageParsedFields:   3,
	StageTermsLookup:    4,
	StageSummarized:     5,
	StageDone:           6,
}

func (s JobStage) Ordinal() int {
	ord, ok := stageOrder[s]
	if !ok {
		return -1
	}
	return ord
}

// CanAdvance reports whether moving from one stage to another keeps the
// stage sequence monotonic. No stage is ever revisited within one job.
func CanAdvance(from, to JobStage) bool {
	fromOrd, toOrd := from.Ordinal(), to.Ordinal()
	if fromOrd < 0 || toOrd < 0 {
		return false
	}
	return toOrd > fromOrd
}

// PipelineJob is one ingestion attempt for one artifact. Terminal states
// are done and failed; a failed job records the originating stage.
type PipelineJob struct {
	ID          string    `json:"id"`
	ArtifactID  string    `json:"artifact_id"`
	WarrantyID  string    `json:"warranty_id"`
	Stage       JobStage  `json:"stage"`
	Status      JobStatus `json:"status"`
	Degraded    bool      `json:"degraded"`
	FailedStage JobStage  `json:"failed_stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (j *PipelineJob) Terminal() bool {
	return j.Status == JobDone || j.Status == JobFailed
}

// StageTransition is one append-only entry in a job's audit trail.
type StageTransition struct {
	JobID  string    `json:"job_id"`
	From   JobStage  `json:"from"`
	To     JobStage  `json:"to"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}
