package entity

import (
	"time"

	"github.com/google/uuid"

	"docverify/constants"
)

// Field is one extracted attestation field with its confidence estimate.
type Field struct {
	Value      string  `json:"value"`
	Normalized string  `json:"normalized"`
	Confidence float32 `json:"confidence"`
}

// Region is one recognized span of the document text with a per-region
// confidence estimate from the recognizer. Offsets are byte positions
// into the recognized text.
type Region struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float32 `json:"confidence"`
}

// ErrorInfo is the last stage error observed for a job, cleared on
// stage success.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// DocumentJob is the unit of work and its outcome. It is mutated only by
// the orchestrator and checkpointed before each stage transition.
type DocumentJob struct {
	ID        uuid.UUID           `json:"id"`
	SourceRef string              `json:"source_ref"`
	RuleSetID string              `json:"rule_set_id"`
	Status    constants.JobStatus `json:"status"`

	// PendingStatus carries the terminal outcome through PERSISTING so a
	// crash-and-resume re-reaches the same terminal state.
	PendingStatus constants.JobStatus `json:"pending_status,omitempty"`

	// CancelRequested survives restarts so a cancel issued just before a
	// crash still takes effect at the next stage boundary.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	Attempts          map[string]int   `json:"attempts"`
	Fields            map[string]Field `json:"fields,omitempty"`
	OverallConfidence float32          `json:"overall_confidence"`
	ReviewRequired    bool             `json:"review_required"`
	LastError         *ErrorInfo       `json:"last_error,omitempty"`

	// Stage artifacts, recorded so a recovered job resumes from its last
	// checkpointed status instead of restarting from PENDING.
	SourcePath     string   `json:"source_path,omitempty"`
	PagePaths      []string `json:"page_paths,omitempty"`
	RecognizedText string   `json:"recognized_text,omitempty"`
	Regions        []Region `json:"regions,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewDocumentJob creates a job in PENDING.
func NewDocumentJob(id uuid.UUID, sourceRef, ruleSetID string) *DocumentJob {
	now := time.Now().UTC()
	return &DocumentJob{
		ID:        id,
		SourceRef: sourceRef,
		RuleSetID: ruleSetID,
		Status:    constants.JobStatusPending,
		Attempts:  make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the job reached a terminal state.
func (j *DocumentJob) Terminal() bool {
	return j.Status.Terminal()
}

// AttemptCount returns the execution counter for a stage.
func (j *DocumentJob) AttemptCount(stage constants.Stage) int {
	return j.Attempts[string(stage)]
}

// RecordAttempt increments and returns the execution counter for a
// stage. Every execution counts, successful ones included.
func (j *DocumentJob) RecordAttempt(stage constants.Stage) int {
	if j.Attempts == nil {
		j.Attempts = make(map[string]int)
	}
	j.Attempts[string(stage)]++
	return j.Attempts[string(stage)]
}

// Clone returns a deep copy, used for snapshots handed to callers so
// orchestrator mutations never leak through a status read.
func (j *DocumentJob) Clone() *DocumentJob {
	cp := *j
	cp.Attempts = make(map[string]int, len(j.Attempts))
	for k, v := range j.Attempts {
		cp.Attempts[k] = v
	}
	if j.Fields != nil {
		cp.Fields = make(map[string]Field, len(j.Fields))
		for k, v := range j.Fields {
			cp.Fields[k] = v
		}
	}
	if j.PagePaths != nil {
		cp.PagePaths = append([]string(nil), j.PagePaths...)
	}
	if j.Regions != nil {
		cp.Regions = append([]Region(nil), j.Regions...)
	}
	if j.LastError != nil {
		le := *j.LastError
		cp.LastError = &le
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
