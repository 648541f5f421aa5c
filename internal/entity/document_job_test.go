package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"docverify/constants"
)

func TestNewDocumentJob(t *testing.T) {
	id := uuid.New()
	job := NewDocumentJob(id, "docs/a.pdf", "income-certificate-v1")

	if job.Status != constants.JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.Terminal() {
		t.Error("new job reports terminal")
	}
	if job.ID != id || job.SourceRef != "docs/a.pdf" || job.RuleSetID != "income-certificate-v1" {
		t.Errorf("identity fields not carried: %+v", job)
	}
	if job.Attempts == nil {
		t.Error("attempts map not initialized")
	}
}

func TestRecordAttempt(t *testing.T) {
	job := NewDocumentJob(uuid.New(), "docs/a.pdf", "rs")
	job.Attempts = nil // a decoded snapshot can arrive without the map

	if n := job.RecordAttempt(constants.StageFetch); n != 1 {
		t.Errorf("first attempt = %d, want 1", n)
	}
	if n := job.RecordAttempt(constants.StageFetch); n != 2 {
		t.Errorf("second attempt = %d, want 2", n)
	}
	if n := job.AttemptCount(constants.StageConvert); n != 0 {
		t.Errorf("untouched stage count = %d, want 0", n)
	}
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now().UTC()
	job := NewDocumentJob(uuid.New(), "docs/a.pdf", "rs")
	job.Fields = map[string]Field{"holder_name": {Value: "JANE", Normalized: "Jane", Confidence: 0.9}}
	job.PagePaths = []string{"p1.png"}
	job.Regions = []Region{{Start: 0, End: 4, Confidence: 0.8}}
	job.LastError = &ErrorInfo{Kind: "TRANSIENT_IO", Message: "blip"}
	job.CompletedAt = &now
	job.RecordAttempt(constants.StageFetch)

	cp := job.Clone()

	cp.Fields["holder_name"] = Field{Value: "MALLORY"}
	cp.PagePaths[0] = "other.png"
	cp.Regions[0].Confidence = 0.1
	cp.LastError.Message = "changed"
	*cp.CompletedAt = now.Add(time.Hour)
	cp.Attempts[string(constants.StageFetch)] = 99

	if job.Fields["holder_name"].Value != "JANE" {
		t.Error("clone shares the fields map")
	}
	if job.PagePaths[0] != "p1.png" {
		t.Error("clone shares the page path slice")
	}
	if job.Regions[0].Confidence != 0.8 {
		t.Error("clone shares the regions slice")
	}
	if job.LastError.Message != "blip" {
		t.Error("clone shares the last error")
	}
	if !job.CompletedAt.Equal(now) {
		t.Error("clone shares the completion timestamp")
	}
	if job.AttemptCount(constants.StageFetch) != 1 {
		t.Error("clone shares the attempts map")
	}
}
