package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"docverify/constants"
	"docverify/internal/entity"
	"docverify/internal/store"
)

func reviewJob(t *testing.T, s *store.MemoryStore, ref string, created time.Time, fields map[string]entity.Field) *entity.DocumentJob {
	t.Helper()
	job := entity.NewDocumentJob(uuid.New(), ref, "income-certificate-v1")
	job.Status = constants.JobStatusNeedsReview
	job.CreatedAt = created
	job.Fields = fields
	job.OverallConfidence = 0.42
	if err := s.Save(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job
}

func TestExportReviewXLSX(t *testing.T) {
	s := store.NewMemoryStore()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	second := reviewJob(t, s, "docs/b.pdf", base.Add(time.Hour), map[string]entity.Field{
		"holder_name": {Value: "JOHN", Normalized: "John", Confidence: 0.3},
	})
	first := reviewJob(t, s, "docs/a.pdf", base, map[string]entity.Field{
		"declared_income": {Value: "1,000", Normalized: "1000.00", Confidence: 0.5},
		"holder_name":     {Value: "JANE", Normalized: "Jane", Confidence: 0.4},
	})

	// completed jobs must not appear
	done := entity.NewDocumentJob(uuid.New(), "docs/done.pdf", "income-certificate-v1")
	done.Status = constants.JobStatusComplete
	if err := s.Save(context.Background(), done); err != nil {
		t.Fatal(err)
	}

	svc := NewService(s, nil)
	data, err := svc.ExportReviewXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportReviewXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Review")
	if err != nil {
		t.Fatalf("reading sheet: %v", err)
	}
	// header + 2 fields for the earlier job + 1 field for the later one
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(rows))
	}
	if rows[0][0] != "Job ID" || rows[0][3] != "Field" {
		t.Errorf("header = %v", rows[0])
	}

	// sorted by submission time, fields alphabetical within a job
	if rows[1][0] != first.ID.String() || rows[1][3] != "declared_income" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][3] != "holder_name" || rows[2][5] != "Jane" {
		t.Errorf("row 2 = %v", rows[2])
	}
	if rows[3][0] != second.ID.String() || rows[3][5] != "John" {
		t.Errorf("row 3 = %v", rows[3])
	}
}

func TestExportReviewXLSXEmpty(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil)

	data, err := svc.ExportReviewXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportReviewXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Review")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
