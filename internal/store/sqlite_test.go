package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"docverify/constants"
	"docverify/internal/entity"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := entity.NewDocumentJob(uuid.New(), "docs/a.pdf", "income-certificate-v1")
	job.Status = constants.JobStatusRecognizing
	job.RecordAttempt(constants.StageFetch)
	job.SourcePath = "/tmp/cache/source.bin"
	job.PagePaths = []string{"/tmp/cache/page-1.png"}
	job.RecognizedText = "hello"
	job.Regions = []entity.Region{{Start: 0, End: 5, Confidence: 0.9}}
	job.Fields = map[string]entity.Field{
		"name": {Value: "Jane", Normalized: "Jane", Confidence: 0.8},
	}
	job.LastError = &entity.ErrorInfo{Kind: "TRANSIENT_IO", Message: "flaky read"}

	if err := s.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != constants.JobStatusRecognizing {
		t.Errorf("status = %s", got.Status)
	}
	if got.AttemptCount(constants.StageFetch) != 1 {
		t.Errorf("fetch attempts = %d", got.AttemptCount(constants.StageFetch))
	}
	if got.SourcePath != job.SourcePath || len(got.PagePaths) != 1 {
		t.Errorf("artifacts lost: %+v", got)
	}
	if got.RecognizedText != "hello" || len(got.Regions) != 1 {
		t.Errorf("recognition snapshot lost: %+v", got)
	}
	if got.Fields["name"].Normalized != "Jane" {
		t.Errorf("fields lost: %+v", got.Fields)
	}
	if got.LastError == nil || got.LastError.Kind != "TRANSIENT_IO" {
		t.Errorf("last error lost: %+v", got.LastError)
	}
}

func TestSQLiteSaveIsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := entity.NewDocumentJob(uuid.New(), "docs/a.pdf", "set-1")
	if err := s.Save(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Status = constants.JobStatusComplete
	if err := s.Save(ctx, job); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusComplete {
		t.Errorf("status = %s after re-save", got.Status)
	}
}

func TestSQLiteGetNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteListNonTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	running := entity.NewDocumentJob(uuid.New(), "a.pdf", "s")
	running.Status = constants.JobStatusConverting
	done := entity.NewDocumentJob(uuid.New(), "b.pdf", "s")
	done.Status = constants.JobStatusComplete
	review := entity.NewDocumentJob(uuid.New(), "c.pdf", "s")
	review.Status = constants.JobStatusNeedsReview
	failed := entity.NewDocumentJob(uuid.New(), "d.pdf", "s")
	failed.Status = constants.JobStatusFailed

	for _, j := range []*entity.DocumentJob{running, done, review, failed} {
		if err := s.Save(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := s.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("ListNonTerminal: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != running.ID {
		t.Errorf("non-terminal jobs = %+v, want only the converting one", jobs)
	}

	reviews, err := s.ListByStatus(ctx, constants.JobStatusNeedsReview)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(reviews) != 1 || reviews[0].ID != review.ID {
		t.Errorf("review jobs = %+v", reviews)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := entity.NewDocumentJob(uuid.New(), "a.pdf", "s")
	if err := s.Save(ctx, job); err != nil {
		t.Fatal(err)
	}

	// mutating the caller's copy must not leak into the store
	job.Status = constants.JobStatusFailed
	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != constants.JobStatusPending {
		t.Errorf("stored status mutated to %s", got.Status)
	}

	// mutating a returned snapshot must not leak either
	got.Status = constants.JobStatusFailed
	again, _ := s.Get(ctx, job.ID)
	if again.Status != constants.JobStatusPending {
		t.Errorf("snapshot mutation leaked: %s", again.Status)
	}
}
