package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"docverify/constants"
	"docverify/internal/pipeline"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []struct {
		jobID uuid.UUID
		ref   string
		set   string
	}
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, jobID uuid.UUID, sourceRef, ruleSetID string) (*pipeline.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, struct {
		jobID uuid.UUID
		ref   string
		set   string
	}{jobID, sourceRef, ruleSetID})
	return &pipeline.Handle{JobID: jobID, Status: constants.JobStatusPending}, nil
}

func (f *fakeSubmitter) submitted() []struct {
	jobID uuid.UUID
	ref   string
	set   string
} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(f.calls[:0:0], f.calls...)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAllowed(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"scan.pdf", true},
		{"sub/dir/photo.JPG", true},
		{"a.jpeg", true},
		{"a.png", true},
		{"notes.txt", false},
		{"archive.pdf.bak", false},
		{"noext", false},
	}
	for _, c := range cases {
		if got := allowed(c.path, defaultExts); got != c.want {
			t.Errorf("allowed(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestContentIDStableAcrossNames(t *testing.T) {
	root := t.TempDir()
	body := []byte("%PDF-1.4 certificate body")
	for _, name := range []string{"a.pdf", "copy-of-a.pdf"} {
		if err := os.WriteFile(filepath.Join(root, name), body, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "other.pdf"), []byte("different bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(root, "income-certificate-v1", &fakeSubmitter{}, quiet())

	idA, err := svc.contentID("a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	idCopy, err := svc.contentID("copy-of-a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	idOther, err := svc.contentID("other.pdf")
	if err != nil {
		t.Fatal(err)
	}

	if idA != idCopy {
		t.Errorf("identical bytes produced different ids: %s vs %s", idA, idCopy)
	}
	if idA == idOther {
		t.Error("distinct bytes produced the same id")
	}
	if idA == uuid.Nil {
		t.Error("content id is the zero uuid")
	}

	again, err := svc.contentID("a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if again != idA {
		t.Error("content id changed between reads")
	}
}

func TestContentIDUnreadable(t *testing.T) {
	svc := NewService(t.TempDir(), "income-certificate-v1", &fakeSubmitter{}, quiet())
	if _, err := svc.contentID("missing.pdf"); err == nil {
		t.Error("expected error for a missing document")
	}
}

func TestSubmitDuplicateContentLogged(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "doc.pdf"), []byte("%PDF body"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &fakeSubmitter{err: pipeline.ErrConflict}
	svc := NewService(root, "income-certificate-v1", sub, quiet())

	// A conflict from the pipeline is treated as "already submitted",
	// not an error: submit must not panic or retry.
	svc.submit(context.Background(), "doc.pdf")
	if got := sub.submitted(); len(got) != 0 {
		t.Errorf("conflicting submit recorded %d calls, want 0", len(got))
	}
}

func TestRunInitialScan(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "one.pdf"), []byte("%PDF one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "two.png"), []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "skip.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	sub := &fakeSubmitter{}
	svc := NewService(root, "income-certificate-v1", sub, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx, WatchConfig{InitialScan: true, Debounce: 10 * time.Millisecond})
	}()

	deadline := time.After(5 * time.Second)
	for {
		if len(sub.submitted()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for submissions, got %d", len(sub.submitted()))
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	refs := map[string]string{}
	for _, c := range sub.submitted() {
		refs[c.ref] = c.set
	}
	if _, ok := refs["one.pdf"]; !ok {
		t.Errorf("one.pdf not submitted: %v", refs)
	}
	if _, ok := refs[filepath.Join("sub", "two.png")]; !ok {
		t.Errorf("sub/two.png not submitted: %v", refs)
	}
	if _, ok := refs["skip.txt"]; ok {
		t.Error("skip.txt submitted despite disallowed extension")
	}
	for ref, set := range refs {
		if set != "income-certificate-v1" {
			t.Errorf("ref %q submitted with rule set %q", ref, set)
		}
	}
}
