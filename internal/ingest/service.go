package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"docverify/internal/pipeline"
)

// jobNamespace seeds content-derived job ids. Stable across restarts so
// the same bytes always map to the same job.
var jobNamespace = uuid.MustParse("9d3f55c1-7a41-4a87-9a0b-1f2f6f3f8f10")

// Submitter accepts jobs for the pipeline.
type Submitter interface {
	Submit(ctx context.Context, jobID uuid.UUID, sourceRef, ruleSetID string) (*pipeline.Handle, error)
}

// Service auto-submits documents discovered under the document root.
// Job ids derive from the file content hash, so a file that is copied
// in twice (or rewritten with identical bytes) resolves to the job
// already submitted for it.
type Service struct {
	root      string
	ruleSetID string
	submitter Submitter
	logger    *slog.Logger
}

func NewService(root, ruleSetID string, submitter Submitter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{root: root, ruleSetID: ruleSetID, submitter: submitter, logger: logger}
}

// Run consumes watch events until ctx is done.
func (s *Service) Run(ctx context.Context, cfg WatchConfig) error {
	cfg.Root = s.root
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	refs, err := Watch(ctx, cfg, s.logger)
	if err != nil {
		return err
	}
	for ref := range refs {
		s.submit(ctx, ref)
	}
	return nil
}

func (s *Service) submit(ctx context.Context, ref string) {
	jobID, err := s.contentID(ref)
	if err != nil {
		s.logger.Warn("skipping unreadable document", "source_ref", ref, "error", err)
		return
	}

	handle, err := s.submitter.Submit(ctx, jobID, ref, s.ruleSetID)
	switch {
	case errors.Is(err, pipeline.ErrConflict):
		// Same bytes under a different name: the original submission wins.
		s.logger.Info("duplicate content, already submitted", "source_ref", ref, "job_id", jobID)
	case err != nil:
		s.logger.Error("auto-submit failed", "source_ref", ref, "error", err)
	default:
		s.logger.Info("document auto-submitted", "source_ref", ref, "job_id", handle.JobID, "status", handle.Status)
	}
}

func (s *Service) contentID(ref string) (uuid.UUID, error) {
	f, err := os.Open(filepath.Join(s.root, ref))
	if err != nil {
		return uuid.Nil, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(jobNamespace, h.Sum(nil)), nil
}
