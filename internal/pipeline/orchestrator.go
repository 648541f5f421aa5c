// Package pipeline owns the document verification job state machine:
// it sequences fetch → convert → recognize → extract → persist, applies
// the retry/backoff policy per stage, enforces per-job exclusivity and
// exposes the submit/status contract to callers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docverify/constants"
	"docverify/internal/common"
	"docverify/internal/convert"
	"docverify/internal/entity"
	"docverify/internal/fetch"
	"docverify/internal/metrics"
	"docverify/internal/persist"
	"docverify/internal/recognize"
	"docverify/internal/rules"
	"docverify/internal/store"
)

// ErrConflict is returned when a job id is resubmitted with a different
// source reference or rule-set.
var ErrConflict = errors.New("job id already submitted with different parameters")

// Adapters are the injected stage collaborators. All are stateless with
// respect to job identity and safe for concurrent use across jobs.
type Adapters struct {
	Fetcher    fetch.Fetcher
	Converter  convert.Converter
	Recognizer recognize.Recognizer
	Gateway    persist.Gateway
}

type Config struct {
	Workers          int
	QueueSize        int
	MaxStageAttempts int           // transient-failure attempt cap per stage
	BackoffBase      time.Duration // first retry delay
	BackoffCap       time.Duration
	FetchTimeout     time.Duration
	PersistTimeout   time.Duration
	JobTimeout       time.Duration // per worker-slot occupancy
	ArtifactCacheDir string
}

func (c *Config) defaults() {
	if c.MaxStageAttempts <= 0 {
		c.MaxStageAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 10 * time.Second
	}
	if c.ArtifactCacheDir == "" {
		c.ArtifactCacheDir = "./tmp"
	}
}

// Handle is returned from Submit immediately; callers observe completion
// by polling Status or waiting on Done.
type Handle struct {
	JobID  uuid.UUID
	Status constants.JobStatus
	done   <-chan struct{}
}

// Done is closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

type jobState struct {
	handle *Handle
	done   chan struct{}

	mu     sync.Mutex
	cancel bool
}

// Orchestrator drives jobs through the pipeline. The jobID is the
// mutual-exclusion key: at most one execution per job at any time.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
	rules  *rules.Registry
	store  store.JobStore
	ad     Adapters
	queue  *workQueue

	mu     sync.Mutex
	active map[uuid.UUID]*jobState
}

func New(cfg Config, reg *rules.Registry, js store.JobStore, ad Adapters, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.defaults()
	o := &Orchestrator{
		cfg:    cfg,
		logger: logger,
		rules:  reg,
		store:  js,
		ad:     ad,
		active: make(map[uuid.UUID]*jobState),
	}
	o.queue = newWorkQueue(o.step, logger, cfg.Workers, cfg.QueueSize, cfg.JobTimeout)
	return o
}

// Submit accepts a verification job and returns immediately. Submitting
// an id already in flight with identical parameters is a no-op returning
// the existing handle; re-submitting a terminal job returns its snapshot
// handle. A generated id is used when jobID is uuid.Nil.
func (o *Orchestrator) Submit(ctx context.Context, jobID uuid.UUID, sourceRef, ruleSetID string) (*Handle, error) {
	if sourceRef == "" {
		return nil, fmt.Errorf("%w: source_ref is required", common.ErrInvalidInput)
	}
	if ruleSetID == "" {
		return nil, fmt.Errorf("%w: rule_set_id is required", common.ErrInvalidInput)
	}
	if _, err := o.rules.Get(ruleSetID); err != nil {
		return nil, fmt.Errorf("%w: rule-set %q", common.ErrInvalidInput, ruleSetID)
	}
	if jobID == uuid.Nil {
		jobID = uuid.New()
	}

	handle, owns, err := o.admit(ctx, jobID, sourceRef, ruleSetID)
	if err != nil {
		return nil, err
	}
	if owns {
		// Enqueue outside o.mu: a saturated queue applies backpressure
		// here, and workers need o.mu to finish their jobs.
		o.queue.Enqueue(jobID)
	}
	return handle, nil
}

// admit is the admission critical section: it resolves the handle and
// reports whether this call owns the initial enqueue.
func (o *Orchestrator) admit(ctx context.Context, jobID uuid.UUID, sourceRef, ruleSetID string) (*Handle, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if st, ok := o.active[jobID]; ok {
		if job, err := o.store.Get(ctx, jobID); err == nil {
			if job.SourceRef != sourceRef || job.RuleSetID != ruleSetID {
				return nil, false, ErrConflict
			}
		}
		o.logger.Debug("duplicate submission ignored", "job_id", jobID)
		return st.handle, false, nil
	}

	job, err := o.store.Get(ctx, jobID)
	switch {
	case err == nil:
		if job.SourceRef != sourceRef || job.RuleSetID != ruleSetID {
			return nil, false, ErrConflict
		}
		if job.Terminal() {
			return terminalHandle(job), false, nil
		}
		// Known but unowned (e.g. checkpointed before a restart): adopt it.
		st := o.activateLocked(jobID, job.Status)
		return st.handle, true, nil

	case errors.Is(err, store.ErrNotFound):
		job = entity.NewDocumentJob(jobID, sourceRef, ruleSetID)
		if err := o.store.Save(ctx, job); err != nil {
			return nil, false, fmt.Errorf("checkpoint new job: %w", err)
		}
		st := o.activateLocked(jobID, job.Status)
		metrics.JobsSubmittedTotal.Inc()
		o.logger.Info("job submitted", "job_id", jobID, "source_ref", sourceRef, "rule_set", ruleSetID)
		return st.handle, true, nil

	default:
		return nil, false, fmt.Errorf("load job: %w", err)
	}
}

// Status returns a read-only snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, jobID uuid.UUID) (*entity.DocumentJob, error) {
	return o.store.Get(ctx, jobID)
}

// Cancel requests cancellation of a non-terminal job. It takes effect at
// the next stage boundary; an in-flight external call completes but its
// result is discarded.
func (o *Orchestrator) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.store.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return fmt.Errorf("%w: job %s is already terminal", common.ErrInvalidInput, jobID)
	}

	job.CancelRequested = true
	job.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, job); err != nil {
		return fmt.Errorf("checkpoint cancel: %w", err)
	}

	o.mu.Lock()
	if st, ok := o.active[jobID]; ok {
		st.mu.Lock()
		st.cancel = true
		st.mu.Unlock()
	}
	o.mu.Unlock()

	o.logger.Info("cancellation requested", "job_id", jobID)
	return nil
}

// Recover re-enqueues every non-terminal checkpointed job at its last
// recorded status. Called once at startup before serving submissions.
func (o *Orchestrator) Recover(ctx context.Context) error {
	jobs, err := o.store.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list recoverable jobs: %w", err)
	}
	for _, job := range jobs {
		o.mu.Lock()
		_, owned := o.active[job.ID]
		if !owned {
			o.activateLocked(job.ID, job.Status)
		}
		o.mu.Unlock()
		if !owned {
			o.queue.Enqueue(job.ID)
			o.logger.Info("job recovered", "job_id", job.ID, "status", job.Status)
		}
	}
	return nil
}

// Shutdown drains the worker pool. Non-terminal jobs stay checkpointed.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.queue.Shutdown(ctx)
}

func (o *Orchestrator) activateLocked(jobID uuid.UUID, status constants.JobStatus) *jobState {
	done := make(chan struct{})
	st := &jobState{
		done:   done,
		handle: &Handle{JobID: jobID, Status: status, done: done},
	}
	o.active[jobID] = st
	return st
}

func terminalHandle(job *entity.DocumentJob) *Handle {
	done := make(chan struct{})
	close(done)
	return &Handle{JobID: job.ID, Status: job.Status, done: done}
}

// step runs one worker-slot occupancy for a job: stages execute in
// pipeline order until the job terminates, parks on a backoff timer, or
// the slot times out.
func (o *Orchestrator) step(ctx context.Context, jobID uuid.UUID) {
	for {
		job, err := o.store.Get(ctx, jobID)
		if err != nil {
			o.logger.Error("checkpoint read failed", "job_id", jobID, "error", err)
			o.queue.Park(jobID, o.cfg.BackoffBase)
			return
		}

		if job.Terminal() {
			o.release(job)
			return
		}

		if o.cancelRequested(jobID, job) && job.PendingStatus != constants.JobStatusFailed {
			o.logger.Info("job cancelled at stage boundary", "job_id", jobID, "status", job.Status)
			job.LastError = &entity.ErrorInfo{Kind: string(common.KindCancelled), Message: "cancelled by operator"}
			job.PendingStatus = constants.JobStatusFailed
			if !o.transition(ctx, job, constants.JobStatusPersisting) {
				return
			}
			continue
		}

		if job.Status == constants.JobStatusPending {
			if !o.transition(ctx, job, constants.JobStatusFetching) {
				return
			}
			continue
		}

		stage := constants.StageFor(job.Status)
		// Every execution counts, so two recognizer timeouts followed by
		// a success leave the counter at 3.
		job.RecordAttempt(stage)
		start := time.Now()
		metrics.StageAttemptsTotal.WithLabelValues(string(stage)).Inc()
		next, err := o.runStage(ctx, job)
		metrics.StageDurationSeconds.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())

		if err != nil {
			if parked := o.handleFailure(ctx, job, stage, err); parked {
				return
			}
			continue
		}

		job.LastError = nil
		if !o.transition(ctx, job, next) {
			return
		}
	}
}

// transition checkpoints the job at its new status before the next stage
// begins. Returns false when the checkpoint write failed and the job was
// parked instead.
func (o *Orchestrator) transition(ctx context.Context, job *entity.DocumentJob, next constants.JobStatus) bool {
	job.Status = next
	job.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, job); err != nil {
		o.logger.Error("checkpoint write failed", "job_id", job.ID, "status", next, "error", err)
		o.queue.Park(job.ID, o.cfg.BackoffBase)
		return false
	}
	if next.Terminal() {
		o.release(job)
		return false
	}
	return true
}

// handleFailure applies the retry policy: transient kinds are retried
// with exponential backoff up to the stage budget; fatal kinds and
// exhausted budgets route the job to FAILED through the gateway.
// Returns true when the job was parked (worker slot freed).
func (o *Orchestrator) handleFailure(ctx context.Context, job *entity.DocumentJob, stage constants.Stage, err error) bool {
	kind := common.KindOf(err)
	attempt := job.AttemptCount(stage)
	kindStr, msg := common.Message(err)
	job.LastError = &entity.ErrorInfo{Kind: kindStr, Message: msg}
	job.UpdatedAt = time.Now().UTC()

	budget := common.AttemptBudget(kind, o.cfg.MaxStageAttempts)
	if common.Retryable(kind) && attempt < budget {
		if serr := o.store.Save(ctx, job); serr != nil {
			o.logger.Error("checkpoint write failed", "job_id", job.ID, "error", serr)
		}
		delay := o.backoff(attempt)
		metrics.RetriesScheduledTotal.WithLabelValues(string(stage)).Inc()
		o.logger.Warn("stage failed, retry scheduled",
			"job_id", job.ID, "stage", stage, "kind", kind, "attempt", attempt, "delay", delay, "error", err)
		o.queue.Park(job.ID, delay)
		return true
	}

	o.logger.Error("stage failed terminally",
		"job_id", job.ID, "stage", stage, "kind", kind, "attempts", attempt, "error", err)

	if stage == constants.StagePersist {
		// The gateway itself is unreachable; the terminal record cannot be
		// written. Record the failure in the checkpoint and stop.
		now := time.Now().UTC()
		job.Status = constants.JobStatusFailed
		job.CompletedAt = &now
		if serr := o.store.Save(ctx, job); serr != nil {
			o.logger.Error("checkpoint write failed", "job_id", job.ID, "error", serr)
		}
		o.release(job)
		return true
	}

	job.PendingStatus = constants.JobStatusFailed
	return !o.transition(ctx, job, constants.JobStatusPersisting)
}

// backoff computes the delay before retry attempt n (1-based):
// base * 2^(n-1), capped.
func (o *Orchestrator) backoff(attempt int) time.Duration {
	d := o.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= o.cfg.BackoffCap {
			return o.cfg.BackoffCap
		}
	}
	if d > o.cfg.BackoffCap {
		return o.cfg.BackoffCap
	}
	return d
}

func (o *Orchestrator) cancelRequested(jobID uuid.UUID, job *entity.DocumentJob) bool {
	if job.CancelRequested {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if st, ok := o.active[jobID]; ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.cancel
	}
	return false
}

// release closes the job's handle and frees the exclusivity slot.
func (o *Orchestrator) release(job *entity.DocumentJob) {
	o.mu.Lock()
	st, ok := o.active[job.ID]
	if ok {
		delete(o.active, job.ID)
	}
	o.mu.Unlock()
	if ok {
		close(st.done)
		metrics.JobsFinishedTotal.WithLabelValues(string(job.Status)).Inc()
		o.logger.Info("job finished",
			"job_id", job.ID, "status", job.Status, "confidence", job.OverallConfidence)
	}
}
