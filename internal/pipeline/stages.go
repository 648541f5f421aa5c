package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docverify/constants"
	"docverify/internal/common"
	"docverify/internal/entity"
	"docverify/internal/extract"
)

// runStage executes the stage for the job's current status, mutating the
// job's artifacts in place, and returns the status the job advances to
// on success. Stage errors come back typed; classification into
// retry-vs-fail happens in handleFailure, never here.
func (o *Orchestrator) runStage(ctx context.Context, job *entity.DocumentJob) (constants.JobStatus, error) {
	switch job.Status {
	case constants.JobStatusFetching:
		return constants.JobStatusConverting, o.runFetch(ctx, job)
	case constants.JobStatusConverting:
		return constants.JobStatusRecognizing, o.runConvert(ctx, job)
	case constants.JobStatusRecognizing:
		return constants.JobStatusExtracting, o.runRecognize(ctx, job)
	case constants.JobStatusExtracting:
		return constants.JobStatusPersisting, o.runExtract(job)
	case constants.JobStatusPersisting:
		return job.PendingStatus, o.runPersist(ctx, job)
	default:
		return "", common.Errorf(common.KindTransient, "no stage for status %s", job.Status)
	}
}

// runFetch reads the source bytes and caches them so a resumed job does
// not re-fetch.
func (o *Orchestrator) runFetch(ctx context.Context, job *entity.DocumentJob) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	data, err := o.ad.Fetcher.Fetch(ctx, job.SourceRef)
	if err != nil {
		return err
	}

	dir := filepath.Join(o.cfg.ArtifactCacheDir, job.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return common.NewError(common.KindTransient, "create artifact cache", err)
	}
	path := filepath.Join(dir, "source.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return common.NewError(common.KindTransient, "cache source bytes", err)
	}
	job.SourcePath = path
	return nil
}

func (o *Orchestrator) runConvert(ctx context.Context, job *entity.DocumentJob) error {
	data, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return common.NewError(common.KindTransient, "read cached source", err)
	}

	pages, err := o.ad.Converter.Convert(ctx, job.ID.String(), data)
	if err != nil {
		return err
	}
	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.Path
	}
	job.PagePaths = paths
	return nil
}

// runRecognize recognizes page one; current rule-sets only target the
// first page, and the converter already cached the rest.
func (o *Orchestrator) runRecognize(ctx context.Context, job *entity.DocumentJob) error {
	if len(job.PagePaths) == 0 {
		return common.Errorf(common.KindConversion, "no pages available for recognition")
	}
	res, err := o.ad.Recognizer.Recognize(ctx, job.PagePaths[0])
	if err != nil {
		return err
	}
	job.RecognizedText = res.Text
	job.Regions = res.Regions
	return nil
}

// runExtract applies the rule-set and decides the pending terminal
// outcome: COMPLETE, or NEEDS_REVIEW when a required field is absent or
// under-confident. Extracted fields are write-once per job.
func (o *Orchestrator) runExtract(job *entity.DocumentJob) error {
	set, err := o.rules.Get(job.RuleSetID)
	if err != nil {
		return common.NewError(common.KindRuleSetConfig, fmt.Sprintf("rule-set %q", job.RuleSetID), err)
	}

	if len(job.Fields) == 0 {
		fields, overall := extract.Extract(job.RecognizedText, set, job.Regions)
		job.Fields = fields
		job.OverallConfidence = overall
	}

	review := false
	for _, rule := range set.Rules {
		if !rule.Required {
			continue
		}
		f, ok := job.Fields[rule.Field]
		if !ok || f.Confidence < rule.MinConfidence {
			review = true
			break
		}
	}
	if !review && job.OverallConfidence < set.ReviewThreshold {
		review = true
	}

	job.ReviewRequired = review
	if review {
		job.PendingStatus = constants.JobStatusNeedsReview
	} else {
		job.PendingStatus = constants.JobStatusComplete
	}
	return nil
}

// runPersist writes the terminal record through the gateway. On success
// the job's own status advances to the pending terminal (the caller
// checkpoints it), which keeps crash-and-resume re-persists idempotent.
func (o *Orchestrator) runPersist(ctx context.Context, job *entity.DocumentJob) error {
	if job.PendingStatus == "" {
		// A checkpoint written by an older build could lack the pending
		// outcome; treat it as a review case rather than guessing COMPLETE.
		job.PendingStatus = constants.JobStatusNeedsReview
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.PersistTimeout)
	defer cancel()

	now := time.Now().UTC()
	record := job.Clone()
	record.Status = job.PendingStatus
	record.CompletedAt = &now

	if err := o.ad.Gateway.Persist(ctx, record); err != nil {
		return err
	}
	job.CompletedAt = &now
	return nil
}
