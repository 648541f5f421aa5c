// Package export produces reviewer-facing artifacts from job records.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"docverify/constants"
	"docverify/internal/store"
)

// Service is a tiny façade over the job store that produces XLSX bytes
// listing jobs waiting for manual review.
type Service struct {
	jobs   store.JobStore
	logger *slog.Logger
}

func NewService(jobs store.JobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportReviewXLSX returns an XLSX workbook (as bytes) with one row per
// extracted field of every NEEDS_REVIEW job, so a reviewer can complete
// the missing or low-confidence fields manually.
func (s *Service) ExportReviewXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.ListByStatus(ctx, constants.JobStatusNeedsReview)
	if err != nil {
		return nil, fmt.Errorf("query review jobs: %w", err)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })

	f := excelize.NewFile()
	const sheet = "Review"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Job ID",
		"Source Reference",
		"Rule Set",
		"Field",
		"Recognized Value",
		"Normalized Value",
		"Confidence",
		"Overall Confidence",
		"Submitted At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, job := range jobs {
		fieldNames := make([]string, 0, len(job.Fields))
		for name := range job.Fields {
			fieldNames = append(fieldNames, name)
		}
		sort.Strings(fieldNames)

		writeRow := func(field, value, normalized string, conf any) {
			values := []any{
				job.ID.String(),
				job.SourceRef,
				job.RuleSetID,
				field,
				value,
				normalized,
				conf,
				job.OverallConfidence,
				job.CreatedAt.Format(time.RFC3339),
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, row)
				_ = f.SetCellValue(sheet, cell, v)
			}
			row++
		}

		if len(fieldNames) == 0 {
			writeRow("(no fields)", "", "", "")
			continue
		}
		for _, name := range fieldNames {
			fld := job.Fields[name]
			writeRow(name, fld.Value, fld.Normalized, fld.Confidence)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("review export generated",
		"jobs", len(jobs), "rows", row-2, "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
