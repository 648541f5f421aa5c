package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"

	"docverify/internal/common"
	"docverify/internal/entity"
)

// Gateway writes the final DocumentJob to the record store. Persist must
// be idempotent: re-persisting the same terminal job after a
// crash-and-resume upserts, never duplicates.
type Gateway interface {
	Persist(ctx context.Context, job *entity.DocumentJob) error
}

// PostgresGateway upserts terminal jobs keyed by job_id.
type PostgresGateway struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

func NewPostgresGateway(db *sql.DB, logger *slog.Logger) *PostgresGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGateway{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger: logger,
	}
}

func (g *PostgresGateway) Persist(ctx context.Context, job *entity.DocumentJob) error {
	attempts, err := json.Marshal(job.Attempts)
	if err != nil {
		return common.NewError(common.KindPersistence, "encode attempts", err)
	}
	var fields []byte
	if len(job.Fields) > 0 {
		fields, err = json.Marshal(job.Fields)
		if err != nil {
			return common.NewError(common.KindPersistence, "encode fields", err)
		}
	}

	var errKind, errMsg sql.NullString
	if job.LastError != nil {
		errKind = sql.NullString{String: job.LastError.Kind, Valid: true}
		errMsg = sql.NullString{String: job.LastError.Message, Valid: true}
	}
	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}

	query, args, err := g.sb.
		Insert("document_jobs").
		Columns("job_id", "source_ref", "rule_set_id", "status", "attempts", "fields",
			"overall_confidence", "error_kind", "error_message", "created_at", "completed_at").
		Values(job.ID, job.SourceRef, job.RuleSetID, string(job.Status), attempts, fields,
			job.OverallConfidence, errKind, errMsg, job.CreatedAt, completedAt).
		Suffix(`ON CONFLICT (job_id) DO UPDATE SET
			status             = EXCLUDED.status,
			attempts           = EXCLUDED.attempts,
			fields             = EXCLUDED.fields,
			overall_confidence = EXCLUDED.overall_confidence,
			error_kind         = EXCLUDED.error_kind,
			error_message      = EXCLUDED.error_message,
			completed_at       = EXCLUDED.completed_at,
			updated_at         = now()`).
		ToSql()
	if err != nil {
		return common.NewError(common.KindPersistence, "build upsert", err)
	}

	if _, err := g.db.ExecContext(ctx, query, args...); err != nil {
		g.logger.Error("record store upsert failed", "job_id", job.ID, "error", err)
		return common.NewError(common.KindPersistence, fmt.Sprintf("upsert job %s", job.ID), err)
	}
	g.logger.Info("job record persisted", "job_id", job.ID, "status", job.Status)
	return nil
}
