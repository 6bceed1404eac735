package admin

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one row of the audit_log table: who did what to which
// target, and which job (if any) it produced.
type AuditEntry struct {
	Actor     string
	Operation string
	Target    string
	JobID     *uuid.UUID
	SessionID string
	At        time.Time
}

// AuditLog appends AuditEntry rows for every admin call. Append never fails
// the caller's operation: a write failure is logged and swallowed, since an
// audit gap must never block an admin action that otherwise succeeded.
type AuditLog struct {
	pool *pgxpool.Pool
}

// NewAuditLog builds an AuditLog writing to pool's audit_log table.
func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

// Append records one audit entry for operation against target, with an
// optional job id. actor may be empty when the caller is unauthenticated.
func (a *AuditLog) Append(ctx context.Context, actor, operation, target string, jobID *uuid.UUID) {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO audit_log (actor, operation, target, job_id) VALUES ($1, $2, $3, $4)
	`, nullableString(actor), operation, target, jobID)
	if err != nil {
		slog.Error("admin: append audit entry failed", "operation", operation, "target", target, "error", err)
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
