// Package admin implements the admin-operations surface: enqueueing add and
// remove jobs, reporting job and source status, and appending an audit entry
// for every call. It is the only component toolreg's fixed management tools
// talk to; the query tools talk to query.Engine directly.
package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wyrecliff/docvault/docerr"
	"github.com/wyrecliff/docvault/store"
)

// AddResult is returned from Add: the job id and its current status, which
// is "queued" on a fresh enqueue or whatever status an already in-flight job
// for the same source currently has.
type AddResult struct {
	JobID  uuid.UUID
	Status store.JobStatus
}

// Ops is the admin-operations facade over the Store, audited on every call.
type Ops struct {
	store *store.Store
	audit *AuditLog
}

// New builds an Ops backed by st, recording audit entries via log.
func New(st *store.Store, log *AuditLog) *Ops {
	return &Ops{store: st, audit: log}
}

// Add enqueues an add job for (docType, sourceName) at version, or returns
// the existing queued/running job if one is already in flight — a duplicate
// enqueue is treated as success: EnqueueIfAbsent hands back the existing job
// rather than an error, and its id is returned to the caller.
func (o *Ops) Add(ctx context.Context, actor, docType, sourceName, version string) (*AddResult, error) {
	if sourceName == "" {
		return nil, docerr.InvalidField("name", "source name must not be empty")
	}
	if version == "" {
		version = "latest"
	}

	var job *store.Job
	err := o.store.Pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		j, _, txErr := o.store.Jobs.WithTx(tx).EnqueueIfAbsent(ctx, docType, sourceName, store.OpAdd, false)
		if txErr != nil {
			return txErr
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("admin: enqueue add job: %w", err)
	}

	o.audit.Append(ctx, actor, "add", sourceName, &job.ID)
	return &AddResult{JobID: job.ID, Status: job.Status}, nil
}

// Remove enqueues a remove job for (docType, sourceName). When soft is true
// the job disables the source and retains its documents instead of deleting
// them.
func (o *Ops) Remove(ctx context.Context, actor, docType, sourceName string, soft bool) (*AddResult, error) {
	if sourceName == "" {
		return nil, docerr.InvalidField("name", "source name must not be empty")
	}

	var job *store.Job
	err := o.store.Pool.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		j, _, txErr := o.store.Jobs.WithTx(tx).EnqueueIfAbsent(ctx, docType, sourceName, store.OpRemove, soft)
		if txErr != nil {
			return txErr
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("admin: enqueue remove job: %w", err)
	}

	o.audit.Append(ctx, actor, "remove", sourceName, &job.ID)
	return &AddResult{JobID: job.ID, Status: job.Status}, nil
}

// StatusResult is one job's externally visible state.
type StatusResult struct {
	JobID      uuid.UUID
	SourceName string
	Operation  store.JobOperation
	Status     store.JobStatus
	Progress   int
	Error      *string
}

// Status returns a single job's state by id, or the most recent jobs when id
// is nil.
func (o *Ops) Status(ctx context.Context, actor string, id *uuid.UUID, recentLimit int) ([]StatusResult, error) {
	var jobs []*store.Job
	if id != nil {
		job, err := o.store.Jobs.ByID(ctx, *id)
		if err != nil {
			return nil, docerr.Wrap(docerr.NotFound, fmt.Sprintf("job %s not found", *id), err)
		}
		jobs = []*store.Job{job}
	} else {
		recent, err := o.store.Jobs.Recent(ctx, recentLimit)
		if err != nil {
			return nil, fmt.Errorf("admin: list recent jobs: %w", err)
		}
		jobs = recent
	}

	o.audit.Append(ctx, actor, "status", statusTarget(id), nil)

	out := make([]StatusResult, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, StatusResult{
			JobID:      j.ID,
			SourceName: j.SourceName,
			Operation:  j.Operation,
			Status:     j.Status,
			Progress:   j.Progress,
			Error:      j.Error,
		})
	}
	return out, nil
}

func statusTarget(id *uuid.UUID) string {
	if id == nil {
		return "*"
	}
	return id.String()
}

// ListResult is one page of DocumentSource rows.
type ListResult struct {
	Sources []*store.DocumentSource
	Total   int
}

// List paginates DocumentSource rows, optionally filtered by name pattern.
func (o *Ops) List(ctx context.Context, actor string, f store.ListFilter) (*ListResult, error) {
	sources, total, err := o.store.Sources.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("admin: list sources: %w", err)
	}

	o.audit.Append(ctx, actor, "list", f.NamePattern, nil)
	return &ListResult{Sources: sources, Total: total}, nil
}
