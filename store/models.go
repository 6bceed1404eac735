// Package store owns all persistence: transactional DDL/DML over Postgres
// plus pgvector, the migration registry, and typed repository operations for
// Document, DocumentSource, and Job. No other component caches a mutable
// copy of a store row outside the query engine's bounded TTL cache.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Document is one indexable chunk of text with its embedding and metadata.
// The natural key (DocType, SourceName, DocPath) is unique; Embedding is
// nil until a backfill or ingest job populates it, and when present has
// exactly the configured dimension.
type Document struct {
	ID         uuid.UUID
	DocType    string
	SourceName string
	DocPath    string
	Content    string
	Metadata   map[string]any
	Embedding  []float32
	TokenCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DocumentSource represents one ingested origin, e.g. one crate at one
// version. The natural key (DocType, SourceName) is unique; the counters
// reflect committed documents and are recomputed at the end of every
// successful ingest or remove.
type DocumentSource struct {
	ID          uuid.UUID
	DocType     string
	SourceName  string
	Version     string
	Config      map[string]any
	Enabled     bool
	LastUpdated time.Time
	TotalDocs   int
	TotalTokens int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobStatus enumerates the lifecycle states a Job moves through.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is one of the job's terminal states.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobOperation enumerates what a Job does: add a source, or remove one.
type JobOperation string

const (
	OpAdd    JobOperation = "add"
	OpRemove JobOperation = "remove"
)

// Job is a durable record of an asynchronous ingest or remove operation. It
// survives process restart; SourceName is the single column name chosen to
// resolve the specification's source_name/crate_name naming ambiguity.
type Job struct {
	ID         uuid.UUID
	SourceName string
	DocType    string
	Operation  JobOperation
	SoftDelete bool
	Status     JobStatus
	Progress   int
	Error      *string
	StartedAt  *time.Time
	FinishedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
