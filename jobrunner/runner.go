package jobrunner

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wyrecliff/docvault/embedding"
	"github.com/wyrecliff/docvault/fetcher"
	"github.com/wyrecliff/docvault/store"
)

// Embedder is the subset of embedding.SyncClient the runner needs, narrowed
// to an interface so executeAdd can be tested against a fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (*embedding.Response, error)
}

// Config bounds the runner's worker pool and maintenance task cadence.
type Config struct {
	Workers       int
	IdleSleep     time.Duration // how long an idle worker waits before polling again
	LeaseTTL      time.Duration
	ReapInterval  time.Duration
	JobRetention  time.Duration
	PurgeInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 5 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = time.Minute
	}
	if c.JobRetention <= 0 {
		c.JobRetention = 30 * 24 * time.Hour
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = 24 * time.Hour
	}
	return c
}

// CacheSweeper is implemented by query.Cache; the runner drives its periodic
// expired-entry sweep so query has no background goroutine of its own.
type CacheSweeper interface {
	Sweep()
}

// Runner owns the worker pool that drains the job queue plus the
// maintenance goroutines that keep it healthy. The worker loop is adapted
// from the teacher's limiter-gated scheduler loop, generalized so "consume a
// broker message" becomes "claim a queued job row".
type Runner struct {
	cfg      Config
	store    *store.Store
	fetcher  *fetcher.Fetcher
	embedder Embedder
	sweeper  CacheSweeper

	cancel context.CancelFunc
	group  *errgroup.Group
	cron   *cron.Cron
}

// New builds a Runner. sweeper may be nil if no cache is wired (e.g. in
// tests that exercise only the worker pool).
func New(cfg Config, st *store.Store, f *fetcher.Fetcher, embedder Embedder, sweeper CacheSweeper) *Runner {
	return &Runner{cfg: cfg.withDefaults(), store: st, fetcher: f, embedder: embedder, sweeper: sweeper}
}

// Start launches the worker pool and the three maintenance goroutines. It
// returns immediately; call Stop to shut everything down.
func (r *Runner) Start(ctx context.Context) {
	nctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	group, gctx := errgroup.WithContext(nctx)
	r.group = group

	for i := 0; i < r.cfg.Workers; i++ {
		group.Go(func() error {
			r.workerLoop(gctx)
			return nil
		})
	}
	r.cron = r.startMaintenance(gctx)
}

// Stop cancels every worker and maintenance goroutine and waits for them to
// return.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	if r.group == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- r.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workerLoop claims the oldest queued job, executes it, transitions it to a
// terminal status, and repeats. An idle worker sleeps IdleSleep between
// polls rather than hammering the database.
func (r *Runner) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := r.store.Jobs.ClaimNext(ctx)
		if err != nil {
			slog.Error("claim next job failed", "err", err)
			r.sleep(ctx, r.cfg.IdleSleep)
			continue
		}
		if job == nil {
			r.sleep(ctx, r.cfg.IdleSleep)
			continue
		}

		r.runJob(ctx, job)
	}
}

func (r *Runner) runJob(ctx context.Context, job *store.Job) {
	var err error
	switch job.Operation {
	case store.OpAdd:
		err = r.executeAdd(ctx, job)
	case store.OpRemove:
		err = r.executeRemove(ctx, job, job.SoftDelete)
	default:
		msg := "unknown job operation: " + string(job.Operation)
		err = &unknownOperationError{msg}
	}

	status := store.JobCompleted
	var jobErr *string
	if err != nil {
		status = store.JobFailed
		msg := err.Error()
		jobErr = &msg
		slog.Error("job execution failed", "job_id", job.ID, "source_name", job.SourceName, "operation", job.Operation, "err", err)
	}

	if terr := r.store.Jobs.Transition(ctx, job.ID, status, jobErr); terr != nil {
		slog.Error("job transition failed", "job_id", job.ID, "err", terr)
	}
}

type unknownOperationError struct{ msg string }

func (e *unknownOperationError) Error() string { return e.msg }

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
