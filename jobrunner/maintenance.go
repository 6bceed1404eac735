package jobrunner

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepCacheInterval is the fixed cadence at which the runner asks the
// query cache to drop its expired entries; it does not need to track
// Config.CacheTTL since an entry past TTL is simply skipped on next read,
// this only bounds memory between reads.
const sweepCacheInterval = 5 * time.Minute

// startMaintenance registers the lease-reaper, job-purge, and cache-sweep
// tasks on a cron.Cron running "@every" schedules derived from Config,
// the way the teacher's core/trigger.CronTrigger wraps robfig/cron/v3 for
// its own fixed-interval background work. Unlike CronTrigger, which binds
// each schedule to a worker.Worker and the broker's message-passing
// lifecycle, these tasks run free functions closing over the Runner, since
// lease reaping has no message to ack.
func (r *Runner) startMaintenance(ctx context.Context) *cron.Cron {
	c := cron.New()

	mustEvery(c, r.cfg.ReapInterval, func() { r.reap(ctx) })
	mustEvery(c, r.cfg.PurgeInterval, func() { r.purge(ctx) })
	if r.sweeper != nil {
		mustEvery(c, sweepCacheInterval, func() { r.sweeper.Sweep() })
	}

	c.Start()
	return c
}

// mustEvery registers fn on an "@every d" schedule. The schedule spec is
// built from a fixed, already-validated Config duration, so a parse error
// here would be a programming error, not a runtime condition to recover
// from.
func mustEvery(c *cron.Cron, d time.Duration, fn func()) {
	if _, err := c.AddFunc("@every "+d.String(), fn); err != nil {
		panic("jobrunner: invalid maintenance schedule: " + err.Error())
	}
}

func (r *Runner) reap(ctx context.Context) {
	reclaimed, err := r.store.Jobs.ReapExpiredLeases(ctx, r.cfg.LeaseTTL)
	if err != nil {
		slog.Error("lease reap failed", "err", err)
		return
	}
	if len(reclaimed) > 0 {
		slog.Info("reclaimed expired job leases", "count", len(reclaimed))
	}
}

func (r *Runner) purge(ctx context.Context) {
	n, err := r.store.Jobs.PurgeOlderThan(ctx, r.cfg.JobRetention)
	if err != nil {
		slog.Error("job purge failed", "err", err)
		return
	}
	if n > 0 {
		slog.Info("purged terminal jobs past retention", "count", n)
	}
}
