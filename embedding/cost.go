package embedding

import "sync/atomic"

// CostTracker is a rolling, observational counter of billed embedding
// tokens split by whether they went through the batch API (roughly half
// price) or the synchronous fallback. No control-flow decision in docvault
// depends on its value; it exists purely to report the batch API's cost
// reduction.
type CostTracker struct {
	batchTokens atomic.Int64
	syncTokens  atomic.Int64
}

func NewCostTracker() *CostTracker {
	return &CostTracker{}
}

func (t *CostTracker) RecordBatch(tokens int) {
	t.batchTokens.Add(int64(tokens))
}

func (t *CostTracker) RecordSync(tokens int) {
	t.syncTokens.Add(int64(tokens))
}

// Snapshot reports cumulative token counts and the fraction routed through
// the cheaper batch path.
type Snapshot struct {
	BatchTokens   int64
	SyncTokens    int64
	BatchFraction float64
}

func (t *CostTracker) Snapshot() Snapshot {
	batch := t.batchTokens.Load()
	sync := t.syncTokens.Load()
	total := batch + sync
	frac := 0.0
	if total > 0 {
		frac = float64(batch) / float64(total)
	}
	return Snapshot{BatchTokens: batch, SyncTokens: sync, BatchFraction: frac}
}
