package aggregator

import (
	"context"
	"time"
)

// flushOnce executes one planned write. The queue is mutated
// only after storage.Write succeeds, so a cancelled or failed call leaves
// the aggregator in a consistent, retry-able state.
func (a *Aggregator) flushOnce(ctx context.Context, plan *flushPlan) (FlushResult, error) {
	if plan.totalLength == 0 {
		return FlushResult{}, nil
	}

	m := a.meta.Get()
	if err := a.storage.Write(ctx, m.Name, m.StorageLength, plan.data, plan.totalLength); err != nil {
		return FlushResult{}, err
	}

	for i := 0; i < plan.count; i++ {
		if !a.operations[i].isAppendLike() {
			a.logger.Fatalf("flush plan for segment %s included a non-append operation at position %d", m.Name, i)
		}
	}
	a.operations = a.operations[plan.count:]
	a.meta.SetStorageLength(m.StorageLength + plan.totalLength)
	a.outstandingLength -= plan.totalLength
	a.lastFlushAt = time.Now()

	return FlushResult{FlushedBytes: plan.totalLength}, nil
}
