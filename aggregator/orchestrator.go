package aggregator

import (
	"context"
	"time"
)

// Flush is the driver's entry point. Behavior depends on the
// queue head:
//
//   - If a seal is pending or a merge is queued, it drains every
//     contiguous append at the head regardless of threshold, then attempts
//     a merge, then a seal, in that order.
//   - Otherwise it flushes pure append backlog only while the size or time
//     threshold is still exceeded.
//
// A single deadline, carried by ctx, bounds every storage call across all
// iterations; the first iteration whose remaining budget is exhausted fails
// with ErrTimeout without mutating the queue.
func (a *Aggregator) Flush(ctx context.Context) (FlushResult, error) {
	if a.closed {
		return FlushResult{}, ErrAlreadyClosed
	}
	if a.lastAddedOffset < 0 {
		return FlushResult{}, &ProgrammerError{Op: "Flush", Err: ErrNotInitialized}
	}

	var result FlushResult

	if a.hasSealPending || a.mergeBatchCount > 0 {
		for a.headIsAppendLike() {
			if err := checkDeadline(ctx); err != nil {
				return result, err
			}
			fr, err := a.planAndFlushOnce(ctx)
			if err != nil {
				return result, err
			}
			result.FlushedBytes += fr.FlushedBytes
		}

		if err := checkDeadline(ctx); err != nil {
			return result, err
		}
		mr, err := a.mergeIfNecessary(ctx)
		if err != nil {
			return result, err
		}
		result.MergedBytes += mr.MergedBytes

		if err := checkDeadline(ctx); err != nil {
			return result, err
		}
		if err := a.sealIfNecessary(ctx); err != nil {
			return result, err
		}
		return result, nil
	}

	for a.thresholdExceeded() && a.headIsAppendLike() {
		if err := checkDeadline(ctx); err != nil {
			return result, err
		}
		fr, err := a.planAndFlushOnce(ctx)
		if err != nil {
			return result, err
		}
		result.FlushedBytes += fr.FlushedBytes
	}

	return result, nil
}

func (a *Aggregator) planAndFlushOnce(ctx context.Context) (FlushResult, error) {
	plan, err := a.planFlush(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	return a.flushOnce(ctx, plan)
}

// thresholdExceeded reports whether the size or time threshold alone (not
// seal/merge pendency) still calls for a flush.
func (a *Aggregator) thresholdExceeded() bool {
	return a.outstandingLength >= a.config.FlushThresholdBytes || time.Since(a.lastFlushAt) >= a.config.FlushThresholdTime
}

func checkDeadline(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
		return ErrTimeout
	}
	select {
	case <-ctx.Done():
		return ErrTimeout
	default:
		return nil
	}
}
