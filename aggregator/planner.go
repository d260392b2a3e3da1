package aggregator

import (
	"bytes"
	"context"
	"fmt"
)

// flushPlan is the output of planFlush: a contiguous byte stream assembled
// from the head-of-queue appends, and how many queue entries it consumes.
type flushPlan struct {
	data        []byte
	count       int
	totalLength int64
}

// planFlush walks the queue from the head, accumulating contiguous
// Append/CachedAppend payloads until the next operation is not
// an append, or including it would exceed MaxFlushSizeBytes with at least
// one operation already included.
func (a *Aggregator) planFlush(ctx context.Context) (*flushPlan, error) {
	var buf bytes.Buffer
	plan := &flushPlan{}

	for _, op := range a.operations {
		if !op.isAppendLike() {
			break
		}
		if plan.count > 0 && plan.totalLength+op.Length > a.config.MaxFlushSizeBytes {
			break
		}

		var payload []byte
		switch op.Kind {
		case OpAppend:
			payload = op.Data
		case OpCachedAppend:
			fetched, err := a.dataSource.GetAppendData(ctx, op.CacheKey)
			if err != nil {
				return nil, err
			}
			if fetched == nil {
				a.logger.Errorf("segment %d: cache miss for key %q", op.SegmentID, op.CacheKey)
				return nil, &CorruptionError{
					Op:     "planFlush",
					Detail: fmt.Sprintf("cache miss for append at offset %d, key %q", op.Offset, op.CacheKey),
				}
			}
			payload = fetched
		}

		buf.Write(payload)
		plan.totalLength += op.Length
		plan.count++
	}

	plan.data = buf.Bytes()
	return plan, nil
}
