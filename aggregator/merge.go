package aggregator

import (
	"context"
	"fmt"
	"time"

	"confluence/base"
)

// mergeIfNecessary validates and executes the concat of a sealed child
// segment into this (stand-alone) segment. A no-op unless this
// aggregator is stand-alone and the queue head is a MergeBatch. Only one
// merge is processed per call; a child that is not yet fully drained is
// left at the head of the queue for a later Flush to retry.
func (a *Aggregator) mergeIfNecessary(ctx context.Context) (FlushResult, error) {
	m := a.meta.Get()
	if m.ParentID != base.NoParent {
		return FlushResult{}, nil
	}
	if len(a.operations) == 0 || a.operations[0].Kind != OpMergeBatch {
		return FlushResult{}, nil
	}
	op := a.operations[0]

	child, err := a.dataSource.GetSegmentMetadata(ctx, op.ChildID)
	if err != nil {
		return FlushResult{}, err
	}
	cm := child.Get()

	if cm.Deleted {
		a.logger.Errorf("segment %s: merge target child %d is already deleted", m.Name, op.ChildID)
		return FlushResult{}, &CorruptionError{Op: "Merge", Detail: "merge target child already deleted"}
	}
	if !cm.SealedInStorage || cm.DurableLogLength > cm.StorageLength {
		// The child hasn't finished draining yet. This is not an error;
		// the op stays at the head of the queue and the next Flush retries.
		a.logger.Infof("segment %s: merge target child %d not yet fully drained, deferring", m.Name, op.ChildID)
		return FlushResult{}, nil
	}

	childInfo, err := a.storage.GetInfo(ctx, cm.Name)
	if err != nil {
		return FlushResult{}, err
	}
	if childInfo.Length != cm.StorageLength {
		a.logger.Errorf("segment %s: child %s storage length %d disagrees with metadata %d pre-concat",
			m.Name, cm.Name, childInfo.Length, cm.StorageLength)
		return FlushResult{}, &CorruptionError{Op: "Merge", Detail: "child storage length disagrees with metadata pre-concat"}
	}

	if err := a.storage.Concat(ctx, m.Name, cm.Name); err != nil {
		return FlushResult{}, err
	}

	parentInfo, err := a.storage.GetInfo(ctx, m.Name)
	if err != nil {
		return FlushResult{}, err
	}
	expected := m.StorageLength + cm.StorageLength
	if parentInfo.Length != expected {
		a.logger.Errorf("segment %s: post-concat length %d does not match expected %d",
			m.Name, parentInfo.Length, expected)
		return FlushResult{}, &CorruptionError{
			Op:     "Merge",
			Detail: fmt.Sprintf("post-concat length mismatch: expected %d, got %d", expected, parentInfo.Length),
		}
	}

	a.operations = a.operations[1:]
	a.mergeBatchCount--
	a.meta.SetStorageLength(parentInfo.Length)
	if parentInfo.Sealed {
		a.meta.SetSealed(true)
		a.meta.SetSealedInStorage(true)
	}

	child.SetDeleted(true)
	if err := a.dataSource.DeleteSegment(ctx, cm.Name); err != nil {
		a.logger.Errorf("segment %s: failed to notify deletion of merged child %s: %s", m.Name, cm.Name, err)
	}
	if err := a.dataSource.CompleteMerge(ctx, m.ID, op.ChildID); err != nil {
		a.logger.Errorf("segment %s: failed to notify merge completion for child %s: %s", m.Name, cm.Name, err)
	}

	a.lastFlushAt = time.Now()
	return FlushResult{MergedBytes: cm.StorageLength}, nil
}
