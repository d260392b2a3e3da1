package aggregator

import (
	"errors"
	"fmt"

	"confluence/base"
)

// Add validates and enqueues one operation. It is synchronous
// and must not suspend. Preconditions are checked in order; the first
// failure short-circuits without mutating the queue.
func (a *Aggregator) Add(op Operation) error {
	if a.closed {
		return ErrAlreadyClosed
	}
	if a.lastAddedOffset < 0 {
		return &ProgrammerError{Op: "Add", Err: ErrNotInitialized}
	}

	m := a.meta.Get()
	if op.Kind == OpMergeBatch {
		if m.ParentID != base.NoParent || op.SegmentID != m.ID {
			return &ProgrammerError{Op: "Add", Err: ErrIdentityMismatch}
		}
	} else if op.SegmentID != m.ID {
		return &ProgrammerError{Op: "Add", Err: ErrIdentityMismatch}
	}

	if a.hasSealPending {
		a.logger.Errorf("segment %s: rejecting %s, a seal is already pending", m.Name, op.Kind)
		return &CorruptionError{Op: "Add", Detail: "operation added after a seal is already pending"}
	}

	if op.Offset < 0 || op.Length < 0 {
		return &ProgrammerError{Op: "Add", Err: errors.New("offset and length must be >= 0")}
	}

	if op.Offset != a.lastAddedOffset {
		a.logger.Errorf("segment %s: offset gap, expected %d, got %d", m.Name, a.lastAddedOffset, op.Offset)
		return &CorruptionError{
			Op:     "Add",
			Detail: fmt.Sprintf("non-contiguous offset: expected %d, got %d", a.lastAddedOffset, op.Offset),
		}
	}

	if op.Offset+op.Length > m.DurableLogLength {
		a.logger.Errorf("segment %s: operation [%d, %d) extends beyond durable log length %d",
			m.Name, op.Offset, op.Offset+op.Length, m.DurableLogLength)
		return &CorruptionError{Op: "Add", Detail: "operation extends beyond durable log length"}
	}

	if op.Kind == OpSeal {
		if op.Offset != m.DurableLogLength || !m.Sealed {
			a.logger.Errorf("segment %s: seal offset %d / log length %d / log sealed %v mismatch",
				m.Name, op.Offset, m.DurableLogLength, m.Sealed)
			return &CorruptionError{Op: "Add", Detail: "seal offset or log seal flag mismatch"}
		}
	}

	if op.Kind == OpAppend || op.Kind == OpCachedAppend {
		if op.Length > a.config.MaxFlushSizeBytes {
			return &ProgrammerError{Op: "Add", Err: ErrAppendTooLarge}
		}
	}

	a.operations = append(a.operations, op)
	a.lastAddedOffset = op.Offset + op.Length
	switch op.Kind {
	case OpAppend, OpCachedAppend:
		a.outstandingLength += op.Length
	case OpMergeBatch:
		a.mergeBatchCount++
	case OpSeal:
		a.hasSealPending = true
	}
	return nil
}
