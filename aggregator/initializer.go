package aggregator

import (
	"context"
	"time"
)

// Initialize reconciles in-memory metadata against storage at startup. It
// must be called exactly once, before any Add/Flush call.
func (a *Aggregator) Initialize(ctx context.Context) error {
	if a.closed {
		return ErrAlreadyClosed
	}
	if a.lastAddedOffset >= 0 {
		return &ProgrammerError{Op: "Initialize", Err: ErrAlreadyInitialized}
	}

	m := a.meta.Get()
	info, err := a.storage.GetInfo(ctx, m.Name)
	if err != nil {
		return err
	}

	if info.Length != m.StorageLength {
		a.logger.Infof("segment %s: metadata storage length %d disagrees with storage length %d at init, "+
			"reconciling from storage (the log may have replayed past a prior flush)",
			m.Name, m.StorageLength, info.Length)
		a.meta.SetStorageLength(info.Length)
		m.StorageLength = info.Length
	}

	if info.Sealed && !m.Sealed {
		a.logger.Errorf("segment %s: storage reports sealed but metadata does not; storage cannot seal on "+
			"its own, this is corruption", m.Name)
		return &CorruptionError{Op: "Initialize", Detail: "storage sealed but metadata not sealed"}
	}

	a.lastAddedOffset = m.StorageLength
	a.lastFlushAt = time.Now()
	return nil
}
