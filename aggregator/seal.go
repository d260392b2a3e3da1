package aggregator

import "context"

// sealIfNecessary finalizes the segment in storage and terminates the
// aggregator. A no-op unless a seal is pending and the queue
// head is the Seal operation.
func (a *Aggregator) sealIfNecessary(ctx context.Context) error {
	if !a.hasSealPending {
		return nil
	}
	if len(a.operations) == 0 || a.operations[0].Kind != OpSeal {
		return nil
	}

	m := a.meta.Get()
	if err := a.storage.Seal(ctx, m.Name); err != nil {
		return err
	}

	a.meta.SetSealedInStorage(true)
	a.operations = a.operations[1:]
	if len(a.operations) != 0 {
		a.logger.Fatalf("segment %s: %d operations remain queued after seal", m.Name, len(a.operations))
	}
	a.hasSealPending = false
	a.closed = true
	a.logger.Infof("segment %s sealed in storage, aggregator now closed", m.Name)
	return nil
}
