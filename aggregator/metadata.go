package aggregator

import "confluence/base"

// SegmentMetadata is the subset of a segment's container-owned metadata the
// aggregator reads and, for a narrow set of fields, mutates. It is a plain
// snapshot; mutation happens exclusively through MetadataUpdater so that
// fields the aggregator must never touch (DurableLogLength, Sealed other
// than after a merge into a parent that storage reports sealed) stay under
// the container's control.
type SegmentMetadata struct {
	ID          base.SegmentID
	ContainerID base.ContainerID
	Name        string
	ParentID    base.SegmentID

	// DurableLogLength is the high-water mark accepted into the durable log.
	// Monotone non-decreasing; read-only here.
	DurableLogLength int64

	// StorageLength is bytes confirmed durably written to storage. Mutated
	// only by the aggregator.
	StorageLength int64

	// Sealed is true once the log has accepted a seal. Read-only here
	// except when a post-concat storage query reports the parent sealed.
	Sealed bool

	// SealedInStorage is true once the storage tier has acknowledged seal.
	// Mutated only by the aggregator.
	SealedInStorage bool

	// Deleted is set when a merged child segment is retired.
	Deleted bool
}

// MetadataUpdater is the narrow mutation capability handed to an Aggregator
// for one segment's metadata. All other fields on the underlying metadata
// remain under the owner's (container's) control.
type MetadataUpdater interface {
	// Get returns the current metadata snapshot.
	Get() SegmentMetadata

	// SetStorageLength records newly-confirmed durable storage bytes.
	SetStorageLength(length int64)

	// SetSealedInStorage records that the storage tier acknowledged seal.
	SetSealedInStorage(sealed bool)

	// SetSealed is used only by the merge coordinator, when storage reports
	// the parent sealed after a concat; ordinarily Sealed is set by the
	// durable log, not the aggregator.
	SetSealed(sealed bool)

	// SetDeleted marks a merged-away child segment retired.
	SetDeleted(deleted bool)
}
