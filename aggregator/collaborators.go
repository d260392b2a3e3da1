package aggregator

import (
	"context"

	"confluence/base"
)

// SegmentInfo is what the storage tier reports about a named segment.
type SegmentInfo struct {
	Length int64
	Sealed bool
}

// Storage is the narrow contract the aggregator needs from the backing
// object-style storage tier. Implementations must reject a Write
// whose offset does not equal the segment's current length.
type Storage interface {
	// GetInfo returns the current length and seal state of the named
	// segment. A segment with no prior writes reports length 0.
	GetInfo(ctx context.Context, name string) (SegmentInfo, error)

	// Write appends data (length bytes) to name at offset, which must equal
	// the segment's current length.
	Write(ctx context.Context, name string, offset int64, data []byte, length int64) error

	// Concat appends child's full contents onto parent's current tail and
	// removes child. This is the linearization point of a merge.
	Concat(ctx context.Context, parent string, child string) error

	// Seal idempotently closes name to further writes.
	Seal(ctx context.Context, name string) error
}

// DataSource is the narrow contract the aggregator needs from the
// container-wide metadata store and append-data cache.
type DataSource interface {
	// ID returns the owning container's ID.
	ID() base.ContainerID

	// GetAppendData fetches the payload for a CachedAppend by cache key.
	// A nil slice with a nil error indicates a cache miss, which the
	// planner treats as corruption.
	GetAppendData(ctx context.Context, cacheKey string) ([]byte, error)

	// GetSegmentMetadata resolves a child segment's metadata handle, for
	// use by the merge coordinator.
	GetSegmentMetadata(ctx context.Context, segmentID base.SegmentID) (MetadataUpdater, error)

	// DeleteSegment notifies the container that a merged-away child's
	// storage can be reclaimed.
	DeleteSegment(ctx context.Context, name string) error

	// CompleteMerge notifies the container that parentID has fully
	// absorbed childID.
	CompleteMerge(ctx context.Context, parentID base.SegmentID, childID base.SegmentID) error
}
