// Package aggregator implements the per-segment write-path component of the
// stream store: it takes an ordered stream of in-memory operations for one
// logical segment (appends, batch merges, seals) and flushes them durably to
// a Storage tier, preserving offset contiguity, at-most-once effects, and
// crash-safe validation against that tier.
//
// An Aggregator is single-threaded cooperative: the owning driver must
// serialize all calls to Initialize, Add, Flush, and Close. Add and
// MustFlush must not block; Initialize and Flush may suspend at storage I/O
// boundaries.
package aggregator

import (
	"time"

	"confluence/logging"
)

// uninitializedOffset is the sentinel value of lastAddedOffset before
// Initialize has run.
const uninitializedOffset = -1

// NoUncommittedOffset is returned by GetLowestUncommittedSequenceNumber when
// the operation queue is empty.
const NoUncommittedOffset int64 = -1

// FlushResult aggregates the bytes moved by one Flush call, across however
// many internal planner/executor/merge iterations it took.
type FlushResult struct {
	FlushedBytes int64
	MergedBytes  int64
}

// Aggregator is the per-segment write-path state machine described in
// the package doc above. Create one with New, call Initialize once, then drive it with
// Add/Flush/Close for the segment's lifetime.
type Aggregator struct {
	meta       MetadataUpdater
	storage    Storage
	dataSource DataSource
	config     Config
	logger     *logging.PrefixLogger

	operations        []Operation
	outstandingLength int64
	lastAddedOffset   int64
	mergeBatchCount   int
	hasSealPending    bool
	lastFlushAt       time.Time
	closed            bool
}

// New constructs an Aggregator bound to one segment's metadata handle. It
// must be Initialize'd before Add or Flush will accept calls.
func New(meta MetadataUpdater, storage Storage, dataSource DataSource, config Config, logger *logging.PrefixLogger) *Aggregator {
	return &Aggregator{
		meta:            meta,
		storage:         storage,
		dataSource:      dataSource,
		config:          config,
		logger:          logger,
		lastAddedOffset: uninitializedOffset,
	}
}

// IsClosed reports whether the aggregator is terminal. A closed aggregator
// must be discarded; every entry point fails on it.
func (a *Aggregator) IsClosed() bool {
	return a.closed
}

// GetMetadata returns the current metadata snapshot for this segment.
func (a *Aggregator) GetMetadata() SegmentMetadata {
	return a.meta.Get()
}

// GetElapsedSinceLastFlush returns the time since the most recent
// successful flush (or Initialize, if none has happened yet).
func (a *Aggregator) GetElapsedSinceLastFlush() time.Duration {
	return time.Since(a.lastFlushAt)
}

// GetLowestUncommittedSequenceNumber returns the offset of the head of the
// operation queue, or NoUncommittedOffset if the queue is empty.
func (a *Aggregator) GetLowestUncommittedSequenceNumber() int64 {
	if len(a.operations) == 0 {
		return NoUncommittedOffset
	}
	return a.operations[0].Offset
}

// Close idempotently terminates the aggregator. Metadata is externally
// owned and is not touched; only the operation queue is released. Further
// calls to Add/Flush/Initialize fail with ErrAlreadyClosed.
func (a *Aggregator) Close() {
	if a.closed {
		return
	}
	a.logger.Infof("closing aggregator for segment %d", a.meta.Get().ID)
	a.closed = true
	a.operations = nil
}

func (a *Aggregator) headIsAppendLike() bool {
	if len(a.operations) == 0 {
		return false
	}
	return a.operations[0].isAppendLike()
}
