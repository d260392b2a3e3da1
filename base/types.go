// Package base holds small value types shared across the aggregator,
// storage, and data source packages.
package base

// SegmentID identifies a segment within a container.
type SegmentID int64

// NoParent is the sentinel ParentID for a stand-alone segment.
const NoParent SegmentID = 0

// ContainerID identifies the container a segment belongs to.
type ContainerID string

// Offset is a byte position within a segment or its durable log.
type Offset int64
