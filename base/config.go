package base

import (
	"flag"
	"time"
)

// Package-level flags, following the rest of this codebase's convention of
// exposing ambient configuration as flag vars rather than threading a config
// struct through every constructor.
var (
	FlagDataDirectory = flag.String("data_directory", "/tmp/confluence",
		"Root directory under which segment storage and container metadata are kept.")

	FlagFlushThresholdBytes = flag.Int64("flush_threshold_bytes", 4*1024*1024,
		"Outstanding append bytes at which a segment aggregator is due for a flush.")

	FlagFlushThresholdSeconds = flag.Int("flush_threshold_seconds", 5,
		"Seconds since the last flush at which a segment aggregator is due for a flush, even below the byte threshold.")

	FlagMaxFlushSizeBytes = flag.Int64("max_flush_size_bytes", 16*1024*1024,
		"Maximum number of bytes written to storage in a single storage write (and the largest single append accepted).")

	FlagDriverPollIntervalMillis = flag.Int("driver_poll_interval_millis", 250,
		"How often the driver checks each registered segment's MustFlush.")

	FlagDriverFlushDeadlineSeconds = flag.Int("driver_flush_deadline_seconds", 30,
		"Deadline applied to each individual Flush call the driver makes.")
)

// FlushThresholdTime returns FlagFlushThresholdSeconds as a time.Duration.
func FlushThresholdTime() time.Duration {
	return time.Duration(*FlagFlushThresholdSeconds) * time.Second
}

// DriverPollInterval returns FlagDriverPollIntervalMillis as a time.Duration.
func DriverPollInterval() time.Duration {
	return time.Duration(*FlagDriverPollIntervalMillis) * time.Millisecond
}

// DriverFlushDeadline returns FlagDriverFlushDeadlineSeconds as a time.Duration.
func DriverFlushDeadline() time.Duration {
	return time.Duration(*FlagDriverFlushDeadlineSeconds) * time.Second
}
