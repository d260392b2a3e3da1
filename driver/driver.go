// Package driver provides an example process-level owner of many
// aggregators: the "process-level writer" the core write path treats as an
// external caller. It polls MustFlush on a ticker and retries transient
// Flush failures with exponential backoff.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"confluence/aggregator"
	"confluence/base"
	"confluence/logging"
)

// Opts configures a Driver.
type Opts struct {
	// PollInterval is how often the driver checks each registered
	// aggregator's MustFlush.
	PollInterval time.Duration

	// FlushDeadline bounds each individual Flush call.
	FlushDeadline time.Duration

	// MaxFlushAttempts caps the retries for one poll's flush before the
	// driver gives up and logs the segment as stuck, leaving it registered
	// for the next poll.
	MaxFlushAttempts int

	Logger *logging.PrefixLogger
}

// Driver owns a set of live aggregators and drains them on a timer,
// retrying retryable failures. A real deployment wires one per storage
// container; callers register and unregister segments as they're created
// and sealed.
type Driver struct {
	opts   Opts
	logger *logging.PrefixLogger

	mu    sync.Mutex
	segs  map[base.SegmentID]*aggregator.Aggregator
	close chan struct{}
	done  chan struct{}
}

// New constructs a Driver. Call Run to start its background poll loop.
func New(opts Opts) *Driver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.FlushDeadline <= 0 {
		opts.FlushDeadline = 30 * time.Second
	}
	if opts.MaxFlushAttempts <= 0 {
		opts.MaxFlushAttempts = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewPrefixLogger("driver")
	}
	return &Driver{
		opts:   opts,
		logger: logger,
		segs:   make(map[base.SegmentID]*aggregator.Aggregator),
		close:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register adds an already-Initialize'd aggregator to the poll set.
func (d *Driver) Register(id base.SegmentID, agg *aggregator.Aggregator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.segs[id] = agg
	d.logger.Infof("registered segment %d with driver", id)
}

// Unregister removes a segment from the poll set, e.g. once it has sealed.
func (d *Driver) Unregister(id base.SegmentID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.segs, id)
}

// Run starts the background poll loop. It returns immediately; call Stop to
// terminate it.
func (d *Driver) Run() {
	go d.pollLoop()
}

// Stop terminates the poll loop and waits for it to exit.
func (d *Driver) Stop() {
	close(d.close)
	<-d.done
}

func (d *Driver) pollLoop() {
	defer close(d.done)
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	d.logger.Infof("driver poll loop started")
	for {
		select {
		case <-d.close:
			d.logger.Infof("driver poll loop exiting")
			return
		case <-ticker.C:
			d.pollOnce()
		}
	}
}

func (d *Driver) pollOnce() {
	d.mu.Lock()
	due := make(map[base.SegmentID]*aggregator.Aggregator, len(d.segs))
	for id, agg := range d.segs {
		if agg.IsClosed() {
			delete(d.segs, id)
			continue
		}
		if agg.MustFlush() {
			due[id] = agg
		}
	}
	d.mu.Unlock()

	for id, agg := range due {
		if err := d.flushWithRetry(id, agg); err != nil {
			d.logger.Errorf("segment %d: flush did not complete after retries: %s", id, err)
		}
	}
}

// flushWithRetry drives one segment's Flush to completion, retrying
// ErrTimeout and any error the aggregator's collaborators surface as
// transient (anything that isn't a ProgrammerError/CorruptionError).
// A ProgrammerError or CorruptionError aborts immediately: both indicate a
// bug or a torn invariant that retrying cannot fix.
func (d *Driver) flushWithRetry(id base.SegmentID, agg *aggregator.Aggregator) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0

	attempt := 0
	for {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.FlushDeadline)
		_, err := agg.Flush(ctx)
		cancel()
		if err == nil {
			return nil
		}

		var pe *aggregator.ProgrammerError
		var ce *aggregator.CorruptionError
		if errors.As(err, &pe) || errors.As(err, &ce) {
			return err
		}

		if attempt >= d.opts.MaxFlushAttempts {
			return fmt.Errorf("exhausted %d attempts: %w", attempt, err)
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("backoff exhausted: %w", err)
		}
		d.logger.Warningf("segment %d: flush attempt %d failed (%s), retrying in %s", id, attempt, err, wait)
		time.Sleep(wait)
	}
}
