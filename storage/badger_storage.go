// Package storage provides a concrete, badger-backed implementation of the
// aggregator's Storage collaborator. It exists to make the aggregator's
// contract testable and runnable end to end; it is not a full object-tier
// client (no multipart upload, no remote transport).
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"

	"confluence/aggregator"
	"confluence/logging"
)

const (
	dataKeyPrefix   = "data:"
	sealedKeyPrefix = "sealed:"
)

// badgerLogAdapter adapts a PrefixLogger to badger's internal Logger
// interface, which additionally requires Debugf.
type badgerLogAdapter struct {
	*logging.PrefixLogger
}

func (a badgerLogAdapter) Debugf(format string, args ...interface{}) {
	a.VInfof(2, format, args...)
}

// BadgerStorage implements aggregator.Storage. Every named segment is a
// single contiguous byte value inside one badger instance; Write appends at
// the tail under a single-key transaction, Concat copies the child's bytes
// onto the parent's tail and drops the child's keys, Seal flips a sealed
// marker key.
type BadgerStorage struct {
	db      *badger.DB
	rootDir string
	logger  *logging.PrefixLogger

	// concatLock holds one mutex per parent segment, serializing Concat
	// calls for that parent; concatMu guards the map itself. Badger has no
	// compare-and-swap primitive for "atomically absorb another key's
	// value", so the lock substitutes for one. Only one aggregator
	// instance ever drives a given segment's merge calls, so in practice
	// this lock is defensive rather than correctness-critical.
	concatMu   sync.Mutex
	concatLock map[string]*sync.Mutex
}

// BadgerStorageOpts configures a new BadgerStorage.
type BadgerStorageOpts struct {
	RootDir string
	Logger  *logging.PrefixLogger
}

// NewBadgerStorage opens (creating if necessary) a badger instance rooted at
// opts.RootDir.
func NewBadgerStorage(opts BadgerStorageOpts) (*BadgerStorage, error) {
	if err := os.MkdirAll(opts.RootDir, 0774); err != nil {
		return nil, fmt.Errorf("creating storage root directory: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewPrefixLogger(fmt.Sprintf("storage:%s", opts.RootDir))
	}

	dbOpts := badger.DefaultOptions(path.Join(opts.RootDir, "badger"))
	dbOpts.SyncWrites = true
	dbOpts.Logger = badgerLogAdapter{logger}
	dbOpts.Compression = options.None

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return &BadgerStorage{
		db:         db,
		rootDir:    opts.RootDir,
		logger:     logger,
		concatLock: make(map[string]*sync.Mutex),
	}, nil
}

// Close releases the underlying badger instance.
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

func (s *BadgerStorage) lockFor(name string) *sync.Mutex {
	s.concatMu.Lock()
	defer s.concatMu.Unlock()
	l, ok := s.concatLock[name]
	if !ok {
		l = &sync.Mutex{}
		s.concatLock[name] = l
	}
	return l
}

func dataKey(name string) []byte   { return []byte(dataKeyPrefix + name) }
func sealedKey(name string) []byte { return []byte(sealedKeyPrefix + name) }

func (s *BadgerStorage) readData(txn *badger.Txn, name string) ([]byte, error) {
	item, err := txn.Get(dataKey(name))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *BadgerStorage) isSealed(txn *badger.Txn, name string) (bool, error) {
	_, err := txn.Get(sealedKey(name))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetInfo returns the current length and seal state of name.
func (s *BadgerStorage) GetInfo(ctx context.Context, name string) (aggregator.SegmentInfo, error) {
	var info aggregator.SegmentInfo
	err := s.db.View(func(txn *badger.Txn) error {
		data, err := s.readData(txn, name)
		if err != nil {
			return err
		}
		info.Length = int64(len(data))
		sealed, err := s.isSealed(txn, name)
		if err != nil {
			return err
		}
		info.Sealed = sealed
		return nil
	})
	if err != nil {
		return aggregator.SegmentInfo{}, err
	}
	return info, nil
}

// Write appends length bytes of data at offset, failing unless offset is
// exactly the segment's current length.
func (s *BadgerStorage) Write(ctx context.Context, name string, offset int64, data []byte, length int64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		cur, err := s.readData(txn, name)
		if err != nil {
			return err
		}
		if int64(len(cur)) != offset {
			return &aggregator.CorruptionError{
				Op:     "storage.Write",
				Detail: fmt.Sprintf("segment %s: write offset %d disagrees with current length %d", name, offset, len(cur)),
			}
		}
		next := append(cur, data[:length]...)
		return txn.Set(dataKey(name), next)
	})
}

// Concat appends child's entire byte range onto parent's tail, then drops
// child's keys. Only one Concat per parent runs at a time.
func (s *BadgerStorage) Concat(ctx context.Context, parent string, child string) error {
	l := s.lockFor(parent)
	l.Lock()
	defer l.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		parentData, err := s.readData(txn, parent)
		if err != nil {
			return err
		}
		childData, err := s.readData(txn, child)
		if err != nil {
			return err
		}
		merged := append(parentData, childData...)
		if err := txn.Set(dataKey(parent), merged); err != nil {
			return err
		}
		if sealed, err := s.isSealed(txn, child); err != nil {
			return err
		} else if sealed {
			if err := txn.Delete(sealedKey(child)); err != nil {
				return err
			}
		}
		return txn.Delete(dataKey(child))
	})
}

// Seal marks name as sealed in storage. Idempotent.
func (s *BadgerStorage) Seal(ctx context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sealedKey(name), []byte{1})
	})
}

var _ aggregator.Storage = (*BadgerStorage)(nil)
