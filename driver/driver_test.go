package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"confluence/aggregator"
	"confluence/base"
	"confluence/logging"
)

type memMetadata struct{ m aggregator.SegmentMetadata }

func (h *memMetadata) Get() aggregator.SegmentMetadata  { return h.m }
func (h *memMetadata) SetStorageLength(length int64)    { h.m.StorageLength = length }
func (h *memMetadata) SetSealedInStorage(sealed bool)   { h.m.SealedInStorage = sealed }
func (h *memMetadata) SetSealed(sealed bool)            { h.m.Sealed = sealed }
func (h *memMetadata) SetDeleted(deleted bool)          { h.m.Deleted = deleted }

type memSegment struct {
	data   []byte
	sealed bool
}

type memStorage struct {
	segs map[string]*memSegment
}

func newMemStorage() *memStorage { return &memStorage{segs: make(map[string]*memSegment)} }

func (s *memStorage) seg(name string) *memSegment {
	seg, ok := s.segs[name]
	if !ok {
		seg = &memSegment{}
		s.segs[name] = seg
	}
	return seg
}

func (s *memStorage) GetInfo(ctx context.Context, name string) (aggregator.SegmentInfo, error) {
	seg := s.seg(name)
	return aggregator.SegmentInfo{Length: int64(len(seg.data)), Sealed: seg.sealed}, nil
}

func (s *memStorage) Write(ctx context.Context, name string, offset int64, data []byte, length int64) error {
	seg := s.seg(name)
	seg.data = append(seg.data, data[:length]...)
	return nil
}

func (s *memStorage) Concat(ctx context.Context, parent string, child string) error {
	p, c := s.seg(parent), s.seg(child)
	p.data = append(p.data, c.data...)
	delete(s.segs, child)
	return nil
}

func (s *memStorage) Seal(ctx context.Context, name string) error {
	s.seg(name).sealed = true
	return nil
}

type memDataSource struct{}

func (memDataSource) ID() base.ContainerID { return "container-1" }
func (memDataSource) GetAppendData(ctx context.Context, cacheKey string) ([]byte, error) {
	return nil, nil
}
func (memDataSource) GetSegmentMetadata(ctx context.Context, segmentID base.SegmentID) (aggregator.MetadataUpdater, error) {
	return nil, nil
}
func (memDataSource) DeleteSegment(ctx context.Context, name string) error { return nil }
func (memDataSource) CompleteMerge(ctx context.Context, parentID base.SegmentID, childID base.SegmentID) error {
	return nil
}

func TestDriverFlushesRegisteredSegmentOnThreshold(t *testing.T) {
	storage := newMemStorage()
	meta := &memMetadata{m: aggregator.SegmentMetadata{ID: 1, Name: "seg-1", DurableLogLength: 30}}
	cfg := aggregator.Config{FlushThresholdBytes: 10, FlushThresholdTime: time.Hour, MaxFlushSizeBytes: 1000}
	agg := aggregator.New(meta, storage, memDataSource{}, cfg, logging.NewPrefixLogger("driver-test"))
	require.NoError(t, agg.Initialize(context.Background()))
	require.NoError(t, agg.Add(aggregator.NewAppend(1, 0, make([]byte, 30))))
	require.True(t, agg.MustFlush())

	d := New(Opts{PollInterval: 10 * time.Millisecond, FlushDeadline: time.Second})
	d.Register(1, agg)
	d.pollOnce()

	require.EqualValues(t, 30, meta.Get().StorageLength)
}

func TestDriverUnregistersClosedSegment(t *testing.T) {
	storage := newMemStorage()
	meta := &memMetadata{m: aggregator.SegmentMetadata{ID: 1, Name: "seg-1", DurableLogLength: 0, Sealed: true}}
	agg := aggregator.New(meta, storage, memDataSource{}, aggregator.Config{
		FlushThresholdBytes: 100, FlushThresholdTime: time.Hour, MaxFlushSizeBytes: 1000,
	}, logging.NewPrefixLogger("driver-test"))
	require.NoError(t, agg.Initialize(context.Background()))
	require.NoError(t, agg.Add(aggregator.NewSeal(1, 0)))
	_, err := agg.Flush(context.Background())
	require.NoError(t, err)
	require.True(t, agg.IsClosed())

	d := New(Opts{})
	d.Register(1, agg)
	d.pollOnce()

	d.mu.Lock()
	_, stillRegistered := d.segs[1]
	d.mu.Unlock()
	require.False(t, stillRegistered)
}
