package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"confluence/aggregator"
	"confluence/base"
	"confluence/internal/testutil"
)

func newTestDataSource(t *testing.T, name string) *SQLDataSource {
	t.Helper()
	dir := testutil.CreateTestDir(t, name)
	ds, err := NewSQLDataSource(SQLDataSourceOpts{RootDir: dir, ContainerID: "container-1"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ds.Close()) })
	return ds
}

func TestSQLDataSourceID(t *testing.T) {
	testutil.LogTestMarker("TestSQLDataSourceID")
	ds := newTestDataSource(t, "TestSQLDataSourceID")
	require.EqualValues(t, "container-1", ds.ID())
}

func TestSQLDataSourceSegmentMetadataRoundTrip(t *testing.T) {
	ds := newTestDataSource(t, "TestSQLDataSourceSegmentMetadataRoundTrip")
	ctx := context.Background()

	seed := aggregator.SegmentMetadata{
		ID:               2,
		ContainerID:      "container-1",
		Name:             "child-seg",
		ParentID:         1,
		DurableLogLength: 50,
		StorageLength:    50,
		Sealed:           true,
		SealedInStorage:  true,
	}
	require.NoError(t, ds.PutSegmentMetadata(seed))

	h, err := ds.GetSegmentMetadata(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, seed, h.Get())

	h.SetDeleted(true)
	require.True(t, h.Get().Deleted)

	h2, err := ds.GetSegmentMetadata(ctx, 2)
	require.NoError(t, err)
	require.True(t, h2.Get().Deleted)
}

func TestSQLDataSourceAppendDataCacheMiss(t *testing.T) {
	ds := newTestDataSource(t, "TestSQLDataSourceAppendDataCacheMiss")
	ctx := context.Background()

	data, err := ds.GetAppendData(ctx, "missing-key")
	require.NoError(t, err)
	require.Nil(t, data)

	require.NoError(t, ds.PutAppendData("present-key", []byte("payload")))
	data, err = ds.GetAppendData(ctx, "present-key")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)
}

func TestSQLDataSourceDeleteSegmentAndCompleteMerge(t *testing.T) {
	ds := newTestDataSource(t, "TestSQLDataSourceDeleteSegmentAndCompleteMerge")
	ctx := context.Background()

	require.NoError(t, ds.PutSegmentMetadata(aggregator.SegmentMetadata{ID: 3, Name: "seg-3"}))
	require.NoError(t, ds.DeleteSegment(ctx, "seg-3"))

	h, err := ds.GetSegmentMetadata(ctx, 3)
	require.NoError(t, err)
	require.True(t, h.Get().Deleted)

	require.NoError(t, ds.CompleteMerge(ctx, base.SegmentID(1), base.SegmentID(3)))
}
