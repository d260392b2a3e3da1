// Package datasource provides a concrete, gorm/sqlite3-backed implementation
// of the aggregator's DataSource collaborator: the container-wide segment
// metadata store and append-data cache.
package datasource

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"

	"confluence/aggregator"
	"confluence/base"
	"confluence/logging"
)

const (
	metadataDirName = "metadata"
	metadataDbName  = "container.db"
)

// segmentMetadataRow is the gorm model backing one segment's metadata row.
type segmentMetadataRow struct {
	SegmentID        int64  `gorm:"primary_key"`
	ContainerID      string `gorm:"type:varchar(255)"`
	Name             string `gorm:"type:varchar(255);not null"`
	ParentID         int64
	DurableLogLength int64
	StorageLength    int64
	Sealed           bool
	SealedInStorage  bool
	Deleted          bool
}

// appendCacheRow is the gorm model backing one cached append payload.
type appendCacheRow struct {
	CacheKey string `gorm:"primary_key;type:varchar(255)"`
	Data     []byte `gorm:"type:BLOB"`
}

// SQLDataSource implements aggregator.DataSource on top of a sqlite3 database
// reached through gorm: one row per segment's metadata, keyed by segment ID,
// rather than one database per segment holding a single JSON blob.
type SQLDataSource struct {
	db          *gorm.DB
	containerID base.ContainerID
	logger      *logging.PrefixLogger
}

// SQLDataSourceOpts configures a new SQLDataSource.
type SQLDataSourceOpts struct {
	RootDir     string
	ContainerID base.ContainerID
	Logger      *logging.PrefixLogger
}

// NewSQLDataSource opens (creating and migrating if necessary) the
// container's metadata database.
func NewSQLDataSource(opts SQLDataSourceOpts) (*SQLDataSource, error) {
	mdirPath := path.Join(opts.RootDir, metadataDirName)
	if err := os.MkdirAll(mdirPath, 0774); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}
	dbPath := path.Join(mdirPath, metadataDbName)
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening metadata db at %s: %w", dbPath, err)
	}
	if dbc := db.AutoMigrate(&segmentMetadataRow{}, &appendCacheRow{}); dbc.Error != nil {
		return nil, fmt.Errorf("migrating metadata db: %w", dbc.Error)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewPrefixLogger(fmt.Sprintf("datasource:%s", opts.ContainerID))
	}

	return &SQLDataSource{db: db, containerID: opts.ContainerID, logger: logger}, nil
}

// Close releases the underlying database handle.
func (ds *SQLDataSource) Close() error {
	return ds.db.Close()
}

// ID returns the owning container's ID.
func (ds *SQLDataSource) ID() base.ContainerID {
	return ds.containerID
}

// PutSegmentMetadata creates or replaces the row for m.ID. Callers (e.g. a
// driver creating a new segment) use this to seed the row an Aggregator will
// later read through GetSegmentMetadata.
func (ds *SQLDataSource) PutSegmentMetadata(m aggregator.SegmentMetadata) error {
	row := rowFromMetadata(m)
	return ds.db.Save(&row).Error
}

// PutAppendData seeds the append-data cache with the payload for cacheKey,
// as the replication path would before handing a CachedAppend to the
// Aggregator.
func (ds *SQLDataSource) PutAppendData(cacheKey string, data []byte) error {
	row := appendCacheRow{CacheKey: cacheKey, Data: data}
	return ds.db.Save(&row).Error
}

// GetAppendData fetches the payload for a CachedAppend by cache key. A
// missing row is reported as a nil slice and nil error: the planner treats
// that as a cache miss, which is corruption, not a transient error.
func (ds *SQLDataSource) GetAppendData(ctx context.Context, cacheKey string) ([]byte, error) {
	var row appendCacheRow
	dbc := ds.db.Where("cache_key = ?", cacheKey).First(&row)
	if dbc.Error != nil {
		if gorm.IsRecordNotFoundError(dbc.Error) {
			return nil, nil
		}
		return nil, dbc.Error
	}
	return row.Data, nil
}

// GetSegmentMetadata resolves segmentID's row into a handle the merge
// coordinator can both read and mutate.
func (ds *SQLDataSource) GetSegmentMetadata(ctx context.Context, segmentID base.SegmentID) (aggregator.MetadataUpdater, error) {
	var row segmentMetadataRow
	dbc := ds.db.Where("segment_id = ?", int64(segmentID)).First(&row)
	if dbc.Error != nil {
		return nil, dbc.Error
	}
	return &sqlMetadataHandle{ds: ds, row: row}, nil
}

// DeleteSegment notifies the container that a merged-away child's storage
// can be reclaimed. It marks the row deleted rather than removing it, so a
// handle loaded afterwards through GetSegmentMetadata still observes Deleted.
// A handle loaded earlier keeps its own copy of the row and does not see
// the change.
func (ds *SQLDataSource) DeleteSegment(ctx context.Context, name string) error {
	dbc := ds.db.Model(&segmentMetadataRow{}).Where("name = ?", name).Update("deleted", true)
	if dbc.Error != nil {
		return dbc.Error
	}
	ds.logger.Infof("marked segment %s deleted", name)
	return nil
}

// CompleteMerge notifies the container that parentID has fully absorbed
// childID. The parent's own metadata row is kept in sync by the Aggregator
// through MetadataUpdater; this hook exists for container bookkeeping (e.g.
// updating a segment index) that is out of scope here.
func (ds *SQLDataSource) CompleteMerge(ctx context.Context, parentID base.SegmentID, childID base.SegmentID) error {
	ds.logger.Infof("segment %d absorbed child %d", parentID, childID)
	return nil
}

func rowFromMetadata(m aggregator.SegmentMetadata) segmentMetadataRow {
	return segmentMetadataRow{
		SegmentID:        int64(m.ID),
		ContainerID:      string(m.ContainerID),
		Name:             m.Name,
		ParentID:         int64(m.ParentID),
		DurableLogLength: m.DurableLogLength,
		StorageLength:    m.StorageLength,
		Sealed:           m.Sealed,
		SealedInStorage:  m.SealedInStorage,
		Deleted:          m.Deleted,
	}
}

func (r segmentMetadataRow) toMetadata() aggregator.SegmentMetadata {
	return aggregator.SegmentMetadata{
		ID:               base.SegmentID(r.SegmentID),
		ContainerID:      base.ContainerID(r.ContainerID),
		Name:             r.Name,
		ParentID:         base.SegmentID(r.ParentID),
		DurableLogLength: r.DurableLogLength,
		StorageLength:    r.StorageLength,
		Sealed:           r.Sealed,
		SealedInStorage:  r.SealedInStorage,
		Deleted:          r.Deleted,
	}
}

// sqlMetadataHandle implements aggregator.MetadataUpdater, persisting every
// mutation back to the row it was loaded from.
type sqlMetadataHandle struct {
	ds  *SQLDataSource
	row segmentMetadataRow
}

func (h *sqlMetadataHandle) Get() aggregator.SegmentMetadata {
	return h.row.toMetadata()
}

func (h *sqlMetadataHandle) save() {
	if err := h.ds.db.Save(&h.row).Error; err != nil {
		h.ds.logger.Errorf("failed to persist segment %d metadata: %s", h.row.SegmentID, err)
	}
}

func (h *sqlMetadataHandle) SetStorageLength(length int64) {
	h.row.StorageLength = length
	h.save()
}

func (h *sqlMetadataHandle) SetSealedInStorage(sealed bool) {
	h.row.SealedInStorage = sealed
	h.save()
}

func (h *sqlMetadataHandle) SetSealed(sealed bool) {
	h.row.Sealed = sealed
	h.save()
}

func (h *sqlMetadataHandle) SetDeleted(deleted bool) {
	h.row.Deleted = deleted
	h.save()
}

var _ aggregator.DataSource = (*SQLDataSource)(nil)
