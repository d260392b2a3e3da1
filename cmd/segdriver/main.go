// Command segdriver is a minimal example process that wires together the
// concrete Storage and DataSource implementations with the driver's poll
// loop, the way a real container-owning process would. It exists to show
// the pieces assembled, not as a production entry point.
package main

import (
	"context"
	"flag"
	"path"

	"confluence/aggregator"
	"confluence/base"
	"confluence/datasource"
	"confluence/driver"
	"confluence/logging"
	"confluence/storage"
)

var (
	containerID = flag.String("container_id", "container-0", "Container ID this process owns.")
	segmentName = flag.String("segment_name", "seg-0", "Name of the example segment to create and drive.")
)

func main() {
	flag.Parse()
	logger := logging.NewPrefixLogger("segdriver")

	st, err := storage.NewBadgerStorage(storage.BadgerStorageOpts{
		RootDir: path.Join(*base.FlagDataDirectory, "storage"),
		Logger:  logging.NewPrefixLoggerWithParent("storage", logger),
	})
	if err != nil {
		logger.Fatalf("unable to open storage: %s", err)
	}
	defer st.Close()

	ds, err := datasource.NewSQLDataSource(datasource.SQLDataSourceOpts{
		RootDir:     path.Join(*base.FlagDataDirectory, "metadata"),
		ContainerID: base.ContainerID(*containerID),
		Logger:      logging.NewPrefixLoggerWithParent("datasource", logger),
	})
	if err != nil {
		logger.Fatalf("unable to open data source: %s", err)
	}
	defer ds.Close()

	segID := base.SegmentID(1)
	seed := aggregator.SegmentMetadata{
		ID:               segID,
		ContainerID:      base.ContainerID(*containerID),
		Name:             *segmentName,
		ParentID:         base.NoParent,
		DurableLogLength: 0,
	}
	if err := ds.PutSegmentMetadata(seed); err != nil {
		logger.Fatalf("unable to seed segment metadata: %s", err)
	}

	handle, err := ds.GetSegmentMetadata(context.Background(), segID)
	if err != nil {
		logger.Fatalf("unable to load segment metadata: %s", err)
	}

	cfg := aggregator.Config{
		FlushThresholdBytes: *base.FlagFlushThresholdBytes,
		FlushThresholdTime:  base.FlushThresholdTime(),
		MaxFlushSizeBytes:   *base.FlagMaxFlushSizeBytes,
	}
	agg := aggregator.New(handle, st, ds, cfg, logging.NewPrefixLoggerWithParent("aggregator", logger))
	if err := agg.Initialize(context.Background()); err != nil {
		logger.Fatalf("unable to initialize aggregator: %s", err)
	}

	d := driver.New(driver.Opts{
		PollInterval:  base.DriverPollInterval(),
		FlushDeadline: base.DriverFlushDeadline(),
		Logger:        logging.NewPrefixLoggerWithParent("driver", logger),
	})
	d.Register(segID, agg)
	d.Run()

	logger.Infof("segdriver running against container %s, segment %s; ctrl-c to exit", *containerID, *segmentName)
	select {}
}
