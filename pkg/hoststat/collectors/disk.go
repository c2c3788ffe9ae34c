// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
)

func init() {
	hoststat.Register(hoststat.MetricTypeDisk,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewDiskCollector(logger, config)
		},
	)
}

// /proc/diskstats columns (0-based). There is no header line.
const (
	// diskstatsFieldCount is the number of fields of the original 2.6 format
	// (3 identification + 11 metrics). Newer kernels append more.
	diskstatsFieldCount = 14

	diskNameField            = 2
	diskReadsCompletedField  = 3
	diskWritesCompletedField = 7
)

var _ hoststat.PointCollector = (*DiskCollector)(nil)

// DiskCollector collects per-device I/O counters from /proc/diskstats
//
// Every device line is reported, partitions and virtual devices included;
// filtering is left to the caller.
//
// Reference: https://www.kernel.org/doc/Documentation/iostats.txt
type DiskCollector struct {
	hoststat.BasePointCollector
	diskstatsPath string
}

func NewDiskCollector(logger logr.Logger, config hoststat.CollectionConfig) (*DiskCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	capabilities := hoststat.CollectorCapabilities{
		SupportsOneShot:  true,
		MinKernelVersion: "2.6.0", // /proc/diskstats has been around since 2.6
		Platforms:        []string{"linux"},
	}

	return &DiskCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeDisk,
			"Disk I/O Statistics Collector",
			logger,
			config,
			capabilities,
		),
		diskstatsPath: filepath.Join(config.HostProcPath, "diskstats"),
	}, nil
}

func (c *DiskCollector) Collect(ctx context.Context) (any, error) {
	stats, err := parseFile(ctx, c.diskstatsPath, ParseDiskStats)
	if err != nil {
		return nil, err
	}

	c.Logger().V(1).Info("Collected disk statistics", "devices", len(stats))
	return stats, nil
}

// ParseDiskStats parses /proc/diskstats content.
//
// Format: major minor device reads_completed reads_merged sectors_read read_time
// writes_completed writes_merged sectors_written write_time ios_in_progress io_time weighted_io_time
//
// Lines shorter than 14 fields are not device lines and are skipped.
// A non-numeric counter on a device line is an error.
func ParseDiskStats(r io.Reader) ([]hoststat.DiskSnapshot, error) {
	var disks []hoststat.DiskSnapshot

	scanner := newLineScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < diskstatsFieldCount {
			continue
		}

		reads, err := parseUintField(fields, diskReadsCompletedField, "reads_completed")
		if err != nil {
			return nil, err
		}
		writes, err := parseUintField(fields, diskWritesCompletedField, "writes_completed")
		if err != nil {
			return nil, err
		}

		disks = append(disks, hoststat.DiskSnapshot{
			Name:            fields[diskNameField],
			ReadsCompleted:  reads,
			WritesCompleted: writes,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, sourceError("diskstats", err)
	}

	return disks, nil
}
