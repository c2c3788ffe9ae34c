// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
)

func init() {
	hoststat.Register(hoststat.MetricTypeMemory,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewMemoryCollector(logger, config)
		},
	)
}

var _ hoststat.PointCollector = (*MemoryCollector)(nil)

// MemoryCollector collects memory usage from /proc/meminfo
//
// All values are converted from kilobytes (as reported by the kernel) to
// bytes. Used memory follows the kernel's own estimate (MemAvailable) when
// it exists and falls back to the classic free+buffers+cached subtraction
// on kernels older than 3.14.
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#meminfo
type MemoryCollector struct {
	hoststat.BasePointCollector
	meminfoPath string
}

func NewMemoryCollector(logger logr.Logger, config hoststat.CollectionConfig) (*MemoryCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	capabilities := hoststat.CollectorCapabilities{
		SupportsOneShot:  true,
		MinKernelVersion: "2.6.0", // /proc/meminfo has been around forever
		Platforms:        []string{"linux"},
	}

	return &MemoryCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeMemory,
			"System Memory Collector",
			logger,
			config,
			capabilities,
		),
		meminfoPath: filepath.Join(config.HostProcPath, "meminfo"),
	}, nil
}

// Collect performs a one-shot collection of memory statistics
func (c *MemoryCollector) Collect(ctx context.Context) (any, error) {
	stats, err := parseFile(ctx, c.meminfoPath, ParseMemInfo)
	if err != nil {
		return nil, err
	}

	c.Logger().V(1).Info("Collected memory statistics",
		"used", stats.Used, "total", stats.Total, "memAvailableSupported", stats.MemAvailableSupported)
	return stats, nil
}

// ParseMemInfo parses /proc/meminfo content.
//
// Format:
//
//	FieldName:       value kB
//
// Lines without a colon and fields not modelled by MemorySnapshot are
// ignored. A value that is not an unsigned integer skips the line; a line
// with an empty key or no value at all is malformed.
func ParseMemInfo(r io.Reader) (hoststat.MemorySnapshot, error) {
	var stats hoststat.MemorySnapshot

	fieldMap := map[string]*uint64{
		"MemTotal":     &stats.Total,
		"MemFree":      &stats.Free,
		"MemAvailable": &stats.Available,
		"Buffers":      &stats.Buffers,
		"Cached":       &stats.Cached,
		"Active":       &stats.Active,
		"Inactive":     &stats.Inactive,
		"SwapCached":   &stats.SwapCached,
		"SwapTotal":    &stats.SwapTotal,
		"SwapFree":     &stats.SwapFree,
	}

	scanner := newLineScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value := strings.Fields(rest)
		if key == "" || len(value) == 0 {
			return hoststat.MemorySnapshot{}, fmt.Errorf("%w: meminfo line %q", hoststat.ErrMalformed, line)
		}

		kb, err := strconv.ParseUint(value[0], 10, 64)
		if err != nil {
			continue
		}

		if fieldPtr, ok := fieldMap[key]; ok {
			*fieldPtr = kb * 1024
			if key == "MemAvailable" {
				stats.MemAvailableSupported = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return hoststat.MemorySnapshot{}, sourceError("meminfo", err)
	}

	if stats.SwapFree > stats.SwapTotal {
		return hoststat.MemorySnapshot{}, fmt.Errorf("%w: SwapFree (%d) exceeds SwapTotal (%d)",
			hoststat.ErrMalformed, stats.SwapFree, stats.SwapTotal)
	}
	stats.SwapUsed = stats.SwapTotal - stats.SwapFree

	if stats.MemAvailableSupported {
		if stats.Available > stats.Total {
			return hoststat.MemorySnapshot{}, fmt.Errorf("%w: MemAvailable (%d) exceeds MemTotal (%d)",
				hoststat.ErrMalformed, stats.Available, stats.Total)
		}
		stats.Used = stats.Total - stats.Available
	} else {
		unused := stats.Free + stats.Buffers + stats.Cached
		if unused > stats.Total {
			return hoststat.MemorySnapshot{}, fmt.Errorf("%w: MemFree+Buffers+Cached (%d) exceeds MemTotal (%d)",
				hoststat.ErrMalformed, unused, stats.Total)
		}
		stats.Used = stats.Total - unused
	}

	return stats, nil
}
