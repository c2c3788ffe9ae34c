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
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
	"github.com/shirou/gopsutil/v3/load"
)

func init() {
	hoststat.Register(hoststat.MetricTypeLoad,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewLoadCollector(logger, config)
		},
	)
}

const loadAverageSamples = 3

// LoadSampler returns the 1, 5 and 15 minute load averages as reported by the OS
type LoadSampler func(ctx context.Context) ([]float64, error)

var _ hoststat.PointCollector = (*LoadCollector)(nil)

// LoadCollector collects the system load averages
type LoadCollector struct {
	hoststat.BasePointCollector
	source hoststat.LoadSource
	sample LoadSampler
}

func NewLoadCollector(logger logr.Logger, config hoststat.CollectionConfig) (*LoadCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{}); err != nil {
		return nil, err
	}

	source := config.LoadSource
	if source == "" {
		source = hoststat.LoadSourceSyscall
	}

	var sampler LoadSampler
	capabilities := hoststat.CollectorCapabilities{SupportsOneShot: true}
	switch source {
	case hoststat.LoadSourceProcfs:
		if config.HostProcPath == "" {
			return nil, fmt.Errorf("HostProcPath is required for load source %q", source)
		}
		sampler = ProcfsLoadSampler(filepath.Join(config.HostProcPath, "loadavg"))
		capabilities.MinKernelVersion = "2.6.0" // /proc/loadavg has been around forever
		capabilities.Platforms = []string{"linux"}
	case hoststat.LoadSourceGopsutil:
		sampler = GopsutilLoadSampler
	default:
		sampler = SyscallLoadSampler
	}

	return NewLoadCollectorWithSampler(logger, config, source, sampler, capabilities), nil
}

// NewLoadCollectorWithSampler builds a LoadCollector around an arbitrary sampler
func NewLoadCollectorWithSampler(logger logr.Logger, config hoststat.CollectionConfig, source hoststat.LoadSource, sampler LoadSampler, capabilities hoststat.CollectorCapabilities) *LoadCollector {
	return &LoadCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeLoad,
			"System Load Collector",
			logger,
			config,
			capabilities,
		),
		source: source,
		sample: sampler,
	}
}

func (c *LoadCollector) Collect(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, err := c.sample(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sample load averages from %s: %w", hoststat.ErrSource, c.source, err)
	}

	avg, err := NewLoadAverage(samples)
	if err != nil {
		return nil, err
	}

	c.Logger().V(1).Info("Collected load averages",
		"source", c.source, "load1", avg.Load1, "load5", avg.Load5, "load15", avg.Load15)
	return avg, nil
}

// NewLoadAverage builds a LoadAverage from exactly three OS samples.
// Partial data is rejected, as are samples that cannot be a load average.
func NewLoadAverage(samples []float64) (hoststat.LoadAverage, error) {
	if len(samples) != loadAverageSamples {
		return hoststat.LoadAverage{}, fmt.Errorf("%w: got %d load average samples, want %d",
			hoststat.ErrSource, len(samples), loadAverageSamples)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) || s < 0 {
			return hoststat.LoadAverage{}, fmt.Errorf("%w: load average sample %d is invalid: %v",
				hoststat.ErrMalformed, i, s)
		}
	}

	return hoststat.LoadAverage{
		Load1:  samples[0],
		Load5:  samples[1],
		Load15: samples[2],
	}, nil
}

// ParseLoadavg parses /proc/loadavg content.
//
// Format: 0.00 0.01 0.05 1/234 5678
// Where: 1min 5min 15min running/total lastpid
//
// Only the three load averages are used.
func ParseLoadavg(r io.Reader) (hoststat.LoadAverage, error) {
	samples, err := parseLoadavgSamples(r)
	if err != nil {
		return hoststat.LoadAverage{}, err
	}
	return NewLoadAverage(samples)
}

func parseLoadavgSamples(r io.Reader) ([]float64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, sourceError("loadavg", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < loadAverageSamples {
		return nil, fmt.Errorf("%w: unexpected loadavg format: %q", hoststat.ErrMalformed, string(data))
	}

	samples := make([]float64, 0, loadAverageSamples)
	for _, field := range fields[:loadAverageSamples] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: load average %q: %w", hoststat.ErrMalformed, field, err)
		}
		samples = append(samples, v)
	}
	return samples, nil
}

// ProcfsLoadSampler reads the load averages from a loadavg file
func ProcfsLoadSampler(path string) LoadSampler {
	return func(ctx context.Context) ([]float64, error) {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer file.Close()
		return parseLoadavgSamples(file)
	}
}

// GopsutilLoadSampler reads the load averages through gopsutil, which works
// on every platform gopsutil supports.
func GopsutilLoadSampler(ctx context.Context) ([]float64, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return []float64{avg.Load1, avg.Load5, avg.Load15}, nil
}
