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
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
)

func init() {
	hoststat.Register(hoststat.MetricTypeCPU,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewCPUCollector(logger, config)
		},
	)
}

const (
	cpuLinePrefix = "cpu"

	// user nice system idle have been present since 2.4; the rest were
	// appended by later kernels (iowait/irq/softirq 2.6, steal 2.6.11,
	// guest 2.6.24, guest_nice 2.6.33).
	cpuMinFields = 4
)

// cpuFieldNames is the column order of the aggregate line after the "cpu" token.
var cpuFieldNames = [...]string{
	"user", "nice", "system", "idle", "iowait",
	"irq", "softirq", "steal", "guest", "guest_nice",
}

var _ hoststat.PointCollector = (*CPUCollector)(nil)

// CPUCollector collects aggregate CPU time from /proc/stat
//
// The CPU times are reported in "jiffies" (clock ticks), which can be converted
// to seconds by dividing by the system's USER_HZ value (typically 100).
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#proc-stat
type CPUCollector struct {
	hoststat.BasePointCollector
	statPath string
}

func NewCPUCollector(logger logr.Logger, config hoststat.CollectionConfig) (*CPUCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	capabilities := hoststat.CollectorCapabilities{
		SupportsOneShot:  true,
		MinKernelVersion: "2.6.0", // /proc/stat has been around forever
		Platforms:        []string{"linux"},
	}

	return &CPUCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeCPU,
			"CPU Statistics Collector",
			logger,
			config,
			capabilities,
		),
		statPath: filepath.Join(config.HostProcPath, "stat"),
	}, nil
}

// Collect performs a one-shot collection of CPU statistics
func (c *CPUCollector) Collect(ctx context.Context) (any, error) {
	stat, err := parseFile(ctx, c.statPath, ParseCPUStat)
	if err != nil {
		return nil, err
	}

	c.Logger().V(1).Info("Collected CPU statistics",
		"total", stat.Total, "statCount", stat.StatCount, "cpuCount", stat.CPUCount)
	return stat, nil
}

// ParseCPUStat parses /proc/stat content.
//
// The first line must be the aggregate line:
//
//	cpu  user nice system idle iowait irq softirq [steal [guest [guest_nice]]]
//
// Every later line whose first token starts with "cpu" is a per-core line
// and is only counted. Other lines (intr, ctxt, btime, ...) are ignored.
func ParseCPUStat(r io.Reader) (hoststat.CPUSnapshot, error) {
	scanner := newLineScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return hoststat.CPUSnapshot{}, sourceError("aggregate cpu line", err)
		}
		return hoststat.CPUSnapshot{}, fmt.Errorf("%w: missing aggregate cpu line", hoststat.ErrSource)
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 || fields[0] != cpuLinePrefix {
		return hoststat.CPUSnapshot{}, fmt.Errorf("%w: first line is not the aggregate cpu line: %q",
			hoststat.ErrMalformed, scanner.Text())
	}

	values := fields[1:]
	if len(values) < cpuMinFields {
		return hoststat.CPUSnapshot{}, fmt.Errorf("%w: aggregate cpu line has %d fields, need at least %d",
			hoststat.ErrMalformed, len(values), cpuMinFields)
	}

	var stat hoststat.CPUSnapshot
	counters := [...]*uint64{
		&stat.User, &stat.Nice, &stat.System, &stat.Idle, &stat.IOWait,
		&stat.IRQ, &stat.SoftIRQ, &stat.Steal, &stat.Guest, &stat.GuestNice,
	}
	for i := range values {
		name := fmt.Sprintf("field %d", i+1)
		if i < len(cpuFieldNames) {
			name = cpuFieldNames[i]
		}
		v, err := parseUintField(values, i, name)
		if err != nil {
			return hoststat.CPUSnapshot{}, err
		}
		// Fields appended by kernels newer than this schema are validated and counted only.
		if i < len(counters) {
			*counters[i] = v
		}
	}

	stat.StatCount = len(values)
	stat.Total = stat.User + stat.Nice + stat.System + stat.Idle +
		stat.IOWait + stat.IRQ + stat.SoftIRQ + stat.Steal

	for scanner.Scan() {
		line := strings.Fields(scanner.Text())
		if len(line) > 0 && strings.HasPrefix(line[0], cpuLinePrefix) {
			stat.CPUCount++
		}
	}
	if err := scanner.Err(); err != nil {
		return hoststat.CPUSnapshot{}, sourceError("per-cpu lines", err)
	}

	return stat, nil
}
