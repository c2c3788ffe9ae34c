// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import (
	"fmt"
	"path/filepath"
	"time"
)

// MetricType identifies the subsystem a snapshot describes
type MetricType string

const (
	MetricTypeCPU        MetricType = "cpu"
	MetricTypeMemory     MetricType = "memory"
	MetricTypeDisk       MetricType = "disk"
	MetricTypeFilesystem MetricType = "filesystem"
	MetricTypeNetwork    MetricType = "network"
	MetricTypeLoad       MetricType = "load"
)

// AllMetricTypes lists every metric type in a stable order.
var AllMetricTypes = []MetricType{
	MetricTypeCPU,
	MetricTypeMemory,
	MetricTypeDisk,
	MetricTypeFilesystem,
	MetricTypeNetwork,
	MetricTypeLoad,
}

// CollectorStatus represents the outcome of a single collector run
type CollectorStatus string

const (
	CollectorStatusActive   CollectorStatus = "active"
	CollectorStatusFailed   CollectorStatus = "failed"
	CollectorStatusDisabled CollectorStatus = "disabled"
)

// LoadSource selects how the load collector obtains its three samples
type LoadSource string

const (
	// LoadSourceSyscall uses sysinfo(2) on Linux and falls back to gopsutil elsewhere
	LoadSourceSyscall LoadSource = "syscall"
	// LoadSourceProcfs reads <HostProcPath>/loadavg, useful when the host /proc is mounted into a container
	LoadSourceProcfs LoadSource = "procfs"
	// LoadSourceGopsutil always uses gopsutil
	LoadSourceGopsutil LoadSource = "gopsutil"
)

// Snapshot is the result of one Manager run across all enabled collectors
type Snapshot struct {
	ID           string
	Timestamp    time.Time
	NodeName     string
	CollectorRun CollectorRunInfo
	Metrics      Metrics
}

// CollectorRunInfo contains metadata about a collector run
type CollectorRunInfo struct {
	Duration       time.Duration
	CollectorStats map[MetricType]CollectorStat
}

// CollectorStat tracks individual collector performance
type CollectorStat struct {
	Status   CollectorStatus
	Duration time.Duration
	Error    error
}

// Metrics holds whatever the enabled collectors produced. Nil or empty
// fields mean the collector was disabled or failed.
type Metrics struct {
	CPU         *CPUSnapshot
	Memory      *MemorySnapshot
	Disks       []DiskSnapshot
	Filesystems []FilesystemSnapshot
	Network     []NetworkSnapshot
	Load        *LoadAverage
}

// CPUSnapshot holds the aggregate "cpu" line of /proc/stat.
//
// All counters are in USER_HZ ticks (jiffies) and cumulative since boot.
type CPUSnapshot struct {
	User      uint64
	Nice      uint64
	System    uint64
	Idle      uint64
	IOWait    uint64
	IRQ       uint64
	SoftIRQ   uint64
	Steal     uint64
	Guest     uint64 // already accounted in User
	GuestNice uint64 // already accounted in Nice

	// Total is the sum of the first eight counters. Guest time is left out
	// because the kernel counts it inside user/nice as well.
	Total uint64
	// StatCount is the number of numeric fields on the aggregate line
	StatCount int
	// CPUCount is the number of per-core "cpuN" lines
	CPUCount int
}

// MemorySnapshot holds /proc/meminfo counters converted from kB to bytes
type MemorySnapshot struct {
	Total      uint64
	Free       uint64
	Buffers    uint64
	Cached     uint64
	Active     uint64
	Inactive   uint64
	Available  uint64
	SwapTotal  uint64
	SwapFree   uint64
	SwapCached uint64

	// MemAvailableSupported is true when the kernel exposes MemAvailable (3.14+)
	MemAvailableSupported bool

	// Used is Total-Available when MemAvailable is supported,
	// otherwise Total-Free-Buffers-Cached
	Used     uint64
	SwapUsed uint64
}

// DiskSnapshot holds the cumulative I/O counters of one /proc/diskstats line
type DiskSnapshot struct {
	Name            string
	ReadsCompleted  uint64
	WritesCompleted uint64
}

// FilesystemSnapshot holds the usage of one block-device backed filesystem as reported by df
type FilesystemSnapshot struct {
	Name      string // device name without the /dev/ prefix
	UsedBytes uint64
	SizeBytes uint64 // used + available, reserved blocks excluded
}

// UniqueFilesystems drops every row whose device was already seen, keeping
// the first. df lists a device once per mount, so bind mounts repeat it.
func UniqueFilesystems(filesystems []FilesystemSnapshot) []FilesystemSnapshot {
	seen := make(map[string]struct{}, len(filesystems))
	unique := make([]FilesystemSnapshot, 0, len(filesystems))
	for _, fs := range filesystems {
		if _, ok := seen[fs.Name]; ok {
			continue
		}
		seen[fs.Name] = struct{}{}
		unique = append(unique, fs)
	}
	return unique
}

// NetworkSnapshot holds the cumulative byte counters of one interface from /proc/net/dev
type NetworkSnapshot struct {
	Name    string
	RxBytes uint64
	TxBytes uint64
}

// LoadAverage holds the 1, 5 and 15 minute load averages
type LoadAverage struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// CollectionConfig represents configuration for host statistics collection
type CollectionConfig struct {
	Interval          time.Duration
	EnabledCollectors map[MetricType]bool
	HostProcPath      string     // Path to /proc (useful for containers)
	DfPath            string     // df binary used by the filesystem collector
	LoadSource        LoadSource // where load averages come from
}

// DefaultCollectionConfig returns a default configuration
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Interval: time.Second,
		EnabledCollectors: map[MetricType]bool{
			MetricTypeCPU:        true,
			MetricTypeMemory:     true,
			MetricTypeDisk:       true,
			MetricTypeFilesystem: true,
			MetricTypeNetwork:    true,
			MetricTypeLoad:       true,
		},
		HostProcPath: "/proc",
		DfPath:       "df",
		LoadSource:   LoadSourceSyscall,
	}
}

// ApplyDefaults fills every zero field with its default value
func (c *CollectionConfig) ApplyDefaults() {
	defaults := DefaultCollectionConfig()

	if c.Interval == 0 {
		c.Interval = defaults.Interval
	}
	if c.EnabledCollectors == nil {
		c.EnabledCollectors = defaults.EnabledCollectors
	}
	if c.HostProcPath == "" {
		c.HostProcPath = defaults.HostProcPath
	}
	if c.DfPath == "" {
		c.DfPath = defaults.DfPath
	}
	if c.LoadSource == "" {
		c.LoadSource = defaults.LoadSource
	}
}

// IsEnabled reports whether the collector for metricType is enabled
func (c *CollectionConfig) IsEnabled(metricType MetricType) bool {
	return c.EnabledCollectors[metricType]
}

// ValidateOptions specifies validation requirements for CollectionConfig
type ValidateOptions struct {
	RequireHostProcPath bool
}

// Validate ensures that all configured paths are absolute paths and that required paths are non-empty.
func (c *CollectionConfig) Validate(opt ValidateOptions) error {
	if opt.RequireHostProcPath && c.HostProcPath == "" {
		return fmt.Errorf("HostProcPath is required but not provided")
	}

	if c.HostProcPath != "" && !filepath.IsAbs(c.HostProcPath) {
		return fmt.Errorf("HostProcPath must be an absolute path, got: %q", c.HostProcPath)
	}

	switch c.LoadSource {
	case "", LoadSourceSyscall, LoadSourceProcfs, LoadSourceGopsutil:
	default:
		return fmt.Errorf("unknown load source %q", c.LoadSource)
	}
	return nil
}
