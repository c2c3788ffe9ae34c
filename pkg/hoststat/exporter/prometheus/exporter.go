// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package prometheus exposes host snapshots as Prometheus metrics.
//
// Every scrape runs one collection through the configured Source, so the
// exporter holds no state of its own and counters keep the kernel's
// cumulative semantics.
package prometheus

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

const namespace = "hoststat"

const defaultScrapeTimeout = 10 * time.Second

// Source produces one snapshot per call. *hoststat.Manager satisfies it.
type Source interface {
	Collect(ctx context.Context) (*hoststat.Snapshot, error)
}

var _ prometheus.Collector = (*Exporter)(nil)

// Exporter is a prometheus.Collector backed by a Source
type Exporter struct {
	source  Source
	logger  logr.Logger
	timeout time.Duration

	up                *prometheus.Desc
	collectorSuccess  *prometheus.Desc
	collectorDuration *prometheus.Desc

	cpuJiffies *prometheus.Desc
	cpuCount   *prometheus.Desc

	memoryBytes *prometheus.Desc

	diskReads  *prometheus.Desc
	diskWrites *prometheus.Desc

	filesystemUsed *prometheus.Desc
	filesystemSize *prometheus.Desc

	networkReceive  *prometheus.Desc
	networkTransmit *prometheus.Desc

	load1  *prometheus.Desc
	load5  *prometheus.Desc
	load15 *prometheus.Desc
}

type Option func(*Exporter)

// WithTimeout bounds how long a single scrape may spend collecting
func WithTimeout(timeout time.Duration) Option {
	return func(e *Exporter) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func New(source Source, logger logr.Logger, opts ...Option) *Exporter {
	e := &Exporter{
		source:  source,
		logger:  logger.WithName("prometheus-exporter"),
		timeout: defaultScrapeTimeout,

		up: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "up"),
			"Whether the last host snapshot could be taken.", nil, nil),
		collectorSuccess: prometheus.NewDesc(prometheus.BuildFQName(namespace, "collector", "success"),
			"Whether a collector succeeded during the last snapshot.", []string{"collector"}, nil),
		collectorDuration: prometheus.NewDesc(prometheus.BuildFQName(namespace, "collector", "duration_seconds"),
			"Time a collector took during the last snapshot.", []string{"collector"}, nil),

		cpuJiffies: prometheus.NewDesc(prometheus.BuildFQName(namespace, "cpu", "jiffies_total"),
			"Aggregate CPU time spent in each mode, in clock ticks.", []string{"mode"}, nil),
		cpuCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, "cpu", "count"),
			"Number of per-core lines in /proc/stat.", nil, nil),

		memoryBytes: prometheus.NewDesc(prometheus.BuildFQName(namespace, "memory", "bytes"),
			"Memory and swap usage by kind.", []string{"kind"}, nil),

		diskReads: prometheus.NewDesc(prometheus.BuildFQName(namespace, "disk", "reads_completed_total"),
			"Reads completed successfully.", []string{"device"}, nil),
		diskWrites: prometheus.NewDesc(prometheus.BuildFQName(namespace, "disk", "writes_completed_total"),
			"Writes completed successfully.", []string{"device"}, nil),

		filesystemUsed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "filesystem", "used_bytes"),
			"Bytes used on the filesystem.", []string{"device"}, nil),
		filesystemSize: prometheus.NewDesc(prometheus.BuildFQName(namespace, "filesystem", "size_bytes"),
			"Bytes usable on the filesystem (used plus available).", []string{"device"}, nil),

		networkReceive: prometheus.NewDesc(prometheus.BuildFQName(namespace, "network", "receive_bytes_total"),
			"Bytes received by the interface.", []string{"interface"}, nil),
		networkTransmit: prometheus.NewDesc(prometheus.BuildFQName(namespace, "network", "transmit_bytes_total"),
			"Bytes transmitted by the interface.", []string{"interface"}, nil),

		load1: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "load1"),
			"1-minute load average.", nil, nil),
		load5: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "load5"),
			"5-minute load average.", nil, nil),
		load15: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "load15"),
			"15-minute load average.", nil, nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		e.up, e.collectorSuccess, e.collectorDuration,
		e.cpuJiffies, e.cpuCount,
		e.memoryBytes,
		e.diskReads, e.diskWrites,
		e.filesystemUsed, e.filesystemSize,
		e.networkReceive, e.networkTransmit,
		e.load1, e.load5, e.load15,
	} {
		ch <- desc
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	snapshot, err := e.source.Collect(ctx)
	if err != nil {
		e.logger.Error(err, "Failed to collect host snapshot")
		ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, 1)

	for metricType, stat := range snapshot.CollectorRun.CollectorStats {
		if stat.Status == hoststat.CollectorStatusDisabled {
			continue
		}
		success := 0.0
		if stat.Status == hoststat.CollectorStatusActive {
			success = 1
		}
		ch <- prometheus.MustNewConstMetric(e.collectorSuccess, prometheus.GaugeValue, success, string(metricType))
		ch <- prometheus.MustNewConstMetric(e.collectorDuration, prometheus.GaugeValue, stat.Duration.Seconds(), string(metricType))
	}

	metrics := snapshot.Metrics
	if cpu := metrics.CPU; cpu != nil {
		for mode, v := range map[string]uint64{
			"user":       cpu.User,
			"nice":       cpu.Nice,
			"system":     cpu.System,
			"idle":       cpu.Idle,
			"iowait":     cpu.IOWait,
			"irq":        cpu.IRQ,
			"softirq":    cpu.SoftIRQ,
			"steal":      cpu.Steal,
			"guest":      cpu.Guest,
			"guest_nice": cpu.GuestNice,
		} {
			ch <- prometheus.MustNewConstMetric(e.cpuJiffies, prometheus.CounterValue, float64(v), mode)
		}
		ch <- prometheus.MustNewConstMetric(e.cpuCount, prometheus.GaugeValue, float64(cpu.CPUCount))
	}

	if mem := metrics.Memory; mem != nil {
		kinds := map[string]uint64{
			"total":       mem.Total,
			"free":        mem.Free,
			"buffers":     mem.Buffers,
			"cached":      mem.Cached,
			"used":        mem.Used,
			"swap_total":  mem.SwapTotal,
			"swap_free":   mem.SwapFree,
			"swap_cached": mem.SwapCached,
			"swap_used":   mem.SwapUsed,
		}
		if mem.MemAvailableSupported {
			kinds["available"] = mem.Available
		}
		for kind, v := range kinds {
			ch <- prometheus.MustNewConstMetric(e.memoryBytes, prometheus.GaugeValue, float64(v), kind)
		}
	}

	for _, disk := range metrics.Disks {
		ch <- prometheus.MustNewConstMetric(e.diskReads, prometheus.CounterValue, float64(disk.ReadsCompleted), disk.Name)
		ch <- prometheus.MustNewConstMetric(e.diskWrites, prometheus.CounterValue, float64(disk.WritesCompleted), disk.Name)
	}

	for _, fs := range hoststat.UniqueFilesystems(metrics.Filesystems) {
		ch <- prometheus.MustNewConstMetric(e.filesystemUsed, prometheus.GaugeValue, float64(fs.UsedBytes), fs.Name)
		ch <- prometheus.MustNewConstMetric(e.filesystemSize, prometheus.GaugeValue, float64(fs.SizeBytes), fs.Name)
	}

	for _, iface := range metrics.Network {
		ch <- prometheus.MustNewConstMetric(e.networkReceive, prometheus.CounterValue, float64(iface.RxBytes), iface.Name)
		ch <- prometheus.MustNewConstMetric(e.networkTransmit, prometheus.CounterValue, float64(iface.TxBytes), iface.Name)
	}

	if load := metrics.Load; load != nil {
		ch <- prometheus.MustNewConstMetric(e.load1, prometheus.GaugeValue, load.Load1)
		ch <- prometheus.MustNewConstMetric(e.load5, prometheus.GaugeValue, load.Load5)
		ch <- prometheus.MustNewConstMetric(e.load15, prometheus.GaugeValue, load.Load15)
	}
}
