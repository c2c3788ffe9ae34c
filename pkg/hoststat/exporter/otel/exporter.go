// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package otel publishes host snapshots as OpenTelemetry observable instruments.
package otel

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

// Source produces one snapshot per call. *hoststat.Manager satisfies it.
type Source interface {
	Collect(ctx context.Context) (*hoststat.Snapshot, error)
}

type instruments struct {
	cpuTime         metric.Int64ObservableCounter
	memoryUsage     metric.Int64ObservableGauge
	diskOperations  metric.Int64ObservableCounter
	filesystemUsage metric.Int64ObservableGauge
	filesystemLimit metric.Int64ObservableGauge
	networkIO       metric.Int64ObservableCounter
	loadAverage     metric.Float64ObservableGauge
}

// Register creates the hoststat instruments on meter and a single callback
// that takes one snapshot from source per collection cycle. Unregister the
// returned registration to stop observing.
func Register(meter metric.Meter, source Source, logger logr.Logger) (metric.Registration, error) {
	logger = logger.WithName("otel-exporter")

	var (
		inst instruments
		err  error
	)
	if inst.cpuTime, err = meter.Int64ObservableCounter("hoststat.cpu.time",
		metric.WithDescription("Aggregate CPU time by mode"),
		metric.WithUnit("{jiffy}")); err != nil {
		return nil, fmt.Errorf("failed to create cpu instrument: %w", err)
	}
	if inst.memoryUsage, err = meter.Int64ObservableGauge("hoststat.memory.usage",
		metric.WithDescription("Memory and swap usage by kind"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create memory instrument: %w", err)
	}
	if inst.diskOperations, err = meter.Int64ObservableCounter("hoststat.disk.operations",
		metric.WithDescription("Completed disk operations by device and direction"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, fmt.Errorf("failed to create disk instrument: %w", err)
	}
	if inst.filesystemUsage, err = meter.Int64ObservableGauge("hoststat.filesystem.usage",
		metric.WithDescription("Bytes used on the filesystem"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create filesystem usage instrument: %w", err)
	}
	if inst.filesystemLimit, err = meter.Int64ObservableGauge("hoststat.filesystem.limit",
		metric.WithDescription("Bytes usable on the filesystem"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create filesystem limit instrument: %w", err)
	}
	if inst.networkIO, err = meter.Int64ObservableCounter("hoststat.network.io",
		metric.WithDescription("Bytes moved by interface and direction"),
		metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create network instrument: %w", err)
	}
	if inst.loadAverage, err = meter.Float64ObservableGauge("hoststat.load.average",
		metric.WithDescription("System load average by window"),
		metric.WithUnit("{thread}")); err != nil {
		return nil, fmt.Errorf("failed to create load instrument: %w", err)
	}

	callback := func(ctx context.Context, o metric.Observer) error {
		snapshot, err := source.Collect(ctx)
		if err != nil {
			logger.Error(err, "Failed to collect host snapshot")
			return err
		}
		inst.observe(o, snapshot.Metrics)
		if err := snapshot.Err(); err != nil {
			logger.V(1).Info("Partial host snapshot", "error", err.Error())
		}
		return nil
	}

	return meter.RegisterCallback(callback,
		inst.cpuTime, inst.memoryUsage, inst.diskOperations,
		inst.filesystemUsage, inst.filesystemLimit, inst.networkIO, inst.loadAverage)
}

func (inst *instruments) observe(o metric.Observer, metrics hoststat.Metrics) {
	if cpu := metrics.CPU; cpu != nil {
		modes := []struct {
			mode  string
			value uint64
		}{
			{"user", cpu.User}, {"nice", cpu.Nice}, {"system", cpu.System}, {"idle", cpu.Idle},
			{"iowait", cpu.IOWait}, {"irq", cpu.IRQ}, {"softirq", cpu.SoftIRQ}, {"steal", cpu.Steal},
		}
		for _, m := range modes {
			o.ObserveInt64(inst.cpuTime, clampInt64(m.value), metric.WithAttributes(attribute.String("mode", m.mode)))
		}
	}

	if mem := metrics.Memory; mem != nil {
		kinds := []struct {
			kind  string
			value uint64
		}{
			{"total", mem.Total}, {"free", mem.Free}, {"buffers", mem.Buffers}, {"cached", mem.Cached},
			{"used", mem.Used}, {"swap_total", mem.SwapTotal}, {"swap_free", mem.SwapFree}, {"swap_used", mem.SwapUsed},
		}
		for _, k := range kinds {
			o.ObserveInt64(inst.memoryUsage, clampInt64(k.value), metric.WithAttributes(attribute.String("kind", k.kind)))
		}
		if mem.MemAvailableSupported {
			o.ObserveInt64(inst.memoryUsage, clampInt64(mem.Available), metric.WithAttributes(attribute.String("kind", "available")))
		}
	}

	for _, disk := range metrics.Disks {
		device := attribute.String("device", disk.Name)
		o.ObserveInt64(inst.diskOperations, clampInt64(disk.ReadsCompleted),
			metric.WithAttributes(device, attribute.String("direction", "read")))
		o.ObserveInt64(inst.diskOperations, clampInt64(disk.WritesCompleted),
			metric.WithAttributes(device, attribute.String("direction", "write")))
	}

	for _, fs := range hoststat.UniqueFilesystems(metrics.Filesystems) {
		device := metric.WithAttributes(attribute.String("device", fs.Name))
		o.ObserveInt64(inst.filesystemUsage, clampInt64(fs.UsedBytes), device)
		o.ObserveInt64(inst.filesystemLimit, clampInt64(fs.SizeBytes), device)
	}

	for _, iface := range metrics.Network {
		name := attribute.String("interface", iface.Name)
		o.ObserveInt64(inst.networkIO, clampInt64(iface.RxBytes),
			metric.WithAttributes(name, attribute.String("direction", "receive")))
		o.ObserveInt64(inst.networkIO, clampInt64(iface.TxBytes),
			metric.WithAttributes(name, attribute.String("direction", "transmit")))
	}

	if load := metrics.Load; load != nil {
		o.ObserveFloat64(inst.loadAverage, load.Load1, metric.WithAttributes(attribute.String("window", "1m")))
		o.ObserveFloat64(inst.loadAverage, load.Load5, metric.WithAttributes(attribute.String("window", "5m")))
		o.ObserveFloat64(inst.loadAverage, load.Load15, metric.WithAttributes(attribute.String("window", "15m")))
	}
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
