// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/antimetal/hoststat/pkg/host"
)

// Manager instantiates the enabled collectors and runs them once per Collect call.
//
// A Manager keeps no state between calls apart from its collectors, which
// are themselves stateless, so Collect may be called concurrently.
type Manager struct {
	config     CollectionConfig
	logger     logr.Logger
	nodeName   string
	collectors []PointCollector
	receivers  []Receiver

	// unavailable holds enabled collectors that were skipped, with the reason
	unavailable map[MetricType]error
}

type ManagerOptions struct {
	Config    CollectionConfig
	Logger    logr.Logger
	NodeName  string
	Receivers []Receiver // Optional, each receives every collector's data
}

func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Logger.GetSink() == nil {
		return nil, fmt.Errorf("logger is required")
	}

	config := opts.Config
	config.ApplyDefaults()

	// Override paths for containerized environments
	if os.Getenv("HOST_PROC") != "" {
		config.HostProcPath = os.Getenv("HOST_PROC")
	}

	if err := config.Validate(ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, fmt.Errorf("invalid collection config: %w", err)
	}

	nodeName, err := host.NodeName(opts.NodeName, config.HostProcPath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		config:      config,
		logger:      opts.Logger.WithName("hoststat-manager"),
		nodeName:    nodeName,
		receivers:   opts.Receivers,
		unavailable: make(map[MetricType]error),
	}

	for _, metricType := range AllMetricTypes {
		if !config.IsEnabled(metricType) {
			continue
		}
		factory, err := GetCollector(metricType)
		if err != nil {
			m.logger.Info("Enabled collector is not registered, skipping", "metric_type", metricType)
			m.unavailable[metricType] = fmt.Errorf("%w: %w", ErrUnavailable, err)
			continue
		}
		collector, err := factory(m.logger, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s collector: %w", metricType, err)
		}
		if !collector.Capabilities().CanRun() {
			m.logger.Info("Collector cannot run on this platform, skipping",
				"metric_type", metricType, "platforms", collector.Capabilities().Platforms)
			m.unavailable[metricType] = fmt.Errorf("%w: %s collector does not support %s (supported: %v)",
				ErrUnavailable, metricType, runtime.GOOS, collector.Capabilities().Platforms)
			continue
		}
		m.collectors = append(m.collectors, collector)
	}

	return m, nil
}

// GetConfig returns the effective configuration
func (m *Manager) GetConfig() CollectionConfig {
	return m.config
}

// GetNodeName returns the node name
func (m *Manager) GetNodeName() string {
	return m.nodeName
}

// Collectors returns the collectors this manager runs, in collection order
func (m *Manager) Collectors() []PointCollector {
	return m.collectors
}

// Collect runs every collector once and assembles a Snapshot.
//
// A failing collector does not abort the run; its error is recorded in
// Snapshot.CollectorRun. Collect itself only fails when ctx is done.
func (m *Manager) Collect(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	snapshot := &Snapshot{
		ID:        uuid.NewString(),
		Timestamp: start,
		NodeName:  m.nodeName,
		CollectorRun: CollectorRunInfo{
			CollectorStats: make(map[MetricType]CollectorStat, len(m.collectors)),
		},
	}

	for _, metricType := range AllMetricTypes {
		if !m.config.IsEnabled(metricType) {
			snapshot.CollectorRun.CollectorStats[metricType] = CollectorStat{Status: CollectorStatusDisabled}
		}
	}
	for metricType, err := range m.unavailable {
		snapshot.CollectorRun.CollectorStats[metricType] = CollectorStat{Status: CollectorStatusFailed, Error: err}
	}

	for _, collector := range m.collectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		collectStart := time.Now()
		data, err := collector.Collect(ctx)
		stat := CollectorStat{Duration: time.Since(collectStart)}
		if err != nil {
			stat.Status = CollectorStatusFailed
			stat.Error = err
			m.logger.Error(err, "Collector failed", "metric_type", collector.Type())
		} else {
			stat.Status = CollectorStatusActive
			snapshot.Metrics.set(data)
			m.deliver(collector.Type(), data)
		}
		snapshot.CollectorRun.CollectorStats[collector.Type()] = stat
	}

	snapshot.CollectorRun.Duration = time.Since(start)
	m.logger.V(1).Info("Collected host snapshot",
		"id", snapshot.ID, "collectors", len(m.collectors), "duration", snapshot.CollectorRun.Duration)
	return snapshot, nil
}

func (m *Manager) deliver(metricType MetricType, data any) {
	for _, receiver := range m.receivers {
		if err := receiver.Accept(data); err != nil {
			m.logger.Error(err, "Receiver rejected collector data",
				"receiver", receiver.Name(), "metric_type", metricType)
		}
	}
}

func (m *Metrics) set(data any) {
	switch v := data.(type) {
	case CPUSnapshot:
		m.CPU = &v
	case MemorySnapshot:
		m.Memory = &v
	case []DiskSnapshot:
		m.Disks = v
	case []FilesystemSnapshot:
		m.Filesystems = v
	case []NetworkSnapshot:
		m.Network = v
	case LoadAverage:
		m.Load = &v
	}
}

// Err joins the errors of every failed collector, or returns nil
func (s *Snapshot) Err() error {
	var errs []error
	for _, metricType := range AllMetricTypes {
		if stat, ok := s.CollectorRun.CollectorStats[metricType]; ok && stat.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", metricType, stat.Error))
		}
	}
	return errors.Join(errs...)
}
