// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import (
	"context"
	"runtime"
	"slices"

	"github.com/go-logr/logr"
)

// PointCollector performs one-shot data collection
type PointCollector interface {
	Type() MetricType
	Name() string

	// Collect performs a single collection and returns the snapshot
	Collect(ctx context.Context) (any, error)

	Capabilities() CollectorCapabilities
}

// NewPointCollector is the factory signature stored in the registry
type NewPointCollector func(logger logr.Logger, config CollectionConfig) (PointCollector, error)

type CollectorCapabilities struct {
	SupportsOneShot  bool
	RequiresRoot     bool
	MinKernelVersion string
	// Platforms lists the GOOS values the collector can run on. Empty means any.
	Platforms []string
}

// SupportsPlatform reports whether goos is one of the collector's platforms
func (c CollectorCapabilities) SupportsPlatform(goos string) bool {
	return len(c.Platforms) == 0 || slices.Contains(c.Platforms, goos)
}

// CanRun reports whether the collector can run on the current platform
func (c CollectorCapabilities) CanRun() bool {
	return c.SupportsPlatform(runtime.GOOS)
}

type BasePointCollector struct {
	metricType   MetricType
	name         string
	logger       logr.Logger
	Config       CollectionConfig
	capabilities CollectorCapabilities
}

func NewBasePointCollector(metricType MetricType, name string, logger logr.Logger, config CollectionConfig, capabilities CollectorCapabilities) BasePointCollector {
	return BasePointCollector{
		metricType:   metricType,
		name:         name,
		logger:       logger.WithName(string(metricType)),
		Config:       config,
		capabilities: capabilities,
	}
}

func (b *BasePointCollector) Type() MetricType {
	return b.metricType
}

func (b *BasePointCollector) Name() string {
	return b.name
}

func (b *BasePointCollector) Capabilities() CollectorCapabilities {
	return b.capabilities
}

func (b *BasePointCollector) Logger() logr.Logger {
	return b.logger
}
