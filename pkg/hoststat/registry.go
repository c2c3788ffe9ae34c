// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

var (
	registryMu     sync.RWMutex
	registry       = make(map[MetricType]NewPointCollector)
	registryLogger = stdr.New(log.New(os.Stderr, "[hoststat.registry] ", log.LstdFlags))
)

// Register adds a NewPointCollector factory to the global registry for metricType.
//
// This function is usually called from init() functions so that collectors
// are available before a Manager is created. It panics if a collector for
// metricType is already registered.
func Register(metricType MetricType, factory NewPointCollector) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[metricType]; exists {
		panic(fmt.Sprintf("Collector for %s already registered", metricType))
	}
	registry[metricType] = factory
	registryLogger.V(1).Info("Registered collector", "metric_type", metricType)
}

// GetCollector retrieves the collector factory function from the global registry for metricType.
func GetCollector(metricType MetricType) (NewPointCollector, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, exists := registry[metricType]
	if !exists {
		return nil, fmt.Errorf("collector for %s not found", metricType)
	}
	return factory, nil
}

// GetAvailableCollectors returns the registered metric types, sorted.
func GetAvailableCollectors() []MetricType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]MetricType, 0, len(registry))
	for metricType := range registry {
		types = append(types, metricType)
	}
	slices.Sort(types)
	return types
}

// GetCollectorStatus returns whether the collector for metricType can run with
// config on this platform, and if not, why.
func GetCollectorStatus(metricType MetricType, config CollectionConfig) (available bool, reason string) {
	factory, err := GetCollector(metricType)
	if err != nil {
		return false, "Collector not found"
	}

	collector, err := factory(registryLogger.WithName(string(metricType)), config)
	if err != nil {
		return false, fmt.Sprintf("Failed to create collector: %v", err)
	}

	caps := collector.Capabilities()
	if !caps.CanRun() {
		return false, fmt.Sprintf("Unsupported platform %s (supported: %v)", runtime.GOOS, caps.Platforms)
	}
	return true, "Collector is registered and available"
}

// SetRegistryLogger allows setting a custom logger for the registry.
// This should be called before any collectors are registered.
func SetRegistryLogger(logger logr.Logger) {
	registryLogger = logger
}
