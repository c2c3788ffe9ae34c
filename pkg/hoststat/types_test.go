// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat_test

import (
	"testing"
	"time"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  hoststat.CollectionConfig
		opts    hoststat.ValidateOptions
		wantErr bool
		errMsg  string
	}{
		{
			name: "all valid absolute paths",
			config: hoststat.CollectionConfig{
				HostProcPath: "/proc",
				DfPath:       "/usr/bin/df",
			},
		},
		{
			name:   "empty paths are valid",
			config: hoststat.CollectionConfig{},
		},
		{
			name:    "invalid relative proc path",
			config:  hoststat.CollectionConfig{HostProcPath: "proc"},
			wantErr: true,
			errMsg:  "HostProcPath must be an absolute path, got: \"proc\"",
		},
		{
			name:    "required proc path missing",
			config:  hoststat.CollectionConfig{DfPath: "df"},
			opts:    hoststat.ValidateOptions{RequireHostProcPath: true},
			wantErr: true,
			errMsg:  "HostProcPath is required but not provided",
		},
		{
			name:   "known load source",
			config: hoststat.CollectionConfig{LoadSource: hoststat.LoadSourceGopsutil},
		},
		{
			name:    "unknown load source",
			config:  hoststat.CollectionConfig{LoadSource: "uptime"},
			wantErr: true,
			errMsg:  "unknown load source \"uptime\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollectionConfig_ApplyDefaults(t *testing.T) {
	t.Run("zero config gets every default", func(t *testing.T) {
		var config hoststat.CollectionConfig
		config.ApplyDefaults()

		assert.Equal(t, hoststat.DefaultCollectionConfig(), config)
		for _, metricType := range hoststat.AllMetricTypes {
			assert.True(t, config.IsEnabled(metricType), "%s should be enabled by default", metricType)
		}
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		config := hoststat.CollectionConfig{
			Interval:          5 * time.Second,
			EnabledCollectors: map[hoststat.MetricType]bool{hoststat.MetricTypeCPU: true},
			HostProcPath:      "/host/proc",
			DfPath:            "/bin/df",
			LoadSource:        hoststat.LoadSourceProcfs,
		}
		config.ApplyDefaults()

		assert.Equal(t, 5*time.Second, config.Interval)
		assert.Equal(t, "/host/proc", config.HostProcPath)
		assert.Equal(t, "/bin/df", config.DfPath)
		assert.Equal(t, hoststat.LoadSourceProcfs, config.LoadSource)
		assert.True(t, config.IsEnabled(hoststat.MetricTypeCPU))
		assert.False(t, config.IsEnabled(hoststat.MetricTypeMemory))
	})
}

func TestCollectorCapabilities_SupportsPlatform(t *testing.T) {
	assert.True(t, hoststat.CollectorCapabilities{}.SupportsPlatform("plan9"))

	linuxOnly := hoststat.CollectorCapabilities{Platforms: []string{"linux"}}
	assert.True(t, linuxOnly.SupportsPlatform("linux"))
	assert.False(t, linuxOnly.SupportsPlatform("darwin"))
}

func TestUniqueFilesystems(t *testing.T) {
	filesystems := []hoststat.FilesystemSnapshot{
		{Name: "sda1", UsedBytes: 10240, SizeBytes: 102400},
		{Name: "nvme0n1p2", UsedBytes: 1, SizeBytes: 2},
		{Name: "sda1", UsedBytes: 99, SizeBytes: 999},
	}

	assert.Equal(t, []hoststat.FilesystemSnapshot{
		{Name: "sda1", UsedBytes: 10240, SizeBytes: 102400},
		{Name: "nvme0n1p2", UsedBytes: 1, SizeBytes: 2},
	}, hoststat.UniqueFilesystems(filesystems))
	assert.Empty(t, hoststat.UniqueFilesystems(nil))
}
