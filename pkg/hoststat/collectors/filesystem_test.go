// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/antimetal/hoststat/pkg/hoststat/collectors"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dfOutput = `Filesystem                                                                                        1024-blocks     Used Available Capacity Mounted on
/dev/sda1                                                                                            19734388 16868164   1863772      91% /
udev                                                                                                    10240        0     10240       0% /dev
tmpfs                                                                                                  816592    84868    731724      11% /run
tmpfs                                                                                                 2041476        0   2041476       0% /dev/shm
/dev/mapper/docker-000:0-000-00000                                                                   10474496   341212  10133284       4% /var/lib/docker/devicemapper/mnt/00000
/dev/dm-4                                                                                            10474496  1165984   9308512      12% /var/lib/docker/devicemapper/mnt/11111
/dev/dm-5                                                                                            10474496  1165984   9308512      12% /srv
`

func TestParseFilesystemUsage(t *testing.T) {
	stats, err := collectors.ParseFilesystemUsage(strings.NewReader(dfOutput))
	require.NoError(t, err)

	assert.Equal(t, []hoststat.FilesystemSnapshot{
		{Name: "sda1", UsedBytes: 17272999936, SizeBytes: 19181502464},
	}, stats)

	for _, fs := range stats {
		assert.LessOrEqual(t, fs.UsedBytes, fs.SizeBytes)
	}
}

func TestParseFilesystemUsage_Filtering(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []hoststat.FilesystemSnapshot
	}{
		{
			name:    "several block devices keep source order",
			content: "Filesystem 1024-blocks Used Available Capacity Mounted on\n/dev/nvme0n1p2 1000 400 600 40% /\n/dev/sdb1 10 1 9 10% /data\n",
			expected: []hoststat.FilesystemSnapshot{
				{Name: "nvme0n1p2", UsedBytes: 400 * 1024, SizeBytes: 1000 * 1024},
				{Name: "sdb1", UsedBytes: 1024, SizeBytes: 10 * 1024},
			},
		},
		{
			name:     "mapper devices other than docker are kept",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\n/dev/mapper/vg-root 100 50 50 50% /\n",
			expected: []hoststat.FilesystemSnapshot{{Name: "mapper/vg-root", UsedBytes: 50 * 1024, SizeBytes: 100 * 1024}},
		},
		{
			name:     "devicemapper mount on a plain device is excluded",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\n/dev/sdc1 100 50 50 50% /var/lib/docker/devicemapper/mnt/abc\n",
			expected: nil,
		},
		{
			name:     "mount point with spaces",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\n/dev/sdd1 100 50 50 50% /mnt/my disk\n",
			expected: []hoststat.FilesystemSnapshot{{Name: "sdd1", UsedBytes: 50 * 1024, SizeBytes: 100 * 1024}},
		},
		{
			name:     "short row for a pseudo filesystem is ignored",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\ntmpfs 5\n/dev/sda1 100 10 90 10% /\n",
			expected: []hoststat.FilesystemSnapshot{{Name: "sda1", UsedBytes: 10 * 1024, SizeBytes: 100 * 1024}},
		},
		{
			name:     "header only",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\n",
			expected: nil,
		},
		{
			name:     "blank lines are ignored",
			content:  "Filesystem 1024-blocks Used Available Capacity Mounted on\n\n/dev/sda1 100 10 90 10% /\n\n",
			expected: []hoststat.FilesystemSnapshot{{Name: "sda1", UsedBytes: 10 * 1024, SizeBytes: 100 * 1024}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := collectors.ParseFilesystemUsage(strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, stats)
		})
	}
}

func TestParseFilesystemUsage_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty output", content: "", wantErr: hoststat.ErrSource},
		{name: "short block device row", content: "Filesystem 1024-blocks Used Available\n/dev/sdb1 100\n", wantErr: hoststat.ErrMalformed},
		{name: "non-numeric used", content: "Filesystem 1024-blocks Used Available\n/dev/sdb1 100 many 90 10% /\n", wantErr: hoststat.ErrMalformed},
		{name: "non-numeric available", content: "Filesystem 1024-blocks Used Available\n/dev/sdb1 100 10 - 10% /\n", wantErr: hoststat.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collectors.ParseFilesystemUsage(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFilesystemCollector(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		gotArgs = args
		return []byte(dfOutput), nil
	}

	collector, err := collectors.NewFilesystemCollectorWithRunner(logr.Discard(),
		hoststat.CollectionConfig{DfPath: "/usr/bin/df"}, runner)
	require.NoError(t, err)
	assert.Equal(t, hoststat.MetricTypeFilesystem, collector.Type())
	assert.Contains(t, collector.Capabilities().Platforms, "darwin")

	result, err := collector.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/df", gotName)
	assert.Equal(t, []string{"-Pkl"}, gotArgs)

	stats, ok := result.([]hoststat.FilesystemSnapshot)
	require.True(t, ok, "expected []hoststat.FilesystemSnapshot, got %T", result)
	require.Len(t, stats, 1)
	assert.Equal(t, "sda1", stats[0].Name)
}

func TestFilesystemCollector_Errors(t *testing.T) {
	t.Run("df fails", func(t *testing.T) {
		runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		}
		collector, err := collectors.NewFilesystemCollectorWithRunner(logr.Discard(), hoststat.CollectionConfig{}, runner)
		require.NoError(t, err)

		_, err = collector.Collect(context.Background())
		assert.ErrorIs(t, err, hoststat.ErrSource)
		assert.Contains(t, err.Error(), "exit status 1")
	})

	t.Run("df prints garbage", func(t *testing.T) {
		runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("Filesystem\n/dev/sda1 oops\n"), nil
		}
		collector, err := collectors.NewFilesystemCollectorWithRunner(logr.Discard(), hoststat.CollectionConfig{}, runner)
		require.NoError(t, err)

		_, err = collector.Collect(context.Background())
		assert.ErrorIs(t, err, hoststat.ErrMalformed)
	})

	t.Run("nil runner", func(t *testing.T) {
		_, err := collectors.NewFilesystemCollectorWithRunner(logr.Discard(), hoststat.CollectionConfig{}, nil)
		assert.Error(t, err)
	})

	t.Run("missing binary", func(t *testing.T) {
		collector, err := collectors.NewFilesystemCollector(logr.Discard(),
			hoststat.CollectionConfig{DfPath: "/nonexistent/bin/df"})
		require.NoError(t, err)

		_, err = collector.Collect(context.Background())
		assert.ErrorIs(t, err, hoststat.ErrSource)
	})
}
