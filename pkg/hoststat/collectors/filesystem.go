// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
)

func init() {
	hoststat.Register(hoststat.MetricTypeFilesystem,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewFilesystemCollector(logger, config)
		},
	)
}

const (
	blockDevicePrefix = "/dev/"

	// df -P columns (0-based)
	dfDeviceField     = 0
	dfUsedField       = 2
	dfAvailableField  = 3
	dfMountPointField = 5
	dfMinFields       = dfAvailableField + 1
)

// dfArgs asks for POSIX output (one row per filesystem), 1K blocks, local filesystems only.
var dfArgs = []string{"-Pkl"}

// Rows that start with /dev/ but describe container storage rather than a
// real disk.
var (
	excludedDevicePrefixes = []string{
		"/dev/mapper/docker-",
		"/dev/dm-",
	}
	excludedMountMarkers = []string{
		"devicemapper/mnt",
	}
)

// CommandRunner runs name with args and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecCommandRunner runs the command with os/exec
func ExecCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w (stderr: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

var _ hoststat.PointCollector = (*FilesystemCollector)(nil)

// FilesystemCollector collects block-device filesystem usage from the output of df -Pkl
type FilesystemCollector struct {
	hoststat.BasePointCollector
	dfPath string
	run    CommandRunner
}

func NewFilesystemCollector(logger logr.Logger, config hoststat.CollectionConfig) (*FilesystemCollector, error) {
	return NewFilesystemCollectorWithRunner(logger, config, ExecCommandRunner)
}

// NewFilesystemCollectorWithRunner is NewFilesystemCollector with a custom way to run df
func NewFilesystemCollectorWithRunner(logger logr.Logger, config hoststat.CollectionConfig, run CommandRunner) (*FilesystemCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{}); err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("command runner is required")
	}

	dfPath := config.DfPath
	if dfPath == "" {
		dfPath = "df"
	}

	capabilities := hoststat.CollectorCapabilities{
		SupportsOneShot: true,
		Platforms:       []string{"linux", "darwin", "freebsd", "openbsd", "netbsd"},
	}

	return &FilesystemCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeFilesystem,
			"Filesystem Usage Collector",
			logger,
			config,
			capabilities,
		),
		dfPath: dfPath,
		run:    run,
	}, nil
}

func (c *FilesystemCollector) Collect(ctx context.Context) (any, error) {
	out, err := c.run(ctx, c.dfPath, dfArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to run df: %w", hoststat.ErrSource, err)
	}

	stats, err := ParseFilesystemUsage(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to parse df output: %w", err)
	}

	c.Logger().V(1).Info("Collected filesystem usage", "filesystems", len(stats))
	return stats, nil
}

// ParseFilesystemUsage parses the output of df -Pkl.
//
// Format:
//
//	Filesystem     1024-blocks     Used Available Capacity Mounted on
//	/dev/sda1         19734388 16868164   1863772      91% /
//
// Only rows backed by a real block device are kept. Unlike /proc/diskstats,
// a kept row is expected to be complete, so a short row is an error.
func ParseFilesystemUsage(r io.Reader) ([]hoststat.FilesystemSnapshot, error) {
	scanner := newLineScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, sourceError("df header", err)
		}
		return nil, fmt.Errorf("%w: df output has no header", hoststat.ErrSource)
	}

	var stats []hoststat.FilesystemSnapshot
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if !isBlockDeviceRow(fields) {
			continue
		}
		if len(fields) < dfMinFields {
			return nil, fmt.Errorf("%w: df row for %s has %d columns, need at least %d",
				hoststat.ErrMalformed, fields[dfDeviceField], len(fields), dfMinFields)
		}

		usedKB, err := parseUintField(fields, dfUsedField, "used")
		if err != nil {
			return nil, err
		}
		availableKB, err := parseUintField(fields, dfAvailableField, "available")
		if err != nil {
			return nil, err
		}

		stats = append(stats, hoststat.FilesystemSnapshot{
			Name:      strings.TrimPrefix(fields[dfDeviceField], blockDevicePrefix),
			UsedBytes: usedKB * 1024,
			SizeBytes: (usedKB + availableKB) * 1024,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, sourceError("df output", err)
	}

	return stats, nil
}

func isBlockDeviceRow(fields []string) bool {
	if len(fields) == 0 || !strings.HasPrefix(fields[dfDeviceField], blockDevicePrefix) {
		return false
	}
	for _, prefix := range excludedDevicePrefixes {
		if strings.HasPrefix(fields[dfDeviceField], prefix) {
			return false
		}
	}
	if len(fields) > dfMountPointField {
		// The mount point may itself contain spaces
		mountPoint := strings.Join(fields[dfMountPointField:], " ")
		for _, marker := range excludedMountMarkers {
			if strings.Contains(mountPoint, marker) {
				return false
			}
		}
	}
	return true
}
