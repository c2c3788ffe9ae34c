// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package testutil provides utilities for testing, with a focus on integration test helpers.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// RequireLinux skips the test if not running on Linux.
func RequireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("Test requires Linux")
	}
}

// RequireProcFiles skips the test unless every file exists under procPath.
func RequireProcFiles(t *testing.T, procPath string, files ...string) {
	t.Helper()
	RequireLinux(t)

	for _, file := range files {
		path := filepath.Join(procPath, file)
		if _, err := os.Stat(path); err != nil {
			t.Skipf("Test requires %s: %v", path, err)
		}
	}
}

// RequireCommand skips the test unless name can be found in PATH.
func RequireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("Test requires %s in PATH: %v", name, err)
	}
}

// RequireKernelVersion checks if the kernel version meets the minimum requirement.
// The test is skipped if the kernel version is lower than required.
func RequireKernelVersion(t *testing.T, major, minor int) {
	t.Helper()
	RequireLinux(t)

	kv, err := GetKernelVersion()
	if err != nil {
		t.Skipf("Failed to get kernel version: %v", err)
	}
	if !kv.IsAtLeast(major, minor) {
		t.Skipf("Test requires kernel %d.%d or higher, current is %s", major, minor, kv.Full)
	}
}

// WriteFiles writes files (relative path to content) below a fresh temporary
// directory and returns it. Use it to build fake /proc trees.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

// KernelVersion represents a parsed kernel version.
type KernelVersion struct {
	Major int
	Minor int
	Full  string
}

func (kv KernelVersion) IsAtLeast(major, minor int) bool {
	if kv.Major != major {
		return kv.Major > major
	}
	return kv.Minor >= minor
}

// GetKernelVersion returns the current kernel version.
func GetKernelVersion() (KernelVersion, error) {
	var utsname unix.Utsname
	if err := unix.Uname(&utsname); err != nil {
		return KernelVersion{}, fmt.Errorf("failed to get kernel version: %w", err)
	}
	return ParseKernelRelease(unix.ByteSliceToString(utsname.Release[:]))
}

// ParseKernelRelease parses a uname release string such as "5.15.0-91-generic".
func ParseKernelRelease(release string) (KernelVersion, error) {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return KernelVersion{}, fmt.Errorf("unable to parse kernel version: %s", release)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return KernelVersion{}, fmt.Errorf("unable to parse major version: %w", err)
	}

	minorStr, _, _ := strings.Cut(parts[1], "-")
	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return KernelVersion{}, fmt.Errorf("unable to parse minor version: %w", err)
	}

	return KernelVersion{Major: major, Minor: minor, Full: release}, nil
}
