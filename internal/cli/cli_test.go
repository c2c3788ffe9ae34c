// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// createProcFixture writes a minimal host /proc tree and returns its path
func createProcFixture(t *testing.T) string {
	t.Helper()
	procDir := t.TempDir()

	files := map[string]string{
		"stat":      "cpu  100 20 30 400 5 1 2 3 0 0\ncpu0 100 20 30 400 5 1 2 3 0 0\nintr 1 2 3\n",
		"meminfo":   "MemTotal: 1000 kB\nMemFree: 100 kB\nMemAvailable: 600 kB\nBuffers: 50 kB\nCached: 250 kB\nSwapTotal: 0 kB\nSwapFree: 0 kB\n",
		"diskstats": "   8       0 sda 100 0 0 0 200 0 0 0 0 0 0\n",
		"loadavg":   "0.50 0.25 0.10 1/100 1234\n",
		"net/dev": "Inter-|   Receive                                                |  Transmit\n" +
			" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n" +
			"    lo: 10 1 0 0 0 0 0 0 10 1 0 0 0 0 0 0\n" +
			"  eth0: 1000 10 0 0 0 0 0 0 2000 20 0 0 0 0 0 0\n",
	}
	for name, content := range files {
		path := filepath.Join(procDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return procDir
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOST_PROC", "")

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), err
}

func TestCollectCommand_JSON(t *testing.T) {
	procDir := createProcFixture(t)

	out, err := runCommand(t, "collect", "cpu", "memory", "disk", "network", "load",
		"--proc-path", procDir, "--load-source", "procfs", "--node-name", "fixture", "-o", "json")
	require.NoError(t, err)

	var view snapshotView
	require.NoError(t, json.Unmarshal([]byte(out), &view))

	assert.Equal(t, "fixture", view.NodeName)
	assert.NotEmpty(t, view.ID)

	require.NotNil(t, view.CPU)
	assert.Equal(t, uint64(561), view.CPU.Total)
	assert.Equal(t, 1, view.CPU.CPUCount)

	require.NotNil(t, view.Memory)
	assert.True(t, view.Memory.MemAvailableSupported)
	assert.Equal(t, uint64(400*1024), view.Memory.Used)

	assert.Equal(t, []diskView{{Name: "sda", ReadsCompleted: 100, WritesCompleted: 200}}, view.Disks)
	assert.Equal(t, []networkView{{Name: "eth0", RxBytes: 1000, TxBytes: 2000}}, view.Network)

	require.NotNil(t, view.Load)
	assert.Equal(t, 0.5, view.Load.Load1)

	assert.Equal(t, "disabled", string(view.Collectors["filesystem"].Status))
	assert.Equal(t, "active", string(view.Collectors["cpu"].Status))
}

func TestCollectCommand_YAML(t *testing.T) {
	procDir := createProcFixture(t)

	out, err := runCommand(t, "collect", "--collectors", "cpu", "--proc-path", procDir, "-o", "yaml")
	require.NoError(t, err)

	var view map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	cpu, ok := view["cpu"].(map[string]any)
	require.True(t, ok, "cpu section missing from %s", out)
	assert.Equal(t, 561, cpu["total"])
	assert.NotContains(t, view, "memory")
}

func TestCollectCommand_Text(t *testing.T) {
	procDir := createProcFixture(t)

	out, err := runCommand(t, "collect", "cpu", "network", "--proc-path", procDir)
	require.NoError(t, err)

	assert.Contains(t, out, "COLLECTOR")
	assert.Contains(t, out, "INTERFACE")
	assert.Contains(t, out, "eth0")
	assert.NotContains(t, out, "MEMORY")
}

func TestCollectCommand_Failures(t *testing.T) {
	t.Run("partial failure is reported but not fatal", func(t *testing.T) {
		out, err := runCommand(t, "collect", "cpu", "--proc-path", t.TempDir(), "-o", "json")
		require.NoError(t, err)

		var view snapshotView
		require.NoError(t, json.Unmarshal([]byte(out), &view))
		assert.Nil(t, view.CPU)
		assert.Equal(t, "failed", string(view.Collectors["cpu"].Status))
		assert.Contains(t, view.Collectors["cpu"].Error, "source failure")
	})

	t.Run("fail on error", func(t *testing.T) {
		_, err := runCommand(t, "collect", "cpu", "--proc-path", t.TempDir(), "--fail-on-error")
		assert.Error(t, err)
	})

	t.Run("unknown collector", func(t *testing.T) {
		_, err := runCommand(t, "collect", "gpu", "--proc-path", createProcFixture(t))
		assert.ErrorContains(t, err, "unknown collector")
	})

	t.Run("relative proc path", func(t *testing.T) {
		_, err := runCommand(t, "collect", "--proc-path", "proc")
		assert.ErrorContains(t, err, "HostProcPath must be an absolute path")
	})

	t.Run("unknown output format", func(t *testing.T) {
		_, err := runCommand(t, "collect", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})

	t.Run("no sys path flag", func(t *testing.T) {
		_, err := runCommand(t, "collect", "--sys-path", "/sys")
		assert.ErrorContains(t, err, "unknown flag: --sys-path")
	})
}

func TestStatusCommand(t *testing.T) {
	out, err := runCommand(t, "status", "--collectors", "cpu,load")
	require.NoError(t, err)
	assert.Contains(t, out, "Collector")
	assert.Contains(t, out, "filesystem")

	out, err = runCommand(t, "status", "--collectors", "cpu,load", "-o", "json")
	require.NoError(t, err)

	var statuses []collectorStatusView
	require.NoError(t, json.Unmarshal([]byte(out), &statuses))
	require.Len(t, statuses, 6)
	for _, s := range statuses {
		assert.NotEmpty(t, s.Reason)
		assert.Equal(t, s.Collector == "cpu" || s.Collector == "load", s.Enabled, "collector %s", s.Collector)
	}
}
