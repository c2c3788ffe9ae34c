// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig(newViper())
	require.NoError(t, err)

	assert.Equal(t, hoststat.DefaultCollectionConfig(), config.Collection)
	assert.Equal(t, OutputText, config.Output)
	assert.Zero(t, config.Verbosity)
	assert.Equal(t, LogFormatConsole, config.LogFormat)
}

func TestLoadConfig_Precedence(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "hoststat.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
proc-path: /file/proc
load-source: procfs
collectors: [cpu, memory]
output: yaml
interval: 30s
`), 0644))

	t.Setenv("HOSTSTAT_LOAD_SOURCE", "gopsutil")
	t.Setenv("HOSTSTAT_DF_PATH", "/env/df")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String(keyConfig, "", "")
	flags.String(keyDfPath, "df", "")
	flags.String(keyProcPath, "/proc", "")
	require.NoError(t, flags.Parse([]string{"--config", configFile, "--df-path", "/flag/df"}))

	v := newViper()
	require.NoError(t, bindFlags(v, flags))
	require.NoError(t, readConfigFile(v))

	config, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "/file/proc", config.Collection.HostProcPath, "file beats flag default")
	assert.Equal(t, hoststat.LoadSourceGopsutil, config.Collection.LoadSource, "env beats file")
	assert.Equal(t, "/flag/df", config.Collection.DfPath, "flag beats env")
	assert.Equal(t, 30*time.Second, config.Collection.Interval)
	assert.Equal(t, OutputYAML, config.Output)
	assert.True(t, config.Collection.IsEnabled(hoststat.MetricTypeCPU))
	assert.True(t, config.Collection.IsEnabled(hoststat.MetricTypeMemory))
	assert.False(t, config.Collection.IsEnabled(hoststat.MetricTypeFilesystem))
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		errMsg string
	}{
		{name: "bad load source", env: map[string]string{"HOSTSTAT_LOAD_SOURCE": "magic"}, errMsg: "unknown load source"},
		{name: "bad output", env: map[string]string{"HOSTSTAT_OUTPUT": "csv"}, errMsg: "unknown output format"},
		{name: "bad collector", env: map[string]string{"HOSTSTAT_COLLECTORS": "cpu,gpu"}, errMsg: "unknown collector"},
		{name: "relative proc path", env: map[string]string{"HOSTSTAT_PROC_PATH": "proc"}, errMsg: "absolute path"},
		{name: "bad log format", env: map[string]string{"HOSTSTAT_LOG_FORMAT": "logfmt"}, errMsg: "unknown log format"},
		{name: "negative interval", env: map[string]string{"HOSTSTAT_INTERVAL": "-1s"}, errMsg: "interval must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(newViper())
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}

	t.Run("missing config file", func(t *testing.T) {
		v := newViper()
		v.Set(keyConfig, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, readConfigFile(v), "failed to read config file")
	})
}

func TestParseCollectors(t *testing.T) {
	enabled, err := parseCollectors(nil)
	require.NoError(t, err)
	assert.Nil(t, enabled)

	enabled, err = parseCollectors([]string{"CPU, network", "load"})
	require.NoError(t, err)
	assert.Equal(t, map[hoststat.MetricType]bool{
		hoststat.MetricTypeCPU:        true,
		hoststat.MetricTypeMemory:     false,
		hoststat.MetricTypeDisk:       false,
		hoststat.MetricTypeFilesystem: false,
		hoststat.MetricTypeNetwork:    true,
		hoststat.MetricTypeLoad:       true,
	}, enabled)
}
