// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

const envPrefix = "HOSTSTAT"

// Configuration keys. Each is also a flag name and, upper-cased with
// dashes replaced, an environment variable (HOSTSTAT_PROC_PATH, ...).
const (
	keyConfig       = "config"
	keyProcPath     = "proc-path"
	keyDfPath       = "df-path"
	keyLoadSource   = "load-source"
	keyCollectors   = "collectors"
	keyNodeName     = "node-name"
	keyOutput       = "output"
	keyVerbose      = "verbose"
	keyLogFormat    = "log-format"
	keyInterval     = "interval"
	keyCount        = "count"
	keyListen       = "listen"
	keyOTLPEndpoint = "otlp-endpoint"
	keyOTLPInsecure = "otlp-insecure"
)

// Config is the resolved CLI configuration: flags override environment,
// which overrides the config file, which overrides defaults.
type Config struct {
	Collection hoststat.CollectionConfig
	NodeName   string
	Output     OutputFormat
	Verbosity  int
	LogFormat  LogFormat
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := hoststat.DefaultCollectionConfig()
	v.SetDefault(keyProcPath, defaults.HostProcPath)
	v.SetDefault(keyDfPath, defaults.DfPath)
	v.SetDefault(keyLoadSource, string(defaults.LoadSource))
	v.SetDefault(keyOutput, string(OutputText))
	v.SetDefault(keyLogFormat, string(LogFormatConsole))
	v.SetDefault(keyInterval, defaults.Interval)
	return v
}

// bindFlags makes every flag in flags resolvable through v
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil && err == nil {
			err = fmt.Errorf("failed to bind flag %s: %w", f.Name, bindErr)
		}
	})
	return err
}

// readConfigFile loads the YAML config file named by the config key, if any
func readConfigFile(v *viper.Viper) error {
	path := v.GetString(keyConfig)
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	output, err := ParseOutputFormat(v.GetString(keyOutput))
	if err != nil {
		return Config{}, err
	}

	logFormat, err := ParseLogFormat(v.GetString(keyLogFormat))
	if err != nil {
		return Config{}, err
	}

	interval := v.GetDuration(keyInterval)
	if interval <= 0 {
		return Config{}, fmt.Errorf("interval must be positive, got %s", interval)
	}

	enabled, err := parseCollectors(v.GetStringSlice(keyCollectors))
	if err != nil {
		return Config{}, err
	}

	collection := hoststat.CollectionConfig{
		Interval:          interval,
		EnabledCollectors: enabled,
		HostProcPath:      v.GetString(keyProcPath),
		DfPath:            v.GetString(keyDfPath),
		LoadSource:        hoststat.LoadSource(v.GetString(keyLoadSource)),
	}
	collection.ApplyDefaults()
	if err := collection.Validate(hoststat.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return Config{}, err
	}

	return Config{
		Collection: collection,
		NodeName:   v.GetString(keyNodeName),
		Output:     output,
		Verbosity:  v.GetInt(keyVerbose),
		LogFormat:  logFormat,
	}, nil
}

// parseCollectors turns a list of metric type names into an enabled set.
// An empty list enables everything.
func parseCollectors(names []string) (map[hoststat.MetricType]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}

	enabled := make(map[hoststat.MetricType]bool, len(hoststat.AllMetricTypes))
	for _, metricType := range hoststat.AllMetricTypes {
		enabled[metricType] = false
	}
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			metricType := hoststat.MetricType(strings.TrimSpace(strings.ToLower(part)))
			if metricType == "" {
				continue
			}
			if !slices.Contains(hoststat.AllMetricTypes, metricType) {
				return nil, fmt.Errorf("unknown collector %q (known: %v)", part, hoststat.AllMetricTypes)
			}
			enabled[metricType] = true
		}
	}
	return enabled, nil
}
