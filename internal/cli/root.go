// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package cli implements the hoststat command line.
package cli

import (
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/antimetal/hoststat/pkg/hoststat"
	_ "github.com/antimetal/hoststat/pkg/hoststat/collectors" // Import to trigger init() functions
)

type rootOptions struct {
	v      *viper.Viper
	config Config
	logger logr.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: newViper(), logger: logr.Discard()}

	cmd := &cobra.Command{
		Use:   "hoststat",
		Short: "Point-in-time host CPU, memory, disk, filesystem, network and load statistics",
		Long: `hoststat reads the kernel's cumulative counters (/proc/stat, /proc/meminfo,
/proc/diskstats, /proc/net/dev), filesystem usage (df) and the load averages,
and reports them as a single snapshot.

Every flag can also be set in the YAML config file or through an environment
variable: --proc-path is HOSTSTAT_PROC_PATH, and so on.`,
		SilenceUsage:      true,
		PersistentPreRunE: opts.preRun,
	}

	defaults := hoststat.DefaultCollectionConfig()
	pflags := cmd.PersistentFlags()
	pflags.String(keyConfig, "", "Config file path (YAML)")
	pflags.String(keyProcPath, defaults.HostProcPath, "Path to the host /proc")
	pflags.String(keyDfPath, defaults.DfPath, "df binary used for filesystem usage")
	pflags.String(keyLoadSource, string(defaults.LoadSource), "Load average source (syscall, procfs, gopsutil)")
	pflags.StringSlice(keyCollectors, nil, "Collectors to enable (default all)")
	pflags.String(keyNodeName, "", "Node name reported in snapshots (default $NODE_NAME or the hostname)")
	pflags.StringP(keyOutput, "o", string(OutputText), "Output format (text, json, yaml)")
	pflags.CountP(keyVerbose, "v", "Increase log verbosity (repeatable)")
	pflags.String(keyLogFormat, string(LogFormatConsole), "Log format (console for development, json for production)")

	cmd.AddCommand(
		newCollectCommand(opts),
		newStatusCommand(opts),
		newServeCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

func (o *rootOptions) preRun(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(o.v, cmd.Flags()); err != nil {
		return err
	}
	if err := readConfigFile(o.v); err != nil {
		return err
	}

	config, err := loadConfig(o.v)
	if err != nil {
		return err
	}
	o.config = config
	o.logger = newLogger(cmd.ErrOrStderr(), config.LogFormat, config.Verbosity)
	hoststat.SetRegistryLogger(o.logger.WithName("registry"))

	o.logger.V(1).Info("Loaded configuration",
		"config_file", o.v.ConfigFileUsed(),
		"proc_path", config.Collection.HostProcPath,
		"load_source", config.Collection.LoadSource)
	return nil
}

func (o *rootOptions) newManager(collection hoststat.CollectionConfig) (*hoststat.Manager, error) {
	return hoststat.NewManager(hoststat.ManagerOptions{
		Config:   collection,
		Logger:   o.logger,
		NodeName: o.config.NodeName,
	})
}
