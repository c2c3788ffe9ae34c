// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

// reloadingSource collects through the current Manager. When the config
// file changes the Manager is rebuilt and swapped in; a config that fails
// to load keeps the previous Manager running.
type reloadingSource struct {
	current atomic.Pointer[hoststat.Manager]
	logger  logr.Logger
}

func newReloadingSource(opts *rootOptions) (*reloadingSource, error) {
	manager, err := opts.newManager(opts.config.Collection)
	if err != nil {
		return nil, err
	}

	s := &reloadingSource{logger: opts.logger.WithName("reload")}
	s.current.Store(manager)
	return s, nil
}

func (s *reloadingSource) Collect(ctx context.Context) (*hoststat.Snapshot, error) {
	return s.current.Load().Collect(ctx)
}

// watchConfig rebuilds the Manager whenever v's config file changes.
// It is a no-op when no config file is in use.
func (s *reloadingSource) watchConfig(v *viper.Viper, opts *rootOptions) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Info("Config file changed, rebuilding collectors", "file", e.Name, "op", e.Op.String())

		config, err := loadConfig(v)
		if err != nil {
			s.logger.Error(err, "Invalid config, keeping previous collectors")
			return
		}
		manager, err := hoststat.NewManager(hoststat.ManagerOptions{
			Config:   config.Collection,
			Logger:   opts.logger,
			NodeName: config.NodeName,
		})
		if err != nil {
			s.logger.Error(err, "Failed to rebuild collectors, keeping previous ones")
			return
		}
		s.current.Store(manager)
	})
	v.WatchConfig()
	s.logger.V(1).Info("Watching config file", "file", v.ConfigFileUsed())
}
