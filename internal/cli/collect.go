// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"github.com/spf13/cobra"
)

func newCollectCommand(opts *rootOptions) *cobra.Command {
	var failOnError bool

	cmd := &cobra.Command{
		Use:   "collect [collector...]",
		Short: "Take one snapshot and print it",
		Example: `  hoststat collect
  hoststat collect cpu memory -o json
  hoststat collect --proc-path /host/proc --load-source procfs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := opts.config.Collection
			if len(args) > 0 {
				enabled, err := parseCollectors(args)
				if err != nil {
					return err
				}
				collection.EnabledCollectors = enabled
			}

			manager, err := opts.newManager(collection)
			if err != nil {
				return err
			}

			snapshot, err := manager.Collect(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeSnapshot(cmd.OutOrStdout(), opts.config.Output, snapshot); err != nil {
				return err
			}

			if err := snapshot.Err(); err != nil {
				if failOnError {
					return err
				}
				opts.logger.Info("Some collectors failed", "error", err.Error())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "Exit non-zero when any collector fails")
	return cmd
}
