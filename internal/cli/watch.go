// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Take snapshots on an interval and print per-second rates",
		Args:  cobra.NoArgs,
		Example: `  hoststat watch --interval 5s
  hoststat watch --collectors cpu,network --count 3 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := newReloadingSource(opts)
			if err != nil {
				return err
			}
			source.watchConfig(opts.v, opts)

			return runWatch(cmd.Context(), cmd.OutOrStdout(), source, watchOptions{
				Interval: opts.config.Collection.Interval,
				Count:    opts.v.GetInt(keyCount),
				Output:   opts.config.Output,
			}, opts)
		},
	}
	cmd.Flags().Duration(keyInterval, time.Second, "Time between snapshots")
	cmd.Flags().Int(keyCount, 0, "Stop after printing this many intervals (0 runs until interrupted)")
	return cmd
}

type snapshotSource interface {
	Collect(ctx context.Context) (*hoststat.Snapshot, error)
}

type watchOptions struct {
	Interval time.Duration
	Count    int
	Output   OutputFormat
}

// runWatch prints the delta between consecutive snapshots. The first
// snapshot only primes the tracker.
func runWatch(ctx context.Context, w io.Writer, source snapshotSource, wo watchOptions, opts *rootOptions) error {
	var tracker hoststat.DeltaTracker
	ticker := time.NewTicker(wo.Interval)
	defer ticker.Stop()

	printed := 0
	for {
		snapshot, err := source.Collect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := snapshot.Err(); err != nil {
			opts.logger.Info("Some collectors failed", "error", err.Error())
		}

		if delta := tracker.Update(snapshot); delta != nil {
			if err := writeDelta(w, wo.Output, delta); err != nil {
				return err
			}
			printed++
			if wo.Count > 0 && printed >= wo.Count {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
