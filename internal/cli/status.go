// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

type collectorStatusView struct {
	Collector hoststat.MetricType `json:"collector" yaml:"collector"`
	Enabled   bool                `json:"enabled" yaml:"enabled"`
	Available bool                `json:"available" yaml:"available"`
	Reason    string              `json:"reason" yaml:"reason"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report which collectors can run on this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := opts.config.Collection

			statuses := make([]collectorStatusView, 0, len(hoststat.AllMetricTypes))
			for _, metricType := range hoststat.AllMetricTypes {
				available, reason := hoststat.GetCollectorStatus(metricType, collection)
				statuses = append(statuses, collectorStatusView{
					Collector: metricType,
					Enabled:   collection.IsEnabled(metricType),
					Available: available,
					Reason:    reason,
				})
			}

			out := cmd.OutOrStdout()
			if opts.config.Output != OutputText {
				return encode(out, opts.config.Output, statuses)
			}

			fmt.Fprintf(out, "Platform: %s/%s\n\n", runtime.GOOS, runtime.GOARCH)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Collector\tEnabled\tAvailable\tReason\n")
			fmt.Fprintf(w, "---------\t-------\t---------\t------\n")
			for _, s := range statuses {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Collector, mark(s.Enabled), mark(s.Available), s.Reason)
			}
			return w.Flush()
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
