// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/go-logr/logr"
)

func init() {
	hoststat.Register(hoststat.MetricTypeNetwork,
		func(logger logr.Logger, config hoststat.CollectionConfig) (hoststat.PointCollector, error) {
			return NewNetworkCollector(logger, config)
		},
	)
}

const (
	loopbackInterface = "lo"
	netDevHeaderLines = 2

	// Counter columns after the "iface:" prefix (0-based). Receive has 8
	// columns, so the first transmit column is 8.
	netDevRxBytesField = 0
	netDevTxBytesField = 8
	netDevMinFields    = netDevTxBytesField + 1
)

var _ hoststat.PointCollector = (*NetworkCollector)(nil)

// NetworkCollector collects per-interface byte counters from /proc/net/dev
//
// The loopback interface is never reported.
//
// Reference: https://www.kernel.org/doc/html/latest/networking/statistics.html
type NetworkCollector struct {
	hoststat.BasePointCollector
	procNetDevPath string
}

func NewNetworkCollector(logger logr.Logger, config hoststat.CollectionConfig) (*NetworkCollector, error) {
	if err := config.Validate(hoststat.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	capabilities := hoststat.CollectorCapabilities{
		SupportsOneShot:  true,
		MinKernelVersion: "2.6.0", // /proc/net/dev has been around forever
		Platforms:        []string{"linux"},
	}

	return &NetworkCollector{
		BasePointCollector: hoststat.NewBasePointCollector(
			hoststat.MetricTypeNetwork,
			"Network Statistics Collector",
			logger,
			config,
			capabilities,
		),
		procNetDevPath: filepath.Join(config.HostProcPath, "net", "dev"),
	}, nil
}

func (c *NetworkCollector) Collect(ctx context.Context) (any, error) {
	stats, err := parseFile(ctx, c.procNetDevPath, ParseNetDev)
	if err != nil {
		return nil, err
	}

	c.Logger().V(1).Info("Collected network statistics", "interfaces", len(stats))
	return stats, nil
}

// ParseNetDev parses /proc/net/dev content.
//
// Format:
//
//	Inter-|   Receive                                                |  Transmit
//	 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
//	    lo: 1234567   12345    0    0    0     0          0         0 1234567   12345    0    0    0     0       0          0
//	  eth0: 9876543   98765    0    0    0     0          0         0 9876543   98765    0    0    0     0       0          0
//
// The first two lines are headers. Large counters can run into the colon
// ("eth1:183651236"), so the name is split at the first colon rather than
// at whitespace. Every line after the headers must be a well formed
// interface line, blank lines included.
func ParseNetDev(r io.Reader) ([]hoststat.NetworkSnapshot, error) {
	scanner := newLineScanner(r)
	for range netDevHeaderLines {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, sourceError("net/dev header", err)
			}
			return nil, fmt.Errorf("%w: net/dev header is shorter than %d lines", hoststat.ErrSource, netDevHeaderLines)
		}
	}

	var stats []hoststat.NetworkSnapshot
	for scanner.Scan() {
		line := scanner.Text()
		name, counters, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("%w: net/dev line without interface separator: %q", hoststat.ErrMalformed, line)
		}
		name = strings.TrimSpace(name)

		fields := strings.Fields(counters)
		if len(fields) < netDevMinFields {
			return nil, fmt.Errorf("%w: interface %s has %d counters, need at least %d",
				hoststat.ErrMalformed, name, len(fields), netDevMinFields)
		}

		rx, err := parseUintField(fields, netDevRxBytesField, "rx_bytes")
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}
		tx, err := parseUintField(fields, netDevTxBytesField, "tx_bytes")
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}

		if name == loopbackInterface {
			continue
		}
		stats = append(stats, hoststat.NetworkSnapshot{
			Name:    name,
			RxBytes: rx,
			TxBytes: tx,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, sourceError("net/dev", err)
	}

	return stats, nil
}
