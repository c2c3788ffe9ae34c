// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputJSON, OutputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// encode writes v as JSON or YAML. Text output is command specific.
func encode(w io.Writer, format OutputFormat, v any) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s is not a structured encoding", format)
	}
}

type collectorView struct {
	Status   hoststat.CollectorStatus `json:"status" yaml:"status"`
	Duration string                   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Error    string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

type cpuView struct {
	User      uint64 `json:"user" yaml:"user"`
	Nice      uint64 `json:"nice" yaml:"nice"`
	System    uint64 `json:"system" yaml:"system"`
	Idle      uint64 `json:"idle" yaml:"idle"`
	IOWait    uint64 `json:"iowait" yaml:"iowait"`
	IRQ       uint64 `json:"irq" yaml:"irq"`
	SoftIRQ   uint64 `json:"softirq" yaml:"softirq"`
	Steal     uint64 `json:"steal" yaml:"steal"`
	Guest     uint64 `json:"guest" yaml:"guest"`
	GuestNice uint64 `json:"guest_nice" yaml:"guest_nice"`
	Total     uint64 `json:"total" yaml:"total"`
	StatCount int    `json:"stat_count" yaml:"stat_count"`
	CPUCount  int    `json:"cpu_count" yaml:"cpu_count"`
}

type memoryView struct {
	Total                 uint64 `json:"total" yaml:"total"`
	Free                  uint64 `json:"free" yaml:"free"`
	Buffers               uint64 `json:"buffers" yaml:"buffers"`
	Cached                uint64 `json:"cached" yaml:"cached"`
	Active                uint64 `json:"active" yaml:"active"`
	Inactive              uint64 `json:"inactive" yaml:"inactive"`
	Available             uint64 `json:"available" yaml:"available"`
	MemAvailableSupported bool   `json:"mem_available_supported" yaml:"mem_available_supported"`
	Used                  uint64 `json:"used" yaml:"used"`
	SwapTotal             uint64 `json:"swap_total" yaml:"swap_total"`
	SwapFree              uint64 `json:"swap_free" yaml:"swap_free"`
	SwapCached            uint64 `json:"swap_cached" yaml:"swap_cached"`
	SwapUsed              uint64 `json:"swap_used" yaml:"swap_used"`
}

type diskView struct {
	Name            string `json:"name" yaml:"name"`
	ReadsCompleted  uint64 `json:"reads_completed" yaml:"reads_completed"`
	WritesCompleted uint64 `json:"writes_completed" yaml:"writes_completed"`
}

type filesystemView struct {
	Name      string `json:"name" yaml:"name"`
	UsedBytes uint64 `json:"used_bytes" yaml:"used_bytes"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes"`
}

type networkView struct {
	Name    string `json:"name" yaml:"name"`
	RxBytes uint64 `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes" yaml:"tx_bytes"`
}

type loadView struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

type snapshotView struct {
	ID          string                                 `json:"id" yaml:"id"`
	Timestamp   time.Time                              `json:"timestamp" yaml:"timestamp"`
	NodeName    string                                 `json:"node_name" yaml:"node_name"`
	Duration    string                                 `json:"duration" yaml:"duration"`
	Collectors  map[hoststat.MetricType]collectorView `json:"collectors" yaml:"collectors"`
	CPU         *cpuView                               `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory      *memoryView                            `json:"memory,omitempty" yaml:"memory,omitempty"`
	Disks       []diskView                             `json:"disks,omitempty" yaml:"disks,omitempty"`
	Filesystems []filesystemView                       `json:"filesystems,omitempty" yaml:"filesystems,omitempty"`
	Network     []networkView                          `json:"network,omitempty" yaml:"network,omitempty"`
	Load        *loadView                              `json:"load,omitempty" yaml:"load,omitempty"`
}

func newSnapshotView(s *hoststat.Snapshot) snapshotView {
	view := snapshotView{
		ID:         s.ID,
		Timestamp:  s.Timestamp,
		NodeName:   s.NodeName,
		Duration:   s.CollectorRun.Duration.String(),
		Collectors: make(map[hoststat.MetricType]collectorView, len(s.CollectorRun.CollectorStats)),
	}
	for metricType, stat := range s.CollectorRun.CollectorStats {
		cv := collectorView{Status: stat.Status}
		if stat.Status != hoststat.CollectorStatusDisabled {
			cv.Duration = stat.Duration.String()
		}
		if stat.Error != nil {
			cv.Error = stat.Error.Error()
		}
		view.Collectors[metricType] = cv
	}

	m := s.Metrics
	if c := m.CPU; c != nil {
		view.CPU = &cpuView{
			User: c.User, Nice: c.Nice, System: c.System, Idle: c.Idle, IOWait: c.IOWait,
			IRQ: c.IRQ, SoftIRQ: c.SoftIRQ, Steal: c.Steal, Guest: c.Guest, GuestNice: c.GuestNice,
			Total: c.Total, StatCount: c.StatCount, CPUCount: c.CPUCount,
		}
	}
	if mem := m.Memory; mem != nil {
		view.Memory = &memoryView{
			Total: mem.Total, Free: mem.Free, Buffers: mem.Buffers, Cached: mem.Cached,
			Active: mem.Active, Inactive: mem.Inactive, Available: mem.Available,
			MemAvailableSupported: mem.MemAvailableSupported, Used: mem.Used,
			SwapTotal: mem.SwapTotal, SwapFree: mem.SwapFree, SwapCached: mem.SwapCached, SwapUsed: mem.SwapUsed,
		}
	}
	for _, d := range m.Disks {
		view.Disks = append(view.Disks, diskView(d))
	}
	for _, fs := range m.Filesystems {
		view.Filesystems = append(view.Filesystems, filesystemView(fs))
	}
	for _, n := range m.Network {
		view.Network = append(view.Network, networkView(n))
	}
	if l := m.Load; l != nil {
		view.Load = &loadView{Load1: l.Load1, Load5: l.Load5, Load15: l.Load15}
	}
	return view
}

func writeSnapshot(w io.Writer, format OutputFormat, s *hoststat.Snapshot) error {
	if format != OutputText {
		return encode(w, format, newSnapshotView(s))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Snapshot %s\tnode %s\t%s\n", s.ID, s.NodeName, s.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(tw, "\nCOLLECTOR\tSTATUS\tDURATION\tERROR\n")
	for _, metricType := range hoststat.AllMetricTypes {
		stat, ok := s.CollectorRun.CollectorStats[metricType]
		if !ok {
			continue
		}
		errText := ""
		if stat.Error != nil {
			errText = stat.Error.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", metricType, stat.Status, stat.Duration, errText)
	}

	m := s.Metrics
	if c := m.CPU; c != nil {
		fmt.Fprintf(tw, "\nCPU\tUSER\tNICE\tSYSTEM\tIDLE\tIOWAIT\tSTEAL\tTOTAL\tCORES\n")
		fmt.Fprintf(tw, "cpu\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			c.User, c.Nice, c.System, c.Idle, c.IOWait, c.Steal, c.Total, c.CPUCount)
	}
	if mem := m.Memory; mem != nil {
		fmt.Fprintf(tw, "\nMEMORY\tTOTAL\tUSED\tFREE\tAVAILABLE\tSWAP TOTAL\tSWAP USED\n")
		available := "-"
		if mem.MemAvailableSupported {
			available = fmt.Sprint(mem.Available)
		}
		fmt.Fprintf(tw, "bytes\t%d\t%d\t%d\t%s\t%d\t%d\n",
			mem.Total, mem.Used, mem.Free, available, mem.SwapTotal, mem.SwapUsed)
	}
	if len(m.Disks) > 0 {
		fmt.Fprintf(tw, "\nDISK\tREADS\tWRITES\n")
		for _, d := range m.Disks {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Name, d.ReadsCompleted, d.WritesCompleted)
		}
	}
	if len(m.Filesystems) > 0 {
		fmt.Fprintf(tw, "\nFILESYSTEM\tUSED\tSIZE\n")
		for _, fs := range m.Filesystems {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", fs.Name, fs.UsedBytes, fs.SizeBytes)
		}
	}
	if len(m.Network) > 0 {
		fmt.Fprintf(tw, "\nINTERFACE\tRX BYTES\tTX BYTES\n")
		for _, n := range m.Network {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", n.Name, n.RxBytes, n.TxBytes)
		}
	}
	if l := m.Load; l != nil {
		fmt.Fprintf(tw, "\nLOAD\t1M\t5M\t15M\n")
		fmt.Fprintf(tw, "load\t%.2f\t%.2f\t%.2f\n", l.Load1, l.Load5, l.Load15)
	}
	return tw.Flush()
}

type cpuDeltaView struct {
	BusyPercent   float64 `json:"busy_percent" yaml:"busy_percent"`
	ResetDetected bool    `json:"reset_detected" yaml:"reset_detected"`
}

type diskDeltaView struct {
	Name            string  `json:"name" yaml:"name"`
	ReadsCompleted  uint64  `json:"reads_completed" yaml:"reads_completed"`
	WritesCompleted uint64  `json:"writes_completed" yaml:"writes_completed"`
	ReadsPerSec     float64 `json:"reads_per_sec" yaml:"reads_per_sec"`
	WritesPerSec    float64 `json:"writes_per_sec" yaml:"writes_per_sec"`
	ResetDetected   bool    `json:"reset_detected" yaml:"reset_detected"`
}

type networkDeltaView struct {
	Name          string  `json:"name" yaml:"name"`
	RxBytes       uint64  `json:"rx_bytes" yaml:"rx_bytes"`
	TxBytes       uint64  `json:"tx_bytes" yaml:"tx_bytes"`
	RxBytesPerSec float64 `json:"rx_bytes_per_sec" yaml:"rx_bytes_per_sec"`
	TxBytesPerSec float64 `json:"tx_bytes_per_sec" yaml:"tx_bytes_per_sec"`
	ResetDetected bool    `json:"reset_detected" yaml:"reset_detected"`
}

type deltaView struct {
	Interval string             `json:"interval" yaml:"interval"`
	CPU      *cpuDeltaView      `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Disks    []diskDeltaView    `json:"disks,omitempty" yaml:"disks,omitempty"`
	Network  []networkDeltaView `json:"network,omitempty" yaml:"network,omitempty"`
}

func writeDelta(w io.Writer, format OutputFormat, d *hoststat.SnapshotDelta) error {
	if format != OutputText {
		view := deltaView{Interval: d.Interval.String()}
		if d.CPU != nil {
			view.CPU = &cpuDeltaView{BusyPercent: d.CPU.BusyPercent, ResetDetected: d.CPU.ResetDetected}
		}
		for _, disk := range d.Disks {
			view.Disks = append(view.Disks, diskDeltaView(disk))
		}
		for _, n := range d.Network {
			view.Network = append(view.Network, networkDeltaView(n))
		}
		return encode(w, format, view)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Interval %s\n", d.Interval)
	if d.CPU != nil {
		if d.CPU.ResetDetected {
			fmt.Fprintf(tw, "cpu\tcounter reset\n")
		} else {
			fmt.Fprintf(tw, "cpu\t%.1f%% busy\n", d.CPU.BusyPercent)
		}
	}
	for _, disk := range d.Disks {
		fmt.Fprintf(tw, "%s\t%.1f reads/s\t%.1f writes/s\n", disk.Name, disk.ReadsPerSec, disk.WritesPerSec)
	}
	for _, n := range d.Network {
		fmt.Fprintf(tw, "%s\t%.0f rx B/s\t%.0f tx B/s\n", n.Name, n.RxBytesPerSec, n.TxBytesPerSec)
	}
	return tw.Flush()
}
