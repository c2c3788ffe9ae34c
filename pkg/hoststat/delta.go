// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import (
	"sync"
	"time"
)

// DeltaTracker turns successive snapshots into per-interval deltas.
//
// Parsers and collectors never keep history; a long-lived caller that wants
// rates keeps a DeltaTracker next to its polling loop instead.
type DeltaTracker struct {
	mu       sync.Mutex
	previous *Snapshot
}

// SnapshotDelta is the difference between two consecutive snapshots
type SnapshotDelta struct {
	Interval time.Duration
	CPU      *CPUDelta
	Disks    []DiskDelta
	Network  []NetworkDelta
}

type CPUDelta struct {
	Total         uint64
	Idle          uint64
	IOWait        uint64
	BusyPercent   float64
	ResetDetected bool
}

type DiskDelta struct {
	Name            string
	ReadsCompleted  uint64
	WritesCompleted uint64
	ReadsPerSec     float64
	WritesPerSec    float64
	ResetDetected   bool
}

type NetworkDelta struct {
	Name          string
	RxBytes       uint64
	TxBytes       uint64
	RxBytesPerSec float64
	TxBytesPerSec float64
	ResetDetected bool
}

// Update records current and returns the delta against the previously
// recorded snapshot. It returns nil for the first snapshot, and when the
// clock went backwards.
func (t *DeltaTracker) Update(current *Snapshot) *SnapshotDelta {
	if current == nil {
		return nil
	}

	t.mu.Lock()
	previous := t.previous
	t.previous = current
	t.mu.Unlock()

	if previous == nil {
		return nil
	}
	interval := current.Timestamp.Sub(previous.Timestamp)
	if interval <= 0 {
		return nil
	}
	return Diff(previous, current, interval)
}

// Reset forgets the previously recorded snapshot
func (t *DeltaTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previous = nil
}

// Diff computes the delta between previous and current over interval.
// Devices and interfaces missing from previous produce no entry.
func Diff(previous, current *Snapshot, interval time.Duration) *SnapshotDelta {
	delta := &SnapshotDelta{Interval: interval}
	seconds := interval.Seconds()

	if current.Metrics.CPU != nil && previous.Metrics.CPU != nil {
		delta.CPU = diffCPU(previous.Metrics.CPU, current.Metrics.CPU)
	}

	prevDisks := make(map[string]DiskSnapshot, len(previous.Metrics.Disks))
	for _, d := range previous.Metrics.Disks {
		prevDisks[d.Name] = d
	}
	for _, cur := range current.Metrics.Disks {
		prev, ok := prevDisks[cur.Name]
		if !ok {
			continue
		}
		reads, r1 := CalculateUint64Delta(cur.ReadsCompleted, prev.ReadsCompleted)
		writes, r2 := CalculateUint64Delta(cur.WritesCompleted, prev.WritesCompleted)
		d := DiskDelta{
			Name:            cur.Name,
			ReadsCompleted:  reads,
			WritesCompleted: writes,
			ResetDetected:   r1 || r2,
		}
		if seconds > 0 {
			d.ReadsPerSec = float64(reads) / seconds
			d.WritesPerSec = float64(writes) / seconds
		}
		delta.Disks = append(delta.Disks, d)
	}

	prevNet := make(map[string]NetworkSnapshot, len(previous.Metrics.Network))
	for _, n := range previous.Metrics.Network {
		prevNet[n.Name] = n
	}
	for _, cur := range current.Metrics.Network {
		prev, ok := prevNet[cur.Name]
		if !ok {
			continue
		}
		rx, r1 := CalculateUint64Delta(cur.RxBytes, prev.RxBytes)
		tx, r2 := CalculateUint64Delta(cur.TxBytes, prev.TxBytes)
		n := NetworkDelta{
			Name:          cur.Name,
			RxBytes:       rx,
			TxBytes:       tx,
			ResetDetected: r1 || r2,
		}
		if seconds > 0 {
			n.RxBytesPerSec = float64(rx) / seconds
			n.TxBytesPerSec = float64(tx) / seconds
		}
		delta.Network = append(delta.Network, n)
	}

	return delta
}

func diffCPU(previous, current *CPUSnapshot) *CPUDelta {
	total, r1 := CalculateUint64Delta(current.Total, previous.Total)
	idle, r2 := CalculateUint64Delta(current.Idle, previous.Idle)
	iowait, r3 := CalculateUint64Delta(current.IOWait, previous.IOWait)

	d := &CPUDelta{
		Total:         total,
		Idle:          idle,
		IOWait:        iowait,
		ResetDetected: r1 || r2 || r3,
	}
	if !d.ResetDetected && total > 0 && idle+iowait <= total {
		d.BusyPercent = float64(total-idle-iowait) / float64(total) * 100.0
	}
	return d
}

// CalculateUint64Delta returns current-previous for a cumulative counter.
// A counter that went backwards (reboot, driver reload) yields a zero delta
// and resetDetected.
func CalculateUint64Delta(current, previous uint64) (delta uint64, resetDetected bool) {
	if current < previous {
		return 0, true
	}
	return current - previous, false
}
