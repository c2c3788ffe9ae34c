// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat_test

import (
	"testing"
	"time"

	"github.com/antimetal/hoststat/pkg/hoststat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotAt(ts time.Time, metrics hoststat.Metrics) *hoststat.Snapshot {
	return &hoststat.Snapshot{Timestamp: ts, Metrics: metrics}
}

func TestCalculateUint64Delta(t *testing.T) {
	tests := []struct {
		name      string
		current   uint64
		previous  uint64
		wantDelta uint64
		wantReset bool
	}{
		{name: "increasing counter", current: 150, previous: 50, wantDelta: 100},
		{name: "unchanged counter", current: 50, previous: 50, wantDelta: 0},
		{name: "counter reset", current: 10, previous: 50, wantDelta: 0, wantReset: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, reset := hoststat.CalculateUint64Delta(tt.current, tt.previous)
			assert.Equal(t, tt.wantDelta, delta)
			assert.Equal(t, tt.wantReset, reset)
		})
	}
}

func TestDeltaTracker(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := snapshotAt(base, hoststat.Metrics{
		CPU:     &hoststat.CPUSnapshot{Idle: 800, IOWait: 100, Total: 1000},
		Disks:   []hoststat.DiskSnapshot{{Name: "sda", ReadsCompleted: 100, WritesCompleted: 200}},
		Network: []hoststat.NetworkSnapshot{{Name: "eth0", RxBytes: 1000, TxBytes: 2000}},
	})
	second := snapshotAt(base.Add(2*time.Second), hoststat.Metrics{
		CPU: &hoststat.CPUSnapshot{Idle: 1400, IOWait: 200, Total: 2000},
		Disks: []hoststat.DiskSnapshot{
			{Name: "sda", ReadsCompleted: 150, WritesCompleted: 260},
			{Name: "sdb", ReadsCompleted: 5, WritesCompleted: 5},
		},
		Network: []hoststat.NetworkSnapshot{{Name: "eth0", RxBytes: 5000, TxBytes: 3000}},
	})

	var tracker hoststat.DeltaTracker
	assert.Nil(t, tracker.Update(first), "first snapshot has nothing to diff against")

	delta := tracker.Update(second)
	require.NotNil(t, delta)
	assert.Equal(t, 2*time.Second, delta.Interval)

	t.Run("cpu", func(t *testing.T) {
		require.NotNil(t, delta.CPU)
		assert.Equal(t, uint64(1000), delta.CPU.Total)
		assert.Equal(t, uint64(600), delta.CPU.Idle)
		assert.Equal(t, uint64(100), delta.CPU.IOWait)
		assert.InDelta(t, 30.0, delta.CPU.BusyPercent, 0.001)
		assert.False(t, delta.CPU.ResetDetected)
	})

	t.Run("disks seen only once are skipped", func(t *testing.T) {
		require.Len(t, delta.Disks, 1)
		d := delta.Disks[0]
		assert.Equal(t, "sda", d.Name)
		assert.Equal(t, uint64(50), d.ReadsCompleted)
		assert.Equal(t, uint64(60), d.WritesCompleted)
		assert.InDelta(t, 25.0, d.ReadsPerSec, 0.001)
		assert.InDelta(t, 30.0, d.WritesPerSec, 0.001)
	})

	t.Run("network", func(t *testing.T) {
		require.Len(t, delta.Network, 1)
		n := delta.Network[0]
		assert.Equal(t, uint64(4000), n.RxBytes)
		assert.Equal(t, uint64(1000), n.TxBytes)
		assert.InDelta(t, 2000.0, n.RxBytesPerSec, 0.001)
		assert.InDelta(t, 500.0, n.TxBytesPerSec, 0.001)
	})

	t.Run("reset forgets history", func(t *testing.T) {
		tracker.Reset()
		assert.Nil(t, tracker.Update(second))
	})
}

func TestDeltaTracker_CounterReset(t *testing.T) {
	base := time.Now()
	before := snapshotAt(base, hoststat.Metrics{
		CPU:     &hoststat.CPUSnapshot{Idle: 5000, Total: 9000},
		Network: []hoststat.NetworkSnapshot{{Name: "eth0", RxBytes: 1 << 40, TxBytes: 10}},
	})
	after := snapshotAt(base.Add(time.Second), hoststat.Metrics{
		CPU:     &hoststat.CPUSnapshot{Idle: 50, Total: 100},
		Network: []hoststat.NetworkSnapshot{{Name: "eth0", RxBytes: 10, TxBytes: 20}},
	})

	var tracker hoststat.DeltaTracker
	tracker.Update(before)
	delta := tracker.Update(after)
	require.NotNil(t, delta)

	require.NotNil(t, delta.CPU)
	assert.True(t, delta.CPU.ResetDetected)
	assert.Zero(t, delta.CPU.BusyPercent)

	require.Len(t, delta.Network, 1)
	assert.True(t, delta.Network[0].ResetDetected)
	assert.Zero(t, delta.Network[0].RxBytes)
	assert.Equal(t, uint64(10), delta.Network[0].TxBytes)
}

func TestDeltaTracker_ClockWentBackwards(t *testing.T) {
	base := time.Now()

	var tracker hoststat.DeltaTracker
	tracker.Update(snapshotAt(base, hoststat.Metrics{}))
	assert.Nil(t, tracker.Update(snapshotAt(base.Add(-time.Second), hoststat.Metrics{})))
	assert.Nil(t, tracker.Update(nil))
}

func TestDiff_MissingCPU(t *testing.T) {
	base := time.Now()
	previous := snapshotAt(base, hoststat.Metrics{})
	current := snapshotAt(base.Add(time.Second), hoststat.Metrics{CPU: &hoststat.CPUSnapshot{Total: 10}})

	delta := hoststat.Diff(previous, current, time.Second)
	assert.Nil(t, delta.CPU)
	assert.Empty(t, delta.Disks)
	assert.Empty(t, delta.Network)
}
