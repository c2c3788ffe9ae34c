// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package hoststat provides point-in-time host statistics snapshots.
//
// The parsers in the collectors subpackage turn kernel accounting text
// (/proc/stat, /proc/meminfo, /proc/diskstats, /proc/net/dev, df output)
// into the typed snapshots declared here. Every snapshot is produced fresh
// by a single call and all counters are cumulative since boot; computing
// rates is left to the caller, for example with a DeltaTracker.
//
// Example usage:
//
//	import _ "github.com/antimetal/hoststat/pkg/hoststat/collectors"
//
//	mgr, err := hoststat.NewManager(hoststat.ManagerOptions{Logger: logger})
//	if err != nil {
//		return err
//	}
//	snapshot, err := mgr.Collect(ctx)
package hoststat
