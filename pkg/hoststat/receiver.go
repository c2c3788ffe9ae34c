// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

// Receiver accepts output from collectors and processes it accordingly.
type Receiver interface {
	// Accept processes data from a collector.
	// The data parameter is the collector's snapshot (e.g., CPUSnapshot, []DiskSnapshot).
	Accept(data any) error

	// Name returns the receiver's name for logging and identification.
	Name() string
}
