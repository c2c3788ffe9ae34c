// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package collectors

import "context"

// SyscallLoadSampler falls back to gopsutil where sysinfo(2) does not exist
func SyscallLoadSampler(ctx context.Context) ([]float64, error) {
	return GopsutilLoadSampler(ctx)
}
