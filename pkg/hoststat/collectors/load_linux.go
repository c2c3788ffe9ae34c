// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package collectors

import (
	"context"

	"golang.org/x/sys/unix"
)

// sysinfo(2) reports loads as fixed point numbers with SI_LOAD_SHIFT fractional bits
const siLoadScale = 1 << 16

// SyscallLoadSampler reads the load averages with sysinfo(2)
func SyscallLoadSampler(ctx context.Context) ([]float64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return nil, err
	}

	samples := make([]float64, 0, len(info.Loads))
	for _, l := range info.Loads {
		samples = append(samples, float64(l)/siLoadScale)
	}
	return samples, nil
}
