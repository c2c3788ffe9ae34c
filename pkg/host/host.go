// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package host resolves the identity of the machine being observed.
package host

import (
	"fmt"
	"os"
)

// Hostname reads <procPath>/sys/kernel/hostname. The kernel answers with the
// UTS namespace of the reading process, whichever /proc is mounted, so inside
// a container this is the host's name only when the container shares the host
// UTS namespace (hostNetwork pods, docker --uts=host).
func Hostname(procPath string) (string, error) {
	return hostname(procPath)
}

// NodeName picks the name a snapshot is attributed to. An explicit name wins,
// then $NODE_NAME, then the kernel hostname behind procPath, then os.Hostname.
func NodeName(explicit, procPath string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if name := os.Getenv("NODE_NAME"); name != "" {
		return name, nil
	}
	if name, err := Hostname(procPath); err == nil && name != "" {
		return name, nil
	}
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}
	return name, nil
}
