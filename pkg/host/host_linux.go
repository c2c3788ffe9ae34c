// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package host

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func hostname(procPath string) (string, error) {
	hostFile := filepath.Join(procPath, "sys/kernel/hostname")
	data, err := os.ReadFile(hostFile)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", hostFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}
