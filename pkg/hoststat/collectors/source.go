// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/antimetal/hoststat/pkg/hoststat"
)

// maxLineSize bounds a single line. The intr line of /proc/stat grows with
// the number of interrupt sources and easily exceeds bufio's 64KiB default.
const maxLineSize = 1024 * 1024

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// parseUintField parses tokens[index] as the positional column called name
func parseUintField(tokens []string, index int, name string) (uint64, error) {
	v, err := strconv.ParseUint(tokens[index], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %w", hoststat.ErrMalformed, name, tokens[index], err)
	}
	return v, nil
}

func sourceError(what string, err error) error {
	return fmt.Errorf("%w: reading %s: %w", hoststat.ErrSource, what, err)
}

// parseFile opens path and hands it to parse. Opening the file is the only
// I/O the collectors do themselves; everything else happens in the parser.
func parseFile[T any](ctx context.Context, path string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	file, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("%w: failed to open %s: %w", hoststat.ErrSource, path, err)
	}
	defer file.Close()

	result, err := parse(file)
	if err != nil {
		return zero, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return result, nil
}
