// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import "errors"

var (
	// ErrSource is returned when the underlying source could not be read or
	// ended before the data a parser requires.
	ErrSource = errors.New("source failure")

	// ErrMalformed is returned when a line or field does not match the
	// schema a parser expects.
	ErrMalformed = errors.New("malformed input")

	// ErrUnavailable is recorded for an enabled collector the manager could
	// not run: it is not registered or does not support this platform.
	ErrUnavailable = errors.New("collector unavailable")
)
