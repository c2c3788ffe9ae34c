// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hoststat

import "sync"

// MockReceiver is a test implementation of the Receiver interface
// It stores all received data for verification in tests
type MockReceiver struct {
	mu          sync.Mutex
	name        string
	AcceptCalls []any
	AcceptFunc  func(data any) error
}

// NewMockReceiver creates a new mock receiver
func NewMockReceiver(name string) *MockReceiver {
	return &MockReceiver{name: name}
}

// Accept implements the Receiver interface
func (m *MockReceiver) Accept(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AcceptCalls = append(m.AcceptCalls, data)
	if m.AcceptFunc != nil {
		return m.AcceptFunc(data)
	}
	return nil
}

// Name implements the Receiver interface
func (m *MockReceiver) Name() string {
	return m.name
}

// Calls returns a copy of everything accepted so far
func (m *MockReceiver) Calls() []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]any, len(m.AcceptCalls))
	copy(calls, m.AcceptCalls)
	return calls
}
