// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errSimulatedFailure = errors.New("simulated failure")

// MockService is a controllable suture.Service for supervisor tests. By
// default Serve blocks until its context ends; SetError and SetFailCount
// turn it into a crashing service so restart behavior can be observed.
type MockService struct {
	name string

	starts atomic.Int32
	stops  atomic.Int32
	fails  atomic.Int32

	mu       sync.Mutex
	maxFails int32
	serveErr error
}

// NewMockService creates a mock service identified by name in suture's
// event log.
func NewMockService(name string) *MockService {
	return &MockService{name: name}
}

// Serve runs one service incarnation: fail while the configured failure
// budget lasts, return the configured error if any, otherwise block until
// cancellation.
func (m *MockService) Serve(ctx context.Context) error {
	m.starts.Add(1)
	defer m.stops.Add(1)

	m.mu.Lock()
	serveErr := m.serveErr
	maxFails := m.maxFails
	m.mu.Unlock()

	if maxFails > 0 && m.fails.Add(1) <= maxFails {
		return errSimulatedFailure
	}
	if serveErr != nil {
		return serveErr
	}

	<-ctx.Done()
	return ctx.Err()
}

// SetError makes every subsequent Serve return err immediately.
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	m.serveErr = err
	m.mu.Unlock()
}

// SetFailCount makes the next n Serve calls fail before the service
// settles into steady state.
func (m *MockService) SetFailCount(n int) {
	m.mu.Lock()
	m.maxFails = int32(n)
	m.mu.Unlock()
}

// StartCount reports how many incarnations have started.
func (m *MockService) StartCount() int32 {
	return m.starts.Load()
}

// StopCount reports how many incarnations have returned.
func (m *MockService) StopCount() int32 {
	return m.stops.Load()
}

// String names the service in supervisor logs.
func (m *MockService) String() string {
	return m.name
}
