package userevents

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Event is a recorded notification, kept by MockNotifier for assertions.
type Event struct {
	UserID uuid.UUID
	Diff   Diff
	Async  bool
}

// MockNotifier records every notification instead of delivering it.
// Async computations run synchronously so tests stay deterministic.
type MockNotifier struct {
	mutex  sync.Mutex
	Events []Event
	// ComputeErrs collects errors returned by async diff computations
	ComputeErrs []error
}

// NewMockNotifier creates a new recording notifier for tests
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyUserChanged(ctx context.Context, userID uuid.UUID, diff Diff) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Events = append(m.Events, Event{UserID: userID, Diff: diff})
}

func (m *MockNotifier) NotifyUserChangedAsync(ctx context.Context, userID uuid.UUID, compute func(ctx context.Context) (Diff, error)) {
	diff, err := compute(ctx)
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err != nil {
		m.ComputeErrs = append(m.ComputeErrs, err)
		return
	}
	m.Events = append(m.Events, Event{UserID: userID, Diff: diff, Async: true})
}

// LastEvent returns the most recent recorded event, or nil if none
func (m *MockNotifier) LastEvent() *Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.Events) == 0 {
		return nil
	}
	ev := m.Events[len(m.Events)-1]
	return &ev
}
