package userevents

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Diff describes the fields of a user record that changed, keyed by field
// name. Consumers (the chat transport layer) broadcast it to connected
// clients.
type Diff map[string]interface{}

// Notifier publishes user-record change events.
//
// NotifyUserChanged is fire-and-forget: the caller does not wait for
// subscribers. NotifyUserChangedAsync defers the diff computation until after
// any in-flight side effects (such as session pruning) have settled, so the
// broadcast never carries pre-prune state.
type Notifier interface {
	NotifyUserChanged(ctx context.Context, userID uuid.UUID, diff Diff)
	NotifyUserChangedAsync(ctx context.Context, userID uuid.UUID, compute func(ctx context.Context) (Diff, error))
}

// Subscriber receives user-change events from a Dispatcher.
type Subscriber func(userID uuid.UUID, diff Diff)

// Dispatcher is an in-process Notifier that fans events out to registered
// subscribers.
type Dispatcher struct {
	mutex       sync.RWMutex
	subscribers []Subscriber
	wg          sync.WaitGroup
}

// NewDispatcher creates a new in-process dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a subscriber for all user-change events
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

// NotifyUserChanged delivers the diff to all subscribers synchronously
func (d *Dispatcher) NotifyUserChanged(ctx context.Context, userID uuid.UUID, diff Diff) {
	d.mutex.RLock()
	subs := make([]Subscriber, len(d.subscribers))
	copy(subs, d.subscribers)
	d.mutex.RUnlock()

	for _, sub := range subs {
		sub(userID, diff)
	}
}

// NotifyUserChangedAsync computes the diff on a separate goroutine and then
// delivers it. The computation runs after the caller returns, so it observes
// the final state of any store mutations the caller kicked off.
func (d *Dispatcher) NotifyUserChangedAsync(ctx context.Context, userID uuid.UUID, compute func(ctx context.Context) (Diff, error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		diff, err := compute(ctx)
		if err != nil {
			slog.Error("Failed to compute user change diff", "userID", userID, "error", err)
			return
		}
		d.NotifyUserChanged(ctx, userID, diff)
	}()
}

// Wait blocks until all pending async notifications have been delivered.
// Intended for tests and graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
