// Package reminders books local notifications ahead of registered events.
// Scheduling is bookkeeping independent of calendar provider sync: the
// scheduler persists one ReminderSchedule per event and keeps at most one
// live notifier handle behind it.
package reminders

import (
	"sync"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/common"
)

// Notifier is the platform notification backend.
type Notifier interface {
	// Schedule books a delivery of payload at fireAt and returns an opaque
	// handle for cancellation.
	Schedule(fireAt time.Time, payload string) (string, error)

	// Cancel revokes a booked delivery. Unknown handles are a no-op.
	Cancel(handle string) error
}

// TimerNotifier delivers through in-process timers to a sink callback. It
// stands in for a platform notification service in the CLI and in tests.
type TimerNotifier struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	sink   func(payload string)
}

func NewTimerNotifier(sink func(payload string)) *TimerNotifier {
	return &TimerNotifier{
		timers: make(map[string]*time.Timer),
		sink:   sink,
	}
}

func (n *TimerNotifier) Schedule(fireAt time.Time, payload string) (string, error) {
	handle, err := common.MakeRandHexString(8)
	if err != nil {
		return "", err
	}

	// The fire callback takes the same mutex, so it cannot run before the
	// handle is registered, and a canceled handle is never delivered.
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timers[handle] = time.AfterFunc(time.Until(fireAt), func() {
		n.mu.Lock()
		_, live := n.timers[handle]
		delete(n.timers, handle)
		sink := n.sink
		n.mu.Unlock()
		if live && sink != nil {
			sink(payload)
		}
	})
	return handle, nil
}

func (n *TimerNotifier) Cancel(handle string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.timers[handle]; ok {
		t.Stop()
		delete(n.timers, handle)
	}
	return nil
}

// Pending reports how many deliveries are currently booked.
func (n *TimerNotifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}
