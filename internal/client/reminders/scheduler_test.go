package reminders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

type booking struct {
	fireAt  time.Time
	payload string
}

type fakeNotifier struct {
	mu       sync.Mutex
	seq      int
	bookings map[string]booking
	canceled []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{bookings: make(map[string]booking)}
}

func (f *fakeNotifier) Schedule(fireAt time.Time, payload string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	handle := fmt.Sprintf("h%d", f.seq)
	f.bookings[handle] = booking{fireAt: fireAt, payload: payload}
	return handle, nil
}

func (f *fakeNotifier) Cancel(handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookings, handle)
	f.canceled = append(f.canceled, handle)
	return nil
}

func (f *fakeNotifier) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bookings)
}

func stubSchedulerClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = orig })
}

var testNow = time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)

func setupScheduler(t *testing.T) (*Scheduler, *fakeNotifier, *localstore.MemoryStore) {
	t.Helper()
	stubSchedulerClock(t, testNow)
	kv := localstore.NewMemoryStore()
	n := newFakeNotifier()
	return NewScheduler(kv, n, logging.NewNop()), n, kv
}

func eventStarting(id string, startsAt time.Time) models.Event {
	return models.Event{
		ID:       id,
		ChurchID: "church-1",
		Title:    "Evening Prayer",
		StartsAt: startsAt,
		EndsAt:   startsAt.Add(time.Hour),
	}
}

func TestScheduler_ScheduleBooksAheadOfStart(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()
	event := eventStarting("ev-1", testNow.Add(2*time.Hour))

	sched, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)
	require.NotNil(t, sched)

	assert.Equal(t, "h1", sched.Handle)
	assert.Equal(t, 30, sched.LeadMinutes)
	assert.True(t, sched.Enabled)
	wantFire := testNow.Add(2*time.Hour - 30*time.Minute)
	assert.Equal(t, wantFire.UnixMilli(), sched.FireAt)

	require.Equal(t, 1, n.live())
	b := n.bookings["h1"]
	assert.Equal(t, wantFire.UnixMilli(), b.fireAt.UnixMilli())
	assert.Equal(t, "Evening Prayer starts in 30 minutes", b.payload)

	stored, err := s.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, sched, stored)
}

func TestScheduler_PastFireInstantIsNoop(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()

	// The event starts in ten minutes; a 30-minute lead is already past.
	event := eventStarting("ev-1", testNow.Add(10*time.Minute))

	sched, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)
	assert.Nil(t, sched, "late bookings must not fire immediately")
	assert.Equal(t, 0, n.live())

	stored, err := s.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestScheduler_SecondScheduleCancelsPriorHandle(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()
	event := eventStarting("ev-1", testNow.Add(2*time.Hour))

	_, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)
	sched, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)

	assert.Equal(t, 1, n.live(), "never two live handles for one event")
	assert.Contains(t, n.canceled, "h1")
	assert.Equal(t, "h2", sched.Handle)
}

func TestScheduler_RescheduleReplacesLeadTime(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()
	event := eventStarting("ev-1", testNow.Add(2*time.Hour))

	_, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)

	sched, err := s.RescheduleReminder(ctx, event, 60)
	require.NoError(t, err)
	require.NotNil(t, sched)

	assert.Contains(t, n.canceled, "h1")
	assert.Equal(t, 1, n.live())
	assert.Equal(t, 60, sched.LeadMinutes)
	assert.Equal(t, testNow.Add(time.Hour).UnixMilli(), sched.FireAt)
}

func TestScheduler_RescheduleToPastClearsBooking(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()
	event := eventStarting("ev-1", testNow.Add(time.Hour))

	_, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)

	// A two-hour lead on an event one hour away has already elapsed.
	sched, err := s.RescheduleReminder(ctx, event, 120)
	require.NoError(t, err)
	assert.Nil(t, sched)
	assert.Equal(t, 0, n.live())

	stored, err := s.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestScheduler_CancelReminderIsIdempotent(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()
	event := eventStarting("ev-1", testNow.Add(2*time.Hour))

	_, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)

	require.NoError(t, s.CancelReminder(ctx, "ev-1"))
	assert.Equal(t, 0, n.live())

	stored, err := s.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, stored)

	require.NoError(t, s.CancelReminder(ctx, "ev-1"), "second cancel must be a no-op")
}

func TestScheduler_CleanupPastEvents(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()

	past := eventStarting("ev-past", testNow.Add(2*time.Hour))
	future := eventStarting("ev-future", testNow.Add(3*time.Hour))
	_, err := s.ScheduleReminder(ctx, past, 30)
	require.NoError(t, err)
	_, err = s.ScheduleReminder(ctx, future, 30)
	require.NoError(t, err)

	// Time passes beyond the first event's start.
	stubSchedulerClock(t, testNow.Add(150*time.Minute))

	removed, err := s.CleanupPastEvents(ctx, []models.Event{past, future})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, n.live())

	stored, err := s.Get(ctx, "ev-past")
	require.NoError(t, err)
	assert.Nil(t, stored)

	kept, err := s.Get(ctx, "ev-future")
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestScheduler_CleanupFallsBackWithoutEvent(t *testing.T) {
	s, n, _ := setupScheduler(t)
	ctx := context.Background()

	event := eventStarting("ev-gone", testNow.Add(time.Hour))
	_, err := s.ScheduleReminder(ctx, event, 30)
	require.NoError(t, err)

	// The event vanished from the feed; its derived start (fireAt + lead)
	// has elapsed, so the schedule still gets cleaned up.
	stubSchedulerClock(t, testNow.Add(2*time.Hour))

	removed, err := s.CleanupPastEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, n.live())
}

func TestScheduler_RearmRebooksPendingSchedules(t *testing.T) {
	s, n, kv := setupScheduler(t)
	ctx := context.Background()

	_, err := s.ScheduleReminder(ctx, eventStarting("ev-1", testNow.Add(2*time.Hour)), 30)
	require.NoError(t, err)
	_, err = s.ScheduleReminder(ctx, eventStarting("ev-2", testNow.Add(3*time.Hour)), 30)
	require.NoError(t, err)

	// A new process starts against the same store: old handles are dead.
	restarted := NewScheduler(kv, n, logging.NewNop())
	n.bookings = map[string]booking{}

	rearmed, err := restarted.Rearm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rearmed)
	assert.Equal(t, 2, n.live())

	sched, err := restarted.Get(ctx, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, sched)
	assert.NotEqual(t, "h1", sched.Handle, "rearm must record the fresh handle")

	b := n.bookings[sched.Handle]
	assert.Equal(t, "Evening Prayer starts in 30 minutes", b.payload)
	assert.Equal(t, sched.FireAt, b.fireAt.UnixMilli())
}

func TestScheduler_RearmDropsElapsedSchedules(t *testing.T) {
	s, n, kv := setupScheduler(t)
	ctx := context.Background()

	_, err := s.ScheduleReminder(ctx, eventStarting("ev-1", testNow.Add(time.Hour)), 30)
	require.NoError(t, err)

	// The fire instant passed while no process was running.
	stubSchedulerClock(t, testNow.Add(45*time.Minute))
	restarted := NewScheduler(kv, n, logging.NewNop())
	n.bookings = map[string]booking{}

	rearmed, err := restarted.Rearm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rearmed)
	assert.Equal(t, 0, n.live(), "elapsed reminders must never fire late")

	sched, err := restarted.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, sched)
}
