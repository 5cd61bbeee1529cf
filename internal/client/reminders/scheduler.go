package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

const reminderPrefix = "reminder/"

// nowFunc is a test seam for the scheduler clock.
var nowFunc = time.Now

// Scheduler persists reminder bookings and drives the Notifier. At most one
// live handle exists per event; rescheduling always cancels the prior one
// before booking again.
type Scheduler struct {
	store    localstore.Store
	notifier Notifier
	log      logging.Logger
}

func NewScheduler(store localstore.Store, notifier Notifier, log logging.Logger) *Scheduler {
	return &Scheduler{store: store, notifier: notifier, log: log}
}

func reminderKey(eventID string) string {
	return reminderPrefix + eventID
}

// ScheduleReminder books a notification leadMinutes ahead of the event
// start. A fire instant already in the past is a no-op returning nil: late
// bookings never fire immediately. An existing booking for the event is
// canceled first.
func (s *Scheduler) ScheduleReminder(ctx context.Context, event models.Event, leadMinutes int) (*models.ReminderSchedule, error) {
	fireAt := event.StartsAt.Add(-time.Duration(leadMinutes) * time.Minute)
	if !fireAt.After(nowFunc()) {
		s.log.Debug(ctx, "reminder fire instant already elapsed, skipping",
			"event_id", event.ID, "fire_at", fireAt)
		return nil, nil
	}

	existing, err := s.Get(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Handle != "" {
		if err := s.notifier.Cancel(existing.Handle); err != nil {
			return nil, fmt.Errorf("cancel prior reminder: %w", err)
		}
	}

	payload := fmt.Sprintf("%s starts in %d minutes", event.Title, leadMinutes)
	handle, err := s.notifier.Schedule(fireAt, payload)
	if err != nil {
		return nil, fmt.Errorf("schedule reminder: %w", err)
	}

	sched := &models.ReminderSchedule{
		EventID:     event.ID,
		LeadMinutes: leadMinutes,
		Enabled:     true,
		Handle:      handle,
		FireAt:      fireAt.UnixMilli(),
		Payload:     payload,
	}
	if err := s.save(ctx, sched); err != nil {
		// The booking exists but would be orphaned; revoke it.
		_ = s.notifier.Cancel(handle)
		return nil, err
	}
	return sched, nil
}

// RescheduleReminder cancels whatever booking the event has and books anew
// with the given lead time. The cancellation completes before the new
// booking is made.
func (s *Scheduler) RescheduleReminder(ctx context.Context, event models.Event, leadMinutes int) (*models.ReminderSchedule, error) {
	if err := s.CancelReminder(ctx, event.ID); err != nil {
		return nil, err
	}
	return s.ScheduleReminder(ctx, event, leadMinutes)
}

// CancelReminder revokes the event's booking and removes its schedule row.
// Unknown events are a no-op.
func (s *Scheduler) CancelReminder(ctx context.Context, eventID string) error {
	sched, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if sched == nil {
		return nil
	}
	if sched.Handle != "" {
		if err := s.notifier.Cancel(sched.Handle); err != nil {
			return fmt.Errorf("cancel reminder: %w", err)
		}
	}
	return s.store.Remove(ctx, reminderKey(eventID))
}

// CleanupPastEvents drops schedules of events whose start already elapsed.
// The events slice supplies authoritative start times; schedules for events
// missing from it fall back to the recorded fire instant plus lead time. It
// returns how many schedules were removed.
func (s *Scheduler) CleanupPastEvents(ctx context.Context, events []models.Event) (int, error) {
	startByID := make(map[string]time.Time, len(events))
	for _, e := range events {
		startByID[e.ID] = e.StartsAt
	}

	keys, err := s.store.Keys(ctx, reminderPrefix)
	if err != nil {
		return 0, err
	}

	now := nowFunc()
	removed := 0
	for _, key := range keys {
		value, ok, err := s.store.GetString(ctx, key)
		if err != nil {
			return removed, err
		}
		if !ok {
			continue
		}
		var sched models.ReminderSchedule
		if err := json.Unmarshal([]byte(value), &sched); err != nil {
			s.log.Warn(ctx, "dropping corrupt reminder schedule", "key", key, "error", err)
			if err := s.store.Remove(ctx, key); err != nil {
				return removed, err
			}
			continue
		}

		startsAt, known := startByID[sched.EventID]
		if !known {
			startsAt = time.UnixMilli(sched.FireAt).Add(time.Duration(sched.LeadMinutes) * time.Minute)
		}
		if startsAt.After(now) {
			continue
		}

		if sched.Handle != "" {
			if err := s.notifier.Cancel(sched.Handle); err != nil {
				return removed, fmt.Errorf("cancel elapsed reminder: %w", err)
			}
		}
		if err := s.store.Remove(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		s.log.Info(ctx, "cleaned up elapsed reminders", "count", removed)
	}
	return removed, nil
}

// Rearm re-books every stored schedule after a process restart. Handles
// from the prior process are dead, so each pending schedule gets a fresh
// booking; schedules whose fire instant already elapsed are dropped without
// firing. It returns how many bookings were made.
func (s *Scheduler) Rearm(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, reminderPrefix)
	if err != nil {
		return 0, err
	}

	now := nowFunc()
	rearmed := 0
	for _, key := range keys {
		value, ok, err := s.store.GetString(ctx, key)
		if err != nil {
			return rearmed, err
		}
		if !ok {
			continue
		}
		var sched models.ReminderSchedule
		if err := json.Unmarshal([]byte(value), &sched); err != nil {
			s.log.Warn(ctx, "dropping corrupt reminder schedule", "key", key, "error", err)
			if err := s.store.Remove(ctx, key); err != nil {
				return rearmed, err
			}
			continue
		}

		fireAt := time.UnixMilli(sched.FireAt)
		if !fireAt.After(now) {
			// Elapsed while no process was running; never fire late.
			if err := s.store.Remove(ctx, key); err != nil {
				return rearmed, err
			}
			continue
		}

		handle, err := s.notifier.Schedule(fireAt, sched.Payload)
		if err != nil {
			return rearmed, fmt.Errorf("rearm reminder %s: %w", sched.EventID, err)
		}
		sched.Handle = handle
		if err := s.save(ctx, &sched); err != nil {
			_ = s.notifier.Cancel(handle)
			return rearmed, err
		}
		rearmed++
	}

	if rearmed > 0 {
		s.log.Info(ctx, "rearmed reminders", "count", rearmed)
	}
	return rearmed, nil
}

// Get returns the stored schedule for an event, or nil when none exists.
func (s *Scheduler) Get(ctx context.Context, eventID string) (*models.ReminderSchedule, error) {
	value, ok, err := s.store.GetString(ctx, reminderKey(eventID))
	if err != nil || !ok {
		return nil, err
	}
	var sched models.ReminderSchedule
	if err := json.Unmarshal([]byte(value), &sched); err != nil {
		return nil, fmt.Errorf("reminder schedule %s: %w: %v", eventID, common.ErrCorruptRecord, err)
	}
	return &sched, nil
}

func (s *Scheduler) save(ctx context.Context, sched *models.ReminderSchedule) error {
	b, err := json.Marshal(sched)
	if err != nil {
		return fmt.Errorf("marshal reminder schedule: %w", err)
	}
	return s.store.SetString(ctx, reminderKey(sched.EventID), string(b))
}
