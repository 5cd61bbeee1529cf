package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

const statePrefix = "calendar/"

// DefaultAPIs wires the production backends for all three providers.
func DefaultAPIs(store localstore.Store) map[models.CalendarProvider]API {
	return map[models.CalendarProvider]API{
		models.ProviderGoogle:  NewGoogleAPI(),
		models.ProviderOutlook: NewOutlookAPI(),
		models.ProviderApple:   NewICSExporter(store),
	}
}

// Coordinator runs create-or-update mirroring of events against provider
// backends and keeps the per-provider CalendarSyncState rows current.
type Coordinator struct {
	store  localstore.Store
	apis   map[models.CalendarProvider]API
	log    logging.Logger
	userID string
}

func NewCoordinator(store localstore.Store, userID string, apis map[models.CalendarProvider]API, log logging.Logger) *Coordinator {
	return &Coordinator{
		store:  store,
		apis:   apis,
		log:    log,
		userID: userID,
	}
}

func stateKey(eventID string, provider models.CalendarProvider) string {
	return statePrefix + eventID + "/" + string(provider)
}

// SyncOne mirrors the event to one provider: create when no external id is
// recorded yet, update otherwise. Running it twice with the same inputs
// never produces a duplicate provider-side event.
func (c *Coordinator) SyncOne(ctx context.Context, event models.Event, provider models.CalendarProvider, creds Credentials) SyncResult {
	api, ok := c.apis[provider]
	if !ok {
		return SyncResult{Provider: provider, Status: StatusFailed,
			Err: fmt.Errorf("no backend configured for provider %q", provider)}
	}

	st, err := c.loadState(ctx, event.ID, provider)
	if err != nil {
		return SyncResult{Provider: provider, Status: StatusFailed, Err: err}
	}

	st.Status = models.CalendarSyncPending
	if err := c.saveState(ctx, st); err != nil {
		return SyncResult{Provider: provider, Status: StatusFailed, Err: err}
	}

	if st.ExternalID == "" {
		externalID, err := api.CreateEvent(ctx, creds, event)
		if err != nil {
			return c.markFailed(ctx, st, err)
		}
		st.ExternalID = externalID
	} else {
		if err := api.UpdateEvent(ctx, creds, event, st.ExternalID); err != nil {
			return c.markFailed(ctx, st, err)
		}
	}

	st.Status = models.CalendarSynced
	st.LastSyncedAt = time.Now().UnixMilli()
	st.LastError = ""
	if err := c.saveState(ctx, st); err != nil {
		// The provider-side event exists but the external id may be lost;
		// the next sync can duplicate it. Surface loudly.
		c.log.Error(ctx, "provider sync succeeded but state save failed",
			"event_id", event.ID, "provider", provider, "error", err)
		return SyncResult{Provider: provider, Status: StatusFailed, ExternalID: st.ExternalID, Err: err}
	}

	return SyncResult{Provider: provider, Status: StatusOK, ExternalID: st.ExternalID}
}

// RemoveOne deletes the mirrored event where the provider supports it and
// clears the local state. Apple cannot delete an exported file, so its
// result carries StatusUnsupported while the local state is still cleared.
func (c *Coordinator) RemoveOne(ctx context.Context, event models.Event, provider models.CalendarProvider, creds Credentials) SyncResult {
	api, ok := c.apis[provider]
	if !ok {
		return SyncResult{Provider: provider, Status: StatusFailed,
			Err: fmt.Errorf("no backend configured for provider %q", provider)}
	}

	st, err := c.loadState(ctx, event.ID, provider)
	if err != nil {
		return SyncResult{Provider: provider, Status: StatusFailed, Err: err}
	}

	unsupported := false
	if st.ExternalID != "" {
		switch err := api.DeleteEvent(ctx, creds, st.ExternalID); {
		case err == nil:
		case errors.Is(err, common.ErrUnsupported):
			unsupported = true
		case errors.Is(err, common.ErrNotFound):
			// Already gone on the provider side.
		default:
			st.LastError = err.Error()
			if saveErr := c.saveState(ctx, st); saveErr != nil {
				c.log.Warn(ctx, "state save failed after delete error", "error", saveErr)
			}
			return SyncResult{Provider: provider, Status: StatusFailed, Err: err}
		}
	}

	st.Status = models.CalendarRemoved
	st.ExternalID = ""
	st.LastError = ""
	if err := c.saveState(ctx, st); err != nil {
		return SyncResult{Provider: provider, Status: StatusFailed, Err: err}
	}

	if unsupported {
		return SyncResult{Provider: provider, Status: StatusUnsupported}
	}
	return SyncResult{Provider: provider, Status: StatusOK}
}

// SyncAll mirrors the event to every enabled provider independently: one
// provider failing never blocks the others, and the caller gets one result
// per provider in input order.
func (c *Coordinator) SyncAll(ctx context.Context, event models.Event, providers []models.CalendarProvider, creds map[models.CalendarProvider]Credentials) []SyncResult {
	results := make([]SyncResult, len(providers))
	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func(i int, provider models.CalendarProvider) {
			defer wg.Done()
			results[i] = c.SyncOne(ctx, event, provider, creds[provider])
		}(i, provider)
	}
	wg.Wait()
	return results
}

// States returns the stored sync states of one event, ordered by provider.
func (c *Coordinator) States(ctx context.Context, eventID string) ([]models.CalendarSyncState, error) {
	keys, err := c.store.Keys(ctx, statePrefix+eventID+"/")
	if err != nil {
		return nil, err
	}

	states := make([]models.CalendarSyncState, 0, len(keys))
	for _, key := range keys {
		value, ok, err := c.store.GetString(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var st models.CalendarSyncState
		if err := json.Unmarshal([]byte(value), &st); err != nil {
			c.log.Warn(ctx, "skipping corrupt calendar state", "key", key, "error", err)
			continue
		}
		states = append(states, st)
	}
	return states, nil
}

func (c *Coordinator) markFailed(ctx context.Context, st *models.CalendarSyncState, cause error) SyncResult {
	st.Status = models.CalendarSyncFailed
	st.LastError = cause.Error()
	if err := c.saveState(ctx, st); err != nil {
		c.log.Warn(ctx, "state save failed after provider error", "error", err)
	}
	return SyncResult{Provider: st.Provider, Status: StatusFailed, Err: cause}
}

func (c *Coordinator) loadState(ctx context.Context, eventID string, provider models.CalendarProvider) (*models.CalendarSyncState, error) {
	value, ok, err := c.store.GetString(ctx, stateKey(eventID, provider))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &models.CalendarSyncState{
			EventID:  eventID,
			UserID:   c.userID,
			Provider: provider,
			Status:   models.CalendarNotSynced,
		}, nil
	}

	var st models.CalendarSyncState
	if err := json.Unmarshal([]byte(value), &st); err != nil {
		return nil, fmt.Errorf("calendar state %s/%s: %w: %v", eventID, provider, common.ErrCorruptRecord, err)
	}
	return &st, nil
}

func (c *Coordinator) saveState(ctx context.Context, st *models.CalendarSyncState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal calendar state: %w", err)
	}
	return c.store.SetString(ctx, stateKey(st.EventID, st.Provider), string(b))
}
