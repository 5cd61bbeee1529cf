package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

const keyPrefix = "record/"

// Store reads and writes records through the durable KV primitive.
type Store struct {
	kv  localstore.Store
	log logging.Logger
}

func NewStore(kv localstore.Store, log logging.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Put stores or replaces the record under its id. The record keeps the
// Synced flag it arrives with; the store never decides sync state.
func (s *Store) Put(ctx context.Context, r *models.Record) error {
	if r.ID == "" {
		return fmt.Errorf("record without id")
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", r.ID, err)
	}
	if err := s.kv.SetString(ctx, keyPrefix+r.ID, string(b)); err != nil {
		return fmt.Errorf("store record %s: %w", r.ID, err)
	}
	return nil
}

// Get returns one record by id, or an error wrapping common.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*models.Record, error) {
	value, ok, err := s.kv.GetString(ctx, keyPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	var r models.Record
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return nil, fmt.Errorf("record %s: %w: %v", id, common.ErrCorruptRecord, err)
	}
	return &r, nil
}

// All returns every stored record. Entries that fail to decode are skipped
// and logged; a damaged row never takes the whole collection down.
func (s *Store) All(ctx context.Context) ([]models.Record, error) {
	keys, err := s.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	result := make([]models.Record, 0, len(keys))
	for _, key := range keys {
		value, ok, err := s.kv.GetString(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", key, err)
		}
		if !ok {
			continue
		}
		var r models.Record
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			s.log.Warn(ctx, "skipping corrupt record", "key", key, "error", err)
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

// Delete removes the record. Deleting an absent id is a silent no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.kv.Remove(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// Unsynced returns the records still awaiting upload.
func (s *Store) Unsynced(ctx context.Context) ([]models.Record, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	var pending []models.Record
	for _, r := range all {
		if !r.Synced {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// MarkSynced flips the record's Synced flag and stores the server-assigned
// remote id.
func (s *Store) MarkSynced(ctx context.Context, id, remoteID string) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	r.Synced = true
	r.RemoteID = remoteID
	return s.Put(ctx, r)
}
