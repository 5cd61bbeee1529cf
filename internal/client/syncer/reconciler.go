package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/client/records"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// PushResult summarizes one upload cycle.
type PushResult struct {
	Uploaded int
	Failed   int
	Errors   []RecordError
}

// RecordError ties a failure to the record that caused it.
type RecordError struct {
	RecordID string
	Err      error
}

// Reconciler pushes unsynced records, pulls the remote feed, and builds
// the merged view. One instance serves one signed-in user.
type Reconciler struct {
	store  *records.Store
	remote remote.Store
	log    logging.Logger

	userID   string
	churchID string
	pageSize int

	// pushing guards the push cycle: a second trigger is dropped.
	pushing atomic.Bool

	// upload tuning, overridable in tests
	concurrency int
	retries     uint64
	retryBase   time.Duration
}

func NewReconciler(store *records.Store, rem remote.Store, userID, churchID string, pageSize int, log logging.Logger) *Reconciler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Reconciler{
		store:       store,
		remote:      rem,
		log:         log,
		userID:      userID,
		churchID:    churchID,
		pageSize:    pageSize,
		concurrency: 4,
		retries:     2,
		retryBase:   500 * time.Millisecond,
	}
}

// PushUnsynced uploads every record still flagged unsynced. Each record is
// marked synced the moment its own upload lands, so a later failure never
// undoes earlier progress. If a cycle is already running the trigger is
// dropped with common.ErrSyncInProgress.
func (r *Reconciler) PushUnsynced(ctx context.Context) (*PushResult, error) {
	if !r.pushing.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer r.pushing.Store(false)

	pending, err := r.store.Unsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("load unsynced records: %w", err)
	}

	res := &PushResult{}
	if len(pending) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, rec := range pending {
		rec := rec
		g.Go(func() error {
			remoteID, err := r.pushOne(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Errors = append(res.Errors, RecordError{RecordID: rec.ID, Err: err})
				r.log.Warn(gctx, "record push failed", "record_id", rec.ID, "error", err)
				return nil // one failure must not stop the rest
			}
			res.Uploaded++
			r.log.Debug(gctx, "record pushed", "record_id", rec.ID, "remote_id", remoteID)
			return nil
		})
	}
	_ = g.Wait()

	if res.Uploaded == 0 && res.Failed > 0 {
		return res, fmt.Errorf("push failed for all %d records: %w", res.Failed, res.Errors[0].Err)
	}
	return res, nil
}

// pushOne uploads a single record, retrying transient failures, then marks
// it synced locally.
func (r *Reconciler) pushOne(ctx context.Context, rec models.Record) (string, error) {
	var remoteID string

	backoff := retry.WithMaxRetries(r.retries, retry.NewFibonacci(r.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := r.remote.CreateRecord(ctx, rec)
		if err != nil {
			if common.IsTransient(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		remoteID = id
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := r.store.MarkSynced(ctx, rec.ID, remoteID); err != nil {
		// The upload landed but the local flag did not stick; the record
		// will be pushed again next cycle and may duplicate server-side.
		r.log.Error(ctx, "record uploaded but not marked synced", "record_id", rec.ID, "error", err)
		return "", fmt.Errorf("mark synced %s: %w", rec.ID, err)
	}
	return remoteID, nil
}

// Pull fetches the newest visible remote records for the congregation.
func (r *Reconciler) Pull(ctx context.Context) ([]models.Record, error) {
	return r.remote.QueryRecords(ctx, remote.Filter{ChurchID: r.churchID, PageSize: r.pageSize})
}

// MergedView returns local records united with the remote feed. Remote
// entries authored by this user are excluded entirely: the local copy is
// authoritative for everything the device wrote. When the pull fails the
// view silently degrades to local-only.
func (r *Reconciler) MergedView(ctx context.Context) ([]models.Record, error) {
	local, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local records: %w", err)
	}

	seen := make(map[string]struct{}, len(local))
	view := make([]models.Record, 0, len(local))
	for _, rec := range local {
		seen[rec.ID] = struct{}{}
		view = append(view, rec)
	}

	rem, err := r.Pull(ctx)
	if err != nil {
		r.log.Warn(ctx, "pull failed, serving local records only", "error", err)
	} else {
		for _, rec := range rem {
			if rec.AuthorID == r.userID {
				continue
			}
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			view = append(view, rec)
		}
	}

	sort.Slice(view, func(i, j int) bool {
		if view[i].CreatedAt != view[j].CreatedAt {
			return view[i].CreatedAt > view[j].CreatedAt
		}
		return view[i].ID < view[j].ID
	})
	return view, nil
}

// AddEngagement books an engagement against a record someone else shared.
func (r *Reconciler) AddEngagement(ctx context.Context, remoteRecordID, kind string) (string, error) {
	e := models.Engagement{
		RecordID:  remoteRecordID,
		UserID:    r.userID,
		Kind:      kind,
		CreatedAt: time.Now().UnixMilli(),
	}
	id, err := r.remote.AddEngagement(ctx, remoteRecordID, e)
	if err != nil {
		return "", fmt.Errorf("add engagement: %w", err)
	}
	return id, nil
}

// StartAutoSync runs PushUnsynced on the given interval until the returned
// stop function is called or ctx is cancelled. Stop waits for the loop to
// exit; a cycle already in flight finishes on its own.
func (r *Reconciler) StartAutoSync(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.PushUnsynced(ctx); err != nil && !errors.Is(err, common.ErrSyncInProgress) {
					r.log.Warn(ctx, "auto-sync push failed", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}
