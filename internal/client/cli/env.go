package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/flocksync/internal/client/config"
	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/records"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
	"github.com/dmitrijs2005/flocksync/internal/client/syncer"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

// sessionKey is where the signed-in session lives in the local store.
const sessionKey = "session/current"

var errNotSignedIn = errors.New("not signed in; run \"flocksync login\" first")

// env bundles the engine components one command invocation works with.
type env struct {
	cfg     *config.Config
	log     logging.Logger
	store   *localstore.SQLiteStore
	records *records.Store
	remote  *remote.HTTPStore
	session *remote.Session
}

// openEnv opens the local store and remote client for a one-shot command.
// Diagnostics go to stderr as text; the command's own output stays on stdout.
func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	log := logging.NewText(os.Stderr, logging.ParseLevel(opts.cfg.LogLevel))
	return openEnvWith(ctx, opts.cfg, log)
}

func openEnvWith(ctx context.Context, cfg *config.Config, log logging.Logger) (*env, error) {
	store, err := localstore.Open(ctx, cfg.DatabasePath, cfg.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	e := &env{
		cfg:     cfg,
		log:     log,
		store:   store,
		records: records.NewStore(store, log),
		remote:  remote.NewHTTPStore(cfg.ServerAddr, log),
	}

	s, err := e.loadSession(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if s != nil {
		e.session = s
		e.remote.SetToken(s.Token)
	}
	return e, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

func (e *env) loadSession(ctx context.Context) (*remote.Session, error) {
	value, ok, err := e.store.GetString(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var s remote.Session
	if err := json.Unmarshal([]byte(value), &s); err != nil {
		return nil, fmt.Errorf("session: %w: %v", common.ErrCorruptRecord, err)
	}
	return &s, nil
}

// saveSession persists the session and installs its token on the remote.
func (e *env) saveSession(ctx context.Context, s *remote.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := e.store.SetString(ctx, sessionKey, string(b)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	e.session = s
	e.remote.SetToken(s.Token)
	return nil
}

// requireSession fails commands that need a signed-in member.
func (e *env) requireSession() (*remote.Session, error) {
	if e.session == nil {
		return nil, errNotSignedIn
	}
	return e.session, nil
}

func (e *env) reconciler() (*syncer.Reconciler, error) {
	s, err := e.requireSession()
	if err != nil {
		return nil, err
	}
	return syncer.NewReconciler(e.records, e.remote, s.UserID, s.ChurchID, e.cfg.PageSize, e.log), nil
}
