// Package realtime maintains live change subscriptions against the server's
// websocket feed. One subscription covers one feed filter; every message
// carries the full current matching record set, never a diff, so consumers
// re-run their local merge on each delivery.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

// updatesBuffer holds pending change sets per subscription. When the
// consumer falls behind, older sets are dropped in favor of the newest one.
const updatesBuffer = 4

// changeMessage is the wire shape pushed by the server hub.
type changeMessage struct {
	Records []models.Record `json:"records"`
}

// Listener dials the server's change feed and hands out subscriptions.
// At most one live subscription exists per filter; subscribing again with
// the same filter returns the existing one.
type Listener struct {
	wsURL string
	token string
	log   logging.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// NewListener builds a Listener for the given websocket endpoint. The token
// is sent as a bearer credential on every dial.
func NewListener(wsURL, token string, log logging.Logger) *Listener {
	return &Listener{
		wsURL: wsURL,
		token: token,
		log:   log,
		subs:  make(map[string]*Subscription),
	}
}

func filterKey(f remote.Filter) string {
	return f.ChurchID + "|" + strconv.Itoa(f.PageSize)
}

// Subscribe opens a live query for the filter. ctx bounds the dial only;
// the subscription itself lives until Unsubscribe.
func (l *Listener) Subscribe(ctx context.Context, f remote.Filter) (*Subscription, error) {
	key := filterKey(f)

	l.mu.Lock()
	if existing, ok := l.subs[key]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.mu.Unlock()

	feedURL, err := l.feedURL(f)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set(common.AuthHeaderName, common.BearerPrefix+l.token)
	conn, _, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("%w: dial change feed: %v", common.ErrTransient, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		conn:    conn,
		cancel:  cancel,
		updates: make(chan []models.Record, updatesBuffer),
		done:    make(chan struct{}),
		log:     l.log,
	}
	sub.detach = func() {
		l.mu.Lock()
		if l.subs[key] == sub {
			delete(l.subs, key)
		}
		l.mu.Unlock()
	}

	l.mu.Lock()
	if existing, ok := l.subs[key]; ok {
		// Lost a subscribe race for the same filter; keep the winner.
		l.mu.Unlock()
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "duplicate subscription")
		return existing, nil
	}
	l.subs[key] = sub
	l.mu.Unlock()

	go sub.readLoop(readCtx)

	l.log.Debug(ctx, "subscribed to change feed", "church_id", f.ChurchID)
	return sub, nil
}

func (l *Listener) feedURL(f remote.Filter) (string, error) {
	u, err := url.Parse(l.wsURL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("church_id", f.ChurchID)
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscription is one live filter query. Updates delivers the full current
// matching set on every server push; the channel closes when the
// subscription ends, after which Err reports why (nil for a deliberate
// Unsubscribe).
type Subscription struct {
	conn    *websocket.Conn
	cancel  context.CancelFunc
	updates chan []models.Record
	done    chan struct{}
	detach  func()
	log     logging.Logger

	mu     sync.Mutex
	closed bool
	err    error

	once sync.Once
}

// Updates returns the delivery channel.
func (s *Subscription) Updates() <-chan []models.Record {
	return s.updates
}

// Err reports why delivery stopped. It is nil while the subscription is
// live and after a deliberate Unsubscribe.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribe ends the subscription. It is idempotent, and synchronous: once
// any call returns, no further sets are delivered, even if a server push was
// mid-flight.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "unsubscribed")
		<-s.done
	})
}

func (s *Subscription) readLoop(ctx context.Context) {
	// Detach before closing the channels: once a consumer sees Updates
	// close, a fresh Subscribe must dial anew instead of finding this
	// dying subscription still registered.
	defer func() {
		s.detach()
		close(s.updates)
		close(s.done)
	}()

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.closed = true
				s.err = fmt.Errorf("%w: change feed read: %v", common.ErrTransient, err)
			}
			s.mu.Unlock()
			return
		}

		var msg changeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn(ctx, "skipping malformed change message", "error", err)
			continue
		}
		if !s.deliver(msg.Records) {
			return
		}
	}
}

// deliver hands one change set to the consumer. The gate runs under the
// mutex so a concurrent Unsubscribe observes either no delivery or a
// completed one, never one after it returned. A slow consumer loses older
// sets; each message supersedes the previous ones anyway.
func (s *Subscription) deliver(records []models.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.updates <- records:
			return true
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}
