// Package hub pushes realtime record-set updates to websocket subscribers.
// Each subscriber names a feed filter on connect; whenever a record in that
// filter's scope changes, the hub re-queries the feed and pushes the full
// matching set, never a diff.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/dmitrijs2005/flocksync/internal/server/auth"
	"github.com/dmitrijs2005/flocksync/internal/server/models"
)

const writeTimeout = 5 * time.Second

// Feed supplies the current matching record set for a subscriber's filter.
type Feed interface {
	ListFeed(ctx context.Context, churchID string, limit int) ([]models.Record, error)
}

// changeSet is the message pushed to subscribers.
type changeSet struct {
	Records []models.RecordView `json:"records"`
}

type client struct {
	conn     *websocket.Conn
	churchID string
	pageSize int
}

// Hub manages websocket subscribers and fans record changes out to them.
type Hub struct {
	feed   Feed
	secret []byte
	log    logging.Logger

	clientsMu sync.RWMutex
	clients   map[*client]bool
}

func New(feed Feed, secret []byte, log logging.Logger) *Hub {
	return &Hub{
		feed:    feed,
		secret:  secret,
		log:     log,
		clients: make(map[*client]bool),
	}
}

// ServeHTTP upgrades the request to a websocket subscription. The caller
// must present a valid bearer token; the filter's church defaults to the
// token's congregation and may not name a different one. An initial
// snapshot of the matching set is pushed right after the upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get(common.AuthHeaderName)
	if !strings.HasPrefix(header, common.BearerPrefix) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, err := auth.ParseToken(strings.TrimPrefix(header, common.BearerPrefix), h.secret)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	churchID := r.URL.Query().Get("church_id")
	if churchID == "" {
		churchID = claims.ChurchID
	}
	if churchID != claims.ChurchID {
		writeError(w, http.StatusForbidden, "church mismatch")
		return
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, churchID: churchID, pageSize: pageSize}

	h.clientsMu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.log.Info(r.Context(), "change feed subscriber connected",
		"church_id", churchID, "subscribers", count)

	if data, err := h.renderSet(r.Context(), churchID, pageSize); err != nil {
		h.log.Error(r.Context(), "failed to render initial set", "error", err)
	} else {
		h.send(c, data)
	}

	go h.readLoop(c)
}

// Run consumes change notifications from the shared Redis channel and fans
// them out until ctx is cancelled. All subscriber connections are closed on
// the way out.
func (h *Hub) Run(ctx context.Context, sub Subscriber) error {
	pubsub := sub.Subscribe(ctx, ChangeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				h.closeAll()
				return nil
			}
			var change Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				h.log.Warn(ctx, "skipping malformed change notification", "error", err)
				continue
			}
			h.Broadcast(ctx, change)
		}
	}
}

// Broadcast pushes the refreshed matching set to every subscriber whose
// filter covers the change: a public change reaches everyone, a scoped one
// only that congregation's subscribers.
func (h *Hub) Broadcast(ctx context.Context, change Change) {
	h.clientsMu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if change.Visibility == models.VisibilityPublic || c.churchID == change.ChurchID {
			targets = append(targets, c)
		}
	}
	h.clientsMu.RUnlock()

	// One feed query per distinct filter, not per subscriber.
	sets := make(map[string][]byte)
	for _, c := range targets {
		key := c.churchID + "|" + strconv.Itoa(c.pageSize)
		data, ok := sets[key]
		if !ok {
			var err error
			data, err = h.renderSet(ctx, c.churchID, c.pageSize)
			if err != nil {
				h.log.Error(ctx, "failed to render change set",
					"church_id", c.churchID, "error", err)
				continue
			}
			sets[key] = data
		}
		h.send(c, data)
	}
}

// ClientCount returns the current number of subscribers.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) renderSet(ctx context.Context, churchID string, pageSize int) ([]byte, error) {
	records, err := h.feed.ListFeed(ctx, churchID, pageSize)
	if err != nil {
		return nil, err
	}
	return json.Marshal(changeSet{Records: models.NewRecordViews(records)})
}

func (h *Hub) send(c *client, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	err := c.conn.Write(ctx, websocket.MessageText, data)
	cancel()
	if err != nil {
		h.removeClient(c)
	}
}

// readLoop drains inbound frames so pings and close handshakes are
// processed; subscribers never send application messages.
func (h *Hub) readLoop(c *client) {
	defer h.removeClient(c)
	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.clientsMu.Lock()
	if _, exists := h.clients[c]; !exists {
		h.clientsMu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.clientsMu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info(context.Background(), "change feed subscriber disconnected",
		"subscribers", count)
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	for c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	h.clientsMu.Unlock()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
