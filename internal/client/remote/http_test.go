package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
	"github.com/dmitrijs2005/flocksync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, handler http.Handler) *HTTPStore {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewHTTPStore(ts.URL, logging.NewNop())
}

func TestHTTPStore_CreateRecord(t *testing.T) {
	var gotPath, gotAuth string
	var gotRecord models.Record

	h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRecord))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"srv-1"}`))
	}))
	h.SetToken("tok-123")

	rec, err := models.NewRecord("u1", "Alice", "c1", models.VisibilityChurch, models.Note{Title: "t"})
	require.NoError(t, err)

	id, err := h.CreateRecord(context.Background(), *rec)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", id)
	assert.Equal(t, "POST /api/v1/records", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, rec.ID, gotRecord.ID)
	assert.Equal(t, models.KindNote, gotRecord.Kind)
}

func TestHTTPStore_QueryRecords(t *testing.T) {
	h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/records", r.URL.Path)
		assert.Equal(t, "c1", r.URL.Query().Get("church_id"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":[{"id":"a","kind":"note","payload":{}},{"id":"b","kind":"note","payload":{}}]}`))
	}))

	got, err := h.QueryRecords(context.Background(), Filter{ChurchID: "c1", PageSize: 25})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
}

func TestHTTPStore_AddEngagement(t *testing.T) {
	h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/records/srv-9/engagements", r.URL.Path)
		var e models.Engagement
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		assert.Equal(t, models.EngagementPrayed, e.Kind)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"eng-1"}`))
	}))

	id, err := h.AddEngagement(context.Background(), "srv-9", models.Engagement{UserID: "u1", Kind: models.EngagementPrayed})
	require.NoError(t, err)
	assert.Equal(t, "eng-1", id)
}

func TestHTTPStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"server error is transient", http.StatusInternalServerError, common.ErrTransient},
		{"bad gateway is transient", http.StatusBadGateway, common.ErrTransient},
		{"unauthorized", http.StatusUnauthorized, common.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, common.ErrUnauthorized},
		{"not found", http.StatusNotFound, common.ErrNotFound},
		{"bad request is rejected", http.StatusBadRequest, common.ErrRemoteRejected},
		{"conflict is rejected", http.StatusConflict, common.ErrRemoteRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"because"}`))
			}))

			_, err := h.QueryRecords(context.Background(), Filter{ChurchID: "c1"})
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "because")
		})
	}
}

func TestHTTPStore_NetworkErrorIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close() // nothing is listening any more

	h := NewHTTPStore(ts.URL, logging.NewNop())
	_, err := h.CreateRecord(context.Background(), models.Record{ID: "x"})
	require.Error(t, err)
	assert.True(t, common.IsTransient(err))
}

func TestHTTPStore_LoginInstallsToken(t *testing.T) {
	h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body.Email)
		_, _ = w.Write([]byte(`{"token":"tok-7","user_id":"u-7","name":"Ann","church_id":"c-7"}`))
	}))

	s, err := h.Login(context.Background(), "a@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok-7", s.Token)
	assert.Equal(t, "u-7", s.UserID)
	assert.Equal(t, "tok-7", h.Token(), "login must install the bearer token")
}

func TestHTTPStore_Ping(t *testing.T) {
	h := newStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	require.NoError(t, h.Ping(context.Background()))
}
