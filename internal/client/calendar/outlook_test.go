package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/flocksync/internal/common"
)

func TestOutlookAPI_CreateEvent(t *testing.T) {
	srv, calls := newProviderStub(t, http.StatusCreated, `{"id":"graph-9"}`)
	api := NewOutlookAPIWithBase(srv.URL)

	event := makeEvent("ev-1")
	event.Description = "Potluck after service"
	event.Location = "Main Hall"

	id, err := api.CreateEvent(context.Background(), Credentials{AccessToken: "o-token"}, event)
	require.NoError(t, err)
	assert.Equal(t, "graph-9", id)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/me/events", call.path)
	assert.Equal(t, common.BearerPrefix+"o-token", call.auth)

	var sent graphEvent
	require.NoError(t, json.Unmarshal(call.body, &sent))
	assert.Equal(t, "Harvest Dinner", sent.Subject)
	assert.Equal(t, "2026-09-12T10:00:00", sent.Start.DateTime)
	assert.Equal(t, "UTC", sent.Start.TimeZone)
	require.NotNil(t, sent.Body)
	assert.Equal(t, "Potluck after service", sent.Body.Content)
	require.NotNil(t, sent.Location)
	assert.Equal(t, "Main Hall", sent.Location.DisplayName)
}

func TestOutlookAPI_UpdateAndDeletePaths(t *testing.T) {
	srv, calls := newProviderStub(t, http.StatusOK, `{}`)
	api := NewOutlookAPIWithBase(srv.URL)
	ctx := context.Background()

	require.NoError(t, api.UpdateEvent(ctx, Credentials{}, makeEvent("ev-1"), "graph-9"))
	require.NoError(t, api.DeleteEvent(ctx, Credentials{}, "graph-9"))

	require.Len(t, *calls, 2)
	assert.Equal(t, http.MethodPatch, (*calls)[0].method)
	assert.Equal(t, "/me/events/graph-9", (*calls)[0].path)
	assert.Equal(t, http.MethodDelete, (*calls)[1].method)
	assert.Equal(t, "/me/events/graph-9", (*calls)[1].path)
}

func TestOutlookAPI_OmitsEmptyOptionalFields(t *testing.T) {
	srv, calls := newProviderStub(t, http.StatusCreated, `{"id":"graph-9"}`)
	api := NewOutlookAPIWithBase(srv.URL)

	_, err := api.CreateEvent(context.Background(), Credentials{}, makeEvent("ev-1"))
	require.NoError(t, err)

	var sent graphEvent
	require.NoError(t, json.Unmarshal((*calls)[0].body, &sent))
	assert.Nil(t, sent.Body)
	assert.Nil(t, sent.Location)
}
