package calendar

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/common"
)

func stubICSClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := icsNow
	icsNow = func() time.Time { return at }
	t.Cleanup(func() { icsNow = orig })
}

func TestICSExporter_CreateWritesCalendarFile(t *testing.T) {
	kv := localstore.NewMemoryStore()
	e := NewICSExporter(kv)
	ctx := context.Background()
	stubICSClock(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	event := makeEvent("ev-1")
	event.Location = "Main Hall"

	name, err := e.CreateEvent(ctx, Credentials{}, event)
	require.NoError(t, err)
	assert.Equal(t, "calendar/ev-1.ics", name)

	data, err := kv.ReadBlob(ctx, name)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(content, "END:VCALENDAR\r\n"))
	assert.Contains(t, content, "UID:ev-1@flocksync\r\n")
	assert.Contains(t, content, "DTSTAMP:20260801T120000Z\r\n")
	assert.Contains(t, content, "DTSTART:20260912T100000Z\r\n")
	assert.Contains(t, content, "DTEND:20260912T120000Z\r\n")
	assert.Contains(t, content, "SUMMARY:Harvest Dinner\r\n")
	assert.Contains(t, content, "LOCATION:Main Hall\r\n")
}

func TestICSExporter_EscapesTextValues(t *testing.T) {
	kv := localstore.NewMemoryStore()
	e := NewICSExporter(kv)
	ctx := context.Background()

	event := makeEvent("ev-1")
	event.Title = "Soup, bread; dessert"
	event.Description = "line one\nline two"

	name, err := e.CreateEvent(ctx, Credentials{}, event)
	require.NoError(t, err)

	data, err := kv.ReadBlob(ctx, name)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `SUMMARY:Soup\, bread\; dessert`)
	assert.Contains(t, content, `DESCRIPTION:line one\nline two`)
}

func TestICSExporter_UpdateRewritesSameFile(t *testing.T) {
	kv := localstore.NewMemoryStore()
	e := NewICSExporter(kv)
	ctx := context.Background()

	event := makeEvent("ev-1")
	name, err := e.CreateEvent(ctx, Credentials{}, event)
	require.NoError(t, err)

	event.Title = "Harvest Dinner (moved)"
	require.NoError(t, e.UpdateEvent(ctx, Credentials{}, event, name))

	data, err := kv.ReadBlob(ctx, name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SUMMARY:Harvest Dinner (moved)")
	assert.Contains(t, string(data), "UID:ev-1@flocksync", "the UID must stay stable across rewrites")
}

func TestICSExporter_DeleteIsUnsupported(t *testing.T) {
	e := NewICSExporter(localstore.NewMemoryStore())
	err := e.DeleteEvent(context.Background(), Credentials{}, "calendar/ev-1.ics")
	assert.ErrorIs(t, err, common.ErrUnsupported)
}
