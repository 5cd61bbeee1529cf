package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/client/reminders"
	"github.com/dmitrijs2005/flocksync/internal/client/remote"
	"github.com/dmitrijs2005/flocksync/internal/logging"
)

// runCLI executes one command invocation against a fresh root command,
// the way main does, capturing stdout and feeding stdin.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// baseArgs points a command at a per-test store with quiet logging.
func baseArgs(dir string) []string {
	return []string{
		"--db", filepath.Join(dir, "client.db"),
		"--blob-dir", filepath.Join(dir, "blobs"),
		"--log-level", "error",
	}
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	old := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { readPassword = old })
}

var testSession = remote.Session{Token: "tok-1", UserID: "user-1", Name: "Ann", ChurchID: "church-1"}

// seedSession signs the store in without a server round trip.
func seedSession(t *testing.T, dir string) {
	t.Helper()
	ctx := context.Background()
	store, err := localstore.Open(ctx, filepath.Join(dir, "client.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	defer store.Close()

	b, err := json.Marshal(testSession)
	require.NoError(t, err)
	require.NoError(t, store.SetString(ctx, sessionKey, string(b)))
}

// fakeBackend is a minimal stand-in for the FlockSync server API.
type fakeBackend struct {
	srv *httptest.Server

	mu           sync.Mutex
	nextID       int
	pushed       []models.Record
	feed         []models.Record
	engagements  []models.Engagement
	engagedIDs   []string
	registerBody map[string]string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{}

	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.registerBody = body
		f.mu.Unlock()
		writeJSON(w, testSession)
	})
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, testSession)
	})
	mux.HandleFunc("/api/v1/records", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			var rec models.Record
			if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.nextID++
			rec.RemoteID = fmt.Sprintf("srv-%d", f.nextID)
			rec.Synced = true
			f.pushed = append(f.pushed, rec)
			writeJSON(w, map[string]string{"id": rec.RemoteID})
		case http.MethodGet:
			records := append([]models.Record(nil), f.feed...)
			records = append(records, f.pushed...)
			writeJSON(w, map[string]any{"records": records})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/records/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1/records/"), "/engagements")
		var e models.Engagement
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.engagements = append(f.engagements, e)
		f.engagedIDs = append(f.engagedIDs, id)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]string{"id": "eng-1"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func TestRegister_SignsInAndPersistsSession(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(t)
	stubPassword(t, "sekret")

	args := append(baseArgs(dir), "--server-addr", backend.srv.URL,
		"register", "--email", "ann@example.org", "--name", "Ann", "--church", "church-1")
	out, err := runCLI(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ann (user-1)")

	backend.mu.Lock()
	body := backend.registerBody
	backend.mu.Unlock()
	assert.Equal(t, "ann@example.org", body["email"])
	assert.Equal(t, "sekret", body["password"])
	assert.Equal(t, "church-1", body["church_id"])

	ctx := context.Background()
	store, err := localstore.Open(ctx, filepath.Join(dir, "client.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	defer store.Close()
	value, ok, err := store.GetString(ctx, sessionKey)
	require.NoError(t, err)
	require.True(t, ok)
	var s remote.Session
	require.NoError(t, json.Unmarshal([]byte(value), &s))
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, "church-1", s.ChurchID)
}

func TestLogin_PromptsForEmail(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(t)
	stubPassword(t, "sekret")

	args := append(baseArgs(dir), "--server-addr", backend.srv.URL, "login")
	out, err := runCLI(t, "ann@example.org\n", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Email")
	assert.Contains(t, out, "Signed in as Ann (user-1)")
}

func TestAddNote_RequiresSession(t *testing.T) {
	dir := t.TempDir()

	args := append(baseArgs(dir), "add", "note", "--title", "Grace", "--body", "Sunday")
	_, err := runCLI(t, "", args...)
	require.ErrorIs(t, err, errNotSignedIn)
}

func TestAddNoteOffline_ListLocal(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir)

	// No server is reachable; creation is local-only.
	args := append(baseArgs(dir), "add", "note",
		"--title", "Grace", "--body", "Sunday sermon", "--tags", "sermon,notes")
	out, err := runCLI(t, "", args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created note ")

	out, err = runCLI(t, "", append(baseArgs(dir), "list", "--local")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Grace")
	assert.Contains(t, out, "(unsynced)")
}

func TestAddVerse_MissingReferenceFails(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir)

	args := append(baseArgs(dir), "add", "verse", "--text", "amen")
	_, err := runCLI(t, "", args...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--book")
}

func TestSync_UploadsPendingRecords(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(t)
	seedSession(t, dir)

	_, err := runCLI(t, "", append(baseArgs(dir),
		"add", "prayer", "--text", "for the harvest")...)
	require.NoError(t, err)

	out, err := runCLI(t, "", append(baseArgs(dir),
		"--server-addr", backend.srv.URL, "sync")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 1 record(s), 0 failed.")

	backend.mu.Lock()
	require.Len(t, backend.pushed, 1)
	assert.Equal(t, models.KindPrayerRequest, backend.pushed[0].Kind)
	assert.Equal(t, "user-1", backend.pushed[0].AuthorID)
	backend.mu.Unlock()

	// The record is now synced; the marker is gone and a second sync is idle.
	out, err = runCLI(t, "", append(baseArgs(dir), "list", "--local")...)
	require.NoError(t, err)
	assert.NotContains(t, out, "(unsynced)")

	out, err = runCLI(t, "", append(baseArgs(dir),
		"--server-addr", backend.srv.URL, "sync")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 0 record(s), 0 failed.")
}

func TestEngage_ResolvesFeedRecord(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(t)
	seedSession(t, dir)

	backend.feed = []models.Record{{
		ID:         "rec-9",
		RemoteID:   "srv-9",
		AuthorID:   "user-2",
		AuthorName: "Bob",
		ChurchID:   "church-1",
		Kind:       models.KindPrayerRequest,
		Visibility: models.VisibilityChurch,
		Payload:    json.RawMessage(`{"text":"travel mercies"}`),
		Synced:     true,
	}}

	out, err := runCLI(t, "", append(baseArgs(dir),
		"--server-addr", backend.srv.URL, "engage", "rec-9", "--kind", "amen")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Engagement eng-1 recorded.")

	backend.mu.Lock()
	require.Len(t, backend.engagements, 1)
	assert.Equal(t, "amen", backend.engagements[0].Kind)
	assert.Equal(t, "user-1", backend.engagements[0].UserID)
	assert.Equal(t, []string{"srv-9"}, backend.engagedIDs)
	backend.mu.Unlock()
}

func TestEngage_UnpushedRecordFails(t *testing.T) {
	dir := t.TempDir()
	backend := newFakeBackend(t)
	seedSession(t, dir)

	out, err := runCLI(t, "", append(baseArgs(dir),
		"add", "note", "--title", "draft", "--body", "x")...)
	require.NoError(t, err)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Created note "))

	_, err = runCLI(t, "", append(baseArgs(dir),
		"--server-addr", backend.srv.URL, "engage", id)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been uploaded yet")
}

func TestRemindSetAndClear(t *testing.T) {
	dir := t.TempDir()
	starts := time.Now().Add(2 * time.Hour).Format(time.RFC3339)

	out, err := runCLI(t, "", append(baseArgs(dir), "remind", "set",
		"--event-id", "ev1", "--title", "Evening Prayer", "--starts", starts)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Reminder booked for ")
	assert.Contains(t, out, "(30 minutes before start)")

	ctx := context.Background()
	store, err := localstore.Open(ctx, filepath.Join(dir, "client.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	sched := reminders.NewScheduler(store, reminders.NewTimerNotifier(nil), logging.NewNop())
	booked, err := sched.Get(ctx, "ev1")
	require.NoError(t, err)
	require.NotNil(t, booked)
	assert.Equal(t, 30, booked.LeadMinutes)
	require.NoError(t, store.Close())

	out, err = runCLI(t, "", append(baseArgs(dir), "remind", "clear", "--event-id", "ev1")...)
	require.NoError(t, err)
	assert.Contains(t, out, "Reminder cleared.")

	store, err = localstore.Open(ctx, filepath.Join(dir, "client.db"), filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	defer store.Close()
	sched = reminders.NewScheduler(store, reminders.NewTimerNotifier(nil), logging.NewNop())
	booked, err = sched.Get(ctx, "ev1")
	require.NoError(t, err)
	assert.Nil(t, booked)
}

func TestRemindSet_PastStartIsNoop(t *testing.T) {
	dir := t.TempDir()
	starts := time.Now().Add(-time.Hour).Format(time.RFC3339)

	out, err := runCLI(t, "", append(baseArgs(dir), "remind", "set",
		"--event-id", "ev1", "--title", "Past Event", "--starts", starts)...)
	require.NoError(t, err)
	assert.Contains(t, out, "nothing was booked")
}

func TestCacheStats_EmptyStore(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, "", append(baseArgs(dir), "cache", "stats")...)
	require.NoError(t, err)
	assert.Contains(t, out, "0 entries, 0 of")
}

func TestCalendarExport_WritesICS(t *testing.T) {
	dir := t.TempDir()
	seedSession(t, dir)

	out, err := runCLI(t, "", append(baseArgs(dir), "calendar", "export",
		"--event-id", "ev1", "--title", "Parish Picnic",
		"--starts", "2026-09-01T18:00:00Z")...)
	require.NoError(t, err)

	path := filepath.Join(dir, "blobs", "calendar_ev1.ics")
	assert.Contains(t, out, "Exported to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BEGIN:VCALENDAR")
	assert.Contains(t, string(data), "SUMMARY:Parish Picnic")
	assert.Contains(t, string(data), "DTSTART:20260901T180000Z")
}

func TestConfigPrecedence_FlagBeatsFile(t *testing.T) {
	dir := t.TempDir()
	fileDB := filepath.Join(dir, "from-file.db")
	flagDB := filepath.Join(dir, "from-flag.db")

	cfgPath := filepath.Join(dir, "config.json")
	cfgJSON := fmt.Sprintf(`{"database_path": %q, "blob_dir": %q}`,
		fileDB, filepath.Join(dir, "blobs"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgJSON), 0o600))

	// With only the file, the store lands at the file's path.
	_, err := runCLI(t, "", "-c", cfgPath, "--log-level", "error", "list", "--local")
	require.NoError(t, err)
	_, err = os.Stat(fileDB)
	require.NoError(t, err)

	// An explicit flag wins over the file.
	_, err = runCLI(t, "", "-c", cfgPath, "--log-level", "error", "--db", flagDB, "list", "--local")
	require.NoError(t, err)
	_, err = os.Stat(flagDB)
	require.NoError(t, err)
}
