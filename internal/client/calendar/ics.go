package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/localstore"
	"github.com/dmitrijs2005/flocksync/internal/client/models"
	"github.com/dmitrijs2005/flocksync/internal/common"
)

// icsNow is a test seam for the DTSTAMP clock.
var icsNow = time.Now

const icsTimeLayout = "20060102T150405Z"

// ICSExporter is the Apple-side backend. There is no API to call: create
// and update write an RFC 5545 file into the blob area for the member to
// import, and delete is unsupported.
type ICSExporter struct {
	store localstore.Store
}

func NewICSExporter(store localstore.Store) *ICSExporter {
	return &ICSExporter{store: store}
}

// FileName returns the blob-area name of the export for an event.
func (e *ICSExporter) FileName(eventID string) string {
	return "calendar/" + eventID + ".ics"
}

func (e *ICSExporter) CreateEvent(ctx context.Context, creds Credentials, event models.Event) (string, error) {
	name := e.FileName(event.ID)
	if err := e.store.WriteBlob(ctx, name, renderICS(event, icsNow())); err != nil {
		return "", err
	}
	return name, nil
}

// UpdateEvent rewrites the export in place. The UID inside stays the same,
// so a calendar app importing it twice updates rather than duplicates.
func (e *ICSExporter) UpdateEvent(ctx context.Context, creds Credentials, event models.Event, externalID string) error {
	return e.store.WriteBlob(ctx, externalID, renderICS(event, icsNow()))
}

func (e *ICSExporter) DeleteEvent(ctx context.Context, creds Credentials, externalID string) error {
	return fmt.Errorf("apple calendar export: %w", common.ErrUnsupported)
}

// renderICS emits a minimal single-event VCALENDAR. Lines end with CRLF and
// text values are escaped per RFC 5545.
func renderICS(event models.Event, now time.Time) []byte {
	var b strings.Builder
	writeICSLine(&b, "BEGIN:VCALENDAR")
	writeICSLine(&b, "VERSION:2.0")
	writeICSLine(&b, "PRODID:-//FlockSync//Event Export//EN")
	writeICSLine(&b, "BEGIN:VEVENT")
	writeICSLine(&b, "UID:"+icsEscape(event.ID)+"@flocksync")
	writeICSLine(&b, "DTSTAMP:"+now.UTC().Format(icsTimeLayout))
	writeICSLine(&b, "DTSTART:"+event.StartsAt.UTC().Format(icsTimeLayout))
	writeICSLine(&b, "DTEND:"+event.EndsAt.UTC().Format(icsTimeLayout))
	writeICSLine(&b, "SUMMARY:"+icsEscape(event.Title))
	if event.Description != "" {
		writeICSLine(&b, "DESCRIPTION:"+icsEscape(event.Description))
	}
	if event.Location != "" {
		writeICSLine(&b, "LOCATION:"+icsEscape(event.Location))
	}
	writeICSLine(&b, "END:VEVENT")
	writeICSLine(&b, "END:VCALENDAR")
	return []byte(b.String())
}

func writeICSLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteString("\r\n")
}

var icsReplacer = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func icsEscape(s string) string {
	return icsReplacer.Replace(s)
}
