package calendar

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/flocksync/internal/client/models"
)

const googleBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleAPI drives the Google Calendar v3 events API on the member's
// primary calendar.
type GoogleAPI struct {
	client  *http.Client
	baseURL string
}

// NewGoogleAPI builds the production client. Tests point baseURL at a stub
// server via NewGoogleAPIWithBase.
func NewGoogleAPI() *GoogleAPI {
	return NewGoogleAPIWithBase(googleBaseURL)
}

func NewGoogleAPIWithBase(baseURL string) *GoogleAPI {
	return &GoogleAPI{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

type googleTime struct {
	DateTime string `json:"dateTime"`
}

type googleEvent struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       googleTime `json:"start"`
	End         googleTime `json:"end"`
}

func toGoogleEvent(event models.Event) googleEvent {
	return googleEvent{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       googleTime{DateTime: event.StartsAt.Format(time.RFC3339)},
		End:         googleTime{DateTime: event.EndsAt.Format(time.RFC3339)},
	}
}

func (g *GoogleAPI) CreateEvent(ctx context.Context, creds Credentials, event models.Event) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, g.client, http.MethodPost,
		g.baseURL+"/calendars/primary/events",
		creds.AccessToken, toGoogleEvent(event), &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (g *GoogleAPI) UpdateEvent(ctx context.Context, creds Credentials, event models.Event, externalID string) error {
	return doJSON(ctx, g.client, http.MethodPatch,
		g.baseURL+"/calendars/primary/events/"+url.PathEscape(externalID),
		creds.AccessToken, toGoogleEvent(event), nil)
}

func (g *GoogleAPI) DeleteEvent(ctx context.Context, creds Credentials, externalID string) error {
	return doJSON(ctx, g.client, http.MethodDelete,
		g.baseURL+"/calendars/primary/events/"+url.PathEscape(externalID),
		creds.AccessToken, nil, nil)
}
